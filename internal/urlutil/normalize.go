// Package urlutil provides the small set of host/domain helpers the
// scope guard and subdomain stage need — not general URL normalization.
package urlutil

import "strings"

// ExtractHost returns the lower-cased host component of a URL's
// authority (no scheme, no path).
func ExtractHost(host string) string {
	return strings.ToLower(host)
}

// ExtractDomain returns the registrable domain of a host: its last two
// dot-separated labels, or the host itself if it has fewer than two
// (a bare TLD-less hostname, or an already-bare domain).
func ExtractDomain(host string) string {
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		if !strings.Contains(host, "]") || idx > strings.LastIndex(host, "]") {
			host = host[:idx]
		}
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return strings.Join(parts[len(parts)-2:], ".")
	}
	return host
}

// IsSameHost reports whether two host[:port] strings name the same
// host, case-insensitively — the scope guard's core comparison.
func IsSameHost(a, b string) bool {
	return ExtractHost(a) == ExtractHost(b)
}
