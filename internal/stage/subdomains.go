package stage

import (
	"context"
	"crypto/rand"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/wiggo/wiggo/internal/urlutil"
)

// SubdomainsStage resolves each candidate label under the target's
// domain and records the ones that respond. A wildcard DNS setup would
// make every label resolve identically, so a random control label is
// probed first and any candidate whose (title, ip) matches it is
// discarded.
type SubdomainsStage struct{}

func (SubdomainsStage) Name() string { return "subdomains" }

func (SubdomainsStage) Run(ctx context.Context, sc *ScanContext) error {
	if len(sc.Catalog.Subdomains) == 0 {
		return nil
	}

	domain := urlutil.ExtractDomain(stripPort(sc.Host))
	controlTitle, controlIP := probeSubdomainHost(ctx, randomLabel()+"."+domain)

	for _, fp := range sc.Catalog.Subdomains {
		label := fp.Match
		if label == "" {
			label = fp.Name
		}
		if label == "" {
			continue
		}
		host := label + "." + domain

		title, ip := probeSubdomainHost(ctx, host)
		if title == "" && ip == "" {
			continue
		}
		if title == controlTitle && ip == controlIP {
			continue
		}
		sc.Results.AddSubdomain(host, title, ip)
	}
	return nil
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func randomLabel() string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = chars[int(b[i])%len(chars)]
	}
	return string(b)
}

// probeSubdomainHost resolves host with a 1s timeout and, if it
// resolves, fetches its title over https then http, each with a 1s
// client timeout, per the subdomain stage's tighter timeout budget.
func probeSubdomainHost(ctx context.Context, host string) (title, ip string) {
	lookupCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupHost(lookupCtx, host)
	if err != nil || len(addrs) == 0 {
		return "", ""
	}
	ip = addrs[0]

	client := &http.Client{Timeout: time.Second}
	for _, scheme := range []string{"https", "http"} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheme+"://"+host+"/", nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if m := titlePattern.FindSubmatch(body); m != nil {
			title = strings.TrimSpace(string(m[1]))
		}
		break
	}
	return title, ip
}
