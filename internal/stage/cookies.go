package stage

import (
	"context"
	"strings"
)

// CookiesStage scans every cached response's Set-Cookie headers and
// records the distinct cookie names seen.
type CookiesStage struct{}

func (CookiesStage) Name() string { return "cookies" }

func (CookiesStage) Run(ctx context.Context, sc *ScanContext) error {
	for _, resp := range sc.Cache.Responses() {
		for _, raw := range resp.Headers.Values("Set-Cookie") {
			if name := cookieName(raw); name != "" {
				sc.Results.SiteInfo.Cookies[name] = struct{}{}
			}
		}
	}
	return nil
}

func cookieName(raw string) string {
	if i := strings.Index(raw, "="); i > 0 {
		return strings.TrimSpace(raw[:i])
	}
	return ""
}
