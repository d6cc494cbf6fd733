package stage

import (
	"context"
	"net/url"
	"strings"

	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/linkextract"
)

// MoreStage is the tool's only crawling: it parses every cached,
// not-yet-crawled HTML response for script/img src and link href (plus
// a raw src="..." regex fallback), and probes the same-origin URLs it
// finds so later stages see their responses in the cache.
type MoreStage struct{}

func (MoreStage) Name() string { return "more" }

func (MoreStage) Run(ctx context.Context, sc *ScanContext) error {
	seen := make(map[string]struct{})
	var groups []fingerprint.Group

	for _, resp := range sc.Cache.Responses() {
		if resp.CrawledResponse {
			continue
		}
		ct := resp.Headers.Get("Content-Type")
		if ct == "" {
			continue
		}
		if !strings.Contains(ct, "text/html") {
			continue
		}

		base, err := url.Parse(resp.URL)
		if err != nil {
			continue
		}
		for _, link := range linkextract.Extract(resp.Body) {
			resolved := resolveSameOrigin(base, link)
			if resolved == "" {
				continue
			}
			if _, dup := seen[resolved]; dup {
				continue
			}
			seen[resolved] = struct{}{}
			groups = append(groups, fingerprint.Group{URL: resolved})
		}
	}

	if len(groups) == 0 {
		return nil
	}

	probes := sc.Requester.Run(ctx, groups, true)
	for _, p := range probes {
		if p.Response != nil {
			p.Response.CrawledResponse = true
		}
	}
	return nil
}

// resolveSameOrigin resolves link against base and returns its absolute
// form, or "" if it would leave base's origin.
func resolveSameOrigin(base *url.URL, link string) string {
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != base.Scheme || resolved.Host != base.Host {
		return ""
	}
	return resolved.String()
}
