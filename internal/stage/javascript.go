package stage

import (
	"context"
	"strings"

	"github.com/wiggo/wiggo/internal/fetcher"
)

// JavaScriptStage matches js/* fingerprints against every cached
// response that looks like a script: Content-Type containing
// "javascript", or a URL ending in .js.
type JavaScriptStage struct{}

func (JavaScriptStage) Name() string { return "javascript" }

func (JavaScriptStage) Run(ctx context.Context, sc *ScanContext) error {
	fps := allFingerprints(sc.Catalog.JS)
	if len(fps) == 0 {
		return nil
	}

	for _, resp := range sc.Cache.Responses() {
		if !looksLikeJS(resp) {
			continue
		}
		for _, m := range sc.Matcher.GetResult(fps, resp) {
			sc.Results.AddVersion("javascript", m.Fingerprint.Name, m.Output, m.Fingerprint, m.Fingerprint.Weight)
		}
	}
	return nil
}

func looksLikeJS(resp *fetcher.Response) bool {
	if strings.Contains(resp.Headers.Get("Content-Type"), "javascript") {
		return true
	}
	return strings.HasSuffix(resp.URL, ".js")
}
