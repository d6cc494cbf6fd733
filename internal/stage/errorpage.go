package stage

import (
	"context"

	"github.com/wiggo/wiggo/internal/fingerprint"
)

// ErrorPageStage probes every known "not found" URL with the requester's
// drop-non-200s behavior suppressed, and seeds the matcher's error-page
// digest set from the resulting responses.
type ErrorPageStage struct{}

func (ErrorPageStage) Name() string { return "error_page" }

func (ErrorPageStage) Run(ctx context.Context, sc *ScanContext) error {
	if len(sc.Catalog.ErrorPages) == 0 {
		return nil
	}
	groups := fingerprint.GroupByURL(sc.Catalog.ErrorPages)
	probes := sc.Requester.Run(ctx, groups, true)
	for _, p := range probes {
		if p.Response == nil {
			continue
		}
		sc.Matcher.ErrorPages[p.Response.MD5404] = struct{}{}
		sc.Matcher.ErrorPages[p.Response.MD5404Text] = struct{}{}
	}
	return nil
}
