package stage

import (
	"context"

	"github.com/wiggo/wiggo/internal/fingerprint"
)

// InterestingStage probes every interesting-file candidate and records a
// note for each hit, suppressing soft-404s: responses whose digest is in
// the error-page set, or whose visible-text digest matches the site
// root's (the same canonicalized page served under a different path).
type InterestingStage struct{}

func (InterestingStage) Name() string { return "interesting" }

func (InterestingStage) Run(ctx context.Context, sc *ScanContext) error {
	if len(sc.Catalog.Interesting) == 0 {
		return nil
	}
	groups := fingerprint.GroupByURL(sc.Catalog.Interesting)
	probes := sc.Requester.Run(ctx, groups, false)

	for _, p := range probes {
		if p.Response == nil {
			continue
		}
		if _, soft := sc.Matcher.ErrorPages[p.Response.MD5404]; soft {
			continue
		}
		if _, soft := sc.Matcher.ErrorPages[p.Response.MD5404Text]; soft {
			continue
		}
		if sc.RootMD5Text != "" && p.Response.MD5404Text == sc.RootMD5Text {
			continue
		}

		for _, m := range sc.Matcher.GetResult(p.Group.Fingerprints, p.Response) {
			sc.Results.AddNote(m.Fingerprint, m.Fingerprint.Weight)
		}
	}
	return nil
}
