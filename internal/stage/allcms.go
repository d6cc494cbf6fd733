package stage

import (
	"context"

	"github.com/wiggo/wiggo/internal/fingerprint"
)

// AllCMSStage is the optional match-all pass: it matches every cms and
// platform fingerprint against every cached response with no new
// probes, surfacing detections the narrower CMS/Platform queues (which
// stop early or skip already-matched URLs) might otherwise have missed.
type AllCMSStage struct{}

func (AllCMSStage) Name() string { return "all_cms" }

func (AllCMSStage) Run(ctx context.Context, sc *ScanContext) error {
	targets := categorizedCMSAndPlatform(&catalogPair{cms: sc.Catalog.CMS, platform: sc.Catalog.Platform})
	if len(targets) == 0 {
		return nil
	}

	fps := make([]*fingerprint.Fingerprint, len(targets))
	byPtr := make(map[*fingerprint.Fingerprint]string, len(targets))
	for i, c := range targets {
		fps[i] = c.fp
		byPtr[c.fp] = c.category
	}

	for _, resp := range sc.Cache.Responses() {
		for _, m := range sc.Matcher.GetResult(fps, resp) {
			category := byPtr[m.Fingerprint]
			sc.Results.AddVersion(category, m.Fingerprint.Name, m.Output, m.Fingerprint, m.Fingerprint.Weight)
		}
	}
	return nil
}
