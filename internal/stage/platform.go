package stage

import (
	"context"

	"github.com/wiggo/wiggo/internal/fingerprint"
)

// PlatformStage is CMSStage's simpler sibling: it drains the same kind
// of per-URL queue but never re-queues for version narrowing and never
// stops early.
type PlatformStage struct{}

func (PlatformStage) Name() string { return "platform" }

func (PlatformStage) Run(ctx context.Context, sc *ScanContext) error {
	all := allFingerprints(sc.Catalog.Platform)
	queue := fingerprint.GroupByURL(all)

	batchSize := sc.Config.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	for len(queue) > 0 {
		n := batchSize
		if n > len(queue) {
			n = len(queue)
		}
		batch := queue[:n]
		queue = queue[n:]

		probes := sc.Requester.Run(ctx, batch, false)
		for _, p := range probes {
			for _, m := range sc.Matcher.GetResult(p.Group.Fingerprints, p.Response) {
				sc.Results.AddVersion("platform", m.Fingerprint.Name, m.Output, m.Fingerprint, m.Fingerprint.Weight)
			}
		}
	}
	return nil
}
