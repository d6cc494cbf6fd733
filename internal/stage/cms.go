package stage

import (
	"context"

	"github.com/wiggo/wiggo/internal/fingerprint"
)

// CMSStage drains a per-URL queue of every cms/* fingerprint, batch by
// batch, and for each newly detected CMS name re-queues that CMS's
// remaining fingerprints on their own so later batches pin down its
// version. It stops early once stop_after distinct CMSes are found,
// unless run_all is set.
type CMSStage struct{}

func (CMSStage) Name() string { return "cms" }

func (CMSStage) Run(ctx context.Context, sc *ScanContext) error {
	all := allFingerprints(sc.Catalog.CMS)
	queue := fingerprint.GroupByURL(all)

	batchSize := sc.Config.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	found := map[string]struct{}{}
	for len(queue) > 0 {
		if !sc.Config.RunAll && sc.Config.StopAfter > 0 && len(found) >= sc.Config.StopAfter {
			break
		}

		n := batchSize
		if n > len(queue) {
			n = len(queue)
		}
		batch := queue[:n]
		queue = queue[n:]

		probes := sc.Requester.Run(ctx, batch, false)

		var pin []*fingerprint.Fingerprint
		for _, p := range probes {
			for _, m := range sc.Matcher.GetResult(p.Group.Fingerprints, p.Response) {
				sc.Results.AddVersion("cms", m.Fingerprint.Name, m.Output, m.Fingerprint, m.Fingerprint.Weight)

				if _, already := found[m.Fingerprint.Name]; already {
					continue
				}
				found[m.Fingerprint.Name] = struct{}{}
				pin = append(pin, extractRemaining(&queue, m.Fingerprint.Name)...)
			}
		}
		if len(pin) > 0 {
			// Pin the newly detected CMS's still-unprobed fingerprints
			// ahead of whatever is left queued, so the version-narrowing
			// sub-pass runs before moving on to undetected CMSes. Already
			// probed fingerprints were pulled out of queue by
			// extractRemaining and never re-enter it.
			queue = append(fingerprint.GroupByURL(pin), queue...)
		}
	}
	return nil
}

// extractRemaining pulls every fingerprint named name out of the
// not-yet-dequeued groups in *queue, leaving the rest of each group in
// place, and returns what it pulled. It never touches fingerprints that
// have already been dequeued and probed.
func extractRemaining(queue *[]fingerprint.Group, name string) []*fingerprint.Fingerprint {
	var pulled []*fingerprint.Fingerprint
	kept := (*queue)[:0]
	for _, g := range *queue {
		var rest []*fingerprint.Fingerprint
		for _, fp := range g.Fingerprints {
			if fp.Name == name {
				pulled = append(pulled, fp)
			} else {
				rest = append(rest, fp)
			}
		}
		if len(rest) > 0 {
			kept = append(kept, fingerprint.Group{URL: g.URL, Fingerprints: rest})
		}
	}
	*queue = kept
	return pulled
}

// allFingerprints flattens a kind-partitioned fingerprint map into one
// slice, in a stable kind order.
func allFingerprints(byKind map[fingerprint.Kind][]*fingerprint.Fingerprint) []*fingerprint.Fingerprint {
	var out []*fingerprint.Fingerprint
	for _, kind := range []fingerprint.Kind{fingerprint.KindMD5, fingerprint.KindRegex, fingerprint.KindString, fingerprint.KindHeader} {
		out = append(out, byKind[kind]...)
	}
	return out
}
