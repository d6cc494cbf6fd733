package stage

import (
	"context"

	"github.com/wiggo/wiggo/internal/fingerprint"
)

// categorized pairs a fingerprint with the results category it belongs
// to, needed whenever cms and platform fingerprints are combined into
// one pass but must still land in separate result buckets.
type categorized struct {
	category string
	fp       *fingerprint.Fingerprint
}

func categorizedCMSAndPlatform(cat *catalogPair) []categorized {
	var out []categorized
	for _, fp := range allFingerprints(cat.cms) {
		out = append(out, categorized{category: "cms", fp: fp})
	}
	for _, fp := range allFingerprints(cat.platform) {
		out = append(out, categorized{category: "platform", fp: fp})
	}
	return out
}

type catalogPair struct {
	cms      map[fingerprint.Kind][]*fingerprint.Fingerprint
	platform map[fingerprint.Kind][]*fingerprint.Fingerprint
}

// UrlLessStage tries every fingerprint with an empty url (cms or
// platform) against every cached response, back-filling the matched
// url. The first detection of a given (name, output) pair is always
// recorded; a repeat of the same pair is recorded too unless that
// fingerprint explicitly sets show_all_detections to false.
type UrlLessStage struct{}

func (UrlLessStage) Name() string { return "urlless" }

func (UrlLessStage) Run(ctx context.Context, sc *ScanContext) error {
	var targets []categorized
	for _, c := range categorizedCMSAndPlatform(&catalogPair{cms: sc.Catalog.CMS, platform: sc.Catalog.Platform}) {
		if c.fp.URL == "" {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	fps := make([]*fingerprint.Fingerprint, len(targets))
	byPtr := make(map[*fingerprint.Fingerprint]string, len(targets))
	for i, c := range targets {
		fps[i] = c.fp
		byPtr[c.fp] = c.category
	}

	seen := make(map[string]struct{})
	for _, resp := range sc.Cache.Responses() {
		for _, m := range sc.Matcher.GetResult(fps, resp) {
			key := m.Fingerprint.Name + "\x00" + m.Output
			_, dup := seen[key]
			seen[key] = struct{}{}
			if dup && !m.Fingerprint.ShowAll() {
				continue
			}
			category := byPtr[m.Fingerprint]
			sc.Results.AddVersion(category, m.Fingerprint.Name, m.Output, m.Fingerprint, m.Fingerprint.Weight)
		}
	}
	return nil
}
