package stage

import (
	"context"
	"testing"

	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/testutil"
)

// Once a CMS is detected, the stage should pin its remaining
// fingerprints ahead of other undetected CMSes so the next batch
// narrows its version instead of moving on.
func TestCMSStagePinsDetectedCMSVersionQueue(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	sc := newTestContext(t, srv)
	sc.Config.BatchSize = 1
	sc.Config.RunAll = true

	srv.SetPage("/marker.txt", "acme-cms-marker", nil)
	srv.SetPage("/version.txt", "acme version 9.9", nil)
	srv.SetPage("/other.txt", "something else entirely", nil)

	sc.Catalog.CMS[fingerprint.KindString] = []*fingerprint.Fingerprint{
		// Listed first so it's drained before /version.txt in the
		// initial, undetected-order queue.
		{Type: fingerprint.KindString, URL: "/other.txt", Name: "OtherCMS", Match: "something else", Output: "", Code: fingerprint.Code{Value: 200}, Weight: 1},
		{Type: fingerprint.KindString, URL: "/marker.txt", Name: "Acme", Match: "acme-cms-marker", Output: "", Code: fingerprint.Code{Value: 200}, Weight: 1},
		{Type: fingerprint.KindString, URL: "/version.txt", Name: "Acme", Match: "acme version 9.9", Output: "9.9", Code: fingerprint.Code{Value: 200}, Weight: 1},
	}

	if err := (CMSStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	acme := sc.Results.VersionsFor("cms")["Acme"]
	if acme["9.9"] == 0 {
		t.Fatalf("expected Acme 9.9 pinned and matched, got %v", acme)
	}
	if !sc.Cache.Contains(srv.URL() + "/other.txt") {
		t.Fatalf("expected OtherCMS's URL also probed")
	}
}

// A fingerprint that itself triggers detection must not be re-pinned
// and re-probed alongside the CMS's still-unprobed fingerprints — doing
// so would match it a second time (served from cache) and double its
// weight.
func TestCMSStageDoesNotRepinAlreadyProbedFingerprint(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	sc := newTestContext(t, srv)
	sc.Config.BatchSize = 1
	sc.Config.RunAll = true

	srv.SetPage("/version.txt", "acme version 9.9", nil)
	srv.SetPage("/extra.txt", "acme-extra-marker", nil)
	srv.SetPage("/other.txt", "something else entirely", nil)

	sc.Catalog.CMS[fingerprint.KindString] = []*fingerprint.Fingerprint{
		// The detecting fingerprint is listed first, so it is dequeued
		// and matched in the very first batch, before any pinning.
		{Type: fingerprint.KindString, URL: "/version.txt", Name: "Acme", Match: "acme version 9.9", Output: "9.9", Code: fingerprint.Code{Value: 200}, Weight: 1},
		{Type: fingerprint.KindString, URL: "/extra.txt", Name: "Acme", Match: "acme-extra-marker", Output: "", Code: fingerprint.Code{Value: 200}, Weight: 1},
		{Type: fingerprint.KindString, URL: "/other.txt", Name: "OtherCMS", Match: "something else", Output: "", Code: fingerprint.Code{Value: 200}, Weight: 1},
	}

	if err := (CMSStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	acme := sc.Results.VersionsFor("cms")["Acme"]
	if acme["9.9"] != 1 {
		t.Fatalf("expected Acme 9.9 matched exactly once (weight 1), got %v", acme)
	}
}

func TestCMSStageStopsAfterStopAfterDistinctCMSes(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	sc := newTestContext(t, srv)
	sc.Config.BatchSize = 1
	sc.Config.StopAfter = 1
	sc.Config.RunAll = false

	srv.SetPage("/a.txt", "hit-a", nil)
	srv.SetPage("/b.txt", "hit-b", nil)

	sc.Catalog.CMS[fingerprint.KindString] = []*fingerprint.Fingerprint{
		{Type: fingerprint.KindString, URL: "/a.txt", Name: "First", Match: "hit-a", Output: "1.0", Code: fingerprint.Code{Value: 200}, Weight: 1},
		{Type: fingerprint.KindString, URL: "/b.txt", Name: "Second", Match: "hit-b", Output: "2.0", Code: fingerprint.Code{Value: 200}, Weight: 1},
	}

	if err := (CMSStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	all := sc.Results.VersionsFor("cms")
	if len(all) != 1 {
		t.Fatalf("expected draining to stop after 1 distinct CMS, got %v", all)
	}
}
