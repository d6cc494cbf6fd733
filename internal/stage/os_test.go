package stage

import (
	"context"
	"net/http"
	"testing"

	"github.com/wiggo/wiggo/internal/fetcher"
	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/testutil"
)

// S6 — OS family boost at the stage level: the weight of a matching OS
// fingerprint is multiplied by 100 when its OS name was seen in a
// Server header parenthetical.
func TestOSStageFamilyBoost(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	sc := newTestContext(t, srv)

	headers := http.Header{}
	headers.Set("Server", "Apache/2.4 (Ubuntu) PHP/5.3.1")
	resp := fetcher.NewResponse(srv.URL()+"/", "http", sc.Host, 200, "OK", headers, []byte("hi"))
	sc.Cache.Put(resp.URL, resp)
	sc.noteServerFamily("ubuntu")

	sc.Catalog.OS = []*fingerprint.Fingerprint{
		{PkgName: "php", PkgVersion: "5.3.1", OSName: "Ubuntu", OSVersion: "10.04", Weight: 1},
	}

	if err := (OSStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := sc.Results.VersionsFor("os")["Ubuntu"]["10.04"]
	if got != 100 {
		t.Fatalf("expected boosted weight 100, got %v", got)
	}
}

// Regression: once HeadersStage has already turned the Server header's
// tokens into platform scores (the default pipeline order runs Headers
// before OS), the OS stage must still apply the family boost exactly
// once, not once per matching candidate source.
func TestOSStageAppliesBoostOnlyOnceAfterHeadersStage(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	sc := newTestContext(t, srv)

	headers := http.Header{}
	headers.Set("Server", "Apache/2.4 (Ubuntu) PHP/5.3.1")
	resp := fetcher.NewResponse(srv.URL()+"/", "http", sc.Host, 200, "OK", headers, []byte("hi"))
	sc.Cache.Put(resp.URL, resp)

	if err := (HeadersStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("HeadersStage.Run: %v", err)
	}

	sc.Catalog.OS = []*fingerprint.Fingerprint{
		{PkgName: "php", PkgVersion: "5.3.1", OSName: "Ubuntu", OSVersion: "10.04", Weight: 1},
	}

	if err := (OSStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("OSStage.Run: %v", err)
	}

	got := sc.Results.VersionsFor("os")["Ubuntu"]["10.04"]
	if got != 100 {
		t.Fatalf("expected exactly one ×100 boost applied (100), got %v", got)
	}
}

func TestOSStageNoBoostWithoutFamilyHint(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	sc := newTestContext(t, srv)

	headers := http.Header{}
	headers.Set("Server", "Apache/2.4 PHP/5.3.1")
	resp := fetcher.NewResponse(srv.URL()+"/", "http", sc.Host, 200, "OK", headers, []byte("hi"))
	sc.Cache.Put(resp.URL, resp)

	sc.Catalog.OS = []*fingerprint.Fingerprint{
		{PkgName: "php", PkgVersion: "5.3.1", OSName: "Ubuntu", OSVersion: "10.04", Weight: 1},
	}

	if err := (OSStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := sc.Results.VersionsFor("os")["Ubuntu"]["10.04"]
	if got != 1 {
		t.Fatalf("expected unboosted weight 1, got %v", got)
	}
}
