package stage

import (
	"net/url"
	"testing"

	"github.com/wiggo/wiggo/internal/cache"
	"github.com/wiggo/wiggo/internal/config"
	"github.com/wiggo/wiggo/internal/diag"
	"github.com/wiggo/wiggo/internal/fetcher"
	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/matcher"
	"github.com/wiggo/wiggo/internal/results"
	"github.com/wiggo/wiggo/internal/testutil"
)

// newTestContext builds a ScanContext scoped to srv, with an empty
// catalog the caller fills in per-test.
func newTestContext(t *testing.T, srv *testutil.Server) *ScanContext {
	t.Helper()
	u, err := url.Parse(srv.URL())
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()
	cfg.BatchSize = 20
	cfg.Threads = 2

	c := cache.New(cfg.CacheDir)
	c.SetHost(u.Host)

	req := fetcher.New(cfg.Threads, cfg.UserAgent, cfg.Prefix, cfg.Timeout, c, nil)
	t.Cleanup(req.Close)
	req.SetScope(u.Host)

	cat := &fingerprint.Catalog{
		CMS:        map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		JS:         map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		Platform:   map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		Dictionary: map[string]fingerprint.DictEntry{},
	}

	return NewScanContext(cfg, cat, c, req, matcher.New(), results.New(), diag.New(0, true), u.Host)
}
