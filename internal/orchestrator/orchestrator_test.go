package orchestrator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"testing"
	"time"

	"github.com/wiggo/wiggo/internal/config"
	"github.com/wiggo/wiggo/internal/diag"
	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/testutil"
)

func baseConfig(cacheDir string) *config.ScanConfig {
	cfg := config.DefaultConfig()
	cfg.NoCacheLoad = true
	cfg.NoCacheSave = true
	cfg.Quiet = true
	cfg.Subdomains = false
	cfg.CacheDir = cacheDir
	cfg.Threads = 2
	cfg.BatchSize = 20
	cfg.Timeout = 2 * time.Second
	return cfg
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// S1 — WordPress version pin: a regex fingerprint on /readme.html and a
// digest fingerprint on a static JS file both resolve to the same
// version, and the CMS stage's queue-drain records it.
func TestScanTarget_WordPressVersionPin(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()

	body := "WordPress Version 5.1"
	srv.SetPage("/readme.html", body, nil)
	embedJS := "/* wp-embed */"
	srv.SetPageWithType("/wp-includes/js/wp-embed.min.js", embedJS, "application/javascript")

	cat := &fingerprint.Catalog{
		CMS: map[fingerprint.Kind][]*fingerprint.Fingerprint{
			fingerprint.KindRegex: {
				{Type: fingerprint.KindRegex, URL: "/readme.html", Name: "WordPress", Match: `Version ([0-9.]+)`, Output: "%s", Code: fingerprint.Code{Value: 200}, Weight: 1},
			},
			fingerprint.KindMD5: {
				{Type: fingerprint.KindMD5, URL: "/wp-includes/js/wp-embed.min.js", Name: "WordPress", Match: md5Hex(embedJS), Output: "5.1", Code: fingerprint.Code{Value: 200}, Weight: 1},
			},
		},
		JS:         map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		Platform:   map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		Dictionary: map[string]fingerprint.DictEntry{},
	}

	cfg := baseConfig(t.TempDir())
	cfg.URLs = []string{srv.URL()}

	orch := New(cfg, cat, diag.New(0, true))
	report, err := orch.ScanTarget(context.Background(), srv.URL())
	if err != nil {
		t.Fatalf("ScanTarget: %v", err)
	}

	found := map[string]bool{}
	for _, row := range report.Data {
		if row.Category == "cms" && row.Name == "WordPress" {
			found[row.Version] = true
		}
	}
	if !found["5.1"] {
		t.Fatalf("expected WordPress 5.1 in report, got %+v", report.Data)
	}
}

// S2 — Soft-404 suppression: the error-page digest collected from the
// catalog's error page probe must suppress an Interesting-stage match
// whose response carries the same digest.
func TestScanTarget_Soft404Suppression(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()

	soft404Body := "<html>not found here</html>"
	srv.SetPage("/nonexistent-probe-path", soft404Body, nil)
	srv.SetPage("/admin.php", soft404Body, nil)

	cat := &fingerprint.Catalog{
		CMS:      map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		JS:       map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		Platform: map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		ErrorPages: []*fingerprint.Fingerprint{
			{Type: fingerprint.KindString, URL: "/nonexistent-probe-path", Code: fingerprint.Code{Any: true}},
		},
		Interesting: []*fingerprint.Fingerprint{
			{Type: fingerprint.KindString, URL: "/admin.php", Match: "not found", Note: "admin panel", Code: fingerprint.Code{Value: 200}, Weight: 1},
		},
		Dictionary: map[string]fingerprint.DictEntry{},
	}

	cfg := baseConfig(t.TempDir())
	cfg.URLs = []string{srv.URL()}

	orch := New(cfg, cat, diag.New(0, true))
	report, err := orch.ScanTarget(context.Background(), srv.URL())
	if err != nil {
		t.Fatalf("ScanTarget: %v", err)
	}

	for _, row := range report.Data {
		if row.Category == "interesting" {
			t.Fatalf("expected no interesting entries, got %+v", row)
		}
	}
}

// S6 — OS family boost: a Server header carrying a parenthetical OS
// hint boosts the matching OS fingerprint's weight by 100x.
func TestScanTarget_OSFamilyBoost(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()

	srv.SetPage("/", "<html><title>home</title></html>", map[string]string{
		"Server": "Apache/2.4 (Ubuntu) PHP/5.3.1",
	})

	cat := &fingerprint.Catalog{
		CMS:      map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		JS:       map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		Platform: map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		OS: []*fingerprint.Fingerprint{
			{PkgName: "php", PkgVersion: "5.3.1", OSName: "Ubuntu", OSVersion: "10.04", Weight: 1},
		},
		Dictionary: map[string]fingerprint.DictEntry{},
	}

	cfg := baseConfig(t.TempDir())
	cfg.URLs = []string{srv.URL()}

	orch := New(cfg, cat, diag.New(0, true))
	report, err := orch.ScanTarget(context.Background(), srv.URL())
	if err != nil {
		t.Fatalf("ScanTarget: %v", err)
	}

	foundUbuntu := false
	for _, row := range report.Data {
		if row.Category == "os" && row.Name == "Ubuntu" && row.Version == "10.04" {
			foundUbuntu = true
		}
	}
	if !foundUbuntu {
		t.Fatalf("expected os Ubuntu 10.04 in report, got %+v", report.Data)
	}
}

// S3 — Scope redirect: a cross-host redirect in quiet mode proceeds
// with the redirected host as the new scope without aborting.
func TestScanTarget_CrossHostRedirectQuietProceeds(t *testing.T) {
	a := testutil.NewServer()
	defer a.Close()
	b := testutil.NewServer()
	defer b.Close()

	a.SetRedirect("/", b.URL()+"/")
	b.SetPage("/", "<html><title>evil</title></html>", nil)

	cat := &fingerprint.Catalog{
		CMS:        map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		JS:         map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		Platform:   map[fingerprint.Kind][]*fingerprint.Fingerprint{},
		Dictionary: map[string]fingerprint.DictEntry{},
	}

	cfg := baseConfig(t.TempDir())
	cfg.URLs = []string{a.URL()}

	orch := New(cfg, cat, diag.New(0, true))
	report, err := orch.ScanTarget(context.Background(), a.URL())
	if err != nil {
		t.Fatalf("ScanTarget: %v", err)
	}
	if report.SiteInfo.Title != "evil" {
		t.Fatalf("expected redirected-site title 'evil', got %q", report.SiteInfo.Title)
	}
}
