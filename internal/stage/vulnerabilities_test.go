package stage

import (
	"context"
	"testing"

	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/testutil"
)

func TestVulnerabilitiesStageCountsMatchingCVEs(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	sc := newTestContext(t, srv)

	sc.Results.AddVersion("cms", "WordPress", "5.1", nil, 1)
	sc.Catalog.Vulnerabilities = []*fingerprint.Fingerprint{
		{Name: "WordPress", Match: "5.1", URL: "https://cvedetails.com/1"},
		{Name: "WordPress", Match: "5.1", URL: "https://cvedetails.com/2"},
		{Name: "WordPress", Match: "4.0", URL: "https://cvedetails.com/old"},
	}

	if err := (VulnerabilitiesStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sc.Results.Vulnerability) != 1 {
		t.Fatalf("expected exactly 1 vulnerability row, got %v", sc.Results.Vulnerability)
	}
	for _, entry := range sc.Results.Vulnerability {
		if entry.Count != 2 {
			t.Fatalf("expected count 2 for WordPress 5.1, got %d", entry.Count)
		}
		if entry.Link != "https://cvedetails.com/1" {
			t.Fatalf("expected first-matched link, got %q", entry.Link)
		}
	}
}

func TestVulnerabilitiesStageSkipsUnreliableVersionSpread(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	sc := newTestContext(t, srv)

	for _, v := range []string{"1", "2", "3", "4", "5", "6"} {
		sc.Results.AddVersion("cms", "Spread", v, nil, 1)
	}
	sc.Catalog.Vulnerabilities = []*fingerprint.Fingerprint{
		{Name: "Spread", Match: "1", URL: "https://cvedetails.com/1"},
	}

	if err := (VulnerabilitiesStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sc.Results.Vulnerability) != 0 {
		t.Fatalf("expected no vulnerability rows for a 6-way version spread, got %v", sc.Results.Vulnerability)
	}
}

func TestToolsStageLooksUpDictionaryByDetectedName(t *testing.T) {
	srv := testutil.NewServer()
	defer srv.Close()
	sc := newTestContext(t, srv)

	sc.Results.AddVersion("cms", "WordPress", "5.1", nil, 1)
	sc.Catalog.Dictionary["wordpress"] = fingerprint.DictEntry{
		Name: "WordPress",
		Tools: []fingerprint.ToolEntry{
			{Name: "wpscan", Link: "https://wpscan.com"},
		},
	}

	if err := (ToolsStage{}).Run(context.Background(), sc); err != nil {
		t.Fatalf("Run: %v", err)
	}

	tool, ok := sc.Results.Tool["wpscan"]
	if !ok || tool.CMS != "WordPress" || tool.Link != "https://wpscan.com" {
		t.Fatalf("expected wpscan tool recorded for WordPress, got %+v (ok=%v)", tool, ok)
	}
}
