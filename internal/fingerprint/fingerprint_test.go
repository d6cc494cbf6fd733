package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
)

func writeJSON(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCatalog(t *testing.T) {
	root := t.TempDir()

	writeJSON(t, filepath.Join(root, "dictionary.json"), `{
		"wordpress": {"name": "WordPress", "tool": [{"name": "wpscan", "link": "https://wpscan.com"}]}
	}`)
	writeJSON(t, filepath.Join(root, "cms", "regex", "wordpress.json"), `[
		{"type": "regex", "url": "/readme.html", "match": "Version ([0-9.]+)", "output": "%s"}
	]`)
	writeJSON(t, filepath.Join(root, "os", "php.json"), `[
		{"pkg_name": "php", "pkg_version": "5.3.1", "os_name": "Ubuntu", "os_version": "10.04"}
	]`)
	writeJSON(t, filepath.Join(root, "error_pages.json"), `[{"type":"string","url":"/nope","match":"not found"}]`)
	writeJSON(t, filepath.Join(root, "interesting.json"), `[
		{"type":"string","url":"/backup","match":"index of","note":"backup dir","ext":["zip","tar.gz"]}
	]`)
	writeJSON(t, filepath.Join(root, "subdomains.json"), `[{"match":"www"},{"match":"mail"}]`)
	writeJSON(t, filepath.Join(root, "vulnerabilities", "cvedetails", "wordpress.json"), `[
		{"name":"WordPress","match":"5.1","url":"https://cvedetails.com/1"}
	]`)

	cat, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cat.CMS[KindRegex]) != 1 {
		t.Fatalf("expected 1 cms regex fingerprint, got %d", len(cat.CMS[KindRegex]))
	}
	if cat.CMS[KindRegex][0].Name != "WordPress" {
		t.Fatalf("expected dictionary-decorated name WordPress, got %q", cat.CMS[KindRegex][0].Name)
	}
	if cat.CMS[KindRegex][0].Code.Value != 200 {
		t.Fatalf("expected default code 200, got %+v", cat.CMS[KindRegex][0].Code)
	}

	if len(cat.OS) != 1 || cat.OS[0].OSName != "Ubuntu" {
		t.Fatalf("expected 1 os fingerprint for Ubuntu, got %+v", cat.OS)
	}

	// interesting.json's ext list must expand into one fingerprint per
	// extension, suffixing the URL.
	if len(cat.Interesting) != 2 {
		t.Fatalf("expected 2 expanded interesting fingerprints, got %d", len(cat.Interesting))
	}
	wantURLs := map[string]bool{"/backup.zip": false, "/backup.tar.gz": false}
	for _, fp := range cat.Interesting {
		if _, ok := wantURLs[fp.URL]; !ok {
			t.Fatalf("unexpected expanded URL %q", fp.URL)
		}
		wantURLs[fp.URL] = true
	}
	for u, seen := range wantURLs {
		if !seen {
			t.Fatalf("missing expanded URL %q", u)
		}
	}

	if len(cat.Subdomains) != 2 {
		t.Fatalf("expected 2 subdomain candidates, got %d", len(cat.Subdomains))
	}
	if len(cat.Vulnerabilities) != 1 {
		t.Fatalf("expected 1 vulnerability fingerprint, got %d", len(cat.Vulnerabilities))
	}

	if cat.Count() != 1+1+1+2+2+1 {
		t.Fatalf("Count() = %d, want %d", cat.Count(), 1+1+1+2+2+1)
	}
}

func TestLoadMissingDictionaryEntryFails(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, "dictionary.json"), `{}`)
	writeJSON(t, filepath.Join(root, "cms", "regex", "ghost.json"), `[{"type":"regex","url":"/x","match":"y"}]`)

	if _, err := Load(root); err == nil {
		t.Fatal("expected error for fingerprint file with no dictionary entry")
	}
}

func TestLoadSkipsMalformedFileWithWarning(t *testing.T) {
	root := t.TempDir()
	writeJSON(t, filepath.Join(root, "dictionary.json"), `{"bad": {"name": "Bad"}}`)
	writeJSON(t, filepath.Join(root, "cms", "regex", "bad.json"), `{not valid json`)

	cat, err := Load(root)
	if err != nil {
		t.Fatalf("Load should tolerate a malformed fingerprint file, got error: %v", err)
	}
	if len(cat.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", cat.Warnings)
	}
	if len(cat.CMS[KindRegex]) != 0 {
		t.Fatalf("expected malformed file's fingerprints skipped, got %d", len(cat.CMS[KindRegex]))
	}
}

func TestCodeUnmarshalAny(t *testing.T) {
	fp := &Fingerprint{}
	if err := fp.UnmarshalJSON([]byte(`{"type":"string","url":"/x","match":"y","code":"any"}`)); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !fp.Code.Any {
		t.Fatalf("expected Code.Any, got %+v", fp.Code)
	}
	if fp.Code.Matches(200) != true || fp.Code.Matches(404) != true {
		t.Fatalf("Code{Any:true} should match every status")
	}
}

func TestGroupByURL(t *testing.T) {
	fps := []*Fingerprint{
		{URL: "/a", Name: "one"},
		{URL: "/b", Name: "two"},
		{URL: "/a", Name: "three"},
	}
	groups := GroupByURL(fps)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].URL != "/a" || len(groups[0].Fingerprints) != 2 {
		t.Fatalf("expected /a group with 2 fingerprints, got %+v", groups[0])
	}
}
