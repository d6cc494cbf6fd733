package results

import (
	"reflect"
	"sort"
	"testing"

	"github.com/wiggo/wiggo/internal/fingerprint"
)

func md5Fingerprint(url, name, match, output string) *fingerprint.Fingerprint {
	return &fingerprint.Fingerprint{
		Type: fingerprint.KindMD5, URL: url, Name: name, Match: match, Output: output, Weight: 1,
	}
}

// S5 — digest inverse weighting: three digests on one URL for the same
// (category, name) each land as 1/3, and all three tie for the top spot.
func TestDigestInverseWeighting(t *testing.T) {
	r := New()

	r.AddVersion("cms", "CMSX", "v1", md5Fingerprint("/x.js", "CMSX", "DIGEST_A", "v1"), 1)
	r.AddVersion("cms", "CMSX", "v2", md5Fingerprint("/x.js", "CMSX", "DIGEST_B", "v2"), 1)
	r.AddVersion("cms", "CMSX", "v3", md5Fingerprint("/x.js", "CMSX", "DIGEST_C", "v3"), 1)

	r.Update()

	versions := r.Results["cms"]["CMSX"]
	sort.Strings(versions)
	want := []string{"v1", "v2", "v3"}
	if !reflect.DeepEqual(versions, want) {
		t.Fatalf("got %v, want %v", versions, want)
	}
}

func TestVersionsForExcludesEmptyVersion(t *testing.T) {
	r := New()
	r.AddVersion("cms", "Acme", "", nil, 1)
	r.AddVersion("cms", "Acme", "2.0", nil, 5)

	got := r.VersionsFor("cms")
	if _, ok := got["Acme"][""]; ok {
		t.Fatalf("expected empty version filtered out, got %v", got["Acme"])
	}
	if got["Acme"]["2.0"] != 5 {
		t.Fatalf("expected version 2.0 score 5, got %v", got["Acme"])
	}
}

func TestUpdateRotatesBlankVersionBehindConcreteOnes(t *testing.T) {
	r := New()
	// Simulate a raw accumulated state where the blank "presence only"
	// entry happens to out-score every concrete version — Update must
	// still rotate it to the tail rather than report "no version".
	r.bump("platform", "PHP", "", 10)
	r.bump("platform", "PHP", "5.6", 1)

	r.Update()

	if got := r.Results["platform"]["PHP"]; !reflect.DeepEqual(got, []string{"5.6"}) {
		t.Fatalf("got %v, want [5.6]", got)
	}
}

func TestAddNoteAccumulatesInterestingWeight(t *testing.T) {
	r := New()
	fp := &fingerprint.Fingerprint{URL: "/admin.php", Note: "admin panel", Weight: 3}
	r.AddNote(fp, fp.Weight)
	r.Update()

	if got := r.Results["interesting"]["/admin.php"]; !reflect.DeepEqual(got, []string{"admin panel"}) {
		t.Fatalf("got %v, want [admin panel]", got)
	}
}
