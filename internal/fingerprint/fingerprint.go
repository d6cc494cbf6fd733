// Package fingerprint loads and normalizes the on-disk fingerprint catalog.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Kind enumerates the four match kinds a fingerprint can carry.
type Kind string

const (
	KindMD5    Kind = "md5"
	KindString Kind = "string"
	KindRegex  Kind = "regex"
	KindHeader Kind = "header"
)

// Code represents the expected HTTP status gate of a fingerprint. It is
// either a concrete status code or the literal "any".
type Code struct {
	Any   bool
	Value int
}

// Matches reports whether status satisfies this code gate.
func (c Code) Matches(status int) bool {
	if c.Any {
		return true
	}
	return c.Value == status
}

// IsStatus200 reports whether this code requires exactly 200, which is
// the HEAD-optimization eligibility test used by the requester.
func (c Code) IsStatus200() bool {
	return !c.Any && c.Value == 200
}

// UnmarshalJSON accepts either a JSON number or the string "any"; an
// absent field defaults to 200 via defaultCode, applied by the loader.
func (c *Code) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		if strings.EqualFold(v, "any") {
			c.Any = true
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("fingerprint: invalid code %q: %w", v, err)
		}
		c.Value = n
	case float64:
		c.Value = int(v)
	default:
		return fmt.Errorf("fingerprint: unsupported code value %v", raw)
	}
	return nil
}

func defaultCode() Code { return Code{Value: 200} }

// Fingerprint is one test record as described by the catalog schema.
type Fingerprint struct {
	Type    Kind   `json:"type"`
	URL     string `json:"url"`
	Name    string `json:"name"`
	Output  string `json:"output"`
	Code    Code   `json:"code"`
	hasCode bool
	Match   string  `json:"match"`
	Header  string  `json:"header"`
	Weight  float64 `json:"weight"`
	Note    string  `json:"note,omitempty"`

	Ext []string `json:"ext,omitempty"`
	// ShowAllDetections is nil when absent from the JSON source, which
	// means "show" (see ShowAll). Only an explicit false suppresses
	// repeat urlless detections of the same (name, output) pair.
	ShowAllDetections *bool `json:"show_all_detections,omitempty"`

	// OS fingerprint fields (only populated for the os/ directory)
	PkgName    string `json:"pkg_name,omitempty"`
	PkgVersion string `json:"pkg_version,omitempty"`
	OSName     string `json:"os_name,omitempty"`
	OSVersion  string `json:"os_version,omitempty"`
}

// ShowAll reports whether a repeat urlless detection of this fingerprint
// should still be recorded. Absent from the catalog JSON, it defaults to
// true; only an explicit "show_all_detections": false suppresses repeats.
func (fp *Fingerprint) ShowAll() bool {
	return fp.ShowAllDetections == nil || *fp.ShowAllDetections
}

// UnmarshalJSON fills in default code/weight since the JSON source omits
// them for the overwhelming majority of records.
func (fp *Fingerprint) UnmarshalJSON(data []byte) error {
	type alias Fingerprint
	aux := alias{Code: defaultCode(), Weight: 1}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*fp = Fingerprint(aux)
	if fp.Weight == 0 {
		fp.Weight = 1
	}
	return nil
}

// Group is a set of fingerprints sharing one URL, scheduled together as
// a single probe by the requester.
type Group struct {
	URL          string
	Fingerprints []*Fingerprint
}

// CanUseHEAD reports whether every fingerprint in the group expects
// exactly status 200, making a HEAD pre-check safe.
func (g Group) CanUseHEAD() bool {
	for _, fp := range g.Fingerprints {
		if !fp.Code.IsStatus200() {
			return false
		}
	}
	return true
}

// GroupByURL partitions a flat fingerprint slice into groups keyed by URL,
// preserving first-seen order.
func GroupByURL(fps []*Fingerprint) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, fp := range fps {
		if i, ok := index[fp.URL]; ok {
			groups[i].Fingerprints = append(groups[i].Fingerprints, fp)
			continue
		}
		index[fp.URL] = len(groups)
		groups = append(groups, Group{URL: fp.URL, Fingerprints: []*Fingerprint{fp}})
	}
	return groups
}

// ToolEntry is one tool registered for a CMS in the translator dictionary.
type ToolEntry struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// DictEntry is one translator dictionary entry, keyed by fingerprint file
// basename (without extension).
type DictEntry struct {
	Name  string      `json:"name"`
	Tools []ToolEntry `json:"tool,omitempty"`
}

// Catalog is the fully loaded, decorated fingerprint set.
type Catalog struct {
	CMS             map[Kind][]*Fingerprint
	JS              map[Kind][]*Fingerprint
	Platform        map[Kind][]*Fingerprint
	Vulnerabilities []*Fingerprint
	OS              []*Fingerprint
	ErrorPages      []*Fingerprint
	Interesting     []*Fingerprint
	Subdomains      []*Fingerprint
	Dictionary      map[string]DictEntry

	// Warnings collects skip-file diagnostics (§7 Parse errors).
	Warnings []string
}

// Count returns the total number of fingerprint records loaded across
// every category, used for the JSON output's statistics block.
func (c *Catalog) Count() int {
	n := len(c.Vulnerabilities) + len(c.OS) + len(c.ErrorPages) + len(c.Interesting) + len(c.Subdomains)
	for _, list := range c.CMS {
		n += len(list)
	}
	for _, list := range c.JS {
		n += len(list)
	}
	for _, list := range c.Platform {
		n += len(list)
	}
	return n
}

// Load walks the fixed directory tree under root and builds a Catalog.
// A malformed catalog file is skipped with a warning; a catalog record
// whose source file has no dictionary entry is a fatal configuration
// error per §4.1.
func Load(root string) (*Catalog, error) {
	cat := &Catalog{
		CMS:      map[Kind][]*Fingerprint{},
		JS:       map[Kind][]*Fingerprint{},
		Platform: map[Kind][]*Fingerprint{},
	}

	dict, err := loadDictionary(filepath.Join(root, "dictionary.json"))
	if err != nil {
		return nil, fmt.Errorf("fingerprint: loading dictionary.json: %w", err)
	}
	cat.Dictionary = dict

	if err := cat.loadCategory(root, "cms", cat.CMS, []Kind{KindMD5, KindRegex, KindString, KindHeader}); err != nil {
		return nil, err
	}
	if err := cat.loadCategory(root, "js", cat.JS, []Kind{KindMD5, KindRegex}); err != nil {
		return nil, err
	}
	if err := cat.loadCategory(root, "platform", cat.Platform, []Kind{KindMD5, KindRegex, KindString, KindHeader}); err != nil {
		return nil, err
	}

	vulnDir := filepath.Join(root, "vulnerabilities", "cvedetails")
	vulns, warnings, err := cat.loadDir(vulnDir)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: loading %s: %w", vulnDir, err)
	}
	cat.Vulnerabilities = vulns
	cat.Warnings = append(cat.Warnings, warnings...)

	osDir := filepath.Join(root, "os")
	osFps, warnings, err := cat.loadDirUndecorated(osDir)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: loading %s: %w", osDir, err)
	}
	cat.OS = osFps
	cat.Warnings = append(cat.Warnings, warnings...)

	cat.ErrorPages, err = loadArray(filepath.Join(root, "error_pages.json"))
	if err != nil {
		return nil, fmt.Errorf("fingerprint: loading error_pages.json: %w", err)
	}

	interesting, err := loadArray(filepath.Join(root, "interesting.json"))
	if err != nil {
		return nil, fmt.Errorf("fingerprint: loading interesting.json: %w", err)
	}
	cat.Interesting = expandExtensions(interesting)

	cat.Subdomains, err = loadArray(filepath.Join(root, "subdomains.json"))
	if err != nil {
		return nil, fmt.Errorf("fingerprint: loading subdomains.json: %w", err)
	}

	return cat, nil
}

// loadCategory loads one category (cms/js/platform), one subdirectory per
// kind, decorating each record with its dictionary-resolved name.
func (c *Catalog) loadCategory(root, category string, into map[Kind][]*Fingerprint, kinds []Kind) error {
	for _, kind := range kinds {
		dir := filepath.Join(root, category, string(kind))
		fps, warnings, err := c.loadDir(dir)
		if err != nil {
			return fmt.Errorf("fingerprint: loading %s: %w", dir, err)
		}
		into[kind] = fps
		c.Warnings = append(c.Warnings, warnings...)
	}
	return nil
}

// loadDir reads every *.json file in dir, decorating each record's Name
// from the dictionary keyed by the file's basename.
func (c *Catalog) loadDir(dir string) ([]*Fingerprint, []string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var out []*Fingerprint
	var warnings []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".json")
		dictEntry, ok := c.Dictionary[base]
		if !ok {
			return nil, nil, fmt.Errorf("no dictionary entry for %s", entry.Name())
		}

		fps, err := loadArray(filepath.Join(dir, entry.Name()))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping malformed fingerprint file %s: %v", entry.Name(), err))
			continue
		}
		for _, fp := range fps {
			fp.Name = dictEntry.Name
		}
		out = append(out, fps...)
	}
	return out, warnings, nil
}

// loadDirUndecorated loads every *.json in dir without a name lookup,
// used for os/ records which already carry pkg/os fields.
func (c *Catalog) loadDirUndecorated(dir string) ([]*Fingerprint, []string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var out []*Fingerprint
	var warnings []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		fps, err := loadArray(filepath.Join(dir, entry.Name()))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping malformed fingerprint file %s: %v", entry.Name(), err))
			continue
		}
		out = append(out, fps...)
	}
	return out, warnings, nil
}

func loadArray(path string) ([]*Fingerprint, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var fps []*Fingerprint
	if err := json.Unmarshal(data, &fps); err != nil {
		return nil, err
	}
	return fps, nil
}

func loadDictionary(path string) (map[string]DictEntry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]DictEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var dict map[string]DictEntry
	if err := json.Unmarshal(data, &dict); err != nil {
		return nil, err
	}
	return dict, nil
}

// expandExtensions expands interesting-file records carrying an Ext list
// into one sibling fingerprint per extension, URL suffixed by "."+ext.
func expandExtensions(fps []*Fingerprint) []*Fingerprint {
	var out []*Fingerprint
	for _, fp := range fps {
		if len(fp.Ext) == 0 {
			out = append(out, fp)
			continue
		}
		for _, ext := range fp.Ext {
			clone := *fp
			clone.URL = fp.URL + "." + ext
			clone.Ext = nil
			out = append(out, &clone)
		}
	}
	return out
}
