// Package results implements the weighted scoring model: per-category,
// per-name version scores, the digest inverse-weighting rule, and the
// tie-break/finalize pass that produces the scan's reported findings.
package results

import (
	"sort"
	"sync"

	"github.com/wiggo/wiggo/internal/fingerprint"
)

// catName is the (category, name) pair md5 hit counts are grouped under.
type catName struct {
	Category string
	Name     string
}

// SiteInfo holds the per-target metadata the JSON output's site_info
// block reports.
type SiteInfo struct {
	IP         string
	Title      string
	Error      string
	Cookies    map[string]struct{}
	Subdomains map[string]struct{}
}

// VulnerabilityEntry is one row of the vulnerability[] results bucket.
type VulnerabilityEntry struct {
	Count int
	Link  string
}

// ToolEntry is one row of the tool[] results bucket.
type ToolEntry struct {
	CMS  string
	Link string
}

// SubdomainEntry is one row of the subdomains[] results bucket.
type SubdomainEntry struct {
	Title string
	IP    string
}

// Results is the aggregator described in §4.5: two score stores plus the
// finalized snapshot produced by Update.
type Results struct {
	mu sync.Mutex

	// scores[category][name][version] -> accumulated weight
	scores map[string]map[string]map[string]float64

	// md5Matches[url][(category,name)][version] -> hit count
	md5Matches map[string]map[catName]map[string]int

	SiteInfo SiteInfo

	// Finalized after Update: results[category][name] -> tied-top versions.
	Results map[string]map[string][]string

	Vulnerability map[catName]VulnerabilityEntry
	Tool          map[string]ToolEntry
	Subdomains    map[string]SubdomainEntry
}

// New creates an empty Results aggregator.
func New() *Results {
	return &Results{
		scores:        map[string]map[string]map[string]float64{},
		md5Matches:    map[string]map[catName]map[string]int{},
		Vulnerability: map[catName]VulnerabilityEntry{},
		Tool:          map[string]ToolEntry{},
		Subdomains:    map[string]SubdomainEntry{},
		SiteInfo: SiteInfo{
			Cookies:    map[string]struct{}{},
			Subdomains: map[string]struct{}{},
		},
	}
}

func (r *Results) bump(category, name, version string, weight float64) {
	byName, ok := r.scores[category]
	if !ok {
		byName = map[string]map[string]float64{}
		r.scores[category] = byName
	}
	byVersion, ok := byName[name]
	if !ok {
		byVersion = map[string]float64{}
		byName[name] = byVersion
	}
	byVersion[version] += weight
}

// AddVersion records a version match for (category, name), applying the
// fingerprint's own weight override when fp is non-nil. This is the
// common path used by every discovery stage that found a concrete
// version string.
func (r *Results) AddVersion(category, name, version string, fp *fingerprint.Fingerprint, weight float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if fp != nil && fp.Weight != 0 {
		weight = fp.Weight
	}

	if fp != nil && fp.Note != "" {
		r.addInterestingNote(fp.URL, fp.Note, weight)
	}

	if fp != nil && fp.Type == fingerprint.KindMD5 {
		r.bumpMD5(fp.URL, category, name, version)
		return
	}

	if version == "" {
		// blank version: track presence, worst possible tie-break rank
		r.bump(category, name, "", 0)
		return
	}

	r.bump(category, name, version, weight)
}

// AddNote records an interesting-file detection, where there is no
// version to track — only the note/URL pair matters.
func (r *Results) AddNote(fp *fingerprint.Fingerprint, weight float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fp == nil || fp.Note == "" {
		return
	}
	r.addInterestingNote(fp.URL, fp.Note, weight)
}

func (r *Results) addInterestingNote(url, note string, weight float64) {
	r.bump("interesting", url, note, weight)
}

func (r *Results) bumpMD5(url, category, name, version string) {
	byKey, ok := r.md5Matches[url]
	if !ok {
		byKey = map[catName]map[string]int{}
		r.md5Matches[url] = byKey
	}
	key := catName{Category: category, Name: name}
	byVersion, ok := byKey[key]
	if !ok {
		byVersion = map[string]int{}
		byKey[key] = byVersion
	}
	byVersion[version]++
}

// calcMD5Score applies the digest inverse-weight rule: for each
// (url, category, name), H = sum of version hit counts; each version
// gains 1/H.
func (r *Results) calcMD5Score() {
	for _, byKey := range r.md5Matches {
		for key, byVersion := range byKey {
			h := 0
			for _, count := range byVersion {
				h += count
			}
			if h == 0 {
				continue
			}
			for version := range byVersion {
				r.bump(key.Category, key.Name, version, 1/float64(h))
			}
		}
	}
}

type versionScore struct {
	Version string
	Score   float64
}

// Update finalizes the aggregator: applies the digest inverse weight,
// then for each (category, name) sorts versions by score descending,
// rotates an empty-version top entry to the tail, and emits every
// version tied for the (possibly rotated) top score, lexicographically
// sorted.
func (r *Results) Update() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calcMD5Score()

	r.Results = map[string]map[string][]string{}
	for category, byName := range r.scores {
		out := map[string][]string{}
		for name, byVersion := range byName {
			versions := make([]versionScore, 0, len(byVersion))
			for v, s := range byVersion {
				versions = append(versions, versionScore{Version: v, Score: s})
			}
			sort.Slice(versions, func(i, j int) bool {
				return versions[i].Score > versions[j].Score
			})

			// If the top-scoring entry is the empty version, rotate it to
			// the tail before picking the tied-for-top set: an empty
			// version never represents the match on its own unless it is
			// the only entry at all.
			if versions[0].Version == "" {
				empty := versions[0]
				versions = append(versions[1:], empty)
			}

			top := versions[0].Score
			var relevant []string
			for _, v := range versions {
				if v.Score == top {
					relevant = append(relevant, v.Version)
				}
			}
			sort.Strings(relevant)
			out[name] = relevant
		}
		r.Results[category] = out
	}
}

// VersionsFor returns a snapshot of the raw, not-yet-finalized
// name->version->score map for category, used by stages (OS,
// Vulnerabilities, Tools) that run before Update and need to read
// whatever has accumulated so far.
func (r *Results) VersionsFor(category string) map[string]map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]map[string]float64)
	for name, byVersion := range r.scores[category] {
		versions := make(map[string]float64, len(byVersion))
		for v, s := range byVersion {
			if v == "" {
				continue
			}
			versions[v] = s
		}
		if len(versions) > 0 {
			out[name] = versions
		}
	}
	return out
}

// AddVulnerability records a CVE-count row for a detected (cms, version).
func (r *Results) AddVulnerability(cms, version string, count int, link string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Vulnerability[catName{Category: cms, Name: version}] = VulnerabilityEntry{Count: count, Link: link}
}

// AddTool records a registered tool for a detected CMS.
func (r *Results) AddTool(cms, toolName, link string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Tool[toolName] = ToolEntry{CMS: cms, Link: link}
}

// AddSubdomain records a discovered, non-wildcard subdomain.
func (r *Results) AddSubdomain(url, title, ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Subdomains[url] = SubdomainEntry{Title: title, IP: ip}
}

// GetVersions returns every (name, version) pair finalized under the
// cms/javascript/os/platform categories; Update must have run first.
func (r *Results) GetVersions() []struct{ Name, Version string } {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []struct{ Name, Version string }
	for _, category := range []string{"cms", "javascript", "os", "platform"} {
		byName, ok := r.Results[category]
		if !ok {
			continue
		}
		for name, versions := range byName {
			for _, v := range versions {
				out = append(out, struct{ Name, Version string }{name, v})
			}
		}
	}
	return out
}
