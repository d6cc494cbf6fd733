package stage

import "context"

// VulnerabilitiesStage looks up known CVE counts for every detected
// (cms, version) pair, skipping CMSes with six or more candidate
// versions still in play — at that point the version itself is too
// unreliable to attach vulnerability data to.
type VulnerabilitiesStage struct{}

func (VulnerabilitiesStage) Name() string { return "vulnerabilities" }

func (VulnerabilitiesStage) Run(ctx context.Context, sc *ScanContext) error {
	if len(sc.Catalog.Vulnerabilities) == 0 {
		return nil
	}

	for name, versions := range sc.Results.VersionsFor("cms") {
		if len(versions) >= 6 {
			continue
		}
		for version := range versions {
			var count int
			var link string
			for _, fp := range sc.Catalog.Vulnerabilities {
				if fp.Name != name || fp.Match != version {
					continue
				}
				count++
				if link == "" {
					link = fp.URL
				}
			}
			if count > 0 {
				sc.Results.AddVulnerability(name, version, count, link)
			}
		}
	}
	return nil
}
