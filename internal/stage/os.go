package stage

import (
	"context"
	"strings"
)

type pkgVersion struct {
	pkg     string
	version string
}

// OSStage combines Server-header Package/Version tokens with the
// platform scores already accumulated by earlier stages, matches each
// candidate (pkg, version) pair against the OS fingerprint catalog, and
// applies a ×100 boost when the candidate OS family name was seen in a
// Server header's parenthetical (e.g. "Apache (Ubuntu)").
type OSStage struct{}

func (OSStage) Name() string { return "os" }

func (OSStage) Run(ctx context.Context, sc *ScanContext) error {
	if len(sc.Catalog.OS) == 0 {
		return nil
	}

	var candidates []pkgVersion
	for _, resp := range sc.Cache.Responses() {
		server := resp.Headers.Get("Server")
		for _, m := range serverTokenPattern.FindAllStringSubmatch(server, -1) {
			candidates = append(candidates, pkgVersion{pkg: strings.ToLower(m[1]), version: m[2]})
		}
	}
	// Platform names keep whatever case HeadersStage recorded them in
	// (e.g. "PHP"); left un-lowered here to match the Server-header
	// source's case sensitivity below, so a fingerprint only matches
	// through one source and its boost is never applied twice.
	for name, versions := range sc.Results.VersionsFor("platform") {
		for version := range versions {
			candidates = append(candidates, pkgVersion{pkg: name, version: version})
		}
	}

	for _, fp := range sc.Catalog.OS {
		for _, cand := range candidates {
			if strings.ToLower(fp.PkgName) != cand.pkg || fp.PkgVersion != cand.version {
				continue
			}
			weight := fp.Weight
			if sc.sawServerFamily(strings.ToLower(fp.OSName)) {
				weight *= 100
			}
			sc.Results.AddVersion("os", fp.OSName, fp.OSVersion, nil, weight)
		}
	}
	return nil
}
