package stage

import (
	"context"
	"regexp"
	"strings"
)

var (
	serverTokenPattern = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_.\-]*)/([A-Za-z0-9_.\-]+)`)
	serverParenPattern = regexp.MustCompile(`\(([^)]*)\)`)
)

// HeadersStage scans every cached response's headers; Server header
// Package/Version tokens become platform score contributions, and any
// OS family name found in the header's parenthetical is remembered for
// the OS stage's family-prioritization boost.
type HeadersStage struct{}

func (HeadersStage) Name() string { return "headers" }

func (HeadersStage) Run(ctx context.Context, sc *ScanContext) error {
	for _, resp := range sc.Cache.Responses() {
		server := resp.Headers.Get("Server")
		if server == "" {
			continue
		}

		for _, m := range serverTokenPattern.FindAllStringSubmatch(server, -1) {
			sc.Results.AddVersion("platform", m[1], m[2], nil, 1)
		}

		for _, paren := range serverParenPattern.FindAllStringSubmatch(server, -1) {
			for _, word := range strings.FieldsFunc(paren[1], func(r rune) bool {
				return r == ' ' || r == ';' || r == ','
			}) {
				sc.noteServerFamily(strings.ToLower(word))
			}
		}
	}
	return nil
}
