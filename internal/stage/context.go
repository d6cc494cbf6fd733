// Package stage implements the discovery stages: the sixteen bounded
// probe-and-match passes a scan runs, in the fixed order the orchestrator
// drives, each depending only on artifacts earlier stages left behind
// (the error-page digest set, the cache, and whatever the results
// aggregator has accumulated so far).
package stage

import (
	"context"
	"sync"

	"github.com/wiggo/wiggo/internal/cache"
	"github.com/wiggo/wiggo/internal/config"
	"github.com/wiggo/wiggo/internal/diag"
	"github.com/wiggo/wiggo/internal/fetcher"
	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/matcher"
	"github.com/wiggo/wiggo/internal/results"
)

// ScanContext is the shared state every stage reads from and writes to,
// the explicit stand-in for the ad-hoc "data bag" a scripting-language
// port of this tool would thread through every method.
type ScanContext struct {
	Config    *config.ScanConfig
	Catalog   *fingerprint.Catalog
	Cache     *cache.Cache
	Requester *fetcher.Requester
	Matcher   *matcher.Matcher
	Results   *results.Results
	Logger    *diag.Logger

	Host string

	// RootMD5Text is the site root's canonicalized visible-text digest,
	// used by the Interesting stage's soft-404 heuristic. Set by Title.
	RootMD5Text string

	mu sync.Mutex
	// serverFamilies accumulates lower-cased OS family names seen inside
	// a Server header's parenthetical, read by the OS stage to decide
	// whether a candidate should receive the family-prioritization boost.
	serverFamilies map[string]struct{}
}

// NewScanContext wires the components a single target's scan needs.
func NewScanContext(cfg *config.ScanConfig, cat *fingerprint.Catalog, c *cache.Cache, req *fetcher.Requester, m *matcher.Matcher, r *results.Results, logger *diag.Logger, host string) *ScanContext {
	return &ScanContext{
		Config:         cfg,
		Catalog:        cat,
		Cache:          c,
		Requester:      req,
		Matcher:        m,
		Results:        r,
		Logger:         logger,
		Host:           host,
		serverFamilies: make(map[string]struct{}),
	}
}

func (sc *ScanContext) noteServerFamily(name string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.serverFamilies[name] = struct{}{}
}

func (sc *ScanContext) sawServerFamily(name string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, ok := sc.serverFamilies[name]
	return ok
}

// Stage is one discovery pass. Run is called by the orchestrator in the
// fixed order Ordered returns; every probe a stage schedules, and its
// effect on the cache, is visible to the stage that follows it.
type Stage interface {
	Name() string
	Run(ctx context.Context, sc *ScanContext) error
}

// Ordered returns every stage in the fixed dependency order described by
// the control-flow overview, including the optional AllCMS and
// Subdomains passes when the scan config enables them.
func Ordered(cfg *config.ScanConfig) []Stage {
	stages := []Stage{
		TitleStage{},
		IPStage{},
		ErrorPageStage{},
		CMSStage{},
		PlatformStage{},
		InterestingStage{},
		MoreStage{},
		JavaScriptStage{},
		UrlLessStage{},
		CookiesStage{},
		HeadersStage{},
		OSStage{},
	}
	if cfg.MatchAll {
		stages = append(stages, AllCMSStage{})
	}
	stages = append(stages, VulnerabilitiesStage{}, ToolsStage{})
	if cfg.Subdomains {
		stages = append(stages, SubdomainsStage{})
	}
	return stages
}
