// Package orchestrator wires the cache, requester, matcher, and results
// aggregator together and drives one target's discovery stages in the
// fixed order the scan engine requires.
package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wiggo/wiggo/internal/cache"
	"github.com/wiggo/wiggo/internal/config"
	"github.com/wiggo/wiggo/internal/diag"
	"github.com/wiggo/wiggo/internal/fetcher"
	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/matcher"
	"github.com/wiggo/wiggo/internal/ratelimit"
	"github.com/wiggo/wiggo/internal/report"
	"github.com/wiggo/wiggo/internal/results"
	"github.com/wiggo/wiggo/internal/stage"
)

// Prompter asks a yes/no question and returns the raw answer; swapped
// out in tests so the redirect confirmation never blocks on stdin.
type Prompter func(question string) string

// Orchestrator runs a full scan against one or more target URLs,
// sharing a fingerprint catalog and rate limiter across all of them.
type Orchestrator struct {
	Config  *config.ScanConfig
	Catalog *fingerprint.Catalog
	Logger  *diag.Logger
	Limiter *ratelimit.HostLimiter
	Prompt  Prompter
}

// New creates an Orchestrator. If cfg.RequestsPerSecond is 0 the limiter
// is unlimited.
func New(cfg *config.ScanConfig, cat *fingerprint.Catalog, logger *diag.Logger) *Orchestrator {
	return &Orchestrator{
		Config:  cfg,
		Catalog: cat,
		Logger:  logger,
		Limiter: ratelimit.NewHostLimiter(cfg.RequestsPerSecond),
		Prompt:  promptStdin,
	}
}

func promptStdin(question string) string {
	fmt.Print(question)
	var answer string
	fmt.Scanln(&answer)
	return answer
}

// ErrAborted is returned when the user declines to continue after a
// cross-host redirect and the scan is not running quietly.
var ErrAborted = fmt.Errorf("orchestrator: scan aborted by user after redirect")

// ScanTarget runs every discovery stage against one target URL in the
// §2 fixed order and returns its finished report.
func (o *Orchestrator) ScanTarget(ctx context.Context, rawURL string) (report.SiteReport, error) {
	start := time.Now()

	target, err := url.Parse(rawURL)
	if err != nil {
		return report.SiteReport{}, fmt.Errorf("orchestrator: invalid target %q: %w", rawURL, err)
	}
	if target.Scheme == "" {
		target.Scheme = "https"
	}

	c := cache.New(o.Config.CacheDir)
	c.SetHost(target.Host)
	if !o.Config.NoCacheLoad {
		if err := c.Load(); err != nil {
			o.Logger.Debugf(1, "cache load for %s: %v", target.Host, err)
		}
	}

	req := fetcher.New(o.Config.Threads, o.Config.UserAgent, o.Config.Prefix, o.Config.Timeout, c, o.Limiter)
	defer req.Close()
	if o.Config.Proxy != "" {
		if err := req.SetProxy(o.Config.Proxy); err != nil {
			return report.SiteReport{}, err
		}
	}
	req.SetScope(target.Host)

	redirected, newBase, err := req.DetectRedirect(ctx, target.String())
	if err != nil {
		return report.SiteReport{SiteInfo: report.SiteInfo{URL: rawURL, Error: err.Error()}}, err
	}

	if redirected {
		// Redirect-confirmation: the original driver's prompt was
		// unreachable behind an early return in the unknown-host path;
		// here it always runs when a redirect crosses origin.
		if !o.Config.Quiet {
			answer := o.Prompt(fmt.Sprintf("Site redirects to %s. Continue? [Y|n]: ", newBase))
			if strings.EqualFold(strings.TrimSpace(answer), "n") {
				return report.SiteReport{}, ErrAborted
			}
		}
		if nb, err := url.Parse(newBase); err == nil {
			target = nb
			req.SetScope(target.Host)
			c.SetHost(target.Host)
		}
	}

	m := matcher.New()
	res := results.New()
	sc := stage.NewScanContext(o.Config, o.Catalog, c, req, m, res, o.Logger, target.Host)

	for _, st := range stage.Ordered(o.Config) {
		if err := st.Run(ctx, sc); err != nil {
			o.Logger.Errorf("stage %s: %v", st.Name(), err)
		}
	}

	res.Update()

	if !o.Config.NoCacheSave {
		if err := c.Save(); err != nil {
			o.Logger.Debugf(1, "cache save for %s: %v", target.Host, err)
		}
	}

	return buildReport(target.String(), start, c.SizeDistinctIDs(), o.Catalog.Count(), res), nil
}

func buildReport(siteURL string, start time.Time, urlCount, fpCount int, res *results.Results) report.SiteReport {
	var rows []report.DataRow
	for category, byName := range res.Results {
		for name, versions := range byName {
			if len(versions) == 0 {
				rows = append(rows, report.DataRow{Category: category, Name: name})
				continue
			}
			for _, v := range versions {
				rows = append(rows, report.DataRow{Category: category, Name: name, Version: v})
			}
		}
	}
	for key, vuln := range res.Vulnerability {
		rows = append(rows, report.DataRow{Category: "vulnerability", Name: key.Category, Version: key.Name, Link: vuln.Link, Count: vuln.Count})
	}
	for toolName, t := range res.Tool {
		rows = append(rows, report.DataRow{Category: "tool", Name: toolName, Version: t.CMS, Link: t.Link})
	}
	for subURL, sub := range res.Subdomains {
		rows = append(rows, report.DataRow{Category: "subdomains", Name: subURL, Version: sub.IP, Link: sub.Title})
	}

	return report.SiteReport{
		Statistics: report.Since(start, urlCount, fpCount),
		SiteInfo:   report.BuildSiteInfo(siteURL, res.SiteInfo.Cookies, res.SiteInfo.Title, res.SiteInfo.IP),
		Data:       rows,
	}
}
