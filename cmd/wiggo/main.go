// Command wiggo scans one or more web applications and reports the
// content-management systems, JavaScript libraries, platform
// components, operating-system packages, and known vulnerabilities it
// fingerprints.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/wiggo/wiggo/internal/config"
	"github.com/wiggo/wiggo/internal/diag"
	"github.com/wiggo/wiggo/internal/fingerprint"
	"github.com/wiggo/wiggo/internal/history"
	"github.com/wiggo/wiggo/internal/orchestrator"
	"github.com/wiggo/wiggo/internal/report"
)

// verbosity is a repeatable boolean flag (-v -v -v) that counts its
// own occurrences.
type verbosity int

func (v *verbosity) String() string { return fmt.Sprintf("%d", int(*v)) }
func (v *verbosity) Set(string) error {
	*v++
	return nil
}
func (v *verbosity) IsBoolFlag() bool { return true }

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("wiggo", flag.ContinueOnError)

	var (
		listFile       = fs.String("l", "", "file of target URLs, one per line")
		quiet          = fs.Bool("q", false, "quiet: suppress prompts and progress output")
		stopAfter      = fs.Int("n", 1, "stop the CMS stage after this many distinct CMSes are found")
		runAll         = fs.Bool("a", false, "run all fingerprints, ignoring -n")
		matchAll       = fs.Bool("m", false, "enable the AllCMS match-everything pass")
		userAgent      = fs.String("u", config.DefaultConfig().UserAgent, "User-Agent header")
		noSubdomains   = fs.Bool("d", false, "disable subdomain search")
		threads        = fs.Int("t", 10, "number of concurrent worker threads")
		noCacheLoad    = fs.Bool("no_cache_load", false, "do not load an existing response cache")
		noCacheSave    = fs.Bool("no_cache_save", false, "do not persist the response cache")
		noCacheBoth    = fs.Bool("N", false, "shorthand for --no_cache_load --no_cache_save")
		proxy          = fs.String("proxy", "", "HTTP(S) proxy, host:port")
		writeFile      = fs.String("w", "", "write JSON results to this path")
		xlsxFile       = fs.String("x", "", "additionally write an XLSX report to this path")
		historyDB      = fs.String("history", "", "append each scan's findings to this SQLite file")
		fingerprintDir = fs.String("fingerprints", config.DefaultConfig().FingerprintDir, "root of the fingerprint catalog")
		cacheDir       = fs.String("cache-dir", config.DefaultConfig().CacheDir, "response cache directory")
	)
	var v verbosity
	fs.Var(&v, "v", "increase verbosity (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	urls, err := collectURLs(fs.Args(), *listFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "wiggo: no target URLs given (positional url or -l file required)")
		return 2
	}

	cfg := config.DefaultConfig()
	cfg.URLs = urls
	cfg.Quiet = *quiet
	cfg.StopAfter = *stopAfter
	cfg.RunAll = *runAll
	cfg.MatchAll = *matchAll
	cfg.UserAgent = *userAgent
	cfg.Subdomains = !*noSubdomains
	cfg.Threads = *threads
	cfg.NoCacheLoad = *noCacheLoad || *noCacheBoth
	cfg.NoCacheSave = *noCacheSave || *noCacheBoth
	cfg.Proxy = *proxy
	cfg.WriteFile = *writeFile
	cfg.XLSXFile = *xlsxFile
	cfg.HistoryDB = *historyDB
	cfg.FingerprintDir = *fingerprintDir
	cfg.CacheDir = *cacheDir
	cfg.Verbosity = int(v)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger := diag.New(cfg.Verbosity, cfg.Quiet)

	catalog, err := fingerprint.Load(cfg.FingerprintDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wiggo: loading fingerprint catalog: %v\n", err)
		return 2
	}
	for _, w := range catalog.Warnings {
		logger.Debugf(1, "%s", w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var hist *history.Store
	if cfg.HistoryDB != "" {
		hist, err = history.Open(cfg.HistoryDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wiggo: opening history db: %v\n", err)
			return 2
		}
		defer hist.Close()
	}

	orch := orchestrator.New(cfg, catalog, logger)
	writer := report.NewWriter()

	for _, target := range cfg.URLs {
		select {
		case <-ctx.Done():
			logger.Errorf("wiggo: interrupted")
			return 0
		default:
		}

		logger.Printf("scanning %s", target)
		start := time.Now()
		siteReport, err := orch.ScanTarget(ctx, target)
		if err != nil {
			logger.Errorf("wiggo: %s: %v", target, err)
			writer.AddError(target, err)
			continue
		}
		logger.Printf("%s finished in %s", target, time.Since(start).Round(time.Millisecond))
		writer.Add(siteReport)

		if hist != nil {
			if err := hist.Append(history.Record{
				URL:       target,
				Host:      siteReport.SiteInfo.URL,
				StartedAt: start,
				RunTime:   time.Since(start),
				Findings:  findingsOf(siteReport),
			}); err != nil {
				logger.Debugf(1, "history append: %v", err)
			}
		}
	}

	if cfg.WriteFile != "" {
		if err := writer.WriteJSON(cfg.WriteFile); err != nil {
			logger.Errorf("wiggo: %v", err)
		}
	}
	if cfg.XLSXFile != "" {
		if err := writer.WriteXLSX(cfg.XLSXFile); err != nil {
			logger.Errorf("wiggo: %v", err)
		}
	}

	return 0
}

// findingsOf reshapes a finished site report's data rows back into the
// category->name->versions shape history.Record stores, restricted to
// the version-bearing categories (cms, platform, javascript, os).
func findingsOf(r report.SiteReport) map[string]map[string][]string {
	out := make(map[string]map[string][]string)
	for _, row := range r.Data {
		switch row.Category {
		case "cms", "platform", "javascript", "os":
		default:
			continue
		}
		byName, ok := out[row.Category]
		if !ok {
			byName = make(map[string][]string)
			out[row.Category] = byName
		}
		byName[row.Name] = append(byName[row.Name], row.Version)
	}
	return out
}

// collectURLs merges positional URL arguments with the contents of a
// -l list file, one URL per line, blank lines and # comments ignored.
func collectURLs(positional []string, listFile string) ([]string, error) {
	urls := append([]string{}, positional...)

	if listFile == "" {
		return urls, nil
	}

	f, err := os.Open(listFile)
	if err != nil {
		return nil, fmt.Errorf("wiggo: opening -l file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("wiggo: reading -l file: %w", err)
	}
	return urls, nil
}
