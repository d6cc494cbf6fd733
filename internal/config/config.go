// Package config defines scan configuration options.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ScanConfig holds all configuration for a scan run.
type ScanConfig struct {
	// Target URLs to scan (one full scan per URL)
	URLs []string `json:"urls"`

	// Quiet suppresses interactive prompts (e.g. redirect confirmation)
	Quiet bool `json:"quiet"`

	// StopAfter is the number of high-confidence CMS matches after which
	// version-queue draining stops early (0 = run_all, never stop)
	StopAfter int `json:"stop_after"`

	// RunAll disables StopAfter; the CMS stage still pins a detected
	// CMS's remaining fingerprints for version narrowing
	RunAll bool `json:"run_all"`

	// MatchAll enables the optional AllCMS pass that matches every cms and
	// platform fingerprint against every cached response
	MatchAll bool `json:"match_all"`

	// UserAgent sent on every request
	UserAgent string `json:"user_agent"`

	// Threads is the number of concurrent workers per probe batch
	Threads int `json:"threads"`

	// BatchSize is the number of URL groups drained from a stage's
	// queue per round
	BatchSize int `json:"batch_size"`

	// NoCacheLoad skips loading an existing on-disk cache for the host
	NoCacheLoad bool `json:"no_cache_load"`

	// NoCacheSave skips persisting the cache at the end of the run
	NoCacheSave bool `json:"no_cache_save"`

	// Prefix is prepended to relative fingerprint URLs (reserved for
	// scanning behind a path prefix, e.g. a reverse proxy mount point)
	Prefix string `json:"prefix"`

	// Verbosity is the debug verbosity level (0 = silent, higher = noisier)
	Verbosity int `json:"verbosity"`

	// Proxy is an optional HTTP(S) proxy URL
	Proxy string `json:"proxy,omitempty"`

	// WriteFile, if set, writes JSON results to this path
	WriteFile string `json:"write_file,omitempty"`

	// Subdomains enables the optional subdomain-brute-force stage
	Subdomains bool `json:"subdomains"`

	// RequestsPerSecond caps per-host request rate (0 = unlimited)
	RequestsPerSecond float64 `json:"requests_per_second"`

	// Timeout is the per-request timeout
	Timeout time.Duration `json:"timeout"`

	// MaxRedirects is clamped to >= 0 by Validate but is not read by the
	// requester, which follows at most 10 redirect hops
	MaxRedirects int `json:"max_redirects"`

	// CacheDir is the on-disk directory for response caches
	CacheDir string `json:"cache_dir"`

	// FingerprintDir is the root directory of the fingerprint catalog
	FingerprintDir string `json:"fingerprint_dir"`

	// XLSXFile, if set, additionally writes an XLSX report here
	XLSXFile string `json:"xlsx_file,omitempty"`

	// HistoryDB, if set, appends each completed scan to this SQLite file
	HistoryDB string `json:"history_db,omitempty"`
}

// DefaultConfig returns a ScanConfig with the defaults the CLI falls back
// to when a flag is not given.
func DefaultConfig() *ScanConfig {
	return &ScanConfig{
		StopAfter:         1,
		UserAgent:         "wig - WebApp Information Gatherer",
		Threads:           10,
		BatchSize:         20,
		Timeout:           10 * time.Second,
		MaxRedirects:      10,
		CacheDir:          "./cache",
		FingerprintDir:    "./data",
		RequestsPerSecond: 0,
	}
}

// Validate normalizes out-of-range fields in place.
func (c *ScanConfig) Validate() error {
	if c.Threads < 1 {
		c.Threads = 1
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.Timeout < time.Second {
		c.Timeout = time.Second
	}
	if c.MaxRedirects < 0 {
		c.MaxRedirects = 0
	}
	if c.StopAfter < 0 {
		c.StopAfter = 0
	}
	if len(c.URLs) == 0 {
		return fmt.Errorf("config: at least one target URL is required")
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *ScanConfig) Clone() *ScanConfig {
	clone := *c
	clone.URLs = make([]string, len(c.URLs))
	copy(clone.URLs, c.URLs)
	return &clone
}

// Save writes the configuration to a JSON file.
func (c *ScanConfig) Save(filePath string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads configuration from a JSON file, starting from defaults.
func Load(filePath string) (*ScanConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
