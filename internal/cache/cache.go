// Package cache implements the per-host response cache: a mutex-guarded
// map from requested URL to the response it produced, persisted to a
// single gob-encoded file per host with a 24h time-to-live.
package cache

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wiggo/wiggo/internal/fetcher"
)

// TTL is the cache entry lifetime, 24 hours, matching the source tool.
const TTL = 24 * time.Hour

// Cache is a single host's response cache.
type Cache struct {
	mu      sync.Mutex
	dir     string
	host    string
	created time.Time
	entries map[string]*fetcher.Response
}

// New creates an empty cache for the given base directory. SetHost must
// be called before Load/Save.
func New(dir string) *Cache {
	return &Cache{
		dir:     dir,
		entries: make(map[string]*fetcher.Response),
	}
}

// SetHost binds the cache to a host, resetting the creation time used to
// build new cache file names.
func (c *Cache) SetHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.host = host
	c.created = time.Now()
}

// Get returns the cached response for url, if present. The cache itself
// carries no per-entry TTL (only the on-disk file does, per
// §4.2): once loaded or set, an entry is valid for the process lifetime.
func (c *Cache) Get(url string) (*fetcher.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[url]
	return r, ok
}

// Contains reports whether url has a cached response.
func (c *Cache) Contains(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[url]
	return ok
}

// Put stores resp under url. Callers also index the transport-reported
// final URL, per the requester's redirect handling.
func (c *Cache) Put(url string, resp *fetcher.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = resp
}

// SizeDistinctIDs returns the number of distinct Response.ID values
// currently cached, used to report how many unique pages were fetched
// when several URLs alias the same response (e.g. after a redirect).
func (c *Cache) SizeDistinctIDs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]struct{}, len(c.entries))
	for _, r := range c.entries {
		seen[r.ID] = struct{}{}
	}
	return len(seen)
}

// Responses returns a snapshot slice of the distinct responses in the
// cache, deduplicated by ID, used by stages that scan every cached page.
func (c *Cache) Responses() []*fetcher.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]struct{}, len(c.entries))
	out := make([]*fetcher.Response, 0, len(c.entries))
	for _, r := range c.entries {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// sanitize turns a host into the filename-safe form the cache file
// naming scheme requires: "/" removed, ":" replaced by "..".
func sanitize(host string) string {
	host = strings.ReplaceAll(host, "/", "")
	host = strings.ReplaceAll(host, ":", "..")
	return host
}

func (c *Cache) fileName() string {
	return fmt.Sprintf("%s_-_%d.cache", sanitize(c.host), c.created.Unix())
}

// fileHostPrefix extracts the sanitized-host prefix from a cache
// filename, i.e. everything before "_-_".
func fileHostPrefix(name string) (string, bool) {
	idx := strings.Index(name, "_-_")
	if idx < 0 {
		return "", false
	}
	return name[:idx], true
}

func fileAge(name string) (time.Duration, bool) {
	idx := strings.Index(name, "_-_")
	if idx < 0 {
		return 0, false
	}
	rest := strings.TrimSuffix(name[idx+3:], ".cache")
	epoch, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return time.Since(time.Unix(epoch, 0)), true
}

// Sweep deletes every *.cache file under dir whose age exceeds TTL,
// regardless of host. Run once at startup.
func Sweep(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: sweep: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cache") {
			continue
		}
		age, ok := fileAge(entry.Name())
		if !ok || age <= TTL {
			continue
		}
		_ = os.Remove(filepath.Join(dir, entry.Name()))
	}
	return nil
}

// Load finds the newest cache file whose host prefix matches c.host and
// whose age is under TTL, and decodes it into the cache. It is a no-op
// if no such file exists.
func (c *Cache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: load: %w", err)
	}

	prefix := sanitize(c.host)
	var best string
	var bestAge time.Duration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cache") {
			continue
		}
		hostPrefix, ok := fileHostPrefix(entry.Name())
		if !ok || hostPrefix != prefix {
			continue
		}
		age, ok := fileAge(entry.Name())
		if !ok || age >= TTL {
			continue
		}
		if best == "" || age < bestAge {
			best = entry.Name()
			bestAge = age
		}
	}
	if best == "" {
		return nil
	}

	f, err := os.Open(filepath.Join(c.dir, best))
	if err != nil {
		return fmt.Errorf("cache: load: %w", err)
	}
	defer f.Close()

	var entries2 map[string]*fetcher.Response
	if err := gob.NewDecoder(f).Decode(&entries2); err != nil {
		return fmt.Errorf("cache: load: decode: %w", err)
	}
	c.entries = entries2
	return nil
}

// Save persists the current map under the host's cache file name,
// overwriting any prior file for the same host (matched by prefix).
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("cache: save: %w", err)
	}

	entries, err := os.ReadDir(c.dir)
	if err == nil {
		prefix := sanitize(c.host)
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cache") {
				continue
			}
			hostPrefix, ok := fileHostPrefix(entry.Name())
			if ok && hostPrefix == prefix {
				_ = os.Remove(filepath.Join(c.dir, entry.Name()))
			}
		}
	}

	f, err := os.Create(filepath.Join(c.dir, c.fileName()))
	if err != nil {
		return fmt.Errorf("cache: save: %w", err)
	}
	defer f.Close()

	return gob.NewEncoder(f).Encode(c.entries)
}
