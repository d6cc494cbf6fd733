// Package history persists a narrow append-only log of completed
// scans to SQLite, so repeated runs against the same host can be
// compared over time.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT NOT NULL,
	host TEXT NOT NULL,
	started_at TEXT NOT NULL,
	run_time_ms INTEGER NOT NULL,
	findings_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_history_host ON scan_history(host);
`

// Store is a single-writer SQLite-backed scan log.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open connects to (and creates, if necessary) the history database at
// path, applying the same WAL/synchronous pragmas the crawler's storage
// layer uses for a single-writer workload.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Record is one logged scan.
type Record struct {
	URL       string
	Host      string
	StartedAt time.Time
	RunTime   time.Duration
	Findings  map[string]map[string][]string
}

// Append inserts one completed scan's findings.
func (s *Store) Append(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(r.Findings)
	if err != nil {
		return fmt.Errorf("history: marshal findings: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO scan_history (url, host, started_at, run_time_ms, findings_json) VALUES (?, ?, ?, ?, ?)`,
		r.URL, r.Host, r.StartedAt.Format(time.RFC3339), r.RunTime.Milliseconds(), string(data),
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent returns the most recent n scans recorded for host, newest first.
func (s *Store) Recent(host string, n int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT url, host, started_at, run_time_ms, findings_json FROM scan_history WHERE host = ? ORDER BY id DESC LIMIT ?`,
		host, n,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var started string
		var runMS int64
		var findingsJSON string
		if err := rows.Scan(&rec.URL, &rec.Host, &started, &runMS, &findingsJSON); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.RunTime = time.Duration(runMS) * time.Millisecond
		if err := json.Unmarshal([]byte(findingsJSON), &rec.Findings); err != nil {
			return nil, fmt.Errorf("history: unmarshal findings: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
