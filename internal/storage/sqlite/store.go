// Package sqlite persists propositions, the review queue, violations and
// quotes in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultPath = "data/surveillance.db"
)

// Store wraps a SQLite DB connection.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var tables = []string{"propositions", "review_queue", "violations", "quotes"}

// CreateTables ensures every table exists.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropTables removes every table.
func (s *Store) DropTables(ctx context.Context) error {
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t+";"); err != nil {
			return err
		}
	}
	return nil
}

// ClearTables empties every table.
func (s *Store) ClearTables(ctx context.Context) error {
	for _, t := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+t+";"); err != nil {
			return err
		}
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS propositions (
	market_id TEXT PRIMARY KEY,
	venue TEXT,
	title TEXT,
	proposition_kind TEXT NOT NULL,
	underlier TEXT,
	strike REAL,
	comparator TEXT,
	window_start TEXT,
	window_end TEXT,
	symbolic_form TEXT,
	confidence REAL NOT NULL,
	reasoning TEXT,
	rules_hash TEXT,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS propositions_underlier_idx ON propositions(underlier);

CREATE TABLE IF NOT EXISTS review_queue (
	id TEXT PRIMARY KEY,
	market_id TEXT NOT NULL,
	venue TEXT,
	title TEXT,
	proposition_kind TEXT,
	confidence REAL NOT NULL,
	confidence_level TEXT,
	reason TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS review_queue_market_idx ON review_queue(market_id);
CREATE INDEX IF NOT EXISTS review_queue_status_idx ON review_queue(status);

CREATE TABLE IF NOT EXISTS violations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	venue TEXT,
	pass_date TEXT,
	detected_at TEXT NOT NULL,
	constraint_id TEXT NOT NULL,
	constraint_type TEXT NOT NULL,
	group_key TEXT,
	relation TEXT,
	market_ids_json TEXT NOT NULL,
	expected REAL,
	actual REAL,
	magnitude REAL NOT NULL,
	tolerance REAL,
	severity TEXT NOT NULL,
	arbitrage_direction TEXT,
	confidence REAL
);
CREATE INDEX IF NOT EXISTS violations_constraint_idx ON violations(constraint_id);

CREATE TABLE IF NOT EXISTS quotes (
	venue TEXT NOT NULL,
	quote_date TEXT NOT NULL,
	market_id TEXT NOT NULL,
	outcome_id TEXT NOT NULL DEFAULT '',
	ts_recv INTEGER NOT NULL,
	mid REAL,
	best_bid_px REAL,
	best_ask_px REAL,
	PRIMARY KEY (venue, quote_date, market_id, outcome_id, ts_recv)
);
`

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
