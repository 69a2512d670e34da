// Package querylog persists the outcome of every answered query in a local
// SQLite database. The log is an operational record: it shows what people
// ask, how often the guard fires, and how close near-miss queries get to the
// relevance threshold, which is the main input for tuning the denylist and
// MIN_SCORE over time.
package querylog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one recorded query outcome.
type Entry struct {
	// Query is the raw query text as received.
	Query string
	// Outcome is the answer kind (blocked, unknown, insufficient-evidence,
	// no-concrete-content, grounded).
	Outcome string
	// MaxScore is the best candidate score seen for the query, 0 when no
	// candidate existed.
	MaxScore float32
	// Origin names where the query came from ("console" or "api").
	Origin string
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time
}

// Log persists and retrieves query outcomes. Implementations must be safe
// for concurrent use.
type Log interface {
	// Append persists a single outcome.
	Append(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the log.
	Close() error
}

// SQLiteLog is a Log backed by a local SQLite database.
type SQLiteLog struct {
	// db is the underlying connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default location of the query log database,
// ~/.sentinel/querylog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("querylog: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".sentinel")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("querylog: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "querylog.db"), nil
}

// Open opens (or creates) a SQLiteLog at the given path and runs the schema
// migration. Use ":memory:" in tests.
func Open(path string) (*SQLiteLog, error) {
	// WAL mode improves concurrent read performance on a single host.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("querylog: open %s: %w", path, err)
	}
	// A single writer connection avoids SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	l := &SQLiteLog{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// migrate creates the schema if it does not already exist.
func (l *SQLiteLog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS query_outcomes (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    query      TEXT    NOT NULL,
    outcome    TEXT    NOT NULL,
    max_score  REAL    NOT NULL DEFAULT 0,
    origin     TEXT    NOT NULL,
    created_at INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_query_outcomes_created
    ON query_outcomes (created_at);
`
	if _, err := l.db.Exec(ddl); err != nil {
		return fmt.Errorf("querylog: migrate: %w", err)
	}
	return nil
}

// Append persists a single outcome. A zero CreatedAt is filled in with the
// current time.
func (l *SQLiteLog) Append(ctx context.Context, e Entry) error {
	ts := e.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	const q = `INSERT INTO query_outcomes (query, outcome, max_score, origin, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := l.db.ExecContext(ctx, q, e.Query, e.Outcome, e.MaxScore, e.Origin, ts.Unix()); err != nil {
		return fmt.Errorf("querylog: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest first.
func (l *SQLiteLog) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `
SELECT query, outcome, max_score, origin, created_at
FROM   query_outcomes
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := l.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("querylog: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.Query, &e.Outcome, &e.MaxScore, &e.Origin, &ts); err != nil {
			return nil, fmt.Errorf("querylog: recent scan: %w", err)
		}
		e.CreatedAt = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querylog: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (l *SQLiteLog) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("querylog: close: %w", err)
	}
	return nil
}
