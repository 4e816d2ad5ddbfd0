// Package ledger records every pipeline run in a local sqlite database so
// `pensieve status` can show what ran, when and how it ended.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    flow        TEXT NOT NULL,
    scope       TEXT NOT NULL DEFAULT '',
    started_at  TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    items       INTEGER NOT NULL DEFAULT 0,
    batches     INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL,
    error_kind  TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS runs_started ON runs(started_at);
`

// fixed width so started_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run statuses
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Run is one pipeline invocation for one scope
type Run struct {
	RunID      string
	Flow       string
	Scope      string
	StartedAt  time.Time
	FinishedAt time.Time
	Items      int
	Batches    int
	Status     string
	ErrorKind  string
	Message    string
}

// Duration returns how long the run took
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Ledger is the run history database
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at path
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Ledger{db: db, path: path}, nil
}

// Close closes the database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file
func (l *Ledger) Path() string {
	return l.path
}

// Record inserts or replaces a run
func (l *Ledger) Record(ctx context.Context, run Run) error {
	_, err := l.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs
    (run_id, flow, scope, started_at, finished_at, items, batches, status, error_kind, message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Flow, run.Scope,
		run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Items, run.Batches, run.Status, run.ErrorKind, run.Message,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. An empty flow matches all flows.
func (l *Ledger) Recent(ctx context.Context, flow string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
SELECT run_id, flow, scope, started_at, finished_at, items, batches, status, error_kind, message
FROM runs
WHERE (? = '' OR flow = ?)
ORDER BY started_at DESC
LIMIT ?`, flow, flow, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.Flow, &r.Scope, &started, &finished,
			&r.Items, &r.Batches, &r.Status, &r.ErrorKind, &r.Message); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastSuccess returns the newest successful run of flow for scope, or nil
func (l *Ledger) LastSuccess(ctx context.Context, flow, scope string) (*Run, error) {
	var r Run
	var started, finished string
	err := l.db.QueryRowContext(ctx, `
SELECT run_id, flow, scope, started_at, finished_at, items, batches, status, error_kind, message
FROM runs
WHERE flow = ? AND scope = ? AND status = ?
ORDER BY started_at DESC
LIMIT 1`, flow, scope, StatusOK).Scan(&r.RunID, &r.Flow, &r.Scope, &started, &finished,
		&r.Items, &r.Batches, &r.Status, &r.ErrorKind, &r.Message)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}
	r.StartedAt, _ = time.Parse(timeLayout, started)
	r.FinishedAt, _ = time.Parse(timeLayout, finished)
	return &r, nil
}
