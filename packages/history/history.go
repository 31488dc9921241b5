// Package history keeps a SQLite record of past runs and their checks.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS checks (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	suite       TEXT NOT NULL,
	file        TEXT NOT NULL,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	attempts    INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS checks_run ON checks(run_id);
CREATE INDEX IF NOT EXISTS checks_name ON checks(suite, name);
`

// Run summarizes one invocation of playspec run.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Passed    int
	Failed    int
	Skipped   int
}

// Check is one stored check result.
type Check struct {
	RunID    string
	Suite    string
	File     string
	Name     string
	Kind     string
	Outcome  outcome.Outcome
	Duration time.Duration
	Attempts int
	Error    string
}

// Flaky is a check that both passed and failed within the inspected runs.
type Flaky struct {
	Suite  string
	Name   string
	Passed int
	Failed int
}

type Store struct {
	db           *sql.DB
	dataSource   string
	queryTimeout time.Duration
}

// Open opens, creating if needed, the history database at dsn. dsn is a file
// path, optionally prefixed with sqlite:// or sqlite:.
func Open(ctx context.Context, dsn string) (*Store, error) {
	path := dataSource(dsn)
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	return &Store{db: db, dataSource: path, queryTimeout: 30 * time.Second}, nil
}

func dataSource(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if s, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return s
	}
	if s, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return s
	}
	return dsn
}

func (s *Store) Path() string {
	return s.dataSource
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a run and all of its check results in one transaction and
// returns the stored Run.
func (s *Store) Record(ctx context.Context, startedAt time.Time, duration time.Duration, results []*runner.RunResult) (Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	run := Run{ID: uuid.NewString(), StartedAt: startedAt, Duration: duration}
	for _, r := range results {
		run.Passed += r.Passed
		run.Failed += r.Failed
		run.Skipped += r.Skipped
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, duration_ms, passed, failed, skipped) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, startedAt.UnixMilli(), duration.Milliseconds(), run.Passed, run.Failed, run.Skipped)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO checks (run_id, suite, file, name, kind, outcome, duration_ms, attempts, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return Run{}, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		for _, c := range r.Results {
			var msg string
			if c.Error != nil {
				msg = c.Error.Error()
			}
			if _, err := stmt.ExecContext(ctx, run.ID, r.Suite, r.File, c.Name, string(c.Kind),
				c.Outcome.String(), c.Duration.Milliseconds(), c.Attempts, msg); err != nil {
				return Run{}, fmt.Errorf("insert check %q: %w", c.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("commit: %w", err)
	}
	return run, nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, passed, failed, skipped FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			started    int64
			durationMs int64
		)
		if err := rows.Scan(&run.ID, &started, &durationMs, &run.Passed, &run.Failed, &run.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		run.StartedAt = time.UnixMilli(started)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Checks returns the checks of one run in the order they were recorded.
func (s *Store) Checks(ctx context.Context, runID string) ([]Check, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, suite, file, name, kind, outcome, duration_ms, attempts, error FROM checks WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var checks []Check
	for rows.Next() {
		var (
			c          Check
			name       string
			durationMs int64
		)
		if err := rows.Scan(&c.RunID, &c.Suite, &c.File, &c.Name, &c.Kind, &name, &durationMs, &c.Attempts, &c.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if c.Outcome, err = outcome.Parse(name); err != nil {
			return nil, err
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return checks, nil
}

// Flaky lists checks that both passed and failed across the last runs runs.
func (s *Store) Flaky(ctx context.Context, runs int) ([]Flaky, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT suite, name,
		       SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END) AS passed,
		       SUM(CASE WHEN outcome NOT IN (?, ?) THEN 1 ELSE 0 END) AS failed
		FROM checks
		WHERE run_id IN (SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?)
		GROUP BY suite, name
		HAVING passed > 0 AND failed > 0
		ORDER BY failed DESC, suite, name`,
		outcome.Success.String(), outcome.Success.String(), outcome.Skipped.String(), runs)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var flaky []Flaky
	for rows.Next() {
		var f Flaky
		if err := rows.Scan(&f.Suite, &f.Name, &f.Passed, &f.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		flaky = append(flaky, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return flaky, nil
}
