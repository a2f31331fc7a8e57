// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telemetry tracks extraction runs: their configuration, progress
// metrics, and files saved alongside them.
package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const dbFile = "telemetry.db"

// ErrUnknownRun is returned by Resume for a run ID that was never started.
var ErrUnknownRun = errors.New("unknown run")

// Run is one tracked run.
type Run interface {
	// ID returns the run's unique identifier.
	ID() string

	// Log records a set of metrics at the current step.
	Log(ctx context.Context, metrics map[string]float64) error

	// Save attaches a copy of the file at path to the run.
	Save(path string) error
}

// Tracker creates runs and exposes the run currently open, if any.
type Tracker interface {
	// Active returns the open run, if one exists.
	Active() (Run, bool)

	// Start opens a new run, which becomes the active run.
	Start(ctx context.Context, project string, config map[string]any, name string) (Run, error)
}

// RunInfo describes a stored run.
type RunInfo struct {
	ID        string
	Project   string
	Name      string
	StartedAt time.Time
	Steps     int
}

// Metric is one logged value.
type Metric struct {
	Step  int
	Name  string
	Value float64
}

// LocalTracker keeps runs in a SQLite database under a directory. Saved
// files are copied to <dir>/<run-id>/files/.
type LocalTracker struct {
	db  *sql.DB
	dir string

	mu     sync.Mutex
	active *localRun
}

// OpenLocal opens or creates the tracker database in dir.
func OpenLocal(dir string) (*LocalTracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening telemetry database: %w", err)
	}

	t := &LocalTracker{db: db, dir: dir}
	if err := t.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return t, nil
}

func (t *LocalTracker) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			name TEXT,
			config TEXT,
			started_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metrics (
			run_id TEXT NOT NULL REFERENCES runs(id),
			step INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL,
			logged_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_run ON metrics(run_id, step)`,
		`CREATE TABLE IF NOT EXISTS files (
			run_id TEXT NOT NULL REFERENCES runs(id),
			name TEXT NOT NULL,
			source_path TEXT,
			saved_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := t.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (t *LocalTracker) Close() error {
	return t.db.Close()
}

// Active returns the run opened by Start or Resume.
func (t *LocalTracker) Active() (Run, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil, false
	}
	return t.active, true
}

// Start creates a run with a fresh ID and makes it active.
func (t *LocalTracker) Start(ctx context.Context, project string, config map[string]any, name string) (Run, error) {
	cfg, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("encoding run config: %w", err)
	}

	id := uuid.NewString()
	if name == "" {
		name = id[:8]
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO runs (id, project, name, config, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, project, name, string(cfg), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}

	r := &localRun{tracker: t, id: id}
	t.mu.Lock()
	t.active = r
	t.mu.Unlock()
	return r, nil
}

// Resume makes an existing run active. Steps continue after the last one
// logged.
func (t *LocalTracker) Resume(ctx context.Context, id string) (Run, error) {
	var step sql.NullInt64
	err := t.db.QueryRowContext(ctx,
		`SELECT (SELECT MAX(step) FROM metrics WHERE run_id = runs.id) FROM runs WHERE id = ?`, id,
	).Scan(&step)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up run %s: %w", id, err)
	}

	r := &localRun{tracker: t, id: id}
	if step.Valid {
		r.step = int(step.Int64) + 1
	}
	t.mu.Lock()
	t.active = r
	t.mu.Unlock()
	return r, nil
}

// Runs lists stored runs, most recent first.
func (t *LocalTracker) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT r.id, r.project, COALESCE(r.name, ''), r.started_at,
			(SELECT COUNT(DISTINCT step) FROM metrics m WHERE m.run_id = r.id)
		FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			info    RunInfo
			started string
		)
		if err := rows.Scan(&info.ID, &info.Project, &info.Name, &started, &info.Steps); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		info.StartedAt, _ = time.Parse(time.RFC3339, started)
		runs = append(runs, info)
	}
	return runs, rows.Err()
}

// Metrics returns every metric logged by a run, in step order.
func (t *LocalTracker) Metrics(ctx context.Context, runID string) ([]Metric, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT step, name, value FROM metrics WHERE run_id = ? ORDER BY step, name`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying metrics: %w", err)
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.Step, &m.Name, &m.Value); err != nil {
			return nil, fmt.Errorf("scanning metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// localRun is a run stored by a LocalTracker.
type localRun struct {
	tracker *LocalTracker
	id      string

	mu   sync.Mutex
	step int
}

func (r *localRun) ID() string { return r.id }

func (r *localRun) Log(ctx context.Context, metrics map[string]float64) error {
	r.mu.Lock()
	step := r.step
	r.step++
	r.mu.Unlock()

	tx, err := r.tracker.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for name, value := range metrics {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO metrics (run_id, step, name, value, logged_at) VALUES (?, ?, ?, ?, ?)`,
			r.id, step, name, value, now,
		); err != nil {
			return fmt.Errorf("inserting metric %s: %w", name, err)
		}
	}
	return tx.Commit()
}

func (r *localRun) Save(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	filesDir := filepath.Join(r.tracker.dir, r.id, "files")
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return fmt.Errorf("creating run files directory: %w", err)
	}

	name := filepath.Base(path)
	dst, err := os.Create(filepath.Join(filesDir, name))
	if err != nil {
		return fmt.Errorf("creating saved file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copying %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing saved file: %w", err)
	}

	_, err = r.tracker.db.Exec(
		`INSERT INTO files (run_id, name, source_path, saved_at) VALUES (?, ?, ?, ?)`,
		r.id, name, path, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording saved file: %w", err)
	}
	return nil
}
