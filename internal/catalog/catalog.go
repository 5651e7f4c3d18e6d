// Package catalog keeps a SQLite index of CLI runs and the artifacts they
// produce (figures, attribute files, HTML pages).
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/muograph/muograph/internal/timeutil"
	"github.com/muograph/muograph/internal/version"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run ID is not in the catalog.
var ErrRunNotFound = errors.New("run not found")

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Run is one CLI invocation.
type Run struct {
	ID         string
	Command    string
	Version    string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Artifact is a file produced by a run.
type Artifact struct {
	ID        int64
	RunID     string
	Kind      string
	Path      string
	Detail    string
	CreatedAt time.Time
}

// Catalog wraps the SQLite database.
type Catalog struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Option configures Open.
type Option func(*Catalog)

// WithClock sets the clock used for timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(cat *Catalog) { cat.clock = c }
}

// Open opens (creating if needed) the catalog at path and migrates it to
// the latest schema. ":memory:" gives a private in-memory catalog.
func Open(path string, opts ...Option) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	c := &Catalog{db: db, clock: timeutil.RealClock{}}
	for _, o := range opts {
		o(c)
	}
	if err := c.MigrateUp(Migrations()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the database.
func (c *Catalog) Close() error { return c.db.Close() }

// BeginRun records a new run of command and returns its ID.
func (c *Catalog) BeginRun(command string) (string, error) {
	id := uuid.NewString()
	_, err := c.db.Exec(
		`INSERT INTO runs (run_id, command, version, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		id, command, version.Version, c.clock.Now().UnixNano(), StatusRunning,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun marks a run as finished, failed when runErr is non-nil.
func (c *Catalog) FinishRun(runID string, runErr error) error {
	status := StatusOK
	if runErr != nil {
		status = StatusFailed
	}
	res, err := c.db.Exec(
		`UPDATE runs SET finished_at = ?, status = ? WHERE run_id = ?`,
		c.clock.Now().UnixNano(), status, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecordArtifact stores a file produced by runID.
func (c *Catalog) RecordArtifact(runID, kind, path, detail string) (int64, error) {
	var exists int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&exists); err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	res, err := c.db.Exec(
		`INSERT INTO artifacts (run_id, kind, path, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, kind, path, detail, c.clock.Now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert artifact: %w", err)
	}
	return res.LastInsertId()
}

// Runs returns the most recent runs first. A limit <= 0 returns all runs.
func (c *Catalog) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := c.db.Query(
		`SELECT run_id, command, version, status, started_at, finished_at
		   FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Command, &r.Version, &r.Status, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			t := time.Unix(0, finished.Int64).UTC()
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Artifacts returns the artifacts of runID in the order they were recorded.
func (c *Catalog) Artifacts(runID string) ([]Artifact, error) {
	rows, err := c.db.Query(
		`SELECT artifact_id, run_id, kind, path, detail, created_at
		   FROM artifacts WHERE run_id = ? ORDER BY artifact_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		var created int64
		if err := rows.Scan(&a.ID, &a.RunID, &a.Kind, &a.Path, &a.Detail, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
