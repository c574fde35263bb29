// Package store persists scan history in PostgreSQL. Persistence is
// optional; every scan works without a database, and history commands
// require one.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/averlane/osprey/internal/config"
	"github.com/averlane/osprey/internal/errors"
	"github.com/averlane/osprey/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	target      TEXT NOT NULL,
	units       INTEGER NOT NULL DEFAULT 0,
	findings    INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS scan_findings (
	id     BIGSERIAL PRIMARY KEY,
	run_id UUID NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
	value  TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_scan_findings_run ON scan_findings(run_id);
`

// Run is one recorded scan invocation.
type Run struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Kind       string    `db:"kind" json:"kind"`
	Target     string    `db:"target" json:"target"`
	Units      int       `db:"units" json:"units"`
	Findings   int       `db:"findings" json:"findings"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}

// Finding is one positive result within a run: an open port, a resolved
// address, or a discovered subdomain.
type Finding struct {
	RunID  uuid.UUID `db:"run_id" json:"run_id"`
	Value  string    `db:"value" json:"value"`
	Detail string    `db:"detail" json:"detail"`
}

// Store wraps the database handle.
type Store struct {
	db  *sqlx.DB
	log *logging.Logger
}

// Connect opens a PostgreSQL connection from the given configuration and
// verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, errors.WrapStoreError(errors.CodeDatabaseConnection,
			"failed to connect to database", "connect", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return New(db), nil
}

// New wraps an existing handle. Tests pass a sqlmock-backed handle.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		log: logging.Default().WithComponent("store"),
	}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.WrapStoreError(errors.CodeDatabaseQuery,
			"failed to apply schema", "migrate", err)
	}
	return nil
}

// SaveRun records a run with its findings in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *Run, findings []Finding) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.Findings = len(findings)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.WrapStoreError(errors.CodeDatabaseQuery,
			"failed to begin transaction", "save_run", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO scan_runs (id, kind, target, units, findings, started_at, finished_at)
		VALUES (:id, :kind, :target, :units, :findings, :started_at, :finished_at)`, run)
	if err != nil {
		return errors.WrapStoreError(errors.CodeDatabaseQuery,
			"failed to insert run", "save_run", err)
	}

	for i := range findings {
		findings[i].RunID = run.ID
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO scan_findings (run_id, value, detail)
			VALUES (:run_id, :value, :detail)`, &findings[i])
		if err != nil {
			return errors.WrapStoreError(errors.CodeDatabaseQuery,
				"failed to insert finding", "save_run", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapStoreError(errors.CodeDatabaseQuery,
			"failed to commit run", "save_run", err)
	}

	s.log.Info("scan run saved",
		"run_id", run.ID.String(),
		"kind", run.Kind,
		"findings", run.Findings)
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := []Run{}
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, kind, target, units, findings, started_at, finished_at
		FROM scan_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.WrapStoreError(errors.CodeDatabaseQuery,
			"failed to list runs", "list_runs", err)
	}
	return runs, nil
}

// RunFindings returns the findings of one run.
func (s *Store) RunFindings(ctx context.Context, runID uuid.UUID) ([]Finding, error) {
	findings := []Finding{}
	err := s.db.SelectContext(ctx, &findings, `
		SELECT run_id, value, detail
		FROM scan_findings
		WHERE run_id = $1
		ORDER BY id`, runID)
	if err != nil {
		return nil, errors.WrapStoreError(errors.CodeDatabaseQuery,
			"failed to load findings", "run_findings", err)
	}
	return findings, nil
}
