// Package repository persists ScheduleRun records using sqlx over
// Postgres.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

// ScheduleRunStatus is the run's lifecycle phase.
type ScheduleRunStatus string

const (
	ScheduleRunPending   ScheduleRunStatus = "pending"
	ScheduleRunSucceeded ScheduleRunStatus = "succeeded"
	ScheduleRunPartial   ScheduleRunStatus = "partial"
	ScheduleRunFailed    ScheduleRunStatus = "failed"
)

// ScheduleRun is one pipeline invocation's persisted record — the
// rendered report, never the model.
type ScheduleRun struct {
	ID            string            `db:"id"`
	CatalogueHash string            `db:"catalogue_hash"`
	Status        ScheduleRunStatus `db:"status"`
	Report        types.JSONText    `db:"report"`
	Error         sql.NullString    `db:"error"`
	StartedAt     time.Time         `db:"started_at"`
	FinishedAt    sql.NullTime      `db:"finished_at"`
	CreatedAt     time.Time         `db:"created_at"`
}

// ScheduleRunRepository persists schedule runs in Postgres.
type ScheduleRunRepository struct {
	db *sqlx.DB
}

// NewScheduleRunRepository constructs the repository.
func NewScheduleRunRepository(db *sqlx.DB) *ScheduleRunRepository {
	return &ScheduleRunRepository{db: db}
}

// Create inserts a new pending run and assigns it an ID.
func (r *ScheduleRunRepository) Create(ctx context.Context, catalogueHash string) (*ScheduleRun, error) {
	run := &ScheduleRun{
		ID:            uuid.NewString(),
		CatalogueHash: catalogueHash,
		Status:        ScheduleRunPending,
		Report:        types.JSONText(`{}`),
		StartedAt:     time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}

	const query = `
INSERT INTO schedule_runs (id, catalogue_hash, status, report, started_at, created_at)
VALUES (:id, :catalogue_hash, :status, :report, :started_at, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, run); err != nil {
		return nil, fmt.Errorf("insert schedule run: %w", err)
	}
	return run, nil
}

// Finish records the terminal status and rendered report for a run.
func (r *ScheduleRunRepository) Finish(ctx context.Context, id string, status ScheduleRunStatus, report types.JSONText, runErr string) error {
	const query = `
UPDATE schedule_runs
SET status = $1, report = $2, error = $3, finished_at = $4
WHERE id = $5`
	var errArg sql.NullString
	if runErr != "" {
		errArg = sql.NullString{String: runErr, Valid: true}
	}
	result, err := r.db.ExecContext(ctx, query, status, report, errArg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finish schedule run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID loads a run by its identifier.
func (r *ScheduleRunRepository) FindByID(ctx context.Context, id string) (*ScheduleRun, error) {
	const query = `
SELECT id, catalogue_hash, status, report, error, started_at, finished_at, created_at
FROM schedule_runs WHERE id = $1`
	var run ScheduleRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// FindByCatalogueHash looks up the most recent run for an identical
// catalogue submission — the durable fallback behind the Redis
// idempotency cache once a cache entry has expired.
func (r *ScheduleRunRepository) FindByCatalogueHash(ctx context.Context, hash string) (*ScheduleRun, error) {
	const query = `
SELECT id, catalogue_hash, status, report, error, started_at, finished_at, created_at
FROM schedule_runs WHERE catalogue_hash = $1 ORDER BY created_at DESC LIMIT 1`
	var run ScheduleRun
	if err := r.db.GetContext(ctx, &run, query, hash); err != nil {
		return nil, err
	}
	return &run, nil
}
