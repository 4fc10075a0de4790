package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduleRunRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestScheduleRunRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newScheduleRunRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedule_runs")).
		WithArgs(sqlmock.AnyArg(), "hash-1", string(ScheduleRunPending), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run, err := repo.Create(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, ScheduleRunPending, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryFinish(t *testing.T) {
	db, mock, cleanup := newScheduleRunRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_runs")).
		WithArgs(string(ScheduleRunSucceeded), types.JSONText(`{"teachers":[]}`), sqlmock.AnyArg(), sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Finish(context.Background(), "run-1", ScheduleRunSucceeded, types.JSONText(`{"teachers":[]}`), "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryFinishNotFound(t *testing.T) {
	db, mock, cleanup := newScheduleRunRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE schedule_runs")).
		WithArgs(string(ScheduleRunFailed), types.JSONText(`{}`), sqlmock.AnyArg(), sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Finish(context.Background(), "missing", ScheduleRunFailed, types.JSONText(`{}`), "")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newScheduleRunRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	rows := sqlmock.NewRows([]string{"id", "catalogue_hash", "status", "report", "error", "started_at", "finished_at", "created_at"}).
		AddRow("run-1", "hash-1", string(ScheduleRunSucceeded), types.JSONText(`{}`), nil, time.Now(), nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, catalogue_hash, status, report, error, started_at, finished_at, created_at")).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := repo.FindByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", run.CatalogueHash)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRunRepositoryFindByCatalogueHash(t *testing.T) {
	db, mock, cleanup := newScheduleRunRepoMock(t)
	defer cleanup()
	repo := NewScheduleRunRepository(db)

	rows := sqlmock.NewRows([]string{"id", "catalogue_hash", "status", "report", "error", "started_at", "finished_at", "created_at"}).
		AddRow("run-1", "hash-1", string(ScheduleRunSucceeded), types.JSONText(`{}`), nil, time.Now(), nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, catalogue_hash, status, report, error, started_at, finished_at, created_at")).
		WithArgs("hash-1").
		WillReturnRows(rows)

	run, err := repo.FindByCatalogueHash(context.Background(), "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
