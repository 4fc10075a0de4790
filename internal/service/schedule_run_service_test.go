package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusops/timetable-engine/internal/dto"
	"github.com/campusops/timetable-engine/internal/pipeline"
	"github.com/campusops/timetable-engine/internal/repository"
	"github.com/campusops/timetable-engine/pkg/jobs"
)

type fakeScheduleRunRepo struct {
	byID   map[string]*repository.ScheduleRun
	byHash map[string]string
}

func newFakeScheduleRunRepo() *fakeScheduleRunRepo {
	return &fakeScheduleRunRepo{
		byID:   make(map[string]*repository.ScheduleRun),
		byHash: make(map[string]string),
	}
}

func (f *fakeScheduleRunRepo) Create(ctx context.Context, catalogueHash string) (*repository.ScheduleRun, error) {
	run := &repository.ScheduleRun{
		ID:            "run-" + catalogueHash[:8],
		CatalogueHash: catalogueHash,
		Status:        repository.ScheduleRunPending,
		Report:        types.JSONText(`{}`),
		StartedAt:     time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	f.byID[run.ID] = run
	f.byHash[catalogueHash] = run.ID
	return run, nil
}

func (f *fakeScheduleRunRepo) Finish(ctx context.Context, id string, status repository.ScheduleRunStatus, report types.JSONText, runErr string) error {
	run, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	run.Status = status
	run.Report = report
	if runErr != "" {
		run.Error = sql.NullString{String: runErr, Valid: true}
	}
	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	return nil
}

func (f *fakeScheduleRunRepo) FindByID(ctx context.Context, id string) (*repository.ScheduleRun, error) {
	run, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return run, nil
}

func (f *fakeScheduleRunRepo) FindByCatalogueHash(ctx context.Context, hash string) (*repository.ScheduleRun, error) {
	id, ok := f.byHash[hash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f.byID[id], nil
}

func sampleRows() []dto.CatalogueRow {
	return []dto.CatalogueRow{
		{CourseCode: "CS101", Faculty: "Dr. A", LectureHours: 3, TutorialHours: 1, PracticalHours: 0, Credits: 3},
		{CourseCode: "CS102", Faculty: "Dr. B", LectureHours: 2, TutorialHours: 0, PracticalHours: 2, Credits: 3},
	}
}

// newTestQueue returns a started queue whose handler never touches the
// solver, so async-dispatch tests don't depend on a working CP-SAT build.
func newTestQueue(t *testing.T) (*jobs.Queue, func()) {
	t.Helper()
	queue := jobs.NewQueue("test-schedule-runs", func(ctx context.Context, job jobs.Job) error {
		return nil
	}, jobs.QueueConfig{Workers: 1, BufferSize: 4, Logger: zap.NewNop()})
	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)
	return queue, func() {
		cancel()
		queue.Stop()
	}
}

func TestScheduleRunService_SubmitIsIdempotentForIdenticalCatalogue(t *testing.T) {
	repo := newFakeScheduleRunRepo()
	cacheRepo := newMockCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	queue, stop := newTestQueue(t)
	defer stop()

	svc := NewScheduleRunService(repo, cacheSvc, NewMetricsService(), nil, zap.NewNop(), pipeline.DefaultOptions(), 1)
	svc.SetQueue(queue)

	req := dto.CreateScheduleRunRequest{Rows: sampleRows()}

	first, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.byID, 1, "a repeat submission must not create a second run")
}

func TestScheduleRunService_SubmitFallsBackToDatabaseOnCacheMiss(t *testing.T) {
	repo := newFakeScheduleRunRepo()
	cacheRepo := newMockCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	queue, stop := newTestQueue(t)
	defer stop()

	svc := NewScheduleRunService(repo, cacheSvc, NewMetricsService(), nil, zap.NewNop(), pipeline.DefaultOptions(), 1)
	svc.SetQueue(queue)

	req := dto.CreateScheduleRunRequest{Rows: sampleRows()}

	first, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	// Simulate an expired cache entry: the durable database lookup by
	// catalogue hash must still resolve to the same run.
	cacheRepo.store = make(map[string][]byte)

	second, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.byID, 1)
}

func TestScheduleRunService_SubmitRejectsBothCSVAndRows(t *testing.T) {
	repo := newFakeScheduleRunRepo()
	svc := NewScheduleRunService(repo, NewCacheService(newMockCacheRepo(), nil, time.Minute, zap.NewNop(), true), NewMetricsService(), nil, zap.NewNop(), pipeline.DefaultOptions(), 50)

	req := dto.CreateScheduleRunRequest{CSV: "courseCode,faculty\n", Rows: sampleRows()}
	_, err := svc.Submit(context.Background(), req)
	assert.Error(t, err)
}

func TestScheduleRunService_SubmitRejectsNeitherCSVNorRows(t *testing.T) {
	repo := newFakeScheduleRunRepo()
	svc := NewScheduleRunService(repo, NewCacheService(newMockCacheRepo(), nil, time.Minute, zap.NewNop(), true), NewMetricsService(), nil, zap.NewNop(), pipeline.DefaultOptions(), 50)

	_, err := svc.Submit(context.Background(), dto.CreateScheduleRunRequest{})
	assert.Error(t, err)
}

func TestScheduleRunService_GetReturnsNotFoundForUnknownID(t *testing.T) {
	repo := newFakeScheduleRunRepo()
	svc := NewScheduleRunService(repo, NewCacheService(newMockCacheRepo(), nil, time.Minute, zap.NewNop(), true), NewMetricsService(), nil, zap.NewNop(), pipeline.DefaultOptions(), 50)

	_, err := svc.Get(context.Background(), "does-not-exist")
	assert.Error(t, err)
}
