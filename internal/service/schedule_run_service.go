package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/campusops/timetable-engine/internal/catalogue"
	"github.com/campusops/timetable-engine/internal/dto"
	"github.com/campusops/timetable-engine/internal/pipeline"
	"github.com/campusops/timetable-engine/internal/render"
	"github.com/campusops/timetable-engine/internal/repository"
	appErrors "github.com/campusops/timetable-engine/pkg/errors"
	"github.com/campusops/timetable-engine/pkg/jobs"
)

const cacheKeyPrefix = "schedule-run:catalogue:"

// storedReport is the JSON shape persisted in ScheduleRun.Report: enough
// to rebuild the response and to re-export timetables without re-solving.
type storedReport struct {
	Batches    []dto.BatchReport         `json:"batches"`
	Teachers   []string                  `json:"teachers"`
	Failed     []string                  `json:"failed"`
	Timetables []render.TeacherTimetable `json:"timetables"`
}

type scheduleRunRepo interface {
	Create(ctx context.Context, catalogueHash string) (*repository.ScheduleRun, error)
	Finish(ctx context.Context, id string, status repository.ScheduleRunStatus, report types.JSONText, runErr string) error
	FindByID(ctx context.Context, id string) (*repository.ScheduleRun, error)
	FindByCatalogueHash(ctx context.Context, hash string) (*repository.ScheduleRun, error)
}

// ScheduleRunService orchestrates one pipeline invocation end to end:
// idempotency lookup, persistence, solving, and metrics.
type ScheduleRunService struct {
	runs     scheduleRunRepo
	cache    *CacheService
	metrics  *MetricsService
	queue    *jobs.Queue
	logger   *zap.Logger
	validate *validator.Validate

	defaultOptions pipeline.Options
	asyncThreshold int
}

// NewScheduleRunService constructs the orchestration service. queue may be
// nil, in which case every run solves synchronously regardless of size.
func NewScheduleRunService(runs scheduleRunRepo, cache *CacheService, metrics *MetricsService, queue *jobs.Queue, logger *zap.Logger, defaultOptions pipeline.Options, asyncThreshold int) *ScheduleRunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if asyncThreshold <= 0 {
		asyncThreshold = 50
	}
	return &ScheduleRunService{
		runs:           runs,
		cache:          cache,
		metrics:        metrics,
		queue:          queue,
		validate:       validator.New(),
		logger:         logger,
		defaultOptions: defaultOptions,
		asyncThreshold: asyncThreshold,
	}
}

// Submit parses the catalogue, resolves idempotency, and either solves
// synchronously or hands the run to the background queue, returning the
// run's current state either way.
func (s *ScheduleRunService) Submit(ctx context.Context, req dto.CreateScheduleRunRequest) (*dto.ScheduleRunResponse, error) {
	if req.CSV == "" && len(req.Rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of csv or rows must be set")
	}
	if req.CSV != "" && len(req.Rows) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of csv or rows must be set, not both")
	}
	if len(req.Rows) > 0 {
		if err := s.validate.Struct(req); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid catalogue row")
		}
	}

	rows, err := parseRows(req)
	if err != nil {
		return nil, err
	}

	hash := catalogueHash(rows)
	cacheKey := cacheKeyPrefix + hash

	var cachedID string
	if hit, err := s.cache.Get(ctx, cacheKey, &cachedID); err == nil && hit {
		if run, err := s.runs.FindByID(ctx, cachedID); err == nil {
			return toResponse(run), nil
		}
	}

	if existing, err := s.runs.FindByCatalogueHash(ctx, hash); err == nil {
		s.rememberID(ctx, cacheKey, existing.ID)
		return toResponse(existing), nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("catalogue hash lookup failed", zap.Error(err))
	}

	run, err := s.runs.Create(ctx, hash)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule run")
	}
	s.rememberID(ctx, cacheKey, run.ID)

	opts := mergeOptions(s.defaultOptions, req.Options)

	if s.queue != nil && len(rows) > s.asyncThreshold {
		job := jobs.Job{ID: run.ID, Type: "schedule-run", Payload: scheduleRunJob{RunID: run.ID, Rows: rows, Options: opts}}
		if err := s.queue.Enqueue(job); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue schedule run")
		}
		return toResponse(run), nil
	}

	s.solve(ctx, run.ID, rows, opts)

	finished, err := s.runs.FindByID(ctx, run.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load finished run")
	}
	return toResponse(finished), nil
}

// SetQueue wires the background queue in after construction, needed
// because the queue's handler is this service's own QueueHandler method.
func (s *ScheduleRunService) SetQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Get loads a run by ID.
func (s *ScheduleRunService) Get(ctx context.Context, id string) (*dto.ScheduleRunResponse, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule run")
	}
	return toResponse(run), nil
}

// Timetables loads the rendered timetables for a finished run, used by
// the export endpoint.
func (s *ScheduleRunService) Timetables(ctx context.Context, id string) ([]render.TeacherTimetable, error) {
	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule run")
	}
	var sr storedReport
	if err := json.Unmarshal(run.Report, &sr); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode stored report")
	}
	return sr.Timetables, nil
}

// QueueHandler processes an asynchronously dispatched run. Wire it into
// the jobs.Queue this service was constructed with.
func (s *ScheduleRunService) QueueHandler(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(scheduleRunJob)
	if !ok {
		return fmt.Errorf("schedule run job %s: unexpected payload type %T", job.ID, job.Payload)
	}
	s.solve(ctx, payload.RunID, payload.Rows, payload.Options)
	return nil
}

// scheduleRunJob is the payload carried by asynchronous dispatch.
type scheduleRunJob struct {
	RunID   string
	Rows    []catalogue.Row
	Options pipeline.Options
}

func (s *ScheduleRunService) solve(ctx context.Context, runID string, rows []catalogue.Row, opts pipeline.Options) {
	start := time.Now()
	report, err := pipeline.Run(ctx, rows, opts)
	if err != nil {
		if finishErr := s.runs.Finish(ctx, runID, repository.ScheduleRunFailed, types.JSONText(`{}`), err.Error()); finishErr != nil {
			s.logger.Error("failed to persist failed run", zap.String("run_id", runID), zap.Error(finishErr))
		}
		if s.metrics != nil {
			s.metrics.ObserveBatchSolve("error", time.Since(start))
		}
		return
	}

	sr := storedReport{Teachers: teacherNames(report.Teachers), Failed: report.Failed}
	sr.Timetables = report.Teachers
	for _, b := range report.Batches {
		sr.Batches = append(sr.Batches, dto.BatchReport{Index: b.Index, Teachers: b.Teachers, Status: string(b.Status), Error: b.Error})
		if s.metrics != nil {
			s.metrics.ObserveBatchSolve(string(b.Status), time.Since(start))
		}
	}

	payload, err := json.Marshal(sr)
	if err != nil {
		payload = []byte(`{}`)
	}

	status := repository.ScheduleRunSucceeded
	switch {
	case len(sr.Teachers) == 0:
		status = repository.ScheduleRunFailed
	case len(sr.Failed) > 0:
		status = repository.ScheduleRunPartial
	}

	if err := s.runs.Finish(ctx, runID, status, types.JSONText(payload), ""); err != nil {
		s.logger.Error("failed to persist finished run", zap.String("run_id", runID), zap.Error(err))
	}
}

func (s *ScheduleRunService) rememberID(ctx context.Context, key, id string) {
	if err := s.cache.Set(ctx, key, id, 0); err != nil {
		s.logger.Warn("failed to cache run id", zap.String("key", key), zap.Error(err))
	}
}

func teacherNames(tables []render.TeacherTimetable) []string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.Teacher)
	}
	return names
}

func toResponse(run *repository.ScheduleRun) *dto.ScheduleRunResponse {
	resp := &dto.ScheduleRunResponse{
		ID:        run.ID,
		Status:    string(run.Status),
		StartedAt: run.StartedAt,
		CreatedAt: run.CreatedAt,
	}
	if run.FinishedAt.Valid {
		t := run.FinishedAt.Time
		resp.FinishedAt = &t
	}
	if run.Error.Valid {
		resp.Error = run.Error.String
	}
	var sr storedReport
	if len(run.Report) > 0 {
		if err := json.Unmarshal(run.Report, &sr); err == nil {
			resp.Batches = sr.Batches
			resp.Teachers = sr.Teachers
			resp.Failed = sr.Failed
		}
	}
	return resp
}

func parseRows(req dto.CreateScheduleRunRequest) ([]catalogue.Row, error) {
	switch {
	case req.CSV != "" && len(req.Rows) > 0:
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of csv or rows must be set, not both")
	case req.CSV != "":
		return catalogue.ReadCSV(strings.NewReader(req.CSV))
	case len(req.Rows) > 0:
		rows := make([]catalogue.Row, 0, len(req.Rows))
		for _, r := range req.Rows {
			rows = append(rows, catalogue.Row{
				CourseCode:      r.CourseCode,
				Faculty:         r.Faculty,
				LectureHours:    r.LectureHours,
				TutorialHours:   r.TutorialHours,
				PracticalHours:  r.PracticalHours,
				Credits:         r.Credits,
				Registration:    derefInt(r.Registration),
				HasRegistration: r.Registration != nil,
			})
		}
		return rows, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of csv or rows must be set")
	}
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func catalogueHash(rows []catalogue.Row) string {
	normalized := make([]catalogue.Row, len(rows))
	copy(normalized, rows)
	sortRows(normalized)
	payload, _ := json.Marshal(normalized)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func sortRows(rows []catalogue.Row) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rowLess(rows[j], rows[j-1]); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func rowLess(a, b catalogue.Row) bool {
	if a.Faculty != b.Faculty {
		return a.Faculty < b.Faculty
	}
	return a.CourseCode < b.CourseCode
}

func mergeOptions(base pipeline.Options, override *dto.SolverOptions) pipeline.Options {
	opts := base
	if override == nil {
		return opts
	}
	if override.TimeLimitSeconds > 0 {
		opts.TimeLimit = time.Duration(override.TimeLimitSeconds) * time.Second
	}
	if override.BatchSize > 0 {
		opts.BatchSize = override.BatchSize
	}
	if override.MaxHoursPerDay > 0 {
		opts.Model.MaxDailyLoad = override.MaxHoursPerDay
	}
	if override.MaxConsecutiveSlots > 0 {
		opts.Model.MaxConsecutiveSlots = override.MaxConsecutiveSlots
	}
	if override.Workers > 0 {
		opts.Workers = override.Workers
	}
	if override.MorningOnlyCourse != "" {
		opts.Derive.MorningOnlyCourseCode = override.MorningOnlyCourse
	}
	if override.OpenElectiveMarker != "" {
		opts.Derive.OpenElectiveMarker = override.OpenElectiveMarker
	}
	return opts
}
