// Package pipeline orchestrates Ingest→Derive→Model→Solve→Render
// end to end, including the open-elective pre-pass
// and batch partitioning.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/campusops/timetable-engine/internal/catalogue"
	"github.com/campusops/timetable-engine/internal/derive"
	"github.com/campusops/timetable-engine/internal/model"
	"github.com/campusops/timetable-engine/internal/render"
	"github.com/campusops/timetable-engine/internal/solver"
	appErrors "github.com/campusops/timetable-engine/pkg/errors"
	"github.com/campusops/timetable-engine/pkg/jobs"
)

// Options controls the pipeline's batching and solver budget.
type Options struct {
	Model     model.Options
	Derive    derive.Options
	BatchSize int
	TimeLimit time.Duration
	// Workers sets the adapted jobs.Queue's worker count: 1 solves
	// batches sequentially, N solves up to N concurrently. Safe to
	// use N>1 only because the OE pre-pass has already fixed every
	// cross-batch variable before any batch is built.
	Workers int
	Logger  *zap.Logger
}

// DefaultOptions mirrors the defaults.
func DefaultOptions() Options {
	return Options{
		Model:     model.DefaultOptions(),
		Derive:    derive.DefaultOptions(),
		BatchSize: 50,
		TimeLimit: 120 * time.Second,
		Workers:   1,
		Logger:    zap.NewNop(),
	}
}

// BatchStatus is the outcome of solving one batch.
type BatchStatus string

const (
	BatchSolved     BatchStatus = "solved"
	BatchInfeasible BatchStatus = "infeasible"
	BatchTimeout    BatchStatus = "timeout"
	BatchError      BatchStatus = "error"
)

// BatchReport describes one batch's solve outcome.
type BatchReport struct {
	Index    int
	Teachers []string
	Status   BatchStatus
	Error    string
}

// Report is the pipeline's final output: every successfully solved
// teacher's timetable, plus per-batch bookkeeping for whoever didn't get
// one.
type Report struct {
	Teachers []render.TeacherTimetable
	Batches  []BatchReport
	Failed   []string
}

// Run executes the full pipeline over raw catalogue rows. InputError and
// ModelError are fatal (returned as the error); batch-level Infeasible
// and Timeout are not — they are recorded in the Report instead.
func Run(ctx context.Context, rows []catalogue.Row, opts Options) (*Report, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = 120 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	cat, err := catalogue.Load(rows)
	if err != nil {
		return nil, err
	}

	// model.Options is the caller-facing knob; derive.Options carries its
	// own copy of the flag purely because Build runs before model.Build.
	opts.Derive.StrictEvenPractical = opts.Model.StrictEvenPractical

	plan, err := derive.Build(cat, opts.Derive)
	if err != nil {
		return nil, err
	}

	var oeFixed map[model.Cell]bool
	if len(plan.OpenElectiveCourses) > 0 {
		oeFixed, err = resolveOpenElectives(ctx, plan, opts)
		if err != nil {
			return nil, err
		}
	}

	batches := partition(plan, opts.BatchSize)
	opts.Logger.Sugar().Infow("pipeline partitioned teachers into batches",
		"teachers", len(plan.Teachers()), "batches", len(batches), "batch_size", opts.BatchSize)

	batchReports, tables := solveBatches(ctx, batches, oeFixed, opts)

	report := &Report{Batches: batchReports, Teachers: tables}
	for _, br := range batchReports {
		if br.Status != BatchSolved {
			report.Failed = append(report.Failed, br.Teachers...)
		}
	}
	sort.Strings(report.Failed)

	return report, nil
}

// resolveOpenElectives runs the global pre-pass: a model over
// only the open-elective units, across every teacher regardless of
// which batch they would otherwise land in, producing the single
// (day,slot) pattern every open-elective course must share.
func resolveOpenElectives(ctx context.Context, plan *derive.Plan, opts Options) (map[model.Cell]bool, error) {
	oeUnits := model.OnlyOpenElectiveUnits(plan.Units)
	adapter, v := model.Build(oeUnits, opts.Model, nil)

	result, err := adapter.Solve(ctx, opts.TimeLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "open-elective pre-pass failed")
	}

	switch result.Status {
	case solver.StatusOptimal, solver.StatusFeasible:
	case solver.StatusInfeasible:
		return nil, appErrors.Clone(appErrors.ErrInfeasible, "no shared time cell satisfies every open-elective course")
	default:
		return nil, appErrors.Clone(appErrors.ErrSolveTimeout, "open-elective pre-pass exceeded its time budget")
	}

	fixed := make(map[model.Cell]bool, model.Days*model.Slots)
	for d := 0; d < model.Days; d++ {
		for s := 0; s < model.Slots; s++ {
			fixed[model.Cell{Day: d, Slot: s}] = result.BoolValue(v.OE[d][s])
		}
	}
	return fixed, nil
}

// partition sorts teachers lexicographically and groups them into
// batches of at most batchSize, each carrying every unit for its
// teachers.
func partition(plan *derive.Plan, batchSize int) [][]derive.Unit {
	teachers := append([]string(nil), plan.Teachers()...)
	sort.Strings(teachers)

	var batches [][]derive.Unit
	for start := 0; start < len(teachers); start += batchSize {
		end := start + batchSize
		if end > len(teachers) {
			end = len(teachers)
		}
		var units []derive.Unit
		for _, t := range teachers[start:end] {
			units = append(units, plan.TeacherUnits[t]...)
		}
		batches = append(batches, units)
	}
	return batches
}

// solveBatches dispatches every batch through the adapted worker queue:
// Workers=1 drains them one at a time, Workers>1 runs up to that
// many concurrently.
func solveBatches(ctx context.Context, batches [][]derive.Unit, oeFixed map[model.Cell]bool, opts Options) ([]BatchReport, []render.TeacherTimetable) {
	results := make(chan batchOutcome, len(batches))

	handler := func(jobCtx context.Context, job jobs.Job) error {
		idx := job.Payload.(int)
		results <- solveOneBatch(jobCtx, idx, batches[idx], oeFixed, opts)
		return nil
	}

	queue := jobs.NewQueue("timetable-batches", handler, jobs.QueueConfig{
		Workers: opts.Workers,
		Logger:  opts.Logger,
	})
	queueCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	queue.Start(queueCtx)

	for i := range batches {
		_ = queue.Enqueue(jobs.Job{ID: fmt.Sprintf("batch-%d", i), Type: "solve-batch", Payload: i})
	}

	reports := make([]BatchReport, len(batches))
	var tables []render.TeacherTimetable
	for range batches {
		o := <-results
		reports[o.report.Index] = o.report
		tables = append(tables, o.tables...)
	}
	queue.Stop()

	sort.Slice(tables, func(i, j int) bool { return tables[i].Teacher < tables[j].Teacher })
	return reports, tables
}

type batchOutcome struct {
	report BatchReport
	tables []render.TeacherTimetable
}

func solveOneBatch(ctx context.Context, idx int, units []derive.Unit, oeFixed map[model.Cell]bool, opts Options) batchOutcome {
	teachers := model.UnitsByTeacher(units)
	names := make([]string, 0, len(teachers))
	for t := range teachers {
		names = append(names, t)
	}
	sort.Strings(names)

	adapter, v := model.Build(units, opts.Model, oeFixed)
	result, err := adapter.Solve(ctx, opts.TimeLimit)
	if err != nil {
		return batchOutcome{report: BatchReport{Index: idx, Teachers: names, Status: BatchError, Error: err.Error()}}
	}

	switch result.Status {
	case solver.StatusOptimal, solver.StatusFeasible:
		tables, renderErr := render.Render(v, result)
		if renderErr != nil {
			return batchOutcome{report: BatchReport{Index: idx, Teachers: names, Status: BatchError, Error: renderErr.Error()}}
		}
		return batchOutcome{report: BatchReport{Index: idx, Teachers: names, Status: BatchSolved}, tables: tables}
	case solver.StatusInfeasible:
		return batchOutcome{report: BatchReport{Index: idx, Teachers: names, Status: BatchInfeasible}}
	default:
		return batchOutcome{report: BatchReport{Index: idx, Teachers: names, Status: BatchTimeout}}
	}
}
