// Package dto defines the gateway's request/response payloads.
package dto

import "time"

// SolverOptions lets a caller override the pipeline's defaults for one
// run, mirroring the solver's configuration knobs.
type SolverOptions struct {
	TimeLimitSeconds     int    `json:"timeLimitSeconds,omitempty"`
	BatchSize            int    `json:"batchSize,omitempty"`
	MaxHoursPerDay       int    `json:"maxHoursPerDay,omitempty"`
	MaxConsecutiveSlots  int    `json:"maxConsecutiveSlots,omitempty"`
	MorningOnlyCourse    string `json:"morningOnlyCourseCode,omitempty"`
	OpenElectiveMarker   string `json:"openElectiveMarker,omitempty"`
	Workers              int    `json:"workers,omitempty"`
}

// CatalogueRow mirrors catalogue.Row for JSON submission, so a caller
// can submit pre-parsed rows instead of CSV text in the csv field.
type CatalogueRow struct {
	CourseCode     string `json:"courseCode" validate:"required"`
	Faculty        string `json:"faculty" validate:"required"`
	LectureHours   int    `json:"lectureHours" validate:"gte=0"`
	TutorialHours  int    `json:"tutorialHours" validate:"gte=0"`
	PracticalHours int    `json:"practicalHours" validate:"gte=0"`
	Credits        int    `json:"credits" validate:"gte=1,lte=5"`
	Registration   *int   `json:"registration,omitempty"`
}

// CreateScheduleRunRequest is the POST /schedule-runs payload. Exactly
// one of CSV or Rows must be set.
type CreateScheduleRunRequest struct {
	CSV     string         `json:"csv,omitempty"`
	Rows    []CatalogueRow `json:"rows,omitempty" validate:"omitempty,dive"`
	Options *SolverOptions `json:"options,omitempty"`
}

// BatchReport mirrors pipeline.BatchReport for the HTTP envelope.
type BatchReport struct {
	Index    int      `json:"index"`
	Teachers []string `json:"teachers"`
	Status   string   `json:"status"`
	Error    string   `json:"error,omitempty"`
}

// ScheduleRunResponse is the status/result payload returned by both the
// creation (202) and lookup (200) endpoints.
type ScheduleRunResponse struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	Batches    []BatchReport `json:"batches,omitempty"`
	Teachers   []string      `json:"solvedTeachers,omitempty"`
	Failed     []string      `json:"failedTeachers,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}
