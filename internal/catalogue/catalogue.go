// Package catalogue ingests and normalises the raw course rows that feed
// the scheduling pipeline.
package catalogue

import (
	"sort"
	"strings"

	appErrors "github.com/campusops/timetable-engine/pkg/errors"
)

const (
	minCredits = 1
	maxCredits = 5
)

// Row is one raw catalogue record, already column-normalised by the CSV
// reader (see csv.go) but not yet validated or deduplicated.
type Row struct {
	CourseCode     string
	Faculty        string
	LectureHours   int
	TutorialHours  int
	PracticalHours int
	Credits        int
	// Registration is optional; a value of 60 on a practical-bearing course
	// triggers batch-splitting mode.
	Registration int
	HasRegistration bool
}

// Course is the typed, validated view of a catalogue entry.
type Course struct {
	Code           string
	LectureHours   int
	TutorialHours  int
	PracticalHours int
	Credits        int
	Registration   int
	HasRegistration bool
}

// WeeklySlots returns L+T+P for this course.
func (c Course) WeeklySlots() int {
	return c.LectureHours + c.TutorialHours + c.PracticalHours
}

// Teacher is a faculty member identified by a normalised name, together
// with the deterministic, sorted list of courses they deliver.
type Teacher struct {
	Name    string
	Courses []Course
}

// Catalogue is the deterministic, sorted view of the ingested rows: a
// sorted list of teachers, each with a sorted list of courses.
type Catalogue struct {
	Teachers []Teacher
}

// Load validates and normalises raw rows into a Catalogue. Rows with
// non-numeric or out-of-range credits are dropped; missing hour fields
// are treated as zero; duplicate (teacher, course) rows are collapsed by
// keeping the first occurrence.
func Load(rows []Row) (*Catalogue, error) {
	type key struct {
		teacher string
		course  string
	}

	seen := make(map[key]bool)
	byTeacher := make(map[string][]Course)
	displayName := make(map[string]string)

	for _, row := range rows {
		teacherKey := normaliseName(row.Faculty)
		code := strings.TrimSpace(row.CourseCode)
		if teacherKey == "" || code == "" {
			continue
		}
		teacher := teacherKey
		if _, ok := displayName[teacherKey]; !ok {
			displayName[teacherKey] = strings.TrimSpace(row.Faculty)
		}
		if row.Credits < minCredits || row.Credits > maxCredits {
			continue
		}

		k := key{teacher: teacher, course: code}
		if seen[k] {
			continue
		}
		seen[k] = true

		course := Course{
			Code:            code,
			LectureHours:    nonNegative(row.LectureHours),
			TutorialHours:   nonNegative(row.TutorialHours),
			PracticalHours:  nonNegative(row.PracticalHours),
			Credits:         row.Credits,
			Registration:    row.Registration,
			HasRegistration: row.HasRegistration,
		}
		if course.WeeklySlots() == 0 {
			continue
		}
		byTeacher[teacher] = append(byTeacher[teacher], course)
	}

	if len(byTeacher) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInput, "catalogue contains no valid rows after filtering")
	}

	teachers := make([]Teacher, 0, len(byTeacher))
	for key, courses := range byTeacher {
		sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
		teachers = append(teachers, Teacher{Name: displayName[key], Courses: courses})
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].Name < teachers[j].Name })

	return &Catalogue{Teachers: teachers}, nil
}

// normaliseName trims whitespace and folds case so that trivially
// equivalent spellings of a teacher's name collapse to one identity. This
// is deliberately not a fuzzy-matching library: none of the reference
// stack pulls one in, and the distilled spec only asks for column
// normalisation, not cross-record entity resolution (see DESIGN.md).
func normaliseName(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(raw))), " ")
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
