// Package derive computes the per-(teacher,course) counts and groupings
// the model needs before any decision variable is created.
package derive

import (
	"fmt"
	"strings"

	"github.com/campusops/timetable-engine/internal/catalogue"
	appErrors "github.com/campusops/timetable-engine/pkg/errors"
)

// Options controls the configurable thresholds referenced by the derive
// stage.
type Options struct {
	MorningOnlyCourseCode string
	OpenElectiveMarker    string

	// StrictEvenPractical rejects odd practical-hour counts rather than
	// rounding them down to the nearest even value. Mirrors
	// model.Options.StrictEvenPractical; Run copies that field across
	// before calling Build.
	StrictEvenPractical bool
}

// DefaultOptions mirrors the defaults.
func DefaultOptions() Options {
	return Options{
		MorningOnlyCourseCode: "CE23331",
		OpenElectiveMarker:    "OpenElective",
		StrictEvenPractical:   true,
	}
}

// Unit is the derived workload for one (teacher, course) pair.
type Unit struct {
	Teacher   string
	Course    catalogue.Course
	Lecture   int
	Tutorial  int
	Practical int
	Weekly    int
	NeedsConsecutive bool
	IsOpenElective   bool
	IsMorningOnly    bool

	// IsBatchSplit marks one half of a registration=60 oversize-lab
	// course. BatchGroup holds the original (pre-split) course code so
	// the model can find a unit's sibling; BatchIndex is 1 or 2.
	IsBatchSplit bool
	BatchGroup   string
	BatchIndex   int
}

// batchSplitRegistration is the registration count that triggers
// splitting a practical-bearing course into two parallel batches, each
// taught in full.
const batchSplitRegistration = 60

// needsBatchSplit reports whether a course is an oversize lab that must
// be taught as two disjoint batches rather than once.
func needsBatchSplit(course catalogue.Course) bool {
	return course.HasRegistration && course.Registration == batchSplitRegistration && course.PracticalHours > 0
}

// splitBatches returns the two synthetic per-batch courses for an
// oversize lab. Each batch carries the full teaching load of the
// original course — a batch split means the same material taught twice,
// once per cohort, not the hours divided between them.
func splitBatches(course catalogue.Course) [2]catalogue.Course {
	b1, b2 := course, course
	b1.Code = course.Code + "-B1"
	b2.Code = course.Code + "-B2"
	return [2]catalogue.Course{b1, b2}
}

// Plan is the full derivation over a catalogue: every teaching unit, plus
// the cross-cutting groupings the model needs.
type Plan struct {
	Units []Unit

	// TeacherUnits groups units by teacher, preserving catalogue order.
	TeacherUnits map[string][]Unit
	// OpenElectiveCourses is the set of course codes flagged as open
	// electives, in the order first encountered.
	OpenElectiveCourses []string
}

// Build derives a Plan from a catalogue. An odd practical-hour count is a
// fatal ModelError unless opts.StrictEvenPractical is false, in which case
// it is rounded down to the nearest even value instead (practicals come in
// 2-hour blocks, so an odd trailing hour can't be scheduled as its own
// block).
func Build(cat *catalogue.Catalogue, opts Options) (*Plan, error) {
	plan := &Plan{TeacherUnits: make(map[string][]Unit)}
	seenOE := make(map[string]bool)

	for _, teacher := range cat.Teachers {
		for _, course := range teacher.Courses {
			if course.PracticalHours%2 != 0 {
				if opts.StrictEvenPractical {
					return nil, appErrors.Wrap(
						fmt.Errorf("course %s has odd practical hours (%d)", course.Code, course.PracticalHours),
						appErrors.ErrModel.Code, appErrors.ErrModel.Status,
						"derived plan is inconsistent: practical hours must be even",
					)
				}
				course.PracticalHours--
			}

			isOE := strings.Contains(course.Code, opts.OpenElectiveMarker)
			isMorningOnly := opts.MorningOnlyCourseCode != "" && course.Code == opts.MorningOnlyCourseCode

			courses := []catalogue.Course{course}
			batchGroup := ""
			if needsBatchSplit(course) {
				batches := splitBatches(course)
				courses = batches[:]
				batchGroup = course.Code
			}

			for i, bc := range courses {
				unit := Unit{
					Teacher:          teacher.Name,
					Course:           bc,
					Lecture:          bc.LectureHours,
					Tutorial:         bc.TutorialHours,
					Practical:        bc.PracticalHours,
					Weekly:           bc.WeeklySlots(),
					NeedsConsecutive: bc.PracticalHours > 0,
					IsOpenElective:   isOE,
					IsMorningOnly:    isMorningOnly,
				}
				if batchGroup != "" {
					unit.IsBatchSplit = true
					unit.BatchGroup = batchGroup
					unit.BatchIndex = i + 1
				}

				plan.Units = append(plan.Units, unit)
				plan.TeacherUnits[teacher.Name] = append(plan.TeacherUnits[teacher.Name], unit)
			}
			if isOE && !seenOE[course.Code] {
				seenOE[course.Code] = true
				plan.OpenElectiveCourses = append(plan.OpenElectiveCourses, course.Code)
			}
		}
	}

	return plan, nil
}

// Teachers returns the sorted (by catalogue order) distinct teacher names
// that have at least one unit.
func (p *Plan) Teachers() []string {
	names := make([]string, 0, len(p.TeacherUnits))
	seen := make(map[string]bool, len(p.TeacherUnits))
	for _, u := range p.Units {
		if !seen[u.Teacher] {
			seen[u.Teacher] = true
			names = append(names, u.Teacher)
		}
	}
	return names
}
