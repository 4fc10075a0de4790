// Package render reads a solved model back into per-teacher weekly
// tables. It performs no file or network I/O —
// that belongs to internal/export, a Glue-boundary concern.
package render

import (
	"fmt"
	"sort"

	"github.com/campusops/timetable-engine/internal/model"
	"github.com/campusops/timetable-engine/internal/solver"
)

// Cell is one entry in a teacher's weekly grid.
type Cell struct {
	CourseCode  string
	IsPractical bool
}

func (c Cell) Empty() bool { return c.CourseCode == "" }

// String renders the cell the way the Renderer's callers (CSV/PDF
// export, the HTTP report) display it: blank, the code, or the code
// annotated for a practical block.
func (c Cell) String() string {
	if c.Empty() {
		return ""
	}
	if c.IsPractical {
		return fmt.Sprintf("%s (Practical)", c.CourseCode)
	}
	return c.CourseCode
}

// TeacherTimetable is one teacher's Mon..Sat x Slot1..7 grid plus the
// per-day SlotType label.
type TeacherTimetable struct {
	Teacher      string
	Grid         [model.Days][model.Slots]Cell
	SlotTypes    [model.Days]int
	SlotTypeText [model.Days]string
}

// Render reads every teacher in v back into a TeacherTimetable, sorted
// by teacher name for deterministic output.
func Render(v *model.Variables, result solver.Result) ([]TeacherTimetable, error) {
	byTeacher := model.UnitsByTeacher(v.Units)

	teachers := make([]string, 0, len(byTeacher))
	for t := range byTeacher {
		teachers = append(teachers, t)
	}
	sort.Strings(teachers)

	out := make([]TeacherTimetable, 0, len(teachers))
	for _, t := range teachers {
		tt := TeacherTimetable{Teacher: t}

		for d := 0; d < model.Days; d++ {
			slotType := int(result.IntValue(v.SlotType[t][d]))
			tt.SlotTypes[d] = slotType
			tt.SlotTypeText[d] = model.SlotTypeLabel(slotType)
		}

		for _, u := range byTeacher[t] {
			key := model.UnitKey{Teacher: u.Teacher, Course: u.Course.Code}
			x := v.X[key]
			start, hasStart := v.Start[key]

			for d := 0; d < model.Days; d++ {
				for s := 0; s < model.Slots; s++ {
					if !result.BoolValue(x[d][s]) {
						continue
					}
					practical := false
					if hasStart {
						if s < model.Slots-1 && result.BoolValue(start[d][s]) {
							practical = true
						}
						if s > 0 && result.BoolValue(start[d][s-1]) {
							practical = true
						}
					}
					tt.Grid[d][s] = Cell{CourseCode: u.Course.Code, IsPractical: practical}
				}
			}
		}

		out = append(out, tt)
	}

	return out, nil
}
