package model

import (
	"fmt"

	"github.com/campusops/timetable-engine/internal/derive"
	"github.com/campusops/timetable-engine/internal/solver"
)

// Cell identifies a single (day, slot) grid position.
type Cell struct {
	Day  int
	Slot int
}

// UnitKey identifies a teaching unit within a batch. Course codes are not
// globally unique (an open elective may be offered under the same code
// by several teachers/sections), so the pair is the real key.
type UnitKey struct {
	Teacher string
	Course  string
}

// Variables holds every decision variable the model creates for one
// batch. All slices are indexed [day][slot]; X and
// Start are further keyed per teaching unit.
type Variables struct {
	Units []derive.Unit

	X     map[UnitKey][Days][Slots]solver.BoolVar
	Start map[UnitKey][Days][Slots]solver.BoolVar

	Teaches map[string][Days][Slots]solver.BoolVar
	UsesCat map[string][Days][3]solver.BoolVar
	SlotType map[string][Days]solver.IntVar

	// MonToFri[t] is true when the teacher's mandatory off day is
	// Saturday (so Mon..Fri are workable); false pins Monday off.
	MonToFri map[string]solver.BoolVar

	// OE is the shared (day,slot) indicator grid open-elective
	// assignments are aliased to. Nil when the batch has no
	// open-elective units.
	OE *[Days][Slots]solver.BoolVar

	// HasOE reports whether OE was built for this batch at all, so
	// callers can distinguish "no OE grid" from "empty OE grid".
	HasOE bool
}

// newVariables builds every decision variable for units (one batch) and
// posts nothing yet — constraints are added separately (constraints.go)
// so the two concerns stay legible independently.
func newVariables(adapter *solver.Adapter, units []derive.Unit, oeFixed map[Cell]bool) *Variables {
	v := &Variables{
		Units:    units,
		X:        make(map[UnitKey][Days][Slots]solver.BoolVar),
		Start:    make(map[UnitKey][Days][Slots]solver.BoolVar),
		Teaches:  make(map[string][Days][Slots]solver.BoolVar),
		UsesCat:  make(map[string][Days][3]solver.BoolVar),
		SlotType: make(map[string][Days]solver.IntVar),
		MonToFri: make(map[string]solver.BoolVar),
	}

	teachers := teacherOrder(units)

	hasOE := false
	for _, u := range units {
		if u.IsOpenElective {
			hasOE = true
			break
		}
	}
	v.HasOE = hasOE
	if hasOE {
		var grid [Days][Slots]solver.BoolVar
		for d := 0; d < Days; d++ {
			for s := 0; s < Slots; s++ {
				grid[d][s] = adapter.AddBoolVar(fmt.Sprintf("oe[%d,%d]", d, s))
				if oeFixed != nil {
					val := int64(0)
					if oeFixed[Cell{Day: d, Slot: s}] {
						val = 1
					}
					adapter.AddLinear([]solver.BoolVar{grid[d][s]}, solver.OpEqual, val)
				}
			}
		}
		v.OE = &grid
	}

	for _, t := range teachers {
		var teaches [Days][Slots]solver.BoolVar
		var usesCat [Days][3]solver.BoolVar
		var slotType [Days]solver.IntVar
		for d := 0; d < Days; d++ {
			for s := 0; s < Slots; s++ {
				teaches[d][s] = adapter.AddBoolVar(fmt.Sprintf("teaches[%s,%d,%d]", t, d, s))
			}
			for k := 0; k < 3; k++ {
				usesCat[d][k] = adapter.AddBoolVar(fmt.Sprintf("usesCat[%s,%d,%d]", t, d, k))
			}
			slotType[d] = adapter.AddIntVar(fmt.Sprintf("slotType[%s,%d]", t, d), 0, 2)
		}
		v.Teaches[t] = teaches
		v.UsesCat[t] = usesCat
		v.SlotType[t] = slotType
		v.MonToFri[t] = adapter.AddBoolVar(fmt.Sprintf("monToFri[%s]", t))
	}

	for _, u := range units {
		key := UnitKey{Teacher: u.Teacher, Course: u.Course.Code}
		var x [Days][Slots]solver.BoolVar
		for d := 0; d < Days; d++ {
			for s := 0; s < Slots; s++ {
				if u.IsOpenElective {
					// Aliasing the unit's assignment variable to the
					// shared OE grid *is* the coupling constraint
					// (open-elective coupling): every OE unit's cell is, by construction,
					// the same variable, so no separate equality is
					// needed.
					x[d][s] = v.OE[d][s]
				} else {
					x[d][s] = adapter.AddBoolVar(fmt.Sprintf("x[%s,%s,%d,%d]", u.Teacher, u.Course.Code, d, s))
				}
			}
		}
		v.X[key] = x

		if u.NeedsConsecutive {
			var start [Days][Slots]solver.BoolVar
			for d := 0; d < Days; d++ {
				for s := 0; s < Slots-1; s++ {
					start[d][s] = adapter.AddBoolVar(fmt.Sprintf("start[%s,%s,%d,%d]", u.Teacher, u.Course.Code, d, s))
				}
			}
			v.Start[key] = start
		}
	}

	return v
}

// teacherOrder returns the distinct teachers in units, first-seen order,
// matching the lexicographic pre-sort the pipeline performs before
// batching.
func teacherOrder(units []derive.Unit) []string {
	seen := make(map[string]bool)
	var order []string
	for _, u := range units {
		if !seen[u.Teacher] {
			seen[u.Teacher] = true
			order = append(order, u.Teacher)
		}
	}
	return order
}

// UnitsByTeacher groups a batch's units by teacher, preserving order.
func UnitsByTeacher(units []derive.Unit) map[string][]derive.Unit {
	out := make(map[string][]derive.Unit)
	for _, u := range units {
		out[u.Teacher] = append(out[u.Teacher], u)
	}
	return out
}
