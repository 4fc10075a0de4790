package model

import (
	"github.com/campusops/timetable-engine/internal/derive"
	"github.com/campusops/timetable-engine/internal/solver"
)

// Build constructs every decision variable and posts every hard
// constraint for one batch of units against a fresh solver
// Adapter.
//
// oeFixed is nil for the global open-elective pre-pass: the OE
// grid is then built as free variables so the pre-pass can choose a
// pattern. For a regular batch solve, oeFixed carries the pattern the
// pre-pass already decided, and the OE grid is pinned to it via hard
// equalities instead of left free.
func Build(units []derive.Unit, opts Options, oeFixed map[Cell]bool) (*solver.Adapter, *Variables) {
	adapter := solver.New()
	v := newVariables(adapter, units, oeFixed)
	postConstraints(adapter, v, opts)
	return adapter, v
}

// OnlyOpenElectiveUnits filters a plan down to the units the global OE
// pre-pass needs to see: every teaching unit whose course is tagged
// open-elective, regardless of which batch its teacher would otherwise
// land in.
func OnlyOpenElectiveUnits(units []derive.Unit) []derive.Unit {
	var out []derive.Unit
	for _, u := range units {
		if u.IsOpenElective {
			out = append(out, u)
		}
	}
	return out
}
