package model

import (
	"fmt"

	"github.com/campusops/timetable-engine/internal/derive"
	"github.com/campusops/timetable-engine/internal/solver"
)

// postConstraints posts the twelve hard constraints against an
// already-built Variables set.
func postConstraints(adapter *solver.Adapter, v *Variables, opts Options) {
	units := v.Units
	byTeacher := UnitsByTeacher(units)

	postWorkload(adapter, v, units)                             // total-hours workload
	postOneCoursePerSlot(adapter, v, byTeacher)                 // one-course-per-slot
	postPracticalContinuity(adapter, v, units)                  // practical continuity
	postTeachesLinks(adapter, v, byTeacher)                     // feeds slot-type derivation/consecutive cap/daily load
	dayIsType := postSlotTypeDerivation(adapter, v, byTeacher)  // slot-type derivation
	postSlotTypeDiversity(adapter, v, dayIsType)                // slot-type diversity
	postIntraTypeFreeSlot(adapter, v, dayIsType)                // intra-type free slot
	postConsecutiveCap(adapter, v, byTeacher, opts)             // consecutive cap
	postDailyLoad(adapter, v, byTeacher, opts)                  // daily load
	postMandatoryOffDay(adapter, v, byTeacher)                  // mandatory off day
	postMorningOnly(adapter, v, units, opts)                    // morning-only
	postBatchMutualExclusion(adapter, v, byTeacher)             // batch-split mutual exclusion
	// open-elective coupling is enforced by variable aliasing in
	// newVariables, not a posted constraint.
	if opts.EnforceNoEveningThenMorning {
		postNoEveningThenMorning(adapter, v, dayIsType) // no-evening-then-morning
	}
}

func flattenX(x [Days][Slots]solver.BoolVar) []solver.BoolVar {
	out := make([]solver.BoolVar, 0, Days*Slots)
	for d := 0; d < Days; d++ {
		out = append(out, x[d][:]...)
	}
	return out
}

// total-hours workload: Σ_{d,s} x[t,c,d,s] = W(t,c).
func postWorkload(adapter *solver.Adapter, v *Variables, units []derive.Unit) {
	for _, u := range units {
		key := UnitKey{Teacher: u.Teacher, Course: u.Course.Code}
		x := v.X[key]
		adapter.AddLinear(flattenX(x), solver.OpEqual, int64(u.Weekly))
	}
}

// one-course-per-slot: Σ_c x[t,c,d,s] <= 1.
func postOneCoursePerSlot(adapter *solver.Adapter, v *Variables, byTeacher map[string][]derive.Unit) {
	for _, us := range byTeacher {
		for d := 0; d < Days; d++ {
			for s := 0; s < Slots; s++ {
				var cell []solver.BoolVar
				for _, u := range us {
					key := UnitKey{Teacher: u.Teacher, Course: u.Course.Code}
					cell = append(cell, v.X[key][d][s])
				}
				adapter.AddAtMostOne(cell...)
			}
		}
	}
}

// practical continuity: start[t,c,d,s]=1 ⇒ x[d,s]=1 ∧ x[d,s+1]=1;
// Σ_{d,s} start[t,c,d,s] = P(t,c)/2.
func postPracticalContinuity(adapter *solver.Adapter, v *Variables, units []derive.Unit) {
	for _, u := range units {
		if !u.NeedsConsecutive {
			continue
		}
		key := UnitKey{Teacher: u.Teacher, Course: u.Course.Code}
		x := v.X[key]
		start := v.Start[key]

		var allStarts []solver.BoolVar
		for d := 0; d < Days; d++ {
			for s := 0; s < Slots-1; s++ {
				adapter.AddImplication(start[d][s], x[d][s])
				adapter.AddImplication(start[d][s], x[d][s+1])
				allStarts = append(allStarts, start[d][s])
			}
		}
		adapter.AddLinear(allStarts, solver.OpEqual, int64(u.Practical/2))
	}
}

// teaches[t,d,s] := OR_c x[t,c,d,s].
func postTeachesLinks(adapter *solver.Adapter, v *Variables, byTeacher map[string][]derive.Unit) {
	for t, us := range byTeacher {
		teaches := v.Teaches[t]
		for d := 0; d < Days; d++ {
			for s := 0; s < Slots; s++ {
				var lits []solver.BoolVar
				for _, u := range us {
					key := UnitKey{Teacher: u.Teacher, Course: u.Course.Code}
					lits = append(lits, v.X[key][d][s])
				}
				adapter.AddReifiedOr(teaches[d][s], lits...)
			}
		}
	}
}

// slot-type derivation: usesCat[t,d,k] := OR_{γ(s)=k} teaches[t,d,s]; slotType derived by
// priority (Evening > Afternoon > Morning, default Morning).
//
// Returns, per teacher and day, a reified "slotType[t,d] == k" indicator
// for each k — built once here and reused by the slot-type diversity,
// intra-type free slot, and no-evening-then-morning constraints rather
// than re-derived per constraint.
func postSlotTypeDerivation(adapter *solver.Adapter, v *Variables, byTeacher map[string][]derive.Unit) map[string][Days][3]solver.BoolVar {
	dayIsType := make(map[string][Days][3]solver.BoolVar)

	for t := range byTeacher {
		teaches := v.Teaches[t]
		usesCat := v.UsesCat[t]
		slotType := v.SlotType[t]

		for d := 0; d < Days; d++ {
			for _, k := range categories {
				var lits []solver.BoolVar
				for s := 0; s < Slots; s++ {
					if Category(s) == k {
						lits = append(lits, teaches[d][s])
					}
				}
				adapter.AddReifiedOr(usesCat[d][k], lits...)
			}

			// Priority: Evening beats Afternoon beats Morning. The
			// three cases are mutually exclusive and jointly
			// exhaustive over (usesCat[Evening], usesCat[Afternoon]),
			// so exactly one of isB/isC/isA is true by construction —
			// no separate exactly-one constraint is needed.
			isB := usesCat[d][CategoryEvening]
			isC := adapter.AddBoolVar(t + "/isC")
			isA := adapter.AddBoolVar(t + "/isA")
			adapter.AddReifiedAnd(isC, usesCat[d][CategoryEvening].Not(), usesCat[d][CategoryAfternoon])
			adapter.AddReifiedAnd(isA, usesCat[d][CategoryEvening].Not(), usesCat[d][CategoryAfternoon].Not())

			// slotType is literally max_k(k · usesCat[d][k]): the
			// category indices (0 Morning, 1 Afternoon, 2 Evening)
			// already match the SlotType encoding (A=0, C=1, B=2), so
			// the priority rule is a direct AddMaxEquality over three
			// per-category "weighted" integer variables.
			var catValue [3]solver.IntVar
			for _, k := range categories {
				cv := adapter.AddIntVar(fmt.Sprintf("catValue[%s,%d,%d]", t, d, k), 0, int64(k))
				adapter.AddReifiedIntEquality([]solver.BoolVar{usesCat[d][k]}, cv, int64(k))
				adapter.AddReifiedIntEquality([]solver.BoolVar{usesCat[d][k].Not()}, cv, 0)
				catValue[k] = cv
			}
			adapter.AddMaxEquality(slotType[d], catValue[0], catValue[1], catValue[2])

			var row [3]solver.BoolVar
			row[SlotTypeA] = isA
			row[SlotTypeB] = isB
			row[SlotTypeC] = isC
			existing := dayIsType[t]
			existing[d] = row
			dayIsType[t] = existing
		}
	}

	return dayIsType
}

// slot-type diversity: each slotType value occurs on 1 or 2 days per teacher.
func postSlotTypeDiversity(adapter *solver.Adapter, v *Variables, dayIsType map[string][Days][3]solver.BoolVar) {
	for _, days := range dayIsType {
		for _, k := range [3]int{SlotTypeA, SlotTypeB, SlotTypeC} {
			var lits []solver.BoolVar
			for d := 0; d < Days; d++ {
				lits = append(lits, days[d][k])
			}
			adapter.AddLinear(lits, solver.OpGreaterOrEqual, 1)
			adapter.AddLinear(lits, solver.OpLessOrEqual, 2)
		}
	}
}

// intra-type free slot: each working window leaves at least one free slot at its edge.
func postIntraTypeFreeSlot(adapter *solver.Adapter, v *Variables, dayIsType map[string][Days][3]solver.BoolVar) {
	for t, days := range dayIsType {
		teaches := v.Teaches[t]
		for d := 0; d < Days; d++ {
			isA := days[d][SlotTypeA]
			isB := days[d][SlotTypeB]
			isC := days[d][SlotTypeC]

			adapter.AddReifiedImplication(isA, []solver.BoolVar{teaches[d][3], teaches[d][4], teaches[d][5]}, solver.OpLessOrEqual, 2)
			adapter.AddReifiedImplication(isB, []solver.BoolVar{teaches[d][1], teaches[d][2], teaches[d][3]}, solver.OpLessOrEqual, 2)
			adapter.AddReifiedImplication(isC, []solver.BoolVar{teaches[d][0], teaches[d][1]}, solver.OpLessOrEqual, 1)
		}
	}
}

// consecutive cap: no window of K+1=3 consecutive slots is fully occupied.
func postConsecutiveCap(adapter *solver.Adapter, v *Variables, byTeacher map[string][]derive.Unit, opts Options) {
	window := opts.MaxConsecutiveSlots + 1
	for t := range byTeacher {
		teaches := v.Teaches[t]
		for d := 0; d < Days; d++ {
			for s := 0; s+window <= Slots; s++ {
				adapter.AddLinear(teaches[d][s:s+window], solver.OpLessOrEqual, int64(opts.MaxConsecutiveSlots))
			}
		}
	}
}

// daily load cap: Σ_s teaches[t,d,s] <= MaxDailyLoad.
func postDailyLoad(adapter *solver.Adapter, v *Variables, byTeacher map[string][]derive.Unit, opts Options) {
	for t := range byTeacher {
		teaches := v.Teaches[t]
		for d := 0; d < Days; d++ {
			adapter.AddLinear(teaches[d][:], solver.OpLessOrEqual, int64(opts.MaxDailyLoad))
		}
	}
}

// mandatory off day: at least one of Monday or Saturday is fully free.
func postMandatoryOffDay(adapter *solver.Adapter, v *Variables, byTeacher map[string][]derive.Unit) {
	for t := range byTeacher {
		teaches := v.Teaches[t]
		monToFri := v.MonToFri[t]
		adapter.AddReifiedImplication(monToFri, teaches[Days-1][:], solver.OpEqual, 0)
		adapter.AddReifiedImplication(monToFri.Not(), teaches[0][:], solver.OpEqual, 0)
	}
}

// morning-only courses never use a non-morning slot.
func postMorningOnly(adapter *solver.Adapter, v *Variables, units []derive.Unit, opts Options) {
	for _, u := range units {
		if !u.IsMorningOnly {
			continue
		}
		key := UnitKey{Teacher: u.Teacher, Course: u.Course.Code}
		x := v.X[key]
		for d := 0; d < Days; d++ {
			for s := 0; s < Slots; s++ {
				if !opts.isMorningSlot(s) {
					adapter.AddLinear([]solver.BoolVar{x[d][s]}, solver.OpEqual, 0)
				}
			}
		}
	}
}

// batch-split mutual exclusion: an oversize lab (registration=60) is derived
// into two sibling units sharing a BatchGroup. Both land on the same
// teacher, so postOneCoursePerSlot already keeps them out of the same cell —
// this constraint restates that exclusion explicitly per the pair, rather
// than leaving it as an incidental consequence of a different constraint.
func postBatchMutualExclusion(adapter *solver.Adapter, v *Variables, byTeacher map[string][]derive.Unit) {
	for _, us := range byTeacher {
		groups := make(map[string][]derive.Unit)
		for _, u := range us {
			if u.IsBatchSplit {
				groups[u.BatchGroup] = append(groups[u.BatchGroup], u)
			}
		}
		for _, pair := range groups {
			if len(pair) != 2 {
				continue
			}
			x1 := v.X[UnitKey{Teacher: pair[0].Teacher, Course: pair[0].Course.Code}]
			x2 := v.X[UnitKey{Teacher: pair[1].Teacher, Course: pair[1].Course.Code}]
			for d := 0; d < Days; d++ {
				for s := 0; s < Slots; s++ {
					adapter.AddAtMostOne(x1[d][s], x2[d][s])
				}
			}
		}
	}
}

// no-evening-then-morning: an Evening day is never immediately followed by a Morning day.
// dayIsType[t][d][SlotTypeB] is already a fully reified "today is
// Evening" indicator (derived in postSlotTypeDerivation), so the rule is
// a single half-reified implication on tomorrow's slotType.
func postNoEveningThenMorning(adapter *solver.Adapter, v *Variables, dayIsType map[string][Days][3]solver.BoolVar) {
	for t, days := range dayIsType {
		slotType := v.SlotType[t]
		for d := 0; d < Days-1; d++ {
			isEveningToday := days[d][SlotTypeB]
			adapter.AddReifiedIntNotEqual([]solver.BoolVar{isEveningToday}, slotType[d+1], SlotTypeA)
		}
	}
}
