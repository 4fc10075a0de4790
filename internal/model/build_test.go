package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusops/timetable-engine/internal/catalogue"
	"github.com/campusops/timetable-engine/internal/derive"
	"github.com/campusops/timetable-engine/internal/solver"
)

func unitsFor(t *testing.T, rows []catalogue.Row) []derive.Unit {
	t.Helper()
	cat, err := catalogue.Load(rows)
	require.NoError(t, err)
	plan, err := derive.Build(cat, derive.DefaultOptions())
	require.NoError(t, err)
	return plan.Units
}

func TestS1TrivialFeasible(t *testing.T) {
	units := unitsFor(t, []catalogue.Row{
		{Faculty: "T1", CourseCode: "K1", LectureHours: 2, Credits: 2},
	})

	adapter, v := Build(units, DefaultOptions(), nil)
	res, err := adapter.Solve(context.Background(), 10*time.Second)
	require.NoError(t, err)
	require.Contains(t, []solver.Status{solver.StatusOptimal, solver.StatusFeasible}, res.Status)

	key := UnitKey{Teacher: "T1", Course: "K1"}
	x := v.X[key]
	total := 0
	for d := 0; d < Days; d++ {
		for s := 0; s < Slots; s++ {
			if res.BoolValue(x[d][s]) {
				total++
			}
		}
	}
	assert.Equal(t, 2, total)
}

func TestS2PracticalBlock(t *testing.T) {
	units := unitsFor(t, []catalogue.Row{
		{Faculty: "T1", CourseCode: "K1", LectureHours: 1, PracticalHours: 2, Credits: 3},
	})

	adapter, v := Build(units, DefaultOptions(), nil)
	res, err := adapter.Solve(context.Background(), 10*time.Second)
	require.NoError(t, err)
	require.Contains(t, []solver.Status{solver.StatusOptimal, solver.StatusFeasible}, res.Status)

	key := UnitKey{Teacher: "T1", Course: "K1"}
	starts := 0
	for d := 0; d < Days; d++ {
		for s := 0; s < Slots-1; s++ {
			if res.BoolValue(v.Start[key][d][s]) {
				starts++
			}
		}
	}
	assert.Equal(t, 1, starts)
}

func TestS3MorningOnly(t *testing.T) {
	units := unitsFor(t, []catalogue.Row{
		{Faculty: "T1", CourseCode: "CE23331", PracticalHours: 2, Credits: 3},
	})

	adapter, v := Build(units, DefaultOptions(), nil)
	res, err := adapter.Solve(context.Background(), 10*time.Second)
	require.NoError(t, err)
	require.Contains(t, []solver.Status{solver.StatusOptimal, solver.StatusFeasible}, res.Status)

	key := UnitKey{Teacher: "T1", Course: "CE23331"}
	for d := 0; d < Days; d++ {
		for s := 0; s < Slots; s++ {
			if res.BoolValue(v.X[key][d][s]) {
				assert.LessOrEqual(t, s, 2, "morning-only course used slot %d", s)
			}
		}
	}
}

func TestBatchSplitBatchesNeverShareACell(t *testing.T) {
	units := unitsFor(t, []catalogue.Row{
		{Faculty: "T1", CourseCode: "CS201", PracticalHours: 4, Credits: 3, Registration: 60, HasRegistration: true},
	})
	require.Len(t, units, 2)

	adapter, v := Build(units, DefaultOptions(), nil)
	res, err := adapter.Solve(context.Background(), 10*time.Second)
	require.NoError(t, err)
	require.Contains(t, []solver.Status{solver.StatusOptimal, solver.StatusFeasible}, res.Status)

	k1 := UnitKey{Teacher: "T1", Course: "CS201-B1"}
	k2 := UnitKey{Teacher: "T1", Course: "CS201-B2"}
	x1, x2 := v.X[k1], v.X[k2]
	for d := 0; d < Days; d++ {
		for s := 0; s < Slots; s++ {
			assert.False(t, res.BoolValue(x1[d][s]) && res.BoolValue(x2[d][s]), "day %d slot %d double-booked", d, s)
		}
	}
}

func TestS6Infeasible(t *testing.T) {
	units := unitsFor(t, []catalogue.Row{
		{Faculty: "T1", CourseCode: "K1", LectureHours: 26, Credits: 5},
	})

	adapter, _ := Build(units, DefaultOptions(), nil)
	res, err := adapter.Solve(context.Background(), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusInfeasible, res.Status)
}

// TestUniversalInvariantsUnderModerateLoad checks the no-3-consecutive,
// one-course-per-slot, mandatory-off-day, slot-type-diversity and
// no-evening-then-morning rules together against one moderately loaded
// teacher, where a trivial single-course scenario wouldn't engage
// slot-type diversity, the consecutive cap, or the evening/morning rule.
func TestUniversalInvariantsUnderModerateLoad(t *testing.T) {
	units := unitsFor(t, []catalogue.Row{
		{Faculty: "T1", CourseCode: "K1", LectureHours: 4, Credits: 3},
		{Faculty: "T1", CourseCode: "K2", LectureHours: 4, Credits: 3},
		{Faculty: "T1", CourseCode: "K3", TutorialHours: 4, Credits: 2},
	})

	adapter, v := Build(units, DefaultOptions(), nil)
	res, err := adapter.Solve(context.Background(), 20*time.Second)
	require.NoError(t, err)
	require.Contains(t, []solver.Status{solver.StatusOptimal, solver.StatusFeasible}, res.Status)

	teaches := v.Teaches["T1"]
	for d := 0; d < Days; d++ {
		// Invariant 3: no 3 consecutive occupied slots.
		for s := 0; s+3 <= Slots; s++ {
			occupied := 0
			for i := 0; i < 3; i++ {
				if res.BoolValue(teaches[d][s+i]) {
					occupied++
				}
			}
			assert.LessOrEqual(t, occupied, 2, "day %d window starting %d", d, s)
		}
	}

	// Invariant 2: at most one course per cell (checked directly on X).
	byKey := map[UnitKey][Days][Slots]solver.BoolVar{}
	for key, x := range v.X {
		byKey[key] = x
	}
	for d := 0; d < Days; d++ {
		for s := 0; s < Slots; s++ {
			occupants := 0
			for _, x := range byKey {
				if res.BoolValue(x[d][s]) {
					occupants++
				}
			}
			assert.LessOrEqual(t, occupants, 1)
		}
	}

	// Invariant 5: Monday or Saturday fully empty.
	mondayEmpty, saturdayEmpty := true, true
	for s := 0; s < Slots; s++ {
		if res.BoolValue(teaches[0][s]) {
			mondayEmpty = false
		}
		if res.BoolValue(teaches[Days-1][s]) {
			saturdayEmpty = false
		}
	}
	assert.True(t, mondayEmpty || saturdayEmpty)

	// Invariant 6 and 8: each slotType occurs on 1-2 days, and no
	// Evening day is immediately followed by a Morning day.
	counts := map[int64]int{}
	slotTypes := make([]int64, Days)
	for d := 0; d < Days; d++ {
		st := res.IntValue(v.SlotType["T1"][d])
		slotTypes[d] = st
		counts[st]++
	}
	for _, st := range []int64{SlotTypeA, SlotTypeB, SlotTypeC} {
		assert.GreaterOrEqual(t, counts[st], 1)
		assert.LessOrEqual(t, counts[st], 2)
	}
	for d := 0; d < Days-1; d++ {
		if slotTypes[d] == SlotTypeB {
			assert.NotEqual(t, int64(SlotTypeA), slotTypes[d+1], "day %d", d)
		}
	}
}
