// Package model builds the CP-SAT decision variables and hard constraints
// for a weekly teaching timetable on top of a solver.Adapter.
// Everything here is solver-agnostic: the package never imports cpmodel
// directly, only internal/solver's re-exported BoolVar/IntVar handles.
package model

// Grid dimensions, fixed by the design: six teaching days,
// seven slots per day.
const (
	Days  = 6
	Slots = 7
)

// Category indices, by priority: Evening outranks
// Afternoon outranks Morning.
const (
	CategoryMorning   = 0
	CategoryAfternoon = 1
	CategoryEvening   = 2
)

// SlotType values. Note the deliberate non-sequential mapping: B is
// the numeric value 2 and C is 1, matching the "Evening > Afternoon >
// Morning" priority the slot-type derivation constraint relies on.
const (
	SlotTypeA = 0 // "8-3"
	SlotTypeC = 1 // "12-7"
	SlotTypeB = 2 // "10-5"
)

// SlotTypeLabel renders the human-facing label the Renderer prints.
func SlotTypeLabel(slotType int) string {
	switch slotType {
	case SlotTypeA:
		return "A (8-3)"
	case SlotTypeB:
		return "B (10-5)"
	case SlotTypeC:
		return "C (12-7)"
	default:
		return "?"
	}
}

// Category returns the slot-category partition: {0,1,2} Morning,
// {3,4} Afternoon, {5,6} Evening.
func Category(slot int) int {
	switch {
	case slot <= 2:
		return CategoryMorning
	case slot <= 4:
		return CategoryAfternoon
	default:
		return CategoryEvening
	}
}

// categories is the fixed enumeration used whenever code needs to range
// over all three, in priority order.
var categories = [3]int{CategoryMorning, CategoryAfternoon, CategoryEvening}
