package model

// Options carries the configurable thresholds for the solve, plus a
// few behaviours that were left ambiguous upstream and are pinned here
// as flippable booleans for a downstream requirement change.
type Options struct {
	MaxDailyLoad        int
	MaxConsecutiveSlots int
	MorningSlots        []int

	// EnforceNoEveningThenMorning pins the evening-then-morning rule as
	// a hard constraint rather than an advisory one.
	EnforceNoEveningThenMorning bool

	// StrictEvenPractical rejects odd practical-hour counts during
	// derivation (internal/derive) rather than rounding; Run copies this
	// onto derive.Options before calling derive.Build.
	StrictEvenPractical bool
}

// DefaultOptions mirrors the defaults.
func DefaultOptions() Options {
	return Options{
		MaxDailyLoad:                5,
		MaxConsecutiveSlots:         2,
		MorningSlots:                []int{0, 1, 2},
		EnforceNoEveningThenMorning: true,
		StrictEvenPractical:         true,
	}
}

// isMorningSlot reports whether slot s is in the configured morning set,
// used for morning-only course placement.
func (o Options) isMorningSlot(s int) bool {
	for _, m := range o.MorningSlots {
		if m == s {
			return true
		}
	}
	return false
}
