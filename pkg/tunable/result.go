package tunable

import (
	"math"
	"time"
)

// DefaultName is the registry key every TunableOp must register first. The
// candidate behind it is the reference implementation: it computes the
// numerics-check baseline and is the fallback whenever no tuning decision
// exists.
const DefaultName = "Default"

// durationInfinite seeds the running-minimum comparison so any measured
// candidate beats it.
const durationInfinite = time.Duration(math.MaxInt64)

// ResultEntry records a tuning decision: which candidate won for a given
// (operation signature, params signature) pair and its measured mean
// per-call duration. A zero ResultEntry is the null decision.
type ResultEntry struct {
	Name     string
	Duration time.Duration
}

// NullEntry returns the "no decision" value.
func NullEntry() ResultEntry { return ResultEntry{} }

// DefaultEntry returns the explicit fallback decision: dispatch to the
// Default candidate without benchmarking.
func DefaultEntry() ResultEntry {
	return ResultEntry{Name: DefaultName, Duration: durationInfinite}
}

// IsNull reports whether no decision has been made.
func (e ResultEntry) IsNull() bool { return e.Name == "" }
