package ruletree

import "github.com/heistp/flowforge/internal/quantities"

// Action is the congestion-control action stored at a rule-tree leaf (§3
// "Rule tree": Action = {window_multiplier, window_increment,
// intersend_delay}).
type Action struct {
	WindowMultiplier float64             `json:"window_multiplier"`
	WindowIncrement  int32               `json:"window_increment"`
	IntersendDelay   quantities.TimeSpan `json:"intersend_delay"`
}

// DefaultAction is the starting action for a freshly-built single-leaf
// tree: keep the current cwnd and add one packet per ack (multiplier 1,
// increment 1), with sends spaced 1ms apart.
var DefaultAction = Action{
	WindowMultiplier: 1.0,
	WindowIncrement:  1,
	IntersendDelay:   quantities.MillisecondsSpan(1),
}

// ApplyToCWND computes the new congestion window from applying a to the
// current cwnd, per §4.7.2 step 6: floor(cwnd * multiplier) + increment,
// clamped to [0, 1_000_000]. Per spec.md §9's resolved Open Question, the
// clamp happens on the float64 product before the cast to avoid
// implementation-defined truncation on overflow.
func (a Action) ApplyToCWND(cwnd uint32) uint32 {
	const maxCWND = 1_000_000
	scaled := float64(cwnd) * a.WindowMultiplier
	if scaled < 0 {
		scaled = 0
	}
	if scaled > maxCWND {
		scaled = maxCWND
	}
	next := int64(scaled) + int64(a.WindowIncrement)
	if next < 0 {
		next = 0
	}
	if next > maxCWND {
		next = maxCWND
	}
	return uint32(next)
}
