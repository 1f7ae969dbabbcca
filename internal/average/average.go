// Package average provides the running-mean and EWMA accumulators used
// throughout flowforge to fold per-packet and per-network samples into
// scalar flow properties and evaluation utilities. It generalizes the
// original Rust implementation's Average trait family
// (original_source/src/average.rs) and Mean/EWMA meters
// (original_source/src/meters.rs) into plain Go, since Go's generics don't
// support the arithmetic trait bounds the Rust version leans on: accumulate
// as (sum, count) pairs instead of folding through a type's own Add/Div.
package average

import "errors"

// NoItems is returned by Mean.Value when no samples were recorded,
// corresponding to the original's NoItems sentinel (average.rs).
var NoItems = errors.New("average: no items recorded")

// Mean accumulates a running arithmetic mean of float64 samples.
type Mean struct {
	sum   float64
	count int
}

// Record folds one more sample into the mean.
func (m *Mean) Record(v float64) {
	m.sum += v
	m.count++
}

// Value returns the current mean, or NoItems if nothing has been recorded.
func (m *Mean) Value() (float64, error) {
	if m.count == 0 {
		return 0, NoItems
	}
	return m.sum / float64(m.count), nil
}

// Count returns the number of samples recorded so far.
func (m *Mean) Count() int { return m.count }

// EWMA is an exponentially-weighted moving average with a fixed update
// weight, matching meters.rs's EWMA<T>: the first update seeds the value
// exactly, and each later update blends it in at updateWeight.
type EWMA struct {
	updateWeight float64
	current      float64
	have         bool
}

// NewEWMA returns an EWMA with the given update weight in (0, 1].
func NewEWMA(updateWeight float64) EWMA {
	return EWMA{updateWeight: updateWeight}
}

// Update folds value in and returns the new current value.
func (e *EWMA) Update(value float64) float64 {
	if !e.have {
		e.current = value
		e.have = true
		return e.current
	}
	e.current = (1-e.updateWeight)*e.current + e.updateWeight*value
	return e.current
}

// Value returns the current value and whether at least one sample has been
// recorded.
func (e *EWMA) Value() (float64, bool) { return e.current, e.have }

// MeanOf folds a slice of float64 samples directly into a mean, for callers
// (e.g. the evaluation harness aggregating per-network utilities) that
// already have every sample in hand rather than streaming it through
// Record.
func MeanOf(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, NoItems
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}
