// Package quantities holds the numeric types shared across the simulator:
// virtual time, durations, and information (byte/bit) quantities, along
// with their SI-prefixed textual encoding for config files and DNA headers.
package quantities

import (
	"fmt"
	"math"
)

// Time is an absolute instant of virtual simulation time, in seconds,
// measured from simulation start. It is a 64-bit-precision real scalar, as
// required by the simulator's determinism guarantees.
type Time float64

// SimulationStart is the fixed origin all Time values are measured from.
const SimulationStart Time = 0

// TimeSpan is a signed duration between two Time values, in seconds.
type TimeSpan float64

// Seconds returns t as a Go float64 count of seconds.
func (t Time) Seconds() float64 { return float64(t) }

// Add returns t advanced by d.
func (t Time) Add(d TimeSpan) Time { return t + Time(d) }

// Sub returns the TimeSpan from other to t (t - other).
func (t Time) Sub(other Time) TimeSpan { return TimeSpan(t - other) }

// Before reports whether t is strictly earlier than other under IEEE total
// order (NaN is never produced by the simulator, so this is a plain <).
func (t Time) Before(other Time) bool { return t < other }

// After reports whether t is strictly later than other.
func (t Time) After(other Time) bool { return t > other }

func (t Time) String() string { return fmt.Sprintf("%.9fs", float64(t)) }

// Seconds returns d as a Go float64 count of seconds.
func (d TimeSpan) Seconds() float64 { return float64(d) }

// Milliseconds returns d as a Go float64 count of milliseconds.
func (d TimeSpan) Milliseconds() float64 { return float64(d) * 1e3 }

// Scale returns d scaled by the given dimensionless factor.
func (d TimeSpan) Scale(f float64) TimeSpan { return TimeSpan(f * float64(d)) }

// Add returns the sum of two TimeSpans.
func (d TimeSpan) Add(other TimeSpan) TimeSpan { return d + other }

// Sub returns the difference of two TimeSpans.
func (d TimeSpan) Sub(other TimeSpan) TimeSpan { return d - other }

func (d TimeSpan) String() string { return fmt.Sprintf("%.9fs", float64(d)) }

// SecondsSpan constructs a TimeSpan from a plain float64 count of seconds.
func SecondsSpan(s float64) TimeSpan { return TimeSpan(s) }

// MillisecondsSpan constructs a TimeSpan from a plain float64 count of
// milliseconds.
func MillisecondsSpan(ms float64) TimeSpan { return TimeSpan(ms / 1e3) }

// PositiveInfinity is used by the discrete-event simulator driver to mean
// "no pending tick".
const PositiveInfinity = Time(math.MaxFloat64)

// Min returns the earlier of two Time values.
func Min(a, b Time) Time {
	if a < b {
		return a
	}
	return b
}

// Max returns the later of two Time values.
func Max(a, b Time) Time {
	if a > b {
		return a
	}
	return b
}
