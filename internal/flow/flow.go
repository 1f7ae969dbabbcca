// Package flow holds per-flow measurement: the running throughput and RTT
// a Sender accumulates from its acks, and the aggregate FlowProperties the
// evaluation harness and utility functions consume (spec.md §4.3 "ack rule",
// §4.9). Grounded on the teacher's receiver.go/jitter.go EWMA style and the
// original's meters.rs InfoRateMeter, but reduced to the two scalars
// spec.md actually asks for.
package flow

import (
	"github.com/heistp/flowforge/internal/average"
	"github.com/heistp/flowforge/internal/quantities"
)

// Properties is the average throughput and RTT spec.md §4.9 collects per
// flow at the end of a run.
type Properties struct {
	Throughput quantities.InformationRate
	RTT        quantities.TimeSpan
}

// NoPacketsAcked is returned when a flow's Properties are requested but it
// never received an ack (spec.md §7 sentinel errors).
var NoPacketsAcked = average.NoItems

// Meter accumulates the size/RTT samples a Sender records on every ack
// (§4.3 "ack rule": "meter the flow with (size, now - sent_time, now)").
type Meter struct {
	bytes     quantities.Information
	rtt       average.Mean
	firstTime quantities.Time
	lastTime  quantities.Time
	have      bool
}

// NewMeter returns an empty Meter.
func NewMeter() *Meter { return &Meter{} }

// Record folds one ack sample in: size bytes delivered, the RTT observed,
// and the time the ack was processed.
func (m *Meter) Record(size quantities.Information, rtt quantities.TimeSpan, now quantities.Time) {
	if !m.have {
		m.firstTime = now
		m.have = true
	}
	m.bytes += size
	m.rtt.Record(rtt.Seconds())
	m.lastTime = now
}

// Properties returns the meter's average throughput (total bytes over the
// span between first and last ack) and average RTT, or NoPacketsAcked if no
// ack was ever recorded.
func (m *Meter) Properties() (Properties, error) {
	if !m.have {
		return Properties{}, NoPacketsAcked
	}
	rtt, err := m.rtt.Value()
	if err != nil {
		return Properties{}, err
	}
	span := m.lastTime.Sub(m.firstTime)
	var rate quantities.InformationRate
	if span > 0 {
		rate = m.bytes.DivTimeSpan(span)
	}
	return Properties{
		Throughput: rate,
		RTT:        quantities.SecondsSpan(rtt),
	}, nil
}

// AverageProperties folds multiple Properties samples (e.g. one per flow in
// a network, or one per network in an evaluation sweep) into their
// coordinate-wise mean, preserving NoPacketsAcked semantics: if none of the
// inputs are present, the average is NoPacketsAcked too (§4.9 "Aggregate ...
// If no network produced any active flow").
func AverageProperties(props []Properties) (Properties, error) {
	if len(props) == 0 {
		return Properties{}, NoPacketsAcked
	}
	var throughput, rtt float64
	for _, p := range props {
		throughput += p.Throughput.BitsPerSecond()
		rtt += p.RTT.Seconds()
	}
	n := float64(len(props))
	return Properties{
		Throughput: quantities.InformationRate(throughput / n),
		RTT:        quantities.SecondsSpan(rtt / n),
	}, nil
}
