package network

import (
	"github.com/heistp/flowforge/internal/cca"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simrand"
	"github.com/heistp/flowforge/internal/simulation"
)

// Toggler produces an alternating Enable/Disable stream for its target
// Sender, with dwell times drawn from independent positive distributions
// (§4.4). It has no Receive behavior: like the teacher's Delay component it
// only self-ticks, but unlike Delay it owns its own schedule rather than
// reacting to inbound packets.
type Toggler struct {
	target  Address
	ccaFac  cca.Factory
	onTime  simrand.Distribution
	offTime simrand.Distribution
	rng     *simrand.Rng

	enabled bool
	next    quantities.Time
	haveNext bool
}

var _ simulation.Component = (*Toggler)(nil)

// NewToggler returns a Toggler driving target, drawing dwell times from
// onTime/offTime using rng. The first toggle is an Enable scheduled at
// simStart + sample(offTime) (§4.4).
func NewToggler(target Address, ccaFac cca.Factory, onTime, offTime simrand.Distribution, rng *simrand.Rng, simStart quantities.Time) *Toggler {
	return &Toggler{
		target:   target,
		ccaFac:   ccaFac,
		onTime:   onTime,
		offTime:  offTime,
		rng:      rng,
		enabled:  false,
		next:     simStart.Add(quantities.SecondsSpan(offTime.Sample(rng))),
		haveNext: true,
	}
}

// Receive implements simulation.Component; Toggler accepts no messages.
func (t *Toggler) Receive(payload any, now quantities.Time) []simulation.Message {
	panic("network: Toggler does not receive messages")
}

// NextTick implements simulation.Component.
func (t *Toggler) NextTick(now quantities.Time) (quantities.Time, bool) {
	return t.next, t.haveNext
}

// Tick implements simulation.Component: fires the next toggle and samples
// the following one from whichever distribution now governs the dwell
// (§4.4 "Each toggle sets the next toggle to now + sample(active_dist)").
func (t *Toggler) Tick(now quantities.Time) []simulation.Message {
	var msg Toggle
	var dist simrand.Distribution
	if t.enabled {
		msg = Toggle{Enable: false}
		dist = t.offTime
	} else {
		msg = Toggle{Enable: true, CCA: t.ccaFac.NewCCA()}
		dist = t.onTime
	}
	t.enabled = !t.enabled
	t.next = now.Add(quantities.SecondsSpan(dist.Sample(t.rng)))
	t.haveNext = true
	return []simulation.Message{{Destination: t.target, Payload: msg}}
}
