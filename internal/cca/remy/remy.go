// Package remy implements the rule-tree CCA of spec.md §4.7.2, wrapping an
// internal/ruletree.Policy. Grounded on original_source's
// network/senders/remy.rs Behavior type (ack_ewma/send_ewma/rtt tracking,
// the window_multiplier/window_increment/clamp formula) and the teacher's
// cca.go interface shape, generalized from the teacher's reactToCE/grow
// AIMD hooks to the windowed cwnd/intersend_delay contract of
// internal/cca.CCA.
package remy

import (
	"github.com/heistp/flowforge/internal/average"
	"github.com/heistp/flowforge/internal/cca"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/ruletree"
	"github.com/heistp/flowforge/internal/simrand"
)

const ewmaWeight = 1.0 / 8

// rtt tracks the minimum and most recent round-trip time observed, used to
// form the point's dimensionless rtt_ratio coordinate (§4.7.2 step 3/4).
type rtt struct {
	min     quantities.TimeSpan
	current quantities.TimeSpan
	have    bool
}

func (r *rtt) update(sample quantities.TimeSpan) {
	r.current = sample
	if !r.have || sample < r.min {
		r.min = sample
	}
	r.have = true
}

func (r *rtt) ratio() float64 {
	if !r.have || r.min <= 0 {
		return 0
	}
	return r.current.Seconds() / r.min.Seconds()
}

// RepeatConfig optionally caches the last looked-up action for a sampled
// number of additional acks (§4.7.2 step 7 "repeat N times"), so a
// stochastic number of successive acks apply the same action without a
// fresh lookup.
type RepeatConfig struct {
	Distribution simrand.Distribution
	Rng          *simrand.Rng
}

// CCA implements cca.CCA by looking up actions in a ruletree.Policy keyed
// by the per-flow memory point.
type CCA struct {
	policy ruletree.Policy
	repeat *RepeatConfig

	ackEWMA  average.EWMA
	sendEWMA average.EWMA
	lastAck  quantities.Time
	haveAck  bool
	lastSend quantities.Time
	haveSend bool
	rtt      rtt

	cwnd           uint32
	intersendDelay quantities.TimeSpan

	repeatRemaining int
	cachedAction    ruletree.Action
	haveCached      bool
}

var _ cca.CCA = (*CCA)(nil)

// New returns a rule-tree CCA consulting policy, optionally repeating its
// last looked-up action for repeat.Distribution-sampled additional acks.
func New(policy ruletree.Policy, repeat *RepeatConfig) *CCA {
	return &CCA{
		policy:   policy,
		repeat:   repeat,
		ackEWMA:  average.NewEWMA(ewmaWeight),
		sendEWMA: average.NewEWMA(ewmaWeight),
	}
}

// InitialCwnd implements cca.CCA.
func (c *CCA) InitialCwnd(quantities.Time) uint32 {
	c.cwnd = 1
	return c.cwnd
}

// NextTick implements cca.CCA: the rule-tree CCA is purely ack-driven, so it
// never self-ticks.
func (c *CCA) NextTick(quantities.Time) (quantities.Time, bool) { return 0, false }

// Tick implements cca.CCA; never invoked since NextTick never fires.
func (c *CCA) Tick() uint32 { return c.cwnd }

// PacketSent implements cca.CCA: the rule-tree CCA does not react to sends
// directly (only to acks), so the window is unchanged.
func (c *CCA) PacketSent(quantities.Time) uint32 { return c.cwnd }

// IntersendDelay implements cca.CCA.
func (c *CCA) IntersendDelay() quantities.TimeSpan { return c.intersendDelay }

// AckReceived implements cca.CCA, following §4.7.2's numbered steps.
func (c *CCA) AckReceived(sentTime, receivedTime quantities.Time) uint32 {
	if c.haveAck {
		c.ackEWMA.Update(receivedTime.Sub(c.lastAck).Seconds())
	}
	if c.haveSend {
		c.sendEWMA.Update(sentTime.Sub(c.lastSend).Seconds())
	}
	c.lastAck, c.haveAck = receivedTime, true
	c.lastSend, c.haveSend = sentTime, true
	c.rtt.update(receivedTime.Sub(sentTime))

	ackEWMA, _ := c.ackEWMA.Value()
	sendEWMA, _ := c.sendEWMA.Value()
	p := ruletree.Point{
		AckEWMA:  ackEWMA * 1000, // seconds -> ms, matching the DNA storage convention
		SendEWMA: sendEWMA * 1000,
		RTTRatio: c.rtt.ratio(),
	}

	a := c.nextAction(p)
	c.applyAction(a)
	return c.cwnd
}

// nextAction returns the action to apply for this ack, consulting the
// repeat cache before falling back to a fresh policy lookup (§4.7.2 step
// 7).
func (c *CCA) nextAction(p ruletree.Point) ruletree.Action {
	if c.haveCached && c.repeatRemaining > 0 {
		c.repeatRemaining--
		return c.cachedAction
	}
	a := c.policy.Action(p)
	c.cachedAction, c.haveCached = a, true
	if c.repeat != nil {
		c.repeatRemaining = int(c.repeat.Distribution.Sample(c.repeat.Rng))
	}
	return a
}

func (c *CCA) applyAction(a ruletree.Action) {
	c.cwnd = a.ApplyToCWND(c.cwnd)
	c.intersendDelay = a.IntersendDelay
}

// Factory returns a cca.Factory that creates rule-tree CCAs wrapping
// policy. newRepeat, if non-nil, is called once per CCA instance so each
// flow gets its own independently-seeded repeat RNG.
func Factory(policy ruletree.Policy, newRepeat func() *RepeatConfig) cca.Factory {
	return cca.FactoryFunc(func() cca.CCA {
		var r *RepeatConfig
		if newRepeat != nil {
			r = newRepeat()
		}
		return New(policy, r)
	})
}
