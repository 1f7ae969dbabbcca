// Package delaymultiplier implements the single-parameter CCA of
// spec.md §4.7.1: a fixed cwnd of 1 and an inter-send delay set to a
// multiple of an RTT EWMA. It is the simplest possible CCA, used both as a
// standalone trainable policy family (the bracket-and-bisect trainer in
// internal/trainer/delaymultiplier, supplementing original_source's
// src/trainers/delay_multiplier) and as the equivalence fixture for
// spec.md §8 scenario 4.
package delaymultiplier

import (
	"github.com/heistp/flowforge/internal/cca"
	"github.com/heistp/flowforge/internal/quantities"
)

// ewmaWeight is the fixed 1/8 weight used throughout flowforge for RTT and
// inter-arrival EWMAs (matching jitter.go's ewma-by-fraction style in the
// teacher, generalized to a named constant rather than its ad hoc jitter
// formula).
const ewmaWeight = 1.0 / 8

// CCA implements cca.CCA with a constant window and an RTT-proportional
// pacing delay.
type CCA struct {
	Multiplier float64

	rttEWMA        quantities.TimeSpan
	haveRTT        bool
	intersendDelay quantities.TimeSpan
	lastSend       quantities.Time
	haveLastSend   bool
}

// New returns a delay-multiplier CCA with the given multiplier.
func New(multiplier float64) *CCA {
	return &CCA{Multiplier: multiplier}
}

var _ cca.CCA = (*CCA)(nil)

// InitialCwnd implements cca.CCA: the window is always exactly one packet.
func (c *CCA) InitialCwnd(quantities.Time) uint32 { return 1 }

// NextTick implements cca.CCA: the CCA paces sends, so it reports the next
// permitted send time once one has been established.
func (c *CCA) NextTick(now quantities.Time) (quantities.Time, bool) {
	if !c.haveLastSend {
		return now, true
	}
	return c.lastSend.Add(c.intersendDelay), true
}

// AckReceived implements cca.CCA.
func (c *CCA) AckReceived(sentTime, receivedTime quantities.Time) uint32 {
	rtt := receivedTime.Sub(sentTime)
	if !c.haveRTT {
		c.rttEWMA = rtt
		c.haveRTT = true
	} else {
		c.rttEWMA = c.rttEWMA.Scale(1 - ewmaWeight).Add(rtt.Scale(ewmaWeight))
	}
	c.intersendDelay = c.rttEWMA.Scale(c.Multiplier)
	return 1
}

// PacketSent implements cca.CCA.
func (c *CCA) PacketSent(sentTime quantities.Time) uint32 {
	c.lastSend = sentTime
	c.haveLastSend = true
	return 1
}

// Tick implements cca.CCA.
func (c *CCA) Tick() uint32 { return 1 }

// IntersendDelay implements cca.CCA.
func (c *CCA) IntersendDelay() quantities.TimeSpan { return c.intersendDelay }

// Factory returns a cca.Factory that creates delay-multiplier CCAs with
// the given multiplier.
func Factory(multiplier float64) cca.Factory {
	return cca.FactoryFunc(func() cca.CCA { return New(multiplier) })
}
