package network

import (
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simulation"
)

// Observer is invoked by Ticker on every tick. It takes no arguments beyond
// now because observers reach into shared evaluation state (e.g. the
// counting policy or per-flow meters) by closure rather than by payload.
type Observer func(now quantities.Time)

// Ticker fires a user-provided observer every interval of virtual time,
// starting at simStart (§4.6). It never receives messages.
type Ticker struct {
	interval quantities.TimeSpan
	next     quantities.Time
	observe  Observer
}

var _ simulation.Component = (*Ticker)(nil)

// NewTicker returns a Ticker that calls observe every interval, starting at
// simStart.
func NewTicker(interval quantities.TimeSpan, simStart quantities.Time, observe Observer) *Ticker {
	return &Ticker{interval: interval, next: simStart, observe: observe}
}

// Receive implements simulation.Component; Ticker accepts no messages.
func (t *Ticker) Receive(payload any, now quantities.Time) []simulation.Message {
	panic("network: Ticker does not receive messages")
}

// NextTick implements simulation.Component.
func (t *Ticker) NextTick(now quantities.Time) (quantities.Time, bool) {
	return t.next, true
}

// Tick implements simulation.Component.
func (t *Ticker) Tick(now quantities.Time) []simulation.Message {
	t.observe(now)
	t.next = now.Add(t.interval)
	return nil
}
