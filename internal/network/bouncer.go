package network

import (
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simulation"
)

// Bouncer swaps a packet's source and destination and forwards it back to
// the link, closing the round-trip loop between a Sender and its receiver
// (§4.5). It never self-ticks.
type Bouncer struct {
	link Address
}

var _ simulation.Component = (*Bouncer)(nil)

// NewBouncer returns a Bouncer that forwards bounced packets to link.
func NewBouncer(link Address) *Bouncer { return &Bouncer{link: link} }

// Receive implements simulation.Component.
func (b *Bouncer) Receive(payload any, now quantities.Time) []simulation.Message {
	pkt, ok := payload.(Packet)
	if !ok {
		panic("network: Bouncer received a non-Packet payload")
	}
	pkt.Source, pkt.Destination = pkt.Destination, pkt.Source
	return []simulation.Message{{Destination: b.link, Payload: pkt}}
}

// NextTick implements simulation.Component: Bouncer never self-ticks.
func (b *Bouncer) NextTick(now quantities.Time) (quantities.Time, bool) { return 0, false }

// Tick implements simulation.Component; never invoked since NextTick never
// fires.
func (b *Bouncer) Tick(now quantities.Time) []simulation.Message {
	panic("network: Bouncer ticked but never schedules one")
}
