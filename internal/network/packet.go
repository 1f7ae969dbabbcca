// Package network implements the reusable network component library of
// spec.md §4.2-§4.6: Link, Sender, Toggler, Bouncer, Ticker. Each is a
// simulation.Component, following the same Handler/Starter/Dinger-shaped
// split the teacher (heistp-scim) uses for its Iface/Delay/Receiver, but
// restructured onto spec.md §4.1's explicit tick()/receive() contract and
// typed destination addresses instead of the teacher's goroutine-per-node
// channel model.
package network

import (
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simulation"
)

// Address is the destination a component sends Messages to. It is a plain
// alias for simulation.ComponentId; the type name documents intent at call
// sites (mirrors the teacher's nodeID while matching spec.md §3's
// terminology).
type Address = simulation.ComponentId

// Packet is a simulated network packet (§3 "Packet"). Its payload is
// immutable once created; the next hop is derived from Destination by
// whichever component currently holds it.
type Packet struct {
	Seq         uint64
	Source      Address
	Destination Address
	SentTime    quantities.Time
}

// Size is the fixed quantum every packet occupies on the wire (§3: "Size is
// a constant (1 packet = 1400 B)").
const Size = quantities.PacketSize
