// Package cca defines the pluggable congestion-control interface a Sender
// consults to size its window and inter-send spacing (spec.md §4.7).
// Concrete policies (delay-multiplier, rule-tree "Remy", neural-stochastic
// "RemyR") live in sibling packages so this package stays a pure
// dependency boundary, mirroring the teacher's own CCA interface
// (heistp-scim/cca.go) generalized to the windowed-cwnd contract spec.md
// requires instead of the teacher's AIMD-only reactToCE/reactToSCE/grow
// shape.
package cca

import "github.com/heistp/flowforge/internal/quantities"

// CCA is a stateful per-flow congestion controller.
type CCA interface {
	// InitialCwnd returns the window to use immediately on Enable.
	InitialCwnd(now quantities.Time) uint32

	// NextTick returns the time the CCA itself next wants to run (e.g. to
	// pace a send), or ok=false if it is purely window-driven.
	NextTick(now quantities.Time) (next quantities.Time, ok bool)

	// AckReceived reports a received acknowledgement and returns the new
	// congestion window.
	AckReceived(sentTime, receivedTime quantities.Time) uint32

	// PacketSent reports a packet departure and returns the new window.
	PacketSent(sentTime quantities.Time) uint32

	// Tick is invoked when the CCA's own requested NextTick fires, and
	// returns the new window.
	Tick() uint32

	// IntersendDelay returns the CCA's currently-requested spacing between
	// successive sends, used by the Sender's send-rate gate (§4.3).
	IntersendDelay() quantities.TimeSpan
}

// Factory constructs a fresh CCA instance for one flow. Trainers and the
// evaluation harness pass a Factory rather than a CCA so each sampled
// network gets independently-seeded, non-shared CCA state (§5).
type Factory interface {
	NewCCA() CCA
}

// FactoryFunc adapts a plain function to Factory.
type FactoryFunc func() CCA

// NewCCA implements Factory.
func (f FactoryFunc) NewCCA() CCA { return f() }
