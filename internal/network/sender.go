package network

import (
	"github.com/heistp/flowforge/internal/cca"
	"github.com/heistp/flowforge/internal/flow"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simulation"
)

// Toggle is the payload a Toggler sends a Sender to switch it between
// Enabled and Disabled (§4.3 "States", §4.4).
type Toggle struct {
	Enable bool
	CCA    cca.CCA // only meaningful when Enable is true
}

// senderState distinguishes the two Sender lifecycle phases (§4.3
// "States").
type senderState int

const (
	stateDisabled senderState = iota
	stateEnabled
)

// Sender maintains a monotone sequence number, obeys a congestion window and
// inter-send pacing, and delivers ack feedback to a pluggable CCA (§4.3).
// Modeled on the teacher's sender.go state machine, generalized from a fixed
// Reno/SCE CCA to the CCA interface and restructured onto Toggle-driven
// enable/disable instead of the teacher's always-on sender.
type Sender struct {
	self   Address // this sender's own address, embedded as Packet.Source
	link   Address // the Link component messages are sent to
	farEnd Address // the far-end address (a Bouncer) carried as Packet.Destination
	meter  *flow.Meter

	state senderState

	// Disabled state.
	packetsSent uint64

	// Enabled state.
	started     quantities.Time
	lastSend    quantities.Time
	greatestAck uint64
	cwnd        uint32
	currentCCA  cca.CCA
}

var _ simulation.Component = (*Sender)(nil)

// NewSender returns a new, initially Disabled Sender addressed as self. It
// sends Messages to link (the Link component that queues and serializes
// packets) carrying Packets addressed to farEnd (the Bouncer that closes
// the round trip), and meters acked flow properties into m.
func NewSender(self, link, farEnd Address, m *flow.Meter) *Sender {
	return &Sender{self: self, link: link, farEnd: farEnd, meter: m, state: stateDisabled}
}

// Receive implements simulation.Component. It accepts either a Toggle
// (enable/disable) or a Packet (an incoming ack).
func (s *Sender) Receive(payload any, now quantities.Time) []simulation.Message {
	switch v := payload.(type) {
	case Toggle:
		s.handleToggle(v, now)
	case Packet:
		s.handleAck(v, now)
	default:
		panic("network: Sender received an unrecognized payload")
	}
	return nil
}

func (s *Sender) handleToggle(t Toggle, now quantities.Time) {
	if t.Enable {
		s.currentCCA = t.CCA
		s.started = now
		s.lastSend = now
		s.greatestAck = s.packetsSent
		s.cwnd = t.CCA.InitialCwnd(now)
		s.state = stateEnabled
		return
	}
	// Disable preserves packets_sent (§4.3 "Disable reverts to Disabled
	// preserving packets_sent").
	s.state = stateDisabled
	s.currentCCA = nil
}

// handleAck implements the ack rule (§4.3 "ack rule"). Every ack that
// arrives while the sender is Disabled is discarded, and so is an ack for a
// packet whose sent_time predates the current enablement, matching
// [[discard-before-enable-uniformity]] (SPEC_FULL.md, Open Question
// resolution 3).
func (s *Sender) handleAck(pkt Packet, now quantities.Time) {
	if s.state != stateEnabled || pkt.SentTime.Before(s.started) {
		return
	}
	s.meter.Record(Size, now.Sub(pkt.SentTime), now)
	s.cwnd = s.currentCCA.AckReceived(pkt.SentTime, now)
	if pkt.Seq > s.greatestAck {
		s.greatestAck = pkt.Seq
	}
}

// NextTick implements simulation.Component (§4.3 "next_tick").
func (s *Sender) NextTick(now quantities.Time) (quantities.Time, bool) {
	if s.state != stateEnabled {
		return 0, false
	}
	nextSend, canSend := s.nextPermittedSend(now)
	ccaNext, ccaOK := s.currentCCA.NextTick(now)
	switch {
	case canSend && ccaOK:
		return quantities.Min(nextSend, ccaNext), true
	case canSend:
		return nextSend, true
	case ccaOK:
		return ccaNext, true
	default:
		return 0, false
	}
}

// nextPermittedSend reports whether the window is open right now
// (packetsSent < greatestAck+cwnd) and, if it is, the earliest time the
// pacing constraint permits a send: max(now, lastSend+IntersendDelay).
func (s *Sender) nextPermittedSend(now quantities.Time) (quantities.Time, bool) {
	if s.packetsSent >= s.greatestAck+uint64(s.cwnd) {
		return 0, false
	}
	return quantities.Max(now, s.lastSend.Add(s.currentCCA.IntersendDelay())), true
}

// Tick implements simulation.Component. A tick either performs a permitted
// send or lets the CCA react to the passage of time (§4.3, §4.7 "tick()").
func (s *Sender) Tick(now quantities.Time) []simulation.Message {
	if s.state != stateEnabled {
		return nil
	}
	if next, ok := s.nextPermittedSend(now); ok && next == now {
		return s.send(now)
	}
	s.cwnd = s.currentCCA.Tick()
	return nil
}

func (s *Sender) send(now quantities.Time) []simulation.Message {
	pkt := Packet{
		Seq:         s.packetsSent + 1,
		Source:      s.self,
		Destination: s.farEnd,
		SentTime:    now,
	}
	s.packetsSent++
	s.lastSend = now
	s.cwnd = s.currentCCA.PacketSent(now)
	return []simulation.Message{{Destination: s.link, Payload: pkt}}
}
