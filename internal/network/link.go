package network

import (
	"container/list"

	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simlog"
	"github.com/heistp/flowforge/internal/simrand"
	"github.com/heistp/flowforge/internal/simulation"
)

// inflight is a packet serialized onto the wire, awaiting arrival (§4.2:
// "in_flight arrival_times are strictly increasing").
type inflight struct {
	packet      Packet
	arrivalTime quantities.Time
}

// Link models a point-to-point channel with propagation delay, a finite
// serialization rate, random independent loss, and an optional finite
// buffer (§4.2). It corresponds to the teacher's Iface, generalized from a
// byte-FIFO AQM plus a separate Delay component into one component that
// owns both queuing and serialization, since spec.md folds them together.
type Link struct {
	self Address

	packetRate      quantities.InformationRate
	propagationDly  quantities.TimeSpan
	lossProbability float64
	bufferCapacity  quantities.Information // 0 means unbounded

	rng *simrand.Rng
	log simlog.Logger

	buffer         *list.List // of Packet, FIFO
	bufferContents quantities.Information
	inFlight       *list.List // of inflight, FIFO, strictly increasing arrivalTime

	earliestTransmit quantities.Time
}

// LinkConfig carries Link's construction-time parameters.
type LinkConfig struct {
	PacketRate       quantities.InformationRate `json:"packet_rate"`
	PropagationDelay quantities.TimeSpan        `json:"propagation_delay"`
	LossProbability  float64                    `json:"loss_probability"`
	BufferCapacity   quantities.Information     `json:"buffer_capacity"` // 0 = unbounded
}

var _ simulation.Component = (*Link)(nil)

// NewLink returns a new Link that sends to self when addressed by other
// components, using rng for loss draws and log for diagnostic messages.
func NewLink(self Address, cfg LinkConfig, rng *simrand.Rng, log simlog.Logger) *Link {
	return &Link{
		self:            self,
		packetRate:      cfg.PacketRate,
		propagationDly:  cfg.PropagationDelay,
		lossProbability: cfg.LossProbability,
		bufferCapacity:  cfg.BufferCapacity,
		rng:             rng,
		log:             log,
		buffer:          list.New(),
		inFlight:        list.New(),
	}
}

// Receive implements simulation.Component. It accepts a Packet payload and
// enqueues it, dropping it if the buffer is full (§4.2 "Receive(packet)").
func (l *Link) Receive(payload any, now quantities.Time) []simulation.Message {
	pkt, ok := payload.(Packet)
	if !ok {
		panic("network: Link received a non-Packet payload")
	}
	if l.bufferCapacity > 0 && l.bufferContents+Size > l.bufferCapacity {
		l.log.Logf(now, l.self.Index, "link: dropped %d, buffer full", pkt.Seq)
		return nil
	}
	l.buffer.PushBack(pkt)
	l.bufferContents += Size
	return nil
}

// NextTick implements simulation.Component (§4.2 "next_tick").
func (l *Link) NextTick(now quantities.Time) (quantities.Time, bool) {
	var deliverAt quantities.Time
	haveDeliver := false
	if e := l.inFlight.Front(); e != nil {
		deliverAt = e.Value.(inflight).arrivalTime
		haveDeliver = true
	}
	var transmitAt quantities.Time
	haveTransmit := false
	if l.buffer.Len() > 0 {
		transmitAt = quantities.Max(now, l.earliestTransmit)
		haveTransmit = true
	}
	switch {
	case haveDeliver && haveTransmit:
		return quantities.Min(deliverAt, transmitAt), true
	case haveDeliver:
		return deliverAt, true
	case haveTransmit:
		return transmitAt, true
	default:
		return 0, false
	}
}

// Tick implements simulation.Component (§4.2 "Tick": Deliver and Transmit
// may both fire at the same now).
func (l *Link) Tick(now quantities.Time) []simulation.Message {
	var out []simulation.Message
	if e := l.inFlight.Front(); e != nil {
		fl := e.Value.(inflight)
		if fl.arrivalTime == now {
			l.inFlight.Remove(e)
			if l.rng.Float64() >= l.lossProbability {
				out = append(out, simulation.Message{
					Destination: fl.packet.Destination,
					Payload:     fl.packet,
				})
			} else {
				l.log.Logf(now, l.self.Index, "link: lost %d in flight", fl.packet.Seq)
			}
		}
	}
	if now >= l.earliestTransmit && l.buffer.Len() > 0 {
		e := l.buffer.Front()
		l.buffer.Remove(e)
		pkt := e.Value.(Packet)
		l.bufferContents -= Size
		l.earliestTransmit = now + Size.DivRate(l.packetRate)
		arrival := now + l.propagationDly
		l.inFlight.PushBack(inflight{packet: pkt, arrivalTime: arrival})
	}
	return out
}
