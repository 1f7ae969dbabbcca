package network

import (
	"testing"

	"github.com/heistp/flowforge/internal/quantities"
)

func TestBouncerSwapsSourceAndDestination(t *testing.T) {
	link := reserveLinkAddress(t)
	a := reserveLinkAddress(t)
	b := reserveLinkAddress(t)
	bouncer := NewBouncer(link)

	out := bouncer.Receive(Packet{Seq: 1, Source: a, Destination: b}, quantities.Time(0))
	if len(out) != 1 {
		t.Fatalf("Receive() = %v, want 1 message", out)
	}
	if out[0].Destination != link {
		t.Errorf("forwarded to %+v, want link %+v", out[0].Destination, link)
	}
	pkt, ok := out[0].Payload.(Packet)
	if !ok {
		t.Fatalf("payload = %v, want Packet", out[0].Payload)
	}
	if pkt.Source != b || pkt.Destination != a {
		t.Errorf("bounced packet = %+v, want Source=%+v Destination=%+v", pkt, b, a)
	}
}

func TestBouncerNeverSelfTicks(t *testing.T) {
	bouncer := NewBouncer(reserveLinkAddress(t))
	if _, ok := bouncer.NextTick(0); ok {
		t.Error("Bouncer.NextTick() should always report ok=false")
	}
}

func TestBouncerRejectsNonPacketPayload(t *testing.T) {
	bouncer := NewBouncer(reserveLinkAddress(t))
	defer func() {
		if recover() == nil {
			t.Error("Receive() with a non-Packet payload should panic")
		}
	}()
	bouncer.Receive("not a packet", 0)
}
