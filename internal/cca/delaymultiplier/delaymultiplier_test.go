package delaymultiplier

import (
	"testing"

	"github.com/heistp/flowforge/internal/quantities"
)

func TestInitialCwndIsAlwaysOne(t *testing.T) {
	c := New(2)
	if got := c.InitialCwnd(quantities.Time(0)); got != 1 {
		t.Errorf("InitialCwnd() = %d, want 1", got)
	}
}

func TestNextTickBeforeFirstSendIsImmediate(t *testing.T) {
	c := New(2)
	next, ok := c.NextTick(quantities.Time(5))
	if !ok {
		t.Fatal("NextTick() should always report ok=true")
	}
	if next != quantities.Time(5) {
		t.Errorf("NextTick() before any send = %v, want now (5)", next)
	}
}

func TestAckReceivedSeedsAndUpdatesEWMA(t *testing.T) {
	c := New(2)
	c.AckReceived(quantities.Time(0), quantities.Time(1)) // RTT = 1
	if got, want := c.IntersendDelay().Seconds(), 2.0; got != want {
		t.Errorf("after first ack, IntersendDelay = %v, want %v (multiplier * seeded RTT)", got, want)
	}

	c.AckReceived(quantities.Time(10), quantities.Time(13)) // RTT = 3
	wantEWMA := 1*(1-ewmaWeight) + 3*ewmaWeight
	wantDelay := wantEWMA * 2
	if got := c.IntersendDelay().Seconds(); got != wantDelay {
		t.Errorf("after second ack, IntersendDelay = %v, want %v", got, wantDelay)
	}
}

func TestNextTickAfterSendPacesByIntersendDelay(t *testing.T) {
	c := New(1)
	c.AckReceived(quantities.Time(0), quantities.Time(2)) // RTT = 2, delay = 2
	c.PacketSent(quantities.Time(100))
	next, ok := c.NextTick(quantities.Time(100))
	if !ok {
		t.Fatal("NextTick() should report ok=true")
	}
	if want := quantities.Time(102); next != want {
		t.Errorf("NextTick() after send = %v, want %v", next, want)
	}
}

func TestFactoryProducesIndependentInstances(t *testing.T) {
	f := Factory(3)
	a := f.NewCCA()
	b := f.NewCCA()
	if a == b {
		t.Fatal("Factory.New() should produce distinct CCA instances")
	}
	ac, ok := a.(*CCA)
	if !ok {
		t.Fatalf("Factory produced %T, want *CCA", a)
	}
	if ac.Multiplier != 3 {
		t.Errorf("Multiplier = %v, want 3", ac.Multiplier)
	}
}
