package remy

import (
	"testing"

	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/ruletree"
	"github.com/heistp/flowforge/internal/simrand"
)

// scriptedPolicy is a ruletree.Policy double that returns a fixed action
// and counts how many times it was consulted.
type scriptedPolicy struct {
	action ruletree.Action
	calls  int
}

func (p *scriptedPolicy) Action(ruletree.Point) ruletree.Action {
	p.calls++
	return p.action
}

func TestInitialCwndIsOne(t *testing.T) {
	c := New(&scriptedPolicy{}, nil)
	if got := c.InitialCwnd(0); got != 1 {
		t.Errorf("InitialCwnd() = %d, want 1", got)
	}
}

func TestNeverSelfTicks(t *testing.T) {
	c := New(&scriptedPolicy{}, nil)
	if _, ok := c.NextTick(0); ok {
		t.Error("NextTick() should report ok=false; the rule-tree CCA is purely ack-driven")
	}
}

func TestAckReceivedConsultsPolicyAndAppliesAction(t *testing.T) {
	policy := &scriptedPolicy{action: ruletree.Action{
		WindowMultiplier: 2,
		WindowIncrement:  1,
		IntersendDelay:   quantities.MillisecondsSpan(5),
	}}
	c := New(policy, nil)
	c.InitialCwnd(0) // cwnd = 1

	got := c.AckReceived(quantities.Time(0), quantities.Time(1))
	if want := uint32(3); got != want { // floor(1*2) + 1 = 3
		t.Errorf("AckReceived() cwnd = %d, want %d", got, want)
	}
	if policy.calls != 1 {
		t.Errorf("policy consulted %d times, want 1", policy.calls)
	}
	if c.IntersendDelay() != quantities.MillisecondsSpan(5) {
		t.Errorf("IntersendDelay() = %v, want 5ms", c.IntersendDelay())
	}
}

func TestRTTRatioUsesMinimumObservedRTT(t *testing.T) {
	policy := &scriptedPolicy{}
	c := New(policy, nil)
	c.InitialCwnd(0)

	c.AckReceived(quantities.Time(0), quantities.Time(10)) // RTT = 10, min = 10
	c.AckReceived(quantities.Time(20), quantities.Time(25)) // RTT = 5, min = 5

	if got, want := c.rtt.ratio(), 1.0; got != want {
		t.Errorf("rtt.ratio() after a new minimum = %v, want %v", got, want)
	}

	c.AckReceived(quantities.Time(40), quantities.Time(50)) // RTT = 10, min stays 5
	if got, want := c.rtt.ratio(), 2.0; got != want {
		t.Errorf("rtt.ratio() = %v, want %v (current/min = 10/5)", got, want)
	}
}

func TestRepeatConfigCachesActionAcrossAcks(t *testing.T) {
	policy := &scriptedPolicy{action: ruletree.Action{WindowMultiplier: 1, WindowIncrement: 1}}
	repeat := &RepeatConfig{Distribution: simrand.Always{Value: 2}, Rng: simrand.New(1)}
	c := New(policy, repeat)
	c.InitialCwnd(0)

	c.AckReceived(quantities.Time(0), quantities.Time(1))  // fresh lookup, repeatRemaining set to 2
	c.AckReceived(quantities.Time(2), quantities.Time(3))  // cached, repeatRemaining -> 1
	c.AckReceived(quantities.Time(4), quantities.Time(5))  // cached, repeatRemaining -> 0
	c.AckReceived(quantities.Time(6), quantities.Time(7))  // repeatRemaining exhausted, fresh lookup

	if policy.calls != 2 {
		t.Errorf("policy consulted %d times, want 2 (initial + one after repeat exhausted)", policy.calls)
	}
}

func TestFactoryProducesIndependentCCAs(t *testing.T) {
	policy := &scriptedPolicy{}
	f := Factory(policy, func() *RepeatConfig { return nil })
	a := f.NewCCA()
	b := f.NewCCA()
	if a == b {
		t.Fatal("Factory.NewCCA() should produce distinct instances")
	}
}
