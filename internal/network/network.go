package network

import (
	"github.com/heistp/flowforge/internal/cca"
	"github.com/heistp/flowforge/internal/flow"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simlog"
	"github.com/heistp/flowforge/internal/simrand"
	"github.com/heistp/flowforge/internal/simulation"
)

// Sample is one drawn network's parameters: the link's physical
// characteristics, the number of sender/toggler pairs to populate, and each
// pair's toggle dwell distributions and CCA factory (§4.9 step 1 "Draw
// network_samples independent networks").
type Sample struct {
	Link       LinkConfig
	NumSenders int
	OnTime     simrand.Distribution
	OffTime    simrand.Distribution
	CCAFactory cca.Factory
}

// NetworkDistribution draws independent Samples, each paired with its own
// child RNG by the evaluation harness (§4.9 step 1).
type NetworkDistribution interface {
	Sample(rng *simrand.Rng) Sample
}

// DistributionFunc adapts a plain function to NetworkDistribution.
type DistributionFunc func(rng *simrand.Rng) Sample

// Sample implements NetworkDistribution.
func (f DistributionFunc) Sample(rng *simrand.Rng) Sample { return f(rng) }

// SingleFlow is a NetworkDistribution that always returns the same
// deterministic one-sender network, used for manual inspection outside the
// statistical evaluation harness (SPEC_FULL.md "one_at_time" supplemented
// feature, grounded on original_source/examples/one_at_time_sim.rs).
type SingleFlow struct {
	Link       LinkConfig
	OnTime     simrand.Distribution
	OffTime    simrand.Distribution
	CCAFactory cca.Factory
}

// Sample implements NetworkDistribution, ignoring rng since the network
// itself is fixed (only the toggler/CCA randomness downstream varies by
// seed).
func (s SingleFlow) Sample(*simrand.Rng) Sample {
	return Sample{
		Link:       s.Link,
		NumSenders: 1,
		OnTime:     s.OnTime,
		OffTime:    s.OffTime,
		CCAFactory: s.CCAFactory,
	}
}

// Built is one fully-populated simulator instance built from a Sample: the
// simulator itself plus the per-sender flow meters needed to read back
// per-flow properties after a run (§4.9 step 2 "collect per-flow average").
type Built struct {
	Sim    *simulation.Simulator
	Meters []*flow.Meter
}

// Build wires one link, sample.NumSenders sender+toggler pairs, and a
// bouncer into a fresh Simulator (§4.9 step 2: "one link, num_senders
// sender+toggler pairs wired back through a bouncer").
func Build(sample Sample, rng *simrand.Rng, log simlog.Logger) Built {
	b := simulation.NewBuilder()

	linkID := b.Reserve()
	bouncerID := b.Reserve()

	meters := make([]*flow.Meter, sample.NumSenders)
	for i := 0; i < sample.NumSenders; i++ {
		senderID := b.Reserve()
		m := flow.NewMeter()
		meters[i] = m
		sender := NewSender(senderID, linkID, bouncerID, m)
		b.Set(senderID, sender)

		toggler := NewToggler(senderID, sample.CCAFactory, sample.OnTime, sample.OffTime,
			rng.Child(), quantities.SimulationStart)
		b.Insert(toggler)
	}

	b.Set(linkID, NewLink(linkID, sample.Link, rng.Child(), log))
	b.Set(bouncerID, NewBouncer(linkID))

	return Built{Sim: b.Build(), Meters: meters}
}
