package network

import (
	"testing"

	"github.com/heistp/flowforge/internal/cca/delaymultiplier"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simlog"
	"github.com/heistp/flowforge/internal/simrand"
)

func TestSingleFlowSampleIgnoresRngButFixesNetwork(t *testing.T) {
	sf := SingleFlow{
		Link:       LinkConfig{PacketRate: quantities.InformationRate(1e6)},
		OnTime:     simrand.Always{Value: 10},
		OffTime:    simrand.Always{Value: 0},
		CCAFactory: delaymultiplier.Factory(2),
	}
	s := sf.Sample(simrand.New(1))
	if s.NumSenders != 1 {
		t.Errorf("NumSenders = %d, want 1", s.NumSenders)
	}
	if s.Link.PacketRate != sf.Link.PacketRate {
		t.Errorf("Link = %+v, want %+v", s.Link, sf.Link)
	}
}

func TestBuildWiresSendersLinkAndBouncer(t *testing.T) {
	sample := Sample{
		Link: LinkConfig{
			PacketRate:       quantities.InformationRate(10e6),
			PropagationDelay: quantities.MillisecondsSpan(10),
			BufferCapacity:   100 * quantities.Kilobyte,
		},
		NumSenders: 3,
		OnTime:     simrand.Always{Value: 5},
		OffTime:    simrand.Always{Value: 0},
		CCAFactory: delaymultiplier.Factory(1.5),
	}
	built := Build(sample, simrand.New(1), simlog.Nothing{})
	if len(built.Meters) != 3 {
		t.Fatalf("len(Meters) = %d, want 3", len(built.Meters))
	}
	for i, m := range built.Meters {
		if m == nil {
			t.Errorf("Meters[%d] is nil", i)
		}
	}
	// All 3 senders + a toggler each, plus the link and bouncer, must be
	// present and fully wired (Build would otherwise panic on an unfilled
	// slot).
	if ids := built.Sim.ComponentIds(); len(ids) != 3*2+2 {
		t.Errorf("component count = %d, want %d (3 senders, 3 togglers, link, bouncer)", len(ids), 3*2+2)
	}
}

func TestBuildProducesActiveFlowsOverTime(t *testing.T) {
	sample := Sample{
		Link: LinkConfig{
			PacketRate:       quantities.InformationRate(10e6),
			PropagationDelay: quantities.MillisecondsSpan(10),
			BufferCapacity:   100 * quantities.Kilobyte,
		},
		NumSenders: 1,
		OnTime:     simrand.Always{Value: 10},
		OffTime:    simrand.Always{Value: 0},
		CCAFactory: delaymultiplier.Factory(1.5),
	}
	built := Build(sample, simrand.New(1), simlog.Nothing{})
	built.Sim.Run(func(now quantities.Time) bool { return now <= 5 })

	props, err := built.Meters[0].Properties()
	if err != nil {
		t.Fatalf("Properties: %v", err)
	}
	if props.Throughput.BitsPerSecond() <= 0 {
		t.Errorf("Throughput = %v, want > 0 after a 5s run with an always-on sender", props.Throughput)
	}
}
