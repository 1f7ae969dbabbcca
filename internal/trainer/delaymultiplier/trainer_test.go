package delaymultiplier

import (
	"context"
	"math"
	"testing"

	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/flow"
	"github.com/heistp/flowforge/internal/network"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simrand"
)

func testConfig() Config {
	return Config{
		Network: NetworkTemplate{
			Link: network.LinkConfig{
				PacketRate:       quantities.InformationRate(10e6),
				PropagationDelay: quantities.MillisecondsSpan(10),
				BufferCapacity:   100 * quantities.Kilobyte,
			},
			NumSenders: 2,
			OnTime:     simrand.Always{Value: 5},
			OffTime:    simrand.Always{Value: 0},
		},
		MinMultiplier: 0.5,
		MaxMultiplier: 4,
		Rounds:        2,
		BracketSteps:  4,
		Eval:          eval.Config{NetworkSamples: 2, RunSimFor: quantities.SecondsSpan(2)},
		Utility: func(flows []flow.Properties) float64 {
			if len(flows) == 0 {
				return 0
			}
			var sum float64
			for _, f := range flows {
				sum += f.Throughput.BitsPerSecond()
			}
			return sum / float64(len(flows))
		},
	}
}

func TestTrainReturnsMultiplierWithinBounds(t *testing.T) {
	tr := New(testConfig(), simrand.New(1))
	result, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if result.Multiplier < 0.5 || result.Multiplier > 4 {
		t.Errorf("Multiplier = %v, want within [0.5, 4]", result.Multiplier)
	}
}

func TestBracketScanPicksBestOfEvenlySpacedSamples(t *testing.T) {
	tr := New(testConfig(), simrand.New(1))
	best, err := tr.bracketScan(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("bracketScan: %v", err)
	}
	if best.Multiplier < 1 || best.Multiplier > 2 {
		t.Errorf("bracketScan() multiplier = %v, want within [1, 2]", best.Multiplier)
	}
}

func TestScoreTreatsNoActiveFlowsAsWorstPossible(t *testing.T) {
	cfg := testConfig()
	cfg.Network.Link.LossProbability = 1 // every packet dropped, no acks ever
	tr := New(cfg, simrand.New(1))
	v, err := tr.score(context.Background(), 1)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if v != math.Inf(-1) {
		t.Errorf("score() with no active flows = %v, want -Inf", v)
	}
}

func TestClampFloat(t *testing.T) {
	if got := clampFloat(-1, 0, 10); got != 0 {
		t.Errorf("clampFloat(-1, 0, 10) = %v, want 0", got)
	}
	if got := clampFloat(20, 0, 10); got != 10 {
		t.Errorf("clampFloat(20, 0, 10) = %v, want 10", got)
	}
	if got := clampFloat(5, 0, 10); got != 5 {
		t.Errorf("clampFloat(5, 0, 10) = %v, want 5", got)
	}
}
