package config

import (
	"path/filepath"
	"testing"

	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/flow"
	"github.com/heistp/flowforge/internal/network"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/ruletree"
	"github.com/heistp/flowforge/internal/simrand"
)

func testNetworkConfig() NetworkConfig {
	return NetworkConfig{
		Link: network.LinkConfig{
			PacketRate:       quantities.InformationRate(1000e6),
			PropagationDelay: quantities.MillisecondsSpan(20),
			LossProbability:  0,
			BufferCapacity:   100 * quantities.Kilobyte,
		},
		NumSenders: 2,
		OnTime:     simrand.DistributionBox{Distribution: simrand.Always{Value: 30}},
		OffTime:    simrand.DistributionBox{Distribution: simrand.Always{Value: 0}},
	}
}

func TestNetworkConfigJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.json")
	want := testNetworkConfig()
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load[NetworkConfig](path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.NumSenders != want.NumSenders {
		t.Errorf("NumSenders = %d, want %d", got.NumSenders, want.NumSenders)
	}
	if got.Link.PacketRate != want.Link.PacketRate {
		t.Errorf("Link.PacketRate = %v, want %v", got.Link.PacketRate, want.Link.PacketRate)
	}
	if got.OnTime.Distribution != want.OnTime.Distribution {
		t.Errorf("OnTime = %+v, want %+v", got.OnTime.Distribution, want.OnTime.Distribution)
	}
}

func TestRuleTreeTrainerConfigRoundTripAndConvert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ruletree.json")
	want := RuleTreeTrainerConfig{
		Network:            testNetworkConfig(),
		RuleSplits:         8,
		OptimizationRounds: 4,
		DeltaLevels:        3,
		MaxActionChange:    ruletree.Action{WindowMultiplier: 0.1, WindowIncrement: 1},
		MinAction:          ruletree.Action{WindowMultiplier: 0.1},
		MaxAction:          ruletree.Action{WindowMultiplier: 4},
		Eval:               eval.Config{NetworkSamples: 16, RunSimFor: quantities.SecondsSpan(30)},
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load[RuleTreeTrainerConfig](path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.RuleSplits != want.RuleSplits || got.OptimizationRounds != want.OptimizationRounds {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}

	cfg := got.TrainerConfig(func(flows []flow.Properties) float64 { return 0 })
	if cfg.RuleSplits != want.RuleSplits {
		t.Errorf("TrainerConfig().RuleSplits = %d, want %d", cfg.RuleSplits, want.RuleSplits)
	}
	if cfg.Network.NumSenders != want.Network.NumSenders {
		t.Errorf("TrainerConfig().Network.NumSenders = %d, want %d", cfg.Network.NumSenders, want.Network.NumSenders)
	}
}

func TestDelayMultiplierTrainerConfigRoundTripAndConvert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delaymultiplier.json")
	want := DelayMultiplierTrainerConfig{
		Network:       testNetworkConfig(),
		MinMultiplier: 0.1,
		MaxMultiplier: 4,
		Rounds:        5,
		BracketSteps:  10,
		Eval:          eval.Config{NetworkSamples: 16, RunSimFor: quantities.SecondsSpan(30)},
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load[DelayMultiplierTrainerConfig](path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.MinMultiplier != want.MinMultiplier || got.MaxMultiplier != want.MaxMultiplier {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}

	cfg := got.TrainerConfig(func(flows []flow.Properties) float64 { return 0 })
	if cfg.Rounds != want.Rounds || cfg.BracketSteps != want.BracketSteps {
		t.Errorf("TrainerConfig() = %+v, want Rounds=%d BracketSteps=%d", cfg, want.Rounds, want.BracketSteps)
	}
}

func TestDiscountConfigRejectsUnknownKind(t *testing.T) {
	d := DiscountConfig{Kind: "not_a_real_kind"}
	if _, err := d.Discounting(); err == nil {
		t.Error("expected error for unrecognized discount kind")
	}
}

func TestDiscountConfigAcceptsKnownKinds(t *testing.T) {
	for _, kind := range []string{"discrete", "discrete_delta", "discrete_rate", "continuous_rate"} {
		d := DiscountConfig{Kind: kind, Gamma: 0.99}
		if _, err := d.Discounting(); err != nil {
			t.Errorf("Discounting() for kind %q: %v", kind, err)
		}
	}
}
