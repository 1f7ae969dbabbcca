package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/heistp/flowforge/internal/config"
	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/network"
	"github.com/heistp/flowforge/internal/neuralpolicy"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/ruletree"
	"github.com/heistp/flowforge/internal/simrand"
)

// defaultNetwork mirrors the teacher's config.go defaults (1000Mbps link,
// 20ms one-way-style propagation per flow) as a starting point for
// hand-editing, rather than inventing unrelated numbers. The sender count
// is taken from numSenders.
func defaultNetwork(numSenders int) config.NetworkConfig {
	return config.NetworkConfig{
		Link: network.LinkConfig{
			PacketRate:       1000e6, // 1000Mbps, bits/second
			PropagationDelay: quantities.MillisecondsSpan(20),
			LossProbability:  0,
			BufferCapacity:   100 * quantities.Kilobyte,
		},
		NumSenders: numSenders,
		OnTime:     simrand.DistributionBox{Distribution: simrand.Always{Value: 30}},
		OffTime:    simrand.DistributionBox{Distribution: simrand.Always{Value: 0}},
	}
}

func runGenConfigs(args []string) error {
	fs := pflag.NewFlagSet("gen-configs", pflag.ExitOnError)
	dir := fs.StringP("dir", "d", ".", "directory to write default config documents to")
	if err := fs.Parse(args); err != nil {
		return err
	}

	evalCfg := eval.Config{NetworkSamples: 64, RunSimFor: quantities.SecondsSpan(30)}

	ruleTree := config.RuleTreeTrainerConfig{
		Network:            defaultNetwork(8),
		RuleSplits:         32,
		OptimizationRounds: 4,
		DeltaLevels:        4,
		MaxActionChange: ruletree.Action{
			WindowMultiplier: 0.5,
			WindowIncrement:  2,
			IntersendDelay:   quantities.MillisecondsSpan(5),
		},
		MinAction: ruletree.Action{
			WindowMultiplier: 0,
			WindowIncrement:  -10,
			IntersendDelay:   0,
		},
		MaxAction: ruletree.Action{
			WindowMultiplier: 4,
			WindowIncrement:  10,
			IntersendDelay:   quantities.MillisecondsSpan(50),
		},
		Eval: evalCfg,
	}

	neural := config.NeuralTrainerConfig{
		Network:            defaultNetwork(8),
		Iterations:         200,
		RolloutNetworks:    16,
		RunRolloutFor:      quantities.SecondsSpan(10),
		UpdatePasses:       4,
		Minibatches:        4,
		Discount:           config.DiscountConfig{Kind: "discrete", Gamma: 0.99},
		ClipEpsilon:        0.2,
		ClipEpsilonFinal:   0.1,
		ValueCoefficient:   0.5,
		EntropyCoefficient: 0.01,
		LearningRate:       3e-4,
		LearningRateFinal:  1e-4,
		WeightDecay:        0,
		PointBounds:        neuralpolicy.Bounds{Min: [3]float64{0, 0, 0.5}, Max: [3]float64{2, 2, 10}},
		ActionBounds:       neuralpolicy.Bounds{Min: [3]float64{0, -10, 0}, Max: [3]float64{4, 10, 0.05}},
	}

	delayMultiplier := config.DelayMultiplierTrainerConfig{
		Network:       defaultNetwork(8),
		MinMultiplier: 0.1,
		MaxMultiplier: 4,
		Rounds:        8,
		BracketSteps:  8,
		Eval:          evalCfg,
	}

	files := map[string]any{
		"ruletree.json":       ruleTree,
		"neural.json":         neural,
		"delaymultiplier.json": delayMultiplier,
	}
	for name, doc := range files {
		path := filepath.Join(*dir, name)
		switch v := doc.(type) {
		case config.RuleTreeTrainerConfig:
			if err := config.Save(path, v); err != nil {
				return err
			}
		case config.NeuralTrainerConfig:
			if err := config.Save(path, v); err != nil {
				return err
			}
		case config.DelayMultiplierTrainerConfig:
			if err := config.Save(path, v); err != nil {
				return err
			}
		}
		fmt.Println("wrote", path)
	}
	return nil
}
