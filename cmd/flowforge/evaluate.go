package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/heistp/flowforge/internal/cca"
	"github.com/heistp/flowforge/internal/cca/delaymultiplier"
	"github.com/heistp/flowforge/internal/cca/remy"
	"github.com/heistp/flowforge/internal/cca/remyr"
	"github.com/heistp/flowforge/internal/config"
	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/network"
	"github.com/heistp/flowforge/internal/neuralpolicy"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/remydna"
	"github.com/heistp/flowforge/internal/simrand"
	delaymultipliertrainer "github.com/heistp/flowforge/internal/trainer/delaymultiplier"
)

func runEvaluate(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("evaluate", pflag.ExitOnError)
	mode := fs.String("mode", "", "policy kind: ruletree, neural, or delaymultiplier")
	networkPath := fs.String("network", "", "path to a NetworkConfig JSON document")
	policyPath := fs.String("policy", "", "path to the trained policy file (.remy.dna, .remyr.dna, or delaymultiplier JSON)")
	utilityName := fs.String("utility", "proportional-throughput-delay", "utility preset")
	networkSamples := fs.Int("network-samples", 64, "number of independent networks to sample")
	runFor := fs.Float64("run-for", 30, "seconds of simulated time to run each network")
	seed := fs.Int64("seed", 1, "RNG seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mode == "" || *networkPath == "" || *policyPath == "" {
		return fmt.Errorf("flowforge evaluate: --mode, --network, and --policy are required")
	}

	alpha, err := resolveUtility(*utilityName)
	if err != nil {
		return err
	}
	netCfg, err := config.Load[config.NetworkConfig](*networkPath)
	if err != nil {
		return err
	}
	factory, err := loadFactory(*mode, *policyPath)
	if err != nil {
		return err
	}

	rng := simrand.New(*seed)
	dist := network.DistributionFunc(func(*simrand.Rng) network.Sample {
		return network.Sample{
			Link:       netCfg.Link,
			NumSenders: netCfg.NumSenders,
			OnTime:     netCfg.OnTime.Distribution,
			OffTime:    netCfg.OffTime.Distribution,
			CCAFactory: factory,
		}
	})
	evalCfg := eval.Config{NetworkSamples: *networkSamples, RunSimFor: quantities.SecondsSpan(*runFor)}
	result, err := eval.Run(ctx, dist, alpha.UtilityFunction(), rng, evalCfg)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// loadFactory reads a trained policy file of the given mode and returns a
// cca.Factory producing fresh, deterministic CCA instances for evaluation
// (§4.9: "a rule tree or neural policy... must not be mutated for the
// duration of that simulation").
func loadFactory(mode, path string) (cca.Factory, error) {
	switch mode {
	case "ruletree":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("flowforge: reading %s: %w", path, err)
		}
		tree, err := remydna.Unmarshal(data, remydna.Units{})
		if err != nil {
			return nil, fmt.Errorf("flowforge: parsing %s: %w", path, err)
		}
		return remy.Factory(tree.AsPolicy(), nil), nil
	case "neural":
		policy, pointBounds, actionBounds, err := neuralpolicy.Load(path)
		if err != nil {
			return nil, err
		}
		return remyr.Factory(policy, pointBounds, actionBounds, simrand.New(1), true), nil
	case "delaymultiplier":
		result, err := config.Load[delaymultipliertrainer.Result](path)
		if err != nil {
			return nil, err
		}
		return delaymultiplier.Factory(result.Multiplier), nil
	default:
		return nil, fmt.Errorf("flowforge: unrecognized --mode %q", mode)
	}
}
