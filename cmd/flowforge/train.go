package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/heistp/flowforge/internal/config"
	"github.com/heistp/flowforge/internal/neuralpolicy"
	"github.com/heistp/flowforge/internal/remydna"
	"github.com/heistp/flowforge/internal/simrand"
	delaymultipliertrainer "github.com/heistp/flowforge/internal/trainer/delaymultiplier"
	neuraltrainer "github.com/heistp/flowforge/internal/trainer/neural"
	ruletreetrainer "github.com/heistp/flowforge/internal/trainer/ruletree"
	"github.com/heistp/flowforge/internal/trainmetrics"
	"github.com/heistp/flowforge/internal/utility"
)

func runTrain(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("train", pflag.ExitOnError)
	mode := fs.String("mode", "", "trainer to run: ruletree, neural, or delaymultiplier")
	configPath := fs.String("config", "", "path to the trainer's JSON config document")
	out := fs.String("out", "", "path to write the trained policy to")
	utilityName := fs.String("utility", "proportional-throughput-delay", "utility preset: proportional-throughput-delay or minimise-fixed-length-file-transfer")
	seed := fs.Int64("seed", 1, "RNG seed")
	metricsAddr := fs.String("metrics-addr", "", "if set, serve Prometheus metrics on this address while training")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *mode == "" || *configPath == "" || *out == "" {
		return fmt.Errorf("flowforge train: --mode, --config, and --out are required")
	}

	alpha, err := resolveUtility(*utilityName)
	if err != nil {
		return err
	}
	rng := simrand.New(*seed)

	reporter := trainmetrics.New(*mode)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reporter.Registry(), promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			fmt.Println("serving metrics on", *metricsAddr)
			_ = srv.ListenAndServe()
		}()
	}

	switch *mode {
	case "ruletree":
		return trainRuleTree(ctx, *configPath, *out, alpha, rng, reporter)
	case "neural":
		return trainNeural(ctx, *configPath, *out, alpha, rng, reporter)
	case "delaymultiplier":
		return trainDelayMultiplier(ctx, *configPath, *out, alpha, rng, reporter)
	default:
		return fmt.Errorf("flowforge train: unrecognized --mode %q", *mode)
	}
}

func trainRuleTree(ctx context.Context, configPath, out string, alpha utility.AlphaFairness, rng *simrand.Rng, reporter *trainmetrics.Reporter) error {
	wire, err := config.Load[config.RuleTreeTrainerConfig](configPath)
	if err != nil {
		return err
	}
	cfg := wire.TrainerConfig(alpha.UtilityFunction())
	t := ruletreetrainer.New(cfg, rng)
	total := cfg.RuleSplits
	err = t.Train(ctx, func(p ruletreetrainer.Progress) {
		frac := 1.0
		if total > 0 {
			frac = float64(p.Split) / float64(total)
		}
		reporter.Report(frac, p.MeanUtility)
		fmt.Printf("split %d/%d leaves=%d utility=%.6f\n", p.Split, total, p.NumLeaves, p.MeanUtility)
	})
	if err != nil {
		return err
	}
	data := remydna.Marshal(t.Tree(), remydna.Units{})
	return writeFile(out, data)
}

func trainNeural(ctx context.Context, configPath, out string, alpha utility.AlphaFairness, rng *simrand.Rng, reporter *trainmetrics.Reporter) error {
	wire, err := config.Load[config.NeuralTrainerConfig](configPath)
	if err != nil {
		return err
	}
	cfg, err := wire.TrainerConfig(alpha.FlowUtility)
	if err != nil {
		return err
	}
	policy := neuralpolicy.New(neuralpolicy.DefaultHyperparameters)
	t := neuraltrainer.New(cfg, policy, rng)
	total := cfg.Iterations
	err = t.Train(ctx, func(p neuraltrainer.Progress, _ *neuralpolicy.Policy) {
		frac := 1.0
		if total > 0 {
			frac = float64(p.Iteration) / float64(total)
		}
		reporter.Report(frac, p.MeanReturn)
		fmt.Printf("iter %d/%d timesteps=%d policy_loss=%.6f critic_loss=%.6f mean_return=%.6f\n",
			p.Iteration, total, p.Timesteps, p.PolicyLoss, p.CriticLoss, p.MeanReturn)
	})
	if err != nil {
		return err
	}
	return neuralpolicy.Save(out, t.Policy(), cfg.PointBounds, cfg.ActionBounds)
}

func trainDelayMultiplier(ctx context.Context, configPath, out string, alpha utility.AlphaFairness, rng *simrand.Rng, reporter *trainmetrics.Reporter) error {
	wire, err := config.Load[config.DelayMultiplierTrainerConfig](configPath)
	if err != nil {
		return err
	}
	cfg := wire.TrainerConfig(alpha.UtilityFunction())
	t := delaymultipliertrainer.New(cfg, rng)
	result, err := t.Train(ctx)
	if err != nil {
		return err
	}
	reporter.Report(1, result.Utility)
	fmt.Printf("best multiplier=%.6f utility=%.6f\n", result.Multiplier, result.Utility)
	return config.Save(out, result)
}
