// Package delaymultiplier implements a bracket-and-bisect trainer for the
// single-parameter delay-multiplier CCA of internal/cca/delaymultiplier,
// supplementing original_source/src/trainers/delay_multiplier's genetic
// hill-climb with a cheaper deterministic search that exercises the same
// evaluation harness used by the other two trainers (§4.9), since a
// one-dimensional convex-ish parameter space doesn't need a population.
package delaymultiplier

import (
	"context"
	"errors"
	"math"

	"github.com/heistp/flowforge/internal/cca/delaymultiplier"
	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/network"
	"github.com/heistp/flowforge/internal/simrand"
)

// NetworkTemplate fixes every Sample field except the CCA factory, which
// the trainer substitutes with a fresh multiplier each evaluation.
type NetworkTemplate struct {
	Link       network.LinkConfig
	NumSenders int
	OnTime     simrand.Distribution
	OffTime    simrand.Distribution
}

func (n NetworkTemplate) distribution(multiplier float64) network.NetworkDistribution {
	return network.DistributionFunc(func(rng *simrand.Rng) network.Sample {
		return network.Sample{
			Link:       n.Link,
			NumSenders: n.NumSenders,
			OnTime:     n.OnTime,
			OffTime:    n.OffTime,
			CCAFactory: delaymultiplier.Factory(multiplier),
		}
	})
}

// Config bundles the bracket-and-bisect trainer's parameters.
type Config struct {
	Network NetworkTemplate

	MinMultiplier float64
	MaxMultiplier float64

	// Rounds is the number of bisection rounds run after the initial
	// bracket scan; each round halves the current bracket.
	Rounds int

	// BracketSteps is the number of evenly spaced points sampled across
	// [MinMultiplier, MaxMultiplier] to seed the initial bracket, before
	// bisection narrows around the best of them.
	BracketSteps int

	Eval    eval.Config
	Utility eval.UtilityFunction
}

// Result is the best multiplier found and its evaluated utility.
type Result struct {
	Multiplier float64 `json:"multiplier"`
	Utility    float64 `json:"utility"`
}

// Trainer searches for the multiplier maximizing Config.Utility.
type Trainer struct {
	cfg Config
	rng *simrand.Rng
}

// New returns a Trainer.
func New(cfg Config, rng *simrand.Rng) *Trainer {
	return &Trainer{cfg: cfg, rng: rng}
}

// Train runs the initial bracket scan followed by Config.Rounds bisection
// rounds, returning the best multiplier found.
func (t *Trainer) Train(ctx context.Context) (Result, error) {
	lo, hi := t.cfg.MinMultiplier, t.cfg.MaxMultiplier
	best, err := t.bracketScan(ctx, lo, hi)
	if err != nil {
		return Result{}, err
	}

	for round := 0; round < t.cfg.Rounds; round++ {
		width := (hi - lo) / 4
		if width <= 0 {
			break
		}
		candidates := []float64{
			clampFloat(best.Multiplier-width, lo, hi),
			clampFloat(best.Multiplier+width, lo, hi),
		}
		for _, m := range candidates {
			v, err := t.score(ctx, m)
			if err != nil {
				return Result{}, err
			}
			if v > best.Utility {
				best = Result{Multiplier: m, Utility: v}
			}
		}
		lo = clampFloat(best.Multiplier-width, t.cfg.MinMultiplier, t.cfg.MaxMultiplier)
		hi = clampFloat(best.Multiplier+width, t.cfg.MinMultiplier, t.cfg.MaxMultiplier)
	}
	return best, nil
}

// bracketScan samples BracketSteps evenly spaced multipliers across
// [lo, hi] and returns the best.
func (t *Trainer) bracketScan(ctx context.Context, lo, hi float64) (Result, error) {
	steps := t.cfg.BracketSteps
	if steps < 2 {
		steps = 2
	}
	var best Result
	haveBest := false
	for i := 0; i < steps; i++ {
		frac := float64(i) / float64(steps-1)
		m := lo + frac*(hi-lo)
		v, err := t.score(ctx, m)
		if err != nil {
			return Result{}, err
		}
		if !haveBest || v > best.Utility {
			best = Result{Multiplier: m, Utility: v}
			haveBest = true
		}
	}
	return best, nil
}

// score evaluates the given multiplier across a fresh batch of sampled
// networks, treating an all-idle batch as the worst possible score so
// bisection always has a comparable value.
func (t *Trainer) score(ctx context.Context, multiplier float64) (float64, error) {
	dist := t.cfg.Network.distribution(multiplier)
	res, err := eval.Run(ctx, dist, t.cfg.Utility, t.rng.Child(), t.cfg.Eval)
	if err != nil {
		if errors.Is(err, eval.NoActiveFlows) {
			return math.Inf(-1), nil
		}
		return 0, err
	}
	return res.MeanUtility, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
