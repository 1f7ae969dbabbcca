// Package ruletree implements the coordinate-descent splitting trainer of
// spec.md §4.10: grow a rule tree by repeatedly counting leaf usage,
// splitting the most-used leaf, and locally optimizing each leaf's action
// against the evaluation harness's utility score. Grounded on
// original_source/src/trainers/remy (count/split/optimize loop structure)
// and internal/ruletree's CountingPolicy/OverridePolicy, which this
// package is the sole consumer of.
package ruletree

import (
	"context"
	"errors"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/heistp/flowforge/internal/cca/remy"
	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/network"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/ruletree"
	"github.com/heistp/flowforge/internal/simrand"
)

// NetworkTemplate fixes every Sample field except the CCA factory, which
// the trainer substitutes for each of the three policy views it needs
// (counting, plain, and override) in turn.
type NetworkTemplate struct {
	Link       network.LinkConfig
	NumSenders int
	OnTime     simrand.Distribution
	OffTime    simrand.Distribution

	// NewRepeat, if non-nil, is called once per CCA instance to give each
	// flow its own repeat-cache RNG (§4.7.2 step 7). Optional.
	NewRepeat func() *remy.RepeatConfig
}

func (n NetworkTemplate) distribution(policy ruletree.Policy) network.NetworkDistribution {
	return network.DistributionFunc(func(rng *simrand.Rng) network.Sample {
		return network.Sample{
			Link:       n.Link,
			NumSenders: n.NumSenders,
			OnTime:     n.OnTime,
			OffTime:    n.OffTime,
			CCAFactory: remy.Factory(policy, n.NewRepeat),
		}
	})
}

// Config bundles the coordinate-descent trainer's parameters (§4.10, §2
// config surface RuleTreeTrainerConfig).
type Config struct {
	Network NetworkTemplate

	RuleSplits         int // R: number of leaf splits to perform
	OptimizationRounds int // K: optimization rounds run after each split

	// DeltaLevels is the number of exponentially-halved magnitude levels
	// tried per action coordinate, in each sign, in addition to zero
	// (§4.10 step 3 "exponentially-spaced positive-and-negative deltas").
	DeltaLevels int

	// MaxActionChange bounds the magnitude of a single candidate delta per
	// coordinate; MinAction/MaxAction bound the resulting absolute action.
	MaxActionChange ruletree.Action
	MinAction       ruletree.Action
	MaxAction       ruletree.Action

	Eval    eval.Config
	Utility eval.UtilityFunction
}

// Trainer grows and optimizes one rule tree under Config.
type Trainer struct {
	cfg  Config
	tree *ruletree.RuleTree
	rng  *simrand.Rng
}

// New returns a Trainer starting from a single-leaf tree with the default
// action (§4.10 "starting from a single-leaf tree with the default
// action").
func New(cfg Config, rng *simrand.Rng) *Trainer {
	return &Trainer{
		cfg:  cfg,
		tree: ruletree.New(ruletree.DefaultAction),
		rng:  rng,
	}
}

// Tree returns the tree built (and possibly still being optimized) so far.
func (t *Trainer) Tree() *ruletree.RuleTree { return t.tree }

// Progress is reported after every split iteration (§4.10 step "report
// progress").
type Progress struct {
	Split      int // 0 is the initial count-and-optimize pass, before any split
	NumLeaves  int
	MeanUtility float64
}

// ProgressFunc receives a Progress report after each split iteration.
// report may be nil.
type ProgressFunc func(Progress)

// Train runs cfg.RuleSplits split iterations, each preceded by a count pass
// and followed by cfg.OptimizationRounds optimization rounds (§4.10). The
// very first iteration only counts and optimizes, per "skipped on the
// first iteration, which only establishes counts". report, if non-nil, is
// called once per iteration with the tree's current mean utility.
func (t *Trainer) Train(ctx context.Context, report ProgressFunc) error {
	for i := 0; i <= t.cfg.RuleSplits; i++ {
		counts, err := t.count(ctx)
		if err != nil {
			return err
		}
		if i > 0 {
			leaf, ok := counts.MostUsed(false)
			if !ok {
				continue
			}
			t.tree.Split(leaf)
			counts, err = t.count(ctx)
			if err != nil {
				return err
			}
		}
		for round := 0; round < t.cfg.OptimizationRounds; round++ {
			if err := t.optimizeRound(ctx, counts); err != nil {
				return err
			}
			t.tree.ClearOptimizedFlags()
		}
		if report != nil {
			u, err := t.score(ctx, t.tree.AsPolicy())
			if err != nil {
				return err
			}
			report(Progress{Split: i, NumLeaves: len(t.tree.Leaves()), MeanUtility: u})
		}
	}
	return nil
}

// count runs the evaluation harness in counting mode (§4.10 step 1).
func (t *Trainer) count(ctx context.Context) (*ruletree.CountingPolicy, error) {
	cp := ruletree.NewCountingPolicy(t.tree)
	dist := t.cfg.Network.distribution(cp)
	_, err := eval.Run(ctx, dist, t.cfg.Utility, t.rng.Child(), t.cfg.Eval)
	if err != nil && !errors.Is(err, eval.NoActiveFlows) {
		return nil, err
	}
	return cp, nil
}

// optimizeRound repeatedly picks the most-used not-yet-optimized leaf and
// locally optimizes it until none remain (§4.10 step 3).
func (t *Trainer) optimizeRound(ctx context.Context, counts *ruletree.CountingPolicy) error {
	for {
		leaf, ok := counts.MostUsed(true)
		if !ok || counts.Count(leaf) == 0 {
			return nil
		}
		if err := t.optimizeLeaf(ctx, leaf); err != nil {
			return err
		}
		t.tree.MarkOptimized(leaf)
	}
}

// optimizeLeaf repeatedly tries every candidate delta and installs the
// best strictly-improving one, stopping when no candidate improves on the
// tree's current score (§4.10 step 3).
func (t *Trainer) optimizeLeaf(ctx context.Context, leaf int) error {
	for {
		baseline, err := t.score(ctx, t.tree.AsPolicy())
		if err != nil {
			return err
		}

		current := t.tree.Action(leaf)
		candidates := t.candidates(current)

		type scored struct {
			action ruletree.Action
			value  float64
		}
		results := make([]scored, len(candidates))
		g, gctx := errgroup.WithContext(ctx)
		for i, cand := range candidates {
			i, cand := i, cand
			g.Go(func() error {
				s, err := t.score(gctx, ruletree.NewOverridePolicy(t.tree, leaf, cand))
				if err != nil {
					return err
				}
				results[i] = scored{cand, s}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		best := scored{current, baseline}
		for _, r := range results {
			if r.value > best.value {
				best = r
			}
		}
		if best.value <= baseline {
			return nil
		}
		t.tree.SetAction(leaf, best.action)
	}
}

// score evaluates policy across a fresh batch of sampled networks,
// treating an all-idle batch (no active flow anywhere) as the worst
// possible score rather than an error, so optimization always has a
// strictly-improvable baseline to compare against.
func (t *Trainer) score(ctx context.Context, policy ruletree.Policy) (float64, error) {
	dist := t.cfg.Network.distribution(policy)
	res, err := eval.Run(ctx, dist, t.cfg.Utility, t.rng.Child(), t.cfg.Eval)
	if err != nil {
		if errors.Is(err, eval.NoActiveFlows) {
			return math.Inf(-1), nil
		}
		return 0, err
	}
	return res.MeanUtility, nil
}

// candidates enumerates the Cartesian product of per-coordinate deltas
// around current, clamped to [MinAction, MaxAction] (§4.10 step 3
// "Cartesian product of exponentially-spaced positive-and-negative
// deltas... bounded by max_action_change and {min_action, max_action}").
func (t *Trainer) candidates(current ruletree.Action) []ruletree.Action {
	multDeltas := floatLevels(t.cfg.DeltaLevels, t.cfg.MaxActionChange.WindowMultiplier)
	incDeltas := int32Levels(t.cfg.DeltaLevels, t.cfg.MaxActionChange.WindowIncrement)
	delayDeltas := spanLevels(t.cfg.DeltaLevels, t.cfg.MaxActionChange.IntersendDelay)

	out := make([]ruletree.Action, 0, len(multDeltas)*len(incDeltas)*len(delayDeltas))
	for _, dm := range multDeltas {
		for _, di := range incDeltas {
			for _, dd := range delayDeltas {
				if dm == 0 && di == 0 && dd == 0 {
					continue // identical to the already-scored baseline
				}
				out = append(out, ruletree.Action{
					WindowMultiplier: clampFloat(current.WindowMultiplier+dm, t.cfg.MinAction.WindowMultiplier, t.cfg.MaxAction.WindowMultiplier),
					WindowIncrement:  clampInt32(current.WindowIncrement+di, t.cfg.MinAction.WindowIncrement, t.cfg.MaxAction.WindowIncrement),
					IntersendDelay:   clampSpan(current.IntersendDelay+dd, t.cfg.MinAction.IntersendDelay, t.cfg.MaxAction.IntersendDelay),
				})
			}
		}
	}
	return out
}

// floatLevels returns {0, ±max, ±max/2, ..., ±max/2^(levels-1)}.
func floatLevels(levels int, max float64) []float64 {
	out := []float64{0}
	if max <= 0 {
		return out
	}
	for i := 0; i < levels; i++ {
		m := max / math.Pow(2, float64(i))
		out = append(out, m, -m)
	}
	return out
}

func int32Levels(levels int, max int32) []int32 {
	out := []int32{0}
	if max <= 0 {
		return out
	}
	m := max
	for i := 0; i < levels && m > 0; i++ {
		out = append(out, m, -m)
		m /= 2
	}
	return out
}

func spanLevels(levels int, max quantities.TimeSpan) []quantities.TimeSpan {
	out := []quantities.TimeSpan{0}
	if max <= 0 {
		return out
	}
	for i := 0; i < levels; i++ {
		m := max.Scale(1 / math.Pow(2, float64(i)))
		out = append(out, m, m.Scale(-1))
	}
	return out
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

func clampInt32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampSpan(v, lo, hi quantities.TimeSpan) quantities.TimeSpan {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
