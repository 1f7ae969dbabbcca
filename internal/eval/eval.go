// Package eval implements the evaluation harness of spec.md §4.9: draw
// independent networks from a distribution, run each to completion in
// parallel, collect per-flow throughput/RTT, and aggregate per-network
// utility. Parallelism is via golang.org/x/sync/errgroup (not a teacher
// dependency; wired in per SPEC_FULL.md's DOMAIN STACK section since
// heistp-scim runs everything on one goroutine and this is the one place
// spec.md explicitly calls for "for each network in parallel").
package eval

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/heistp/flowforge/internal/average"
	"github.com/heistp/flowforge/internal/flow"
	"github.com/heistp/flowforge/internal/network"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/simlog"
	"github.com/heistp/flowforge/internal/simrand"
)

// NoActiveFlows is returned when no sampled network produced any flow that
// ever received an ack (§4.9 step 3, §7 sentinel errors).
var NoActiveFlows = errors.New("eval: no network produced an active flow")

// UtilityFunction scores a set of per-flow properties from one network run.
// Trainers supply proportional-throughput-delay fairness or similar;
// internal/trainer packages own the concrete implementations.
type UtilityFunction func(flows []flow.Properties) float64

// Config bundles the evaluation harness's run-shape parameters
// (§4.9 "(network_samples, run_sim_for)").
type Config struct {
	NetworkSamples int                 `json:"network_samples"`
	RunSimFor      quantities.TimeSpan `json:"run_sim_for"`
}

// Result is the evaluation harness's aggregate output (§4.9 step 3).
type Result struct {
	MeanUtility        float64
	MeanFlowProperties flow.Properties
}

// Run implements §4.9: draws cfg.NetworkSamples independent networks from
// dist, builds and runs each in parallel until cfg.RunSimFor, and
// aggregates per-flow properties through utility. To run in "count mode"
// (§4.10 step 1), pass a NetworkDistribution whose CCA factory wraps its
// rule tree in a ruletree.CountingPolicy and read the counts back from that
// policy after Run returns — the harness itself needs no special support
// for counting, since the policy owns its own counters.
func Run(ctx context.Context, dist network.NetworkDistribution, utility UtilityFunction, rng *simrand.Rng, cfg Config) (Result, error) {
	children := rng.Children(cfg.NetworkSamples)
	utilities := make([]float64, cfg.NetworkSamples)
	properties := make([]flow.Properties, cfg.NetworkSamples)
	active := make([]bool, cfg.NetworkSamples)

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < cfg.NetworkSamples; i++ {
		i := i
		g.Go(func() error {
			sample := dist.Sample(children[i])
			built := network.Build(sample, children[i], simlog.Nothing{})
			built.Sim.Run(func(now quantities.Time) bool {
				return now <= quantities.SimulationStart.Add(cfg.RunSimFor)
			})

			props, anyActive := collectFlows(built.Meters)
			if !anyActive {
				return nil
			}
			agg, err := flow.AverageProperties(props)
			if err != nil {
				return nil
			}
			active[i] = true
			properties[i] = agg
			utilities[i] = utility(props)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var usedUtil []float64
	var usedProps []flow.Properties
	for i := range active {
		if active[i] {
			usedUtil = append(usedUtil, utilities[i])
			usedProps = append(usedProps, properties[i])
		}
	}
	if len(usedUtil) == 0 {
		return Result{}, NoActiveFlows
	}
	meanUtil, err := average.MeanOf(usedUtil)
	if err != nil {
		return Result{}, NoActiveFlows
	}
	meanProps, err := flow.AverageProperties(usedProps)
	if err != nil {
		return Result{}, NoActiveFlows
	}
	return Result{MeanUtility: meanUtil, MeanFlowProperties: meanProps}, nil
}

// collectFlows reads back each sender's metered properties, reporting
// whether at least one flow was active (received any ack) at all.
func collectFlows(meters []*flow.Meter) ([]flow.Properties, bool) {
	var out []flow.Properties
	any := false
	for _, m := range meters {
		p, err := m.Properties()
		if err != nil {
			continue
		}
		out = append(out, p)
		any = true
	}
	return out, any
}
