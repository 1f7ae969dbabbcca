// Package utility implements the α-fair utility function family spec.md's
// glossary names ("Utility: a scalar summarizing the quality of a set of
// flows; here the α-fair family") but never defines in the distilled spec
// body. Grounded on original_source/src/flow.rs's AlphaFairness and
// alpha_fairness, translated directly rather than reinvented: same epsilon,
// same log-at-alpha=1 special case, same two named presets and two
// aggregation modes.
package utility

import (
	"math"

	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/flow"
)

// epsilon keeps alpha_fairness finite at x=0 and distinguishes alpha=1 from
// its neighborhood, matching flow.rs's 0.000_001 constant exactly.
const epsilon = 0.000001

// alphaFairness is alpha_fairness(x, alpha) from flow.rs: ln(x+eps) at
// alpha=1, else (x+eps)^(1-alpha)/(1-alpha).
func alphaFairness(x, alpha float64) float64 {
	x += epsilon
	if math.Abs(alpha-1) < epsilon {
		return math.Log(x)
	}
	return math.Pow(x, 1-alpha) / (1 - alpha)
}

// Aggregator reduces one utility score per flow to a single network score
// (flow.rs's FlowUtilityAggregator).
type Aggregator int

const (
	// Mean averages per-flow scores.
	Mean Aggregator = iota
	// Minimum takes the worst per-flow score, favoring fairness over
	// aggregate throughput.
	Minimum
)

// aggregate reduces scores according to a, panicking on an unrecognized
// Aggregator since it can only arise from a coding error, never input data.
func (a Aggregator) aggregate(scores []float64) float64 {
	switch a {
	case Mean:
		var sum float64
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	case Minimum:
		min := scores[0]
		for _, s := range scores[1:] {
			if s < min {
				min = s
			}
		}
		return min
	default:
		panic("utility: unrecognized Aggregator")
	}
}

// AlphaFairness is the alpha-fair utility function of flow.rs: a flow's
// score trades off throughput (alpha-fair) against RTT (beta-fair, clamped
// to WorstCaseRTT and subtracted with weight Delta), and per-flow scores are
// reduced to one network score via Aggregator.
type AlphaFairness struct {
	Alpha        float64
	Beta         float64
	Delta        float64
	WorstCaseRTT float64 // seconds
	Aggregator   Aggregator
}

// ProportionalThroughputDelayFairness is flow.rs's
// PROPORTIONAL_THROUGHPUT_DELAY_FAIRNESS preset: proportional (alpha=1)
// fairness in throughput, proportional fairness in delay subtracted at full
// weight, averaged across flows.
var ProportionalThroughputDelayFairness = AlphaFairness{
	Alpha:        1,
	Beta:         1,
	Delta:        1,
	WorstCaseRTT: 10,
	Aggregator:   Mean,
}

// MinimiseFixedLengthFileTransfer is flow.rs's
// MINIMISE_FIXED_LENGTH_FILE_TRANSFER preset: quadratic (alpha=2) penalty on
// low throughput, no delay term, averaged across flows.
var MinimiseFixedLengthFileTransfer = AlphaFairness{
	Alpha:        2,
	Beta:         0,
	Delta:        0,
	WorstCaseRTT: 10,
	Aggregator:   Mean,
}

// FlowUtility scores a single flow's properties (flow.rs's flow_utility):
// alpha_fairness(throughput) minus Delta times alpha_fairness(clamped RTT).
func (a AlphaFairness) FlowUtility(p flow.Properties) float64 {
	throughput := p.Throughput.BitsPerSecond()
	rtt := p.RTT.Seconds()
	if rtt < 0 {
		rtt = 0
	}
	if rtt > a.WorstCaseRTT {
		rtt = a.WorstCaseRTT
	}
	return alphaFairness(throughput, a.Alpha) - a.Delta*alphaFairness(rtt, a.Beta)
}

// UtilityFunction adapts a to an eval.UtilityFunction, scoring every flow and
// reducing via a.Aggregator. Passed directly as the trainers' Utility field
// once the CLI's --utility flag selects a preset.
func (a AlphaFairness) UtilityFunction() eval.UtilityFunction {
	return func(flows []flow.Properties) float64 {
		scores := make([]float64, len(flows))
		for i, f := range flows {
			scores[i] = a.FlowUtility(f)
		}
		return a.Aggregator.aggregate(scores)
	}
}
