package config

import (
	"fmt"

	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/flow"
	"github.com/heistp/flowforge/internal/simrand"
	"github.com/heistp/flowforge/internal/trainer/delaymultiplier"
	"github.com/heistp/flowforge/internal/trainer/neural"
	ruletreetrainer "github.com/heistp/flowforge/internal/trainer/ruletree"
)

// RuleTreeNetworkTemplate converts n to the shape internal/trainer/ruletree
// expects, leaving NewRepeat unset (callers needing per-flow repeat caches
// set it afterward).
func (n NetworkConfig) RuleTreeNetworkTemplate() ruletreetrainer.NetworkTemplate {
	return ruletreetrainer.NetworkTemplate{
		Link:       n.Link,
		NumSenders: n.NumSenders,
		OnTime:     n.OnTime.Distribution,
		OffTime:    n.OffTime.Distribution,
	}
}

// NeuralNetworkTemplate converts n to the shape internal/trainer/neural
// expects.
func (n NetworkConfig) NeuralNetworkTemplate() neural.NetworkTemplate {
	return neural.NetworkTemplate{
		Link:       n.Link,
		NumSenders: n.NumSenders,
		OnTime:     n.OnTime.Distribution,
		OffTime:    n.OffTime.Distribution,
	}
}

// DelayMultiplierNetworkTemplate converts n to the shape
// internal/trainer/delaymultiplier expects.
func (n NetworkConfig) DelayMultiplierNetworkTemplate() delaymultiplier.NetworkTemplate {
	return delaymultiplier.NetworkTemplate{
		Link:       n.Link,
		NumSenders: n.NumSenders,
		OnTime:     n.OnTime.Distribution,
		OffTime:    n.OffTime.Distribution,
	}
}

// FromRuleTreeNetworkTemplate builds a NetworkConfig from a running
// trainer's template.
func FromRuleTreeNetworkTemplate(t ruletreetrainer.NetworkTemplate) NetworkConfig {
	return NetworkConfig{
		Link:       t.Link,
		NumSenders: t.NumSenders,
		OnTime:     simrand.DistributionBox{Distribution: t.OnTime},
		OffTime:    simrand.DistributionBox{Distribution: t.OffTime},
	}
}

// TrainerConfig converts c plus a caller-supplied utility function to
// internal/trainer/ruletree's runtime Config.
func (c RuleTreeTrainerConfig) TrainerConfig(utility eval.UtilityFunction) ruletreetrainer.Config {
	return ruletreetrainer.Config{
		Network:            c.Network.RuleTreeNetworkTemplate(),
		RuleSplits:         c.RuleSplits,
		OptimizationRounds: c.OptimizationRounds,
		DeltaLevels:        c.DeltaLevels,
		MaxActionChange:    c.MaxActionChange,
		MinAction:          c.MinAction,
		MaxAction:          c.MaxAction,
		Eval:               c.Eval,
		Utility:            utility,
	}
}

// TrainerConfig converts c plus a caller-supplied utility function to
// internal/trainer/neural's runtime Config.
func (c NeuralTrainerConfig) TrainerConfig(utility func(flow.Properties) float64) (neural.Config, error) {
	discount, err := c.Discount.Discounting()
	if err != nil {
		return neural.Config{}, err
	}
	return neural.Config{
		Network:            c.Network.NeuralNetworkTemplate(),
		Iterations:         c.Iterations,
		RolloutNetworks:    c.RolloutNetworks,
		RunRolloutFor:      c.RunRolloutFor,
		UpdatePasses:       c.UpdatePasses,
		Minibatches:        c.Minibatches,
		Discount:           discount,
		ClipEpsilon:        c.ClipEpsilon,
		ClipEpsilonFinal:   c.ClipEpsilonFinal,
		ValueCoefficient:   c.ValueCoefficient,
		EntropyCoefficient: c.EntropyCoefficient,
		LearningRate:       c.LearningRate,
		LearningRateFinal:  c.LearningRateFinal,
		WeightDecay:        c.WeightDecay,
		PointBounds:        c.PointBounds,
		ActionBounds:       c.ActionBounds,
		Utility:            utility,
	}, nil
}

// TrainerConfig converts c plus a caller-supplied utility function to
// internal/trainer/delaymultiplier's runtime Config.
func (c DelayMultiplierTrainerConfig) TrainerConfig(utility eval.UtilityFunction) delaymultiplier.Config {
	return delaymultiplier.Config{
		Network:       c.Network.DelayMultiplierNetworkTemplate(),
		MinMultiplier: c.MinMultiplier,
		MaxMultiplier: c.MaxMultiplier,
		Rounds:        c.Rounds,
		BracketSteps:  c.BracketSteps,
		Eval:          c.Eval,
		Utility:       utility,
	}
}

// Discounting converts d to the runtime type, validating Kind.
func (d DiscountConfig) Discounting() (neural.Discounting, error) {
	switch neural.DiscountKind(d.Kind) {
	case neural.Discrete, neural.DiscreteDelta, neural.DiscreteRate, neural.ContinuousRate:
		return neural.Discounting{
			Kind:     neural.DiscountKind(d.Kind),
			Gamma:    d.Gamma,
			HalfLife: d.HalfLife,
		}, nil
	default:
		return neural.Discounting{}, fmt.Errorf("config: unrecognized discount kind %q", d.Kind)
	}
}
