// Package config implements JSON load/save for the config-file surface of
// spec.md §6: network distributions, evaluation harness parameters, and
// the two trainers' hyperparameters. Grounded on the teacher's config.go
// (a single hardcoded Go-source configuration), generalized into loadable/
// saveable documents since §6 requires a config-file surface the teacher
// itself never had (it recompiles to change its network). Uses plain
// encoding/json per SPEC_FULL.md's AMBIENT STACK note: §6 mandates JSON as
// the wire format, so there's no ecosystem serialization library to reach
// for here.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/heistp/flowforge/internal/eval"
	"github.com/heistp/flowforge/internal/network"
	"github.com/heistp/flowforge/internal/neuralpolicy"
	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/ruletree"
	"github.com/heistp/flowforge/internal/simrand"
)

// NetworkConfig is the JSON shape of a trainer's or the trace subcommand's
// NetworkTemplate: every Sample field except the CCA factory, which is
// chosen out-of-band by the subcommand (which policy family, and whether
// it's fresh or loaded from a DNA/policy file) rather than serialized here.
type NetworkConfig struct {
	Link       network.LinkConfig      `json:"link"`
	NumSenders int                     `json:"num_senders"`
	OnTime     simrand.DistributionBox `json:"on_time"`
	OffTime    simrand.DistributionBox `json:"off_time"`
}

// RuleTreeTrainerConfig is the JSON shape of internal/trainer/ruletree's
// Config, minus the Utility callback (selected by the CLI's
// --utility flag, not stored in the config file).
type RuleTreeTrainerConfig struct {
	Network NetworkConfig `json:"network"`

	RuleSplits         int `json:"rule_splits"`
	OptimizationRounds int `json:"optimization_rounds"`
	DeltaLevels        int `json:"delta_levels"`

	MaxActionChange ruletree.Action `json:"max_action_change"`
	MinAction       ruletree.Action `json:"min_action"`
	MaxAction       ruletree.Action `json:"max_action"`

	Eval eval.Config `json:"eval"`
}

// NeuralTrainerConfig is the JSON shape of internal/trainer/neural's
// Config, minus the Utility callback.
type NeuralTrainerConfig struct {
	Network NetworkConfig `json:"network"`

	Iterations      int                 `json:"iterations"`
	RolloutNetworks int                 `json:"rollout_networks"`
	RunRolloutFor   quantities.TimeSpan `json:"run_rollout_for"`

	UpdatePasses int `json:"update_passes"`
	Minibatches  int `json:"minibatches"`

	Discount DiscountConfig `json:"discount"`

	ClipEpsilon      float64 `json:"clip_epsilon"`
	ClipEpsilonFinal float64 `json:"clip_epsilon_final"`

	ValueCoefficient   float64 `json:"value_coefficient"`
	EntropyCoefficient float64 `json:"entropy_coefficient"`

	LearningRate      float64 `json:"learning_rate"`
	LearningRateFinal float64 `json:"learning_rate_final"`
	WeightDecay       float64 `json:"weight_decay"`

	PointBounds  neuralpolicy.Bounds `json:"point_bounds"`
	ActionBounds neuralpolicy.Bounds `json:"action_bounds"`
}

// DelayMultiplierTrainerConfig is the JSON shape of
// internal/trainer/delaymultiplier's Config, minus the Utility callback.
type DelayMultiplierTrainerConfig struct {
	Network NetworkConfig `json:"network"`

	MinMultiplier float64 `json:"min_multiplier"`
	MaxMultiplier float64 `json:"max_multiplier"`
	Rounds        int     `json:"rounds"`
	BracketSteps  int     `json:"bracket_steps"`

	Eval eval.Config `json:"eval"`
}

// DiscountConfig is the JSON shape of the neural trainer's Discounting.
type DiscountConfig struct {
	Kind     string              `json:"kind"` // "discrete", "discrete_delta", "discrete_rate", "continuous_rate"
	Gamma    float64             `json:"gamma,omitempty"`
	HalfLife quantities.TimeSpan `json:"half_life,omitempty"`
}

// Load reads and parses a JSON document of type T from path.
func Load[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return v, nil
}

// Save writes v to path as indented JSON.
func Save[T any](path string, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}
