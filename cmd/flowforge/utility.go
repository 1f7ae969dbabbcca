package main

import (
	"fmt"

	"github.com/heistp/flowforge/internal/utility"
)

// resolveUtility maps the --utility flag's name to one of
// internal/utility's named α-fair presets (spec.md glossary "the α-fair
// family"; the presets themselves are grounded on
// original_source/src/flow.rs).
func resolveUtility(name string) (utility.AlphaFairness, error) {
	switch name {
	case "proportional-throughput-delay", "":
		return utility.ProportionalThroughputDelayFairness, nil
	case "minimise-fixed-length-file-transfer":
		return utility.MinimiseFixedLengthFileTransfer, nil
	default:
		return utility.AlphaFairness{}, fmt.Errorf("flowforge: unrecognized --utility %q (want proportional-throughput-delay or minimise-fixed-length-file-transfer)", name)
	}
}
