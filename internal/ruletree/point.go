// Package ruletree implements the piecewise-constant policy (spec.md §3
// "Rule tree", §4.8 "Rule-tree engine"): an octree over the memory-point
// cuboid whose leaves store congestion-control Actions. Lookup, counting,
// override, most-used selection, and splitting all live here; the CCA that
// consults a tree (internal/cca/remy) and the trainer that grows one
// (internal/trainer/ruletree) are built on top.
package ruletree

// Point is the 3-tuple memory point (§3, glossary "Memory point") that
// indexes the rule tree: exponentially-weighted ack and send intervals,
// and the ratio of current to minimum observed RTT.
type Point struct {
	AckEWMA  float64
	SendEWMA float64
	RTTRatio float64
}
