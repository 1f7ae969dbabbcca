package ruletree

import "sync/atomic"

// node is either an interior node (8 children, fixed fan-out) or a leaf
// (an Action and an optimized flag), matching §3's rule-tree node variants.
type node struct {
	domain     Cube
	isLeaf     bool
	children   [8]int // valid when !isLeaf
	action     Action // valid when isLeaf
	optimized  bool   // valid when isLeaf
}

// RuleTree is the octree policy described in §3/§4.8. The zero value is
// not usable; construct with New, a Builder, or remydna.Unmarshal.
type RuleTree struct {
	nodes []node
	root  int
}

// New returns a single-leaf tree covering the whole root cuboid with the
// given default action (§3 "Lifecycle: constructed from a default action
// (single leaf = root)").
func New(defaultAction Action) *RuleTree {
	return &RuleTree{
		nodes: []node{{domain: RootCube(), isLeaf: true, action: defaultAction}},
		root:  0,
	}
}

// Builder constructs a RuleTree node-by-node in an arbitrary order,
// followed by Finish. internal/remydna uses this to reconstruct a tree
// from a WhiskerTree protobuf message, whose shape (interior vs. leaf) is
// determined recursively while parsing.
type Builder struct {
	nodes []node
}

// NewBuilder returns an empty tree Builder.
func NewBuilder() *Builder { return &Builder{} }

// AddLeaf appends a leaf node and returns its index.
func (b *Builder) AddLeaf(domain Cube, action Action) int {
	b.nodes = append(b.nodes, node{domain: domain, isLeaf: true, action: action})
	return len(b.nodes) - 1
}

// AddInterior appends an interior node with the given children (which must
// already have been added) and returns its index.
func (b *Builder) AddInterior(domain Cube, children [8]int) int {
	b.nodes = append(b.nodes, node{domain: domain, isLeaf: false, children: children})
	return len(b.nodes) - 1
}

// Finish returns the built RuleTree rooted at root.
func (b *Builder) Finish(root int) *RuleTree {
	return &RuleTree{nodes: b.nodes, root: root}
}

// NumNodes returns the total number of nodes (interior + leaf).
func (t *RuleTree) NumNodes() int { return len(t.nodes) }

// Root returns the index of the root node.
func (t *RuleTree) Root() int { return t.root }

// IsLeaf reports whether node index i is a leaf.
func (t *RuleTree) IsLeaf(i int) bool { return t.nodes[i].isLeaf }

// Domain returns the cuboid of node index i.
func (t *RuleTree) Domain(i int) Cube { return t.nodes[i].domain }

// Children returns the 8 child indices of interior node i.
func (t *RuleTree) Children(i int) [8]int { return t.nodes[i].children }

// Action returns the action stored at leaf index i.
func (t *RuleTree) Action(i int) Action { return t.nodes[i].action }

// Optimized reports whether leaf index i has been marked optimized.
func (t *RuleTree) Optimized(i int) bool { return t.nodes[i].optimized }

// SetAction overwrites the action at leaf index i in place (§3 "a leaf's
// action may be mutated in place during optimization").
func (t *RuleTree) SetAction(i int, a Action) { t.nodes[i].action = a }

// MarkOptimized sets the optimized flag at leaf index i.
func (t *RuleTree) MarkOptimized(i int) { t.nodes[i].optimized = true }

// ClearOptimizedFlags resets every leaf's optimized flag to false (§4.10:
// "after each round, clear all optimized flags").
func (t *RuleTree) ClearOptimizedFlags() {
	for i := range t.nodes {
		if t.nodes[i].isLeaf {
			t.nodes[i].optimized = false
		}
	}
}

// Leaves returns the indices of every leaf node.
func (t *RuleTree) Leaves() []int {
	var out []int
	for i, n := range t.nodes {
		if n.isLeaf {
			out = append(out, i)
		}
	}
	return out
}

// descend walks from idx to the leaf containing p, consulting override at
// every leaf visited along the way (§4.8 "Override variant"/"Counting
// variant" both hook the same descent).
func (t *RuleTree) descend(idx int, p Point, override func(leaf int) (Action, bool)) Action {
	for {
		n := &t.nodes[idx]
		if n.isLeaf {
			if a, ok := override(idx); ok {
				return a
			}
			return n.action
		}
		idx = t.childContaining(n, p)
	}
}

// childContaining returns the unique child of interior node n whose
// cuboid contains p (§4.8 "Lookup": "pick the unique child whose cuboid
// contains the query point").
func (t *RuleTree) childContaining(n *node, p Point) int {
	for _, c := range n.children {
		if t.nodes[c].domain.Contains(p) {
			return c
		}
	}
	// p fell outside every child, which only happens if it was outside
	// the root cuboid to begin with; fall back to the last child so
	// lookups never panic on out-of-range points (callers are expected to
	// clamp to the root cuboid before querying, per §4.7.2/4.7.3).
	return n.children[len(n.children)-1]
}

// Lookup returns the action for the leaf containing p, with no override
// (§4.8 "Lookup").
func (t *RuleTree) Lookup(p Point) Action {
	return t.descend(t.root, p, func(int) (Action, bool) { return Action{}, false })
}

// LeafFor returns the index of the leaf containing p.
func (t *RuleTree) LeafFor(p Point) int {
	idx := t.root
	for !t.nodes[idx].isLeaf {
		idx = t.childContaining(&t.nodes[idx], p)
	}
	return idx
}

// Split replaces leaf index leaf with an interior node whose 8 children
// inherit the original action and are marked unoptimized, partitioning the
// cuboid by midpoint on each axis (§3 "Split", §4.8 "Split").
func (t *RuleTree) Split(leaf int) {
	n := t.nodes[leaf]
	if !n.isLeaf {
		panic("ruletree: Split called on an interior node")
	}
	subs := n.domain.Split()
	var children [8]int
	for i, sub := range subs {
		children[i] = len(t.nodes)
		t.nodes = append(t.nodes, node{
			domain: sub,
			isLeaf: true,
			action: n.action,
		})
	}
	t.nodes[leaf] = node{
		domain:   n.domain,
		isLeaf:   false,
		children: children,
	}
}

// Policy is anything that can be consulted for an action at a memory
// point; CCAs depend on this interface rather than *RuleTree directly so
// the counting and override wrappers can be substituted transparently
// (§4.8 "Counting variant", "Override variant").
type Policy interface {
	Action(p Point) Action
}

// treeAction looks p up in a bare RuleTree (no counting, no override); it
// backs plainPolicy's Action.
func (t *RuleTree) treeAction(p Point) Action { return t.Lookup(p) }

type plainPolicy struct{ tree *RuleTree }

// Action implements Policy.
func (p plainPolicy) Action(pt Point) Action { return p.tree.treeAction(pt) }

// AsPolicy adapts t to the Policy interface with no counting or override.
func (t *RuleTree) AsPolicy() Policy { return plainPolicy{t} }

// CountingPolicy wraps a RuleTree so every lookup atomically increments a
// per-leaf use counter (§4.8 "Counting variant": "shared-read, atomic
// writes; no lock"). Safe for concurrent use by many senders across many
// parallel simulation workers evaluating the same tree.
type CountingPolicy struct {
	tree   *RuleTree
	counts []uint64 // indexed by node index; only leaf entries are used
}

// NewCountingPolicy wraps tree with a fresh zeroed counter per node.
func NewCountingPolicy(tree *RuleTree) *CountingPolicy {
	return &CountingPolicy{tree: tree, counts: make([]uint64, len(tree.nodes))}
}

// Action implements Policy, incrementing the visited leaf's counter.
func (c *CountingPolicy) Action(p Point) Action {
	var leaf int
	a := c.tree.descend(c.tree.root, p, func(idx int) (Action, bool) {
		leaf = idx
		return Action{}, false
	})
	atomic.AddUint64(&c.counts[leaf], 1)
	return a
}

// Count returns the current use count for leaf index i.
func (c *CountingPolicy) Count(i int) uint64 { return atomic.LoadUint64(&c.counts[i]) }

// TotalCount returns the sum of every leaf's use count.
func (c *CountingPolicy) TotalCount() uint64 {
	var total uint64
	for _, leaf := range c.tree.Leaves() {
		total += c.Count(leaf)
	}
	return total
}

// MostUsed returns the index of the leaf with the highest use count,
// optionally restricted to leaves not yet marked optimized (§4.8
// "Most-used"). ok is false if no eligible leaf has a nonzero count.
func (c *CountingPolicy) MostUsed(onlyUnoptimized bool) (leaf int, ok bool) {
	best := uint64(0)
	found := false
	for _, i := range c.tree.Leaves() {
		if onlyUnoptimized && c.tree.Optimized(i) {
			continue
		}
		n := c.Count(i)
		if n == 0 {
			continue
		}
		if !found || n > best {
			best = n
			leaf = i
			found = true
		}
	}
	return leaf, found
}

// OverridePolicy evaluates the tree as if leaf's action were replaced by
// candidate, without mutating the tree (§4.8 "Override variant"), used by
// the rule-tree trainer to score a candidate action delta in parallel with
// other candidates.
type OverridePolicy struct {
	tree      *RuleTree
	leaf      int
	candidate Action
}

// NewOverridePolicy returns a Policy that behaves like tree except at
// node index leaf, where it returns candidate instead of the stored
// action.
func NewOverridePolicy(tree *RuleTree, leaf int, candidate Action) *OverridePolicy {
	return &OverridePolicy{tree: tree, leaf: leaf, candidate: candidate}
}

// Equal reports whether t and other have the same shape, domains, and
// actions (ignoring the optimized flag).
func (t *RuleTree) Equal(other *RuleTree) bool {
	return nodeEqual(t, t.root, other, other.root)
}

func nodeEqual(a *RuleTree, ai int, b *RuleTree, bi int) bool {
	na, nb := a.nodes[ai], b.nodes[bi]
	if na.isLeaf != nb.isLeaf || na.domain != nb.domain {
		return false
	}
	if na.isLeaf {
		return na.action == nb.action
	}
	for i := range na.children {
		if !nodeEqual(a, na.children[i], b, nb.children[i]) {
			return false
		}
	}
	return true
}

// Action implements Policy.
func (o *OverridePolicy) Action(p Point) Action {
	return o.tree.descend(o.tree.root, p, func(idx int) (Action, bool) {
		if idx == o.leaf {
			return o.candidate, true
		}
		return Action{}, false
	})
}
