package ruletree

import "testing"

func defaultTestAction() Action {
	return Action{WindowMultiplier: 1, WindowIncrement: 2, IntersendDelay: 0}
}

func TestNewIsSingleLeaf(t *testing.T) {
	tree := New(defaultTestAction())
	if tree.NumNodes() != 1 {
		t.Fatalf("NumNodes() = %d, want 1", tree.NumNodes())
	}
	if !tree.IsLeaf(tree.Root()) {
		t.Fatal("fresh tree's root should be a leaf")
	}
	if got := tree.Lookup(Point{1, 2, 3}); got != defaultTestAction() {
		t.Errorf("Lookup() = %+v, want %+v", got, defaultTestAction())
	}
}

func TestSplitProducesEightChildrenInheritingAction(t *testing.T) {
	tree := New(defaultTestAction())
	root := tree.Root()
	tree.Split(root)

	if tree.IsLeaf(root) {
		t.Fatal("split node should no longer be a leaf")
	}
	children := tree.Children(root)
	if len(tree.Leaves()) != 8 {
		t.Fatalf("Leaves() has %d entries, want 8", len(tree.Leaves()))
	}
	for _, c := range children {
		if !tree.IsLeaf(c) {
			t.Errorf("child %d should be a leaf", c)
		}
		if tree.Action(c) != defaultTestAction() {
			t.Errorf("child %d action = %+v, want inherited %+v", c, tree.Action(c), defaultTestAction())
		}
		if tree.Optimized(c) {
			t.Errorf("child %d should start unoptimized", c)
		}
	}
}

func TestSplitOnInteriorPanics(t *testing.T) {
	tree := New(defaultTestAction())
	tree.Split(tree.Root())
	defer func() {
		if recover() == nil {
			t.Error("expected panic splitting an interior node")
		}
	}()
	tree.Split(tree.Root())
}

func TestLookupFindsCorrectLeafAfterSplit(t *testing.T) {
	tree := New(defaultTestAction())
	tree.Split(tree.Root())
	leaf := tree.LeafFor(Point{DefaultMax, DefaultMax, DefaultMax})
	want := Action{WindowMultiplier: 42}
	tree.SetAction(leaf, want)

	if got := tree.Lookup(Point{DefaultMax, DefaultMax, DefaultMax}); got != want {
		t.Errorf("Lookup(far corner) = %+v, want %+v", got, want)
	}
	if got := tree.Lookup(Point{0, 0, 0}); got == want {
		t.Error("Lookup(near corner) should not pick up the far leaf's action")
	}
}

func TestMarkAndClearOptimized(t *testing.T) {
	tree := New(defaultTestAction())
	tree.Split(tree.Root())
	leaf := tree.Leaves()[0]
	tree.MarkOptimized(leaf)
	if !tree.Optimized(leaf) {
		t.Fatal("leaf should be marked optimized")
	}
	tree.ClearOptimizedFlags()
	if tree.Optimized(leaf) {
		t.Error("ClearOptimizedFlags should reset every leaf")
	}
}

func TestCountingPolicyCountsAndMostUsed(t *testing.T) {
	tree := New(defaultTestAction())
	tree.Split(tree.Root())
	cp := NewCountingPolicy(tree)

	far := Point{DefaultMax, DefaultMax, DefaultMax}
	near := Point{0, 0, 0}
	cp.Action(far)
	cp.Action(far)
	cp.Action(near)

	if cp.TotalCount() != 3 {
		t.Errorf("TotalCount() = %d, want 3", cp.TotalCount())
	}
	leaf, ok := cp.MostUsed(false)
	if !ok {
		t.Fatal("MostUsed should find an eligible leaf")
	}
	if leaf != tree.LeafFor(far) {
		t.Errorf("MostUsed() = %d, want the far leaf %d", leaf, tree.LeafFor(far))
	}
}

func TestMostUsedSkipsOptimizedWhenRequested(t *testing.T) {
	tree := New(defaultTestAction())
	tree.Split(tree.Root())
	cp := NewCountingPolicy(tree)

	far := Point{DefaultMax, DefaultMax, DefaultMax}
	farLeaf := tree.LeafFor(far)
	cp.Action(far)
	tree.MarkOptimized(farLeaf)

	near := Point{0, 0, 0}
	cp.Action(near)

	leaf, ok := cp.MostUsed(true)
	if !ok {
		t.Fatal("MostUsed(true) should still find the unoptimized near leaf")
	}
	if leaf == farLeaf {
		t.Error("MostUsed(true) should not return an optimized leaf")
	}
}

func TestOverridePolicyDoesNotMutateTree(t *testing.T) {
	tree := New(defaultTestAction())
	tree.Split(tree.Root())
	leaf := tree.Leaves()[0]
	original := tree.Action(leaf)
	candidate := Action{WindowMultiplier: 99}

	op := NewOverridePolicy(tree, leaf, candidate)
	p := tree.Domain(leaf).Min // a point safely inside the leaf's domain
	if got := op.Action(p); got != candidate {
		t.Errorf("OverridePolicy.Action() = %+v, want %+v", got, candidate)
	}
	if tree.Action(leaf) != original {
		t.Error("OverridePolicy must not mutate the underlying tree")
	}
}

func TestEqualDetectsDifference(t *testing.T) {
	a := New(defaultTestAction())
	b := New(defaultTestAction())
	if !a.Equal(b) {
		t.Error("two freshly built identical trees should be Equal")
	}
	b.SetAction(b.Root(), Action{WindowMultiplier: 2})
	if a.Equal(b) {
		t.Error("trees with differing leaf actions should not be Equal")
	}
}

func TestBuilderMatchesDirectConstruction(t *testing.T) {
	tree := New(defaultTestAction())
	tree.Split(tree.Root())

	b := NewBuilder()
	var children [8]int
	for i, c := range tree.Children(tree.Root()) {
		children[i] = b.AddLeaf(tree.Domain(c), tree.Action(c))
	}
	root := b.AddInterior(tree.Domain(tree.Root()), children)
	built := b.Finish(root)

	if !tree.Equal(built) {
		t.Error("tree built via Builder should Equal the directly constructed tree")
	}
}
