package remydna

import (
	"math"
	"testing"

	"github.com/heistp/flowforge/internal/quantities"
	"github.com/heistp/flowforge/internal/ruletree"
)

func singleLeafTree(a ruletree.Action) *ruletree.RuleTree {
	return ruletree.New(a)
}

func eightLeafTree() *ruletree.RuleTree {
	b := ruletree.NewBuilder()
	root := ruletree.RootCube()
	children := root.Split()
	var idx [8]int
	for i, c := range children {
		idx[i] = b.AddLeaf(c, ruletree.Action{
			WindowMultiplier: 1 + float64(i)*0.1,
			WindowIncrement:  int32(i),
			IntersendDelay:   quantities.MillisecondsSpan(float64(i) + 1),
		})
	}
	return b.Finish(b.AddInterior(root, idx))
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func actionsApproxEqual(a, b ruletree.Action, tol float64) bool {
	return approxEqual(a.WindowMultiplier, b.WindowMultiplier, tol) &&
		a.WindowIncrement == b.WindowIncrement &&
		approxEqual(a.IntersendDelay.Seconds(), b.IntersendDelay.Seconds(), tol)
}

func TestMarshalUnmarshalRoundTripLeaf(t *testing.T) {
	for _, units := range []Units{{Testing: false}, {Testing: true}} {
		want := ruletree.Action{
			WindowMultiplier: 1.5,
			WindowIncrement:  3,
			IntersendDelay:   quantities.MillisecondsSpan(12.5),
		}
		tree := singleLeafTree(want)
		data := Marshal(tree, units)
		got, err := Unmarshal(data, units)
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		gotAction := got.Action(got.Root())
		if !actionsApproxEqual(gotAction, want, 1e-6) {
			t.Errorf("Testing=%v: round-tripped action = %+v, want %+v", units.Testing, gotAction, want)
		}
		if !got.IsLeaf(got.Root()) {
			t.Errorf("Testing=%v: round-tripped tree root should be a leaf", units.Testing)
		}
	}
}

func TestMarshalUnmarshalRoundTripInterior(t *testing.T) {
	tree := eightLeafTree()
	units := Units{}
	data := Marshal(tree, units)
	got, err := Unmarshal(data, units)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.IsLeaf(got.Root()) {
		t.Fatal("round-tripped tree root should be interior")
	}
	children := got.Children(got.Root())
	wantChildren := tree.Children(tree.Root())
	for i := range children {
		wantAction := tree.Action(wantChildren[i])
		gotAction := got.Action(children[i])
		if !actionsApproxEqual(gotAction, wantAction, 1e-6) {
			t.Errorf("child %d: action = %+v, want %+v", i, gotAction, wantAction)
		}
	}
}

func TestMarshalUnmarshalRoundTripDomain(t *testing.T) {
	tree := eightLeafTree()
	units := Units{}
	data := Marshal(tree, units)
	got, err := Unmarshal(data, units)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	wantDomain := tree.Domain(tree.Root())
	gotDomain := got.Domain(got.Root())
	if !approxEqual(wantDomain.Min.AckEWMA, gotDomain.Min.AckEWMA, 1e-9) ||
		!approxEqual(wantDomain.Max.AckEWMA, gotDomain.Max.AckEWMA, 1e-9) {
		t.Errorf("root domain = %+v, want %+v", gotDomain, wantDomain)
	}
}

func TestUnmarshalRejectsMissingDomain(t *testing.T) {
	// An empty WhiskerTree message (no domain field at all).
	_, err := Unmarshal(nil, Units{})
	if err == nil {
		t.Error("expected error for WhiskerTree message missing domain")
	}
}

func TestUnmarshalRejectsWrongChildCount(t *testing.T) {
	tree := eightLeafTree()
	data := Marshal(tree, Units{})
	// Truncate the data so at least one child's bytes are cut off, which
	// should either fail to parse a child or fail the 8-children check.
	if len(data) > 10 {
		data = data[:len(data)-10]
	}
	if _, err := Unmarshal(data, Units{}); err == nil {
		t.Error("expected error for truncated/malformed WhiskerTree message")
	}
}

func TestMarshalUnmarshalExactRoundTripDomains(t *testing.T) {
	// Memory points (the tree's domain cuboids) scale by a single
	// multiply/divide by exactly 1 under testing units, which IEEE 754
	// guarantees is lossless, so domains round-trip bit-for-bit; this
	// compares every leaf's Domain exactly (§8 "Protobuf round-trip").
	// Actions are checked approximately elsewhere since
	// IntersendDelay's fixed ms<->s conversion is not bit-exact.
	tree := eightLeafTree()
	units := Units{Testing: true}
	data := Marshal(tree, units)
	got, err := Unmarshal(data, units)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for i, leaf := range tree.Leaves() {
		gotLeaf := got.Leaves()[i]
		if tree.Domain(leaf) != got.Domain(gotLeaf) {
			t.Errorf("leaf %d: domain = %+v, want %+v", i, got.Domain(gotLeaf), tree.Domain(leaf))
		}
	}
}

func TestUnitsTimeScale(t *testing.T) {
	if (Units{Testing: true}).timeScale() != 1 {
		t.Error("testing units should use a scale of 1 (seconds)")
	}
	if (Units{Testing: false}).timeScale() != 1000 {
		t.Error("production units should use a scale of 1000 (milliseconds)")
	}
}
