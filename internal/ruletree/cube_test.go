package ruletree

import "testing"

func TestRootCubeContainsFarCorner(t *testing.T) {
	root := RootCube()
	if !root.Contains(Point{DefaultMax, DefaultMax, DefaultMax}) {
		t.Error("root cuboid should contain its own far corner")
	}
	if !root.Contains(Point{0, 0, 0}) {
		t.Error("root cuboid should contain its own near corner")
	}
}

func TestSplitPartitionsCoverRoot(t *testing.T) {
	root := RootCube()
	children := root.Split()

	// Every point tested must land in exactly one child.
	points := []Point{
		{0, 0, 0},
		{DefaultMax, DefaultMax, DefaultMax},
		{DefaultMax / 2, DefaultMax / 2, DefaultMax / 2},
		{DefaultMax / 4, 3 * DefaultMax / 4, DefaultMax / 2},
	}
	for _, p := range points {
		n := 0
		for _, c := range children {
			if c.Contains(p) {
				n++
			}
		}
		if n != 1 {
			t.Errorf("point %+v contained by %d children, want exactly 1", p, n)
		}
	}
}

func TestSplitChildrenDisjointExceptAtSharedBoundary(t *testing.T) {
	root := RootCube()
	children := root.Split()
	mid := root.midpoint()

	// A point exactly on the midpoint of all three axes belongs to the
	// higher-indexed child only (axisContains treats hi as exclusive).
	n := 0
	var which int
	for i, c := range children {
		if c.Contains(mid) {
			n++
			which = i
		}
	}
	if n != 1 {
		t.Errorf("midpoint contained by %d children, want exactly 1", n)
	}
	if which != 7 {
		t.Errorf("midpoint should belong to the highest-indexed child (7), got %d", which)
	}
}
