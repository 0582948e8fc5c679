package molecule

import (
	"math"
	"testing"
)

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 4 {
		t.Fatalf("expected 4 built-in systems, got %d", len(names))
	}
	want := map[string]bool{"h": true, "h2": true, "hf": true, "h2o": true}
	for _, name := range names {
		if !want[name] {
			t.Errorf("unexpected system %q", name)
		}
	}
}

func TestDemoUnknown(t *testing.T) {
	if _, err := Demo("xe2", 0); err == nil {
		t.Error("expected error for unknown system")
	}
}

func TestDemoSingleAtomPopulation(t *testing.T) {
	sys, err := Demo("h", 0)
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	pop := sys.Grid.Integrate(sys.Density)
	if math.Abs(pop-1) > 0.02 {
		t.Errorf("hydrogen density integrates to %.4f, want 1", pop)
	}
}

func TestDemoDiatomicPopulation(t *testing.T) {
	sys, err := Demo("h2", 0)
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	if len(sys.Atoms) != 2 {
		t.Fatalf("expected 2 atoms, got %d", len(sys.Atoms))
	}
	pop := sys.Grid.Integrate(sys.Density)
	if math.Abs(pop-2) > 0.1 {
		t.Errorf("h2 density integrates to %.4f, want 2", pop)
	}
}

func TestDemoGridShapes(t *testing.T) {
	sys, err := Demo("h2o", 80)
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	if len(sys.RGrids) != 3 {
		t.Fatalf("expected 3 radial grids, got %d", len(sys.RGrids))
	}
	if sys.RGrids[0].Size() != 80 {
		t.Errorf("expected 80 radial points, got %d", sys.RGrids[0].Size())
	}
	if sys.Grid.Size() != len(sys.Density) {
		t.Error("density length does not match grid size")
	}
	if sys.Grid.NAtoms() != 3 {
		t.Errorf("grid built for %d atoms, want 3", sys.Grid.NAtoms())
	}
}

func TestBeckeWeightsPartitionUnity(t *testing.T) {
	sys, err := Demo("h2", 0)
	if err != nil {
		t.Fatalf("Demo: %v", err)
	}
	atoms := sys.Atoms

	// cell weights over all atoms sum to one anywhere
	pts := [][3]float64{
		{0, 0, 0},
		{0.5, 0.3, -0.2},
		{0, 0, -0.7},
		{2, 2, 2},
	}
	for _, pt := range pts {
		sum := 0.0
		for a := range atoms {
			sum += beckeWeight(pt, atoms, a)
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("weights at %v sum to %.14f", pt, sum)
		}
	}
}

func TestOctahedralDirectionsUnit(t *testing.T) {
	dirs := octahedralDirections()
	if len(dirs) != 26 {
		t.Fatalf("expected 26 directions, got %d", len(dirs))
	}
	for _, d := range dirs {
		n := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
		if math.Abs(n-1) > 1e-12 {
			t.Errorf("direction %v has norm %g", d, n)
		}
	}
}
