package analysis

import (
	"math"
	"testing"

	"github.com/avanberg/stockpart/internal/basis"
	"github.com/avanberg/stockpart/internal/grid"
	"github.com/avanberg/stockpart/internal/part"
)

func TestPointChargeDipoleSymmetric(t *testing.T) {
	atoms := []part.Atom{
		{Number: 1, Coord: [3]float64{0, 0, -0.7}},
		{Number: 1, Coord: [3]float64{0, 0, 0.7}},
	}
	d := PointChargeDipole(atoms, []float64{0.1, 0.1})
	if d.Norm() > 1e-12 {
		t.Errorf("symmetric charges should give zero dipole, got %g", d.Norm())
	}
}

func TestPointChargeDipoleAntisymmetric(t *testing.T) {
	atoms := []part.Atom{
		{Number: 1, Coord: [3]float64{0, 0, 0}},
		{Number: 9, Coord: [3]float64{0, 0, 2}},
	}
	d := PointChargeDipole(atoms, []float64{0.5, -0.5})
	if math.Abs(d.Z+1.0) > 1e-12 {
		t.Errorf("expected dipole z = -1, got %g", d.Z)
	}
	if math.Abs(d.Norm()-1.0) > 1e-12 {
		t.Errorf("expected |mu| = 1, got %g", d.Norm())
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{0.5, -0.3, -0.2})
	if math.Abs(s.Total) > 1e-12 {
		t.Errorf("expected neutral total, got %g", s.Total)
	}
	if s.MaxAbs != 0.5 {
		t.Errorf("expected max |q| 0.5, got %g", s.MaxAbs)
	}
}

func TestValenceSplit(t *testing.T) {
	// oxygen: two shells, 2 core + 6 valence electrons, neutral atom
	propars := [][]float64{{2, 16, 6, 2}}
	core, valence, err := ValenceSplit([]int{8}, propars)
	if err != nil {
		t.Fatalf("ValenceSplit: %v", err)
	}
	if math.Abs(core[0]-6) > 1e-12 {
		t.Errorf("core charge %g, want 6", core[0])
	}
	if math.Abs(valence[0]+6) > 1e-12 {
		t.Errorf("valence charge %g, want -6", valence[0])
	}
	if math.Abs(core[0]+valence[0]) > 1e-12 {
		t.Errorf("core+valence = %g, want 0 for a neutral atom", core[0]+valence[0])
	}
}

func TestValenceSplitPerAtomSlices(t *testing.T) {
	// two hydrogens, one shell each: all electrons are valence
	core, valence, err := ValenceSplit([]int{1, 1}, [][]float64{{1, 2}, {1, 2}})
	if err != nil {
		t.Fatalf("ValenceSplit: %v", err)
	}
	for a := range core {
		if math.Abs(core[a]-1) > 1e-12 {
			t.Errorf("atom %d core charge %g, want 1", a, core[a])
		}
		if math.Abs(valence[a]+1) > 1e-12 {
			t.Errorf("atom %d valence charge %g, want -1", a, valence[a])
		}
	}
}

func TestValenceSplitLengthMismatch(t *testing.T) {
	if _, _, err := ValenceSplit([]int{8}, [][]float64{{2, 16}}); err == nil {
		t.Error("expected error for short propars")
	}
	if _, _, err := ValenceSplit([]int{1}, [][]float64{{1, 2, 3, 4}}); err == nil {
		t.Error("expected error for leftover propars")
	}
	if _, _, err := ValenceSplit([]int{1, 1}, [][]float64{{1, 2}}); err == nil {
		t.Error("expected error for missing atom slice")
	}
}

func TestRadialMomentZeroOrderIsPopulation(t *testing.T) {
	set, err := basis.NewSet(basis.Gauss)
	if err != nil {
		t.Fatal(err)
	}
	rg := grid.NewExponential(200, 1e-5, 25)

	amps := set.InitialAmplitudes(4)
	m0, err := RadialMoment(set, 4, amps, rg, 0)
	if err != nil {
		t.Fatalf("RadialMoment: %v", err)
	}
	if math.Abs(m0-4) > 1e-2 {
		t.Errorf("zeroth moment %g, want 4", m0)
	}

	m1, err := RadialMoment(set, 4, amps, rg, 1)
	if err != nil {
		t.Fatalf("RadialMoment: %v", err)
	}
	if m1 <= 0 {
		t.Errorf("first moment should be positive, got %g", m1)
	}
}
