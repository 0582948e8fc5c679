package grid

import (
	"math"
	"testing"
)

func TestNewRadialValidation(t *testing.T) {
	if _, err := NewRadial(nil, nil); err == nil {
		t.Error("expected error for empty grid")
	}
	if _, err := NewRadial([]float64{1, 2}, []float64{0.1}); err == nil {
		t.Error("expected error for length mismatch")
	}
	if _, err := NewRadial([]float64{1, 1}, []float64{0.1, 0.1}); err == nil {
		t.Error("expected error for non-increasing points")
	}
}

func TestExponentialGridIntegratesGaussian(t *testing.T) {
	g := NewExponential(200, 1e-5, 20)

	// unit-population s-type Gaussian, alpha = 1
	alpha := 1.0
	norm := math.Pow(alpha/math.Pi, 1.5)
	f := make([]float64, g.Size())
	for i, r := range g.Points {
		f[i] = norm * math.Exp(-alpha*r*r)
	}

	got := g.Integrate(g.Sphere(), f)
	if math.Abs(got-1) > 1e-3 {
		t.Errorf("expected population 1, got %.6f", got)
	}
}

func TestTruncate(t *testing.T) {
	g := NewExponential(100, 1e-4, 20)

	sub := g.Truncate(1.0)
	if sub.Size() >= g.Size() {
		t.Error("truncation did not shrink the grid")
	}
	for _, r := range sub.Points {
		if r > 1.0 {
			t.Errorf("point %g beyond truncation radius", r)
		}
	}

	if g.Truncate(0) != g {
		t.Error("non-positive radius should return the full grid")
	}
	if g.Truncate(math.Inf(1)) != g {
		t.Error("+Inf radius should return the full grid")
	}

	tiny := g.Truncate(1e-10)
	if tiny.Size() != 2 {
		t.Errorf("expected minimum 2 points, got %d", tiny.Size())
	}
}

func TestSphericalAverageRecoversRadialProfile(t *testing.T) {
	rg := NewExponential(40, 1e-2, 8)

	// molecular grid: every radial shell sampled in 6 axis directions
	dirs := [][3]float64{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	var points [][3]float64
	var weights []float64
	for j, r := range rg.Points {
		w := rg.Sphere()[j] * rg.Weights[j] / float64(len(dirs))
		for _, d := range dirs {
			points = append(points, [3]float64{r * d[0], r * d[1], r * d[2]})
			weights = append(weights, w)
		}
	}
	mg, err := NewMolecular(points, weights, [][3]float64{{0, 0, 0}})
	if err != nil {
		t.Fatalf("NewMolecular: %v", err)
	}

	// spherically symmetric profile exp(-r)
	vals := make([]float64, mg.Size())
	for i, d := range mg.Distances(0) {
		vals[i] = math.Exp(-d)
	}

	avg := mg.SphericalAverage(0, vals, rg)
	for j, r := range rg.Points {
		want := math.Exp(-r)
		if math.Abs(avg[j]-want) > 1e-6*want+1e-12 {
			t.Fatalf("point %d (r=%g): got %g want %g", j, r, avg[j], want)
		}
	}
}

func TestMolecularIntegrate(t *testing.T) {
	points := [][3]float64{{0, 0, 0}, {1, 0, 0}}
	weights := []float64{2, 3}
	mg, err := NewMolecular(points, weights, [][3]float64{{0, 0, 0}})
	if err != nil {
		t.Fatalf("NewMolecular: %v", err)
	}
	got := mg.Integrate([]float64{1, 1})
	if got != 5 {
		t.Errorf("expected 5, got %g", got)
	}
}
