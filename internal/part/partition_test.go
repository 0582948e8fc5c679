package part

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avanberg/stockpart/internal/basis"
	"github.com/avanberg/stockpart/internal/grid"
)

// symmetricDiatomic builds a two-atom test system whose density is the
// superposition of two identical Gaussian pro-atoms, so both charges
// should converge to zero.
func symmetricDiatomic(t *testing.T) ([]Atom, *grid.Molecular, []float64, []*grid.Radial) {
	t.Helper()
	atoms := []Atom{
		{Number: 1, Pseudo: 1, Coord: [3]float64{0, 0, -0.7}},
		{Number: 1, Pseudo: 1, Coord: [3]float64{0, 0, 0.7}},
	}

	rg := grid.NewExponential(60, 1e-3, 12)
	var dirs [][3]float64
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			for z := -1; z <= 1; z++ {
				if x == 0 && y == 0 && z == 0 {
					continue
				}
				n := math.Sqrt(float64(x*x + y*y + z*z))
				dirs = append(dirs, [3]float64{float64(x) / n, float64(y) / n, float64(z) / n})
			}
		}
	}

	// Becke cell weight of the owning atom, so the two overlapping
	// atom-centered grids count each region of space once
	cellWeight := func(pt [3]float64, own int) float64 {
		var d [2]float64
		for b := range atoms {
			dx := pt[0] - atoms[b].Coord[0]
			dy := pt[1] - atoms[b].Coord[1]
			dz := pt[2] - atoms[b].Coord[2]
			d[b] = math.Sqrt(dx*dx + dy*dy + dz*dz)
		}
		mu := (d[own] - d[1-own]) / 1.4
		for i := 0; i < 3; i++ {
			mu = 1.5*mu - 0.5*mu*mu*mu
		}
		return 0.5 * (1 - mu)
	}

	var points [][3]float64
	var weights []float64
	for a, atom := range atoms {
		for j, r := range rg.Points {
			w := rg.Sphere()[j] * rg.Weights[j] / float64(len(dirs))
			for _, d := range dirs {
				pt := [3]float64{
					atom.Coord[0] + r*d[0],
					atom.Coord[1] + r*d[1],
					atom.Coord[2] + r*d[2],
				}
				points = append(points, pt)
				weights = append(weights, w*cellWeight(pt, a))
			}
		}
	}

	centers := [][3]float64{atoms[0].Coord, atoms[1].Coord}
	mg, err := grid.NewMolecular(points, weights, centers)
	require.NoError(t, err)

	set, err := basis.NewSet(basis.Gauss)
	require.NoError(t, err)
	density := make([]float64, mg.Size())
	for a := range atoms {
		pro, err := set.ProAtomDensity(atoms[a].Number, set.InitialAmplitudes(atoms[a].Number), mg.Distances(a))
		require.NoError(t, err)
		for i := range density {
			density[i] += pro[i]
		}
	}

	return atoms, mg, density, []*grid.Radial{rg, rg}
}

func TestPartitionSymmetricCharges(t *testing.T) {
	atoms, mg, density, rgrids := symmetricDiatomic(t)

	cfg := DefaultConfig()
	cfg.Threshold = 1e-5
	cfg.MaxIter = 200

	p, err := New(atoms, mg, density, rgrids, cfg)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusConverged, result.Status)
	require.Len(t, result.Charges, 2)
	// identical atoms in an identical environment
	assert.InDelta(t, result.Charges[0], result.Charges[1], 1e-4)
	assert.Less(t, math.Abs(result.Charges[0]), 0.2)
	assert.NotEmpty(t, result.History)
	assert.NotEmpty(t, result.Propars)
}

func TestPartitionChargeSymmetryEveryIteration(t *testing.T) {
	atoms, mg, density, rgrids := symmetricDiatomic(t)

	cfg := DefaultConfig()
	cfg.Threshold = 1e-5
	cfg.MaxIter = 100

	p, err := New(atoms, mg, density, rgrids, cfg)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	for _, rec := range result.History {
		require.Len(t, rec.Charges, 2)
		assert.InDelta(t, rec.Charges[0], rec.Charges[1], 1e-4,
			"iteration %d", rec.Iteration)
		// total charge tracks the molecular pseudo-charge total, up to
		// the demo-grade angular quadrature
		assert.InDelta(t, 0.0, rec.Charges[0]+rec.Charges[1], 0.1,
			"iteration %d", rec.Iteration)
	}
}

func TestPartitionMaxIterReported(t *testing.T) {
	atoms, mg, density, rgrids := symmetricDiatomic(t)

	// skew the density away from the pro-atom superposition so the
	// charges keep moving and the cap genuinely bites
	for i, d := range mg.Distances(0) {
		density[i] *= 1 + 0.3*math.Exp(-d*d)
	}

	cfg := DefaultConfig()
	cfg.Threshold = 1e-15     // unreachable
	cfg.InnerThreshold = 1e-8 // keep the inner solves finite
	cfg.MaxIter = 2

	p, err := New(atoms, mg, density, rgrids, cfg)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err, "hitting the cap is not an error")
	assert.Equal(t, StatusMaxIter, result.Status)
	assert.NotEmpty(t, result.Warnings)
	assert.Equal(t, 2, result.Iterations)
}

func TestPartitionContextCancellation(t *testing.T) {
	atoms, mg, density, rgrids := symmetricDiatomic(t)

	p, err := New(atoms, mg, density, rgrids, DefaultConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPartitionObserver(t *testing.T) {
	atoms, mg, density, rgrids := symmetricDiatomic(t)

	cfg := DefaultConfig()
	cfg.Threshold = 1e-4

	p, err := New(atoms, mg, density, rgrids, cfg)
	require.NoError(t, err)

	var seen []IterationRecord
	p.AddObserver(observerFunc(func(rec IterationRecord) {
		seen = append(seen, rec)
	}))

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, seen, len(result.History))
}

type observerFunc func(IterationRecord)

func (f observerFunc) OnIteration(rec IterationRecord) { f(rec) }

func TestPartitionValidation(t *testing.T) {
	atoms, mg, density, rgrids := symmetricDiatomic(t)

	cfg := DefaultConfig()
	cfg.Threshold = 0
	_, err := New(atoms, mg, density, rgrids, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Solver = "nonsense"
	_, err = New(atoms, mg, density, rgrids, cfg)
	assert.Error(t, err)

	_, err = New(nil, mg, density, rgrids, DefaultConfig())
	assert.Error(t, err)

	_, err = New(atoms, mg, density[:3], rgrids, DefaultConfig())
	assert.Error(t, err)
}

func TestPartitionLocalGridRadius(t *testing.T) {
	atoms, mg, density, rgrids := symmetricDiatomic(t)

	cfg := DefaultConfig()
	cfg.Threshold = 1e-4
	cfg.LocalGridRadius = 5.0

	p, err := New(atoms, mg, density, rgrids, cfg)
	require.NoError(t, err)
	for _, rg := range p.rgrids {
		for _, r := range rg.Points {
			assert.LessOrEqual(t, r, 5.0)
		}
	}

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, result.Status)
}

func TestGlobalSCSymmetric(t *testing.T) {
	atoms, mg, density, _ := symmetricDiatomic(t)

	cfg := DefaultConfig()
	cfg.Threshold = 1e-5
	cfg.MaxIter = 500

	g, err := NewGlobal(atoms, mg, density, GlobalSC, cfg)
	require.NoError(t, err)

	result, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, result.Status)
	require.Len(t, result.Charges, 2)
	assert.InDelta(t, result.Charges[0], result.Charges[1], 1e-3)
}

func TestGlobalConvexSymmetric(t *testing.T) {
	atoms, mg, density, _ := symmetricDiatomic(t)

	cfg := DefaultConfig()
	cfg.Threshold = 1e-6
	cfg.MaxIter = 500

	g, err := NewGlobal(atoms, mg, density, GlobalConvex, cfg)
	require.NoError(t, err)

	result, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, result.Status)
	require.Len(t, result.Charges, 2)
	assert.InDelta(t, result.Charges[0], result.Charges[1], 1e-3)

	// the joint solve conserves the total population by construction
	total := result.Charges[0] + result.Charges[1]
	assert.InDelta(t, 0.0, total, 0.05)
}

func TestGlobalUnknownMode(t *testing.T) {
	atoms, mg, density, _ := symmetricDiatomic(t)
	_, err := NewGlobal(atoms, mg, density, GlobalMode("joint"), DefaultConfig())
	assert.Error(t, err)
}
