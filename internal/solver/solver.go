// Package solver implements the pro-atom parameter optimizers: a family of
// interchangeable algorithms that fit shell amplitudes to a target radial
// density profile under a population constraint and non-negativity.
//
// All variants share one contract: at the fixed point they agree on the
// amplitude vector, differing only in convergence speed and robustness.
// A solver is selected by name through the registry (see registry.go).
package solver

import (
	"math"

	"github.com/avanberg/stockpart/internal/basis"
	"github.com/avanberg/stockpart/internal/grid"
)

const (
	// densityFloor replaces near-zero densities before division or log.
	densityFloor = 1e-100
	// negTol is the tolerance below zero at which an amplitude is treated
	// as a solver failure rather than numerical noise.
	negTol = 1e-8
)

// Problem is one atom's inner optimization: reproduce the spherically
// averaged density Rho on Grid with a fixed set of shells.
type Problem struct {
	Rho      []float64    // target profile, one value per grid point
	Propars  []float64    // warm-start amplitudes, length nprim; not mutated
	Grid     *grid.Radial // radial quadrature
	BasisFns [][]float64  // unit-amplitude shell densities, [nprim][npt]
	Widths   []float64    // fixed shell widths, length nprim
	Kind     basis.Kind   // functional form of the shells

	Threshold float64 // inner convergence tolerance
	MaxIter   int     // iteration cap; 0 selects the variant default
}

// Solver computes shell amplitudes for a Problem.
type Solver interface {
	Name() string
	Optimize(p *Problem) ([]float64, error)
}

// NPrim returns the number of shells.
func (p *Problem) NPrim() int { return len(p.Propars) }

// VolumeWeights returns the combined 4*pi*r^2 * w quadrature factor.
func (p *Problem) VolumeWeights() []float64 {
	sphere := p.Grid.Sphere()
	out := make([]float64, len(sphere))
	for i, w := range p.Grid.Weights {
		out[i] = sphere[i] * w
	}
	return out
}

// Population integrates the target profile: the electron count the
// amplitudes must reproduce.
func (p *Problem) Population() float64 {
	return p.Grid.Integrate(p.Grid.Sphere(), p.Rho)
}

func (p *Problem) cap(def int) int {
	if p.MaxIter > 0 {
		return p.MaxIter
	}
	return def
}

// proDensity sums amplitude-scaled shells into a pro-atom profile, floored
// away from zero so it is safe as a divisor.
func proDensity(c []float64, basisFns [][]float64, npt int) []float64 {
	pro := make([]float64, npt)
	for k, ck := range c {
		fn := basisFns[k]
		for i := range pro {
			pro[i] += ck * fn[i]
		}
	}
	floorDensity(pro)
	return pro
}

func floorDensity(v []float64) {
	for i, x := range v {
		if x < densityFloor {
			v[i] = densityFloor
		}
	}
}

// densityChange is the L2 distance between two profiles under the radial
// measure, the convergence metric of the fixed-point family.
func densityChange(g *grid.Radial, old, cur []float64) float64 {
	if old == nil {
		return math.Inf(1)
	}
	diff := make([]float64, len(cur))
	for i := range diff {
		diff[i] = cur[i] - old[i]
	}
	return math.Sqrt(g.Integrate(g.Sphere(), diff, diff))
}

// checkNonNegative verifies amplitudes stay above -negTol.
func checkNonNegative(c []float64) error {
	for _, v := range c {
		if v < -negTol {
			return ErrNegativeAmplitude
		}
	}
	return nil
}

// populationGap is the signed deviation of sum(c) from the target
// population.
func populationGap(c []float64, pop float64) float64 {
	sum := 0.0
	for _, v := range c {
		sum += v
	}
	return sum - pop
}

func cloneVec(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
