// Package analysis derives molecular properties from converged
// partitioning results: the point-charge dipole moment, summary charge
// statistics, and radial moments of the pro-atom densities.
package analysis

import (
	"fmt"
	"math"

	"github.com/avanberg/stockpart/internal/basis"
	"github.com/avanberg/stockpart/internal/grid"
	"github.com/avanberg/stockpart/internal/part"
)

// Dipole is the point-charge dipole moment in atomic units (e*bohr).
type Dipole struct {
	X, Y, Z float64
}

// Norm returns the dipole magnitude.
func (d Dipole) Norm() float64 {
	return math.Sqrt(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
}

// PointChargeDipole contracts the converged charges against the atomic
// positions.
func PointChargeDipole(atoms []part.Atom, charges []float64) Dipole {
	var d Dipole
	for a, atom := range atoms {
		d.X += charges[a] * atom.Coord[0]
		d.Y += charges[a] * atom.Coord[1]
		d.Z += charges[a] * atom.Coord[2]
	}
	return d
}

// ChargeStats summarizes a converged charge vector.
type ChargeStats struct {
	Total  float64
	MaxAbs float64
	Mean   float64
}

func Summarize(charges []float64) ChargeStats {
	var s ChargeStats
	for _, q := range charges {
		s.Total += q
		if a := math.Abs(q); a > s.MaxAbs {
			s.MaxAbs = a
		}
	}
	if len(charges) > 0 {
		s.Mean = s.Total / float64(len(charges))
	}
	return s
}

// ValenceSplit decomposes converged interleaved (population, width)
// pro-atom parameters into core and valence charges per atom. The most
// diffuse shell carries the valence electrons; everything tighter is
// core. Core and valence charges sum to the net atomic charge.
func ValenceSplit(numbers []int, propars [][]float64) (core, valence []float64, err error) {
	if len(propars) != len(numbers) {
		return nil, nil, fmt.Errorf("analysis: %d propar slices for %d atoms", len(propars), len(numbers))
	}
	core = make([]float64, len(numbers))
	valence = make([]float64, len(numbers))
	for a, z := range numbers {
		nsh := basis.MBISShellCount(z)
		pars := propars[a]
		if len(pars) != 2*nsh {
			return nil, nil, fmt.Errorf("analysis: element %d expects %d propars, got %d", z, 2*nsh, len(pars))
		}
		total := 0.0
		for k := 0; k < nsh; k++ {
			total += pars[2*k]
		}
		vpop := pars[2*(nsh-1)]
		valence[a] = -vpop
		core[a] = float64(z) - (total - vpop)
	}
	return core, valence, nil
}

// RadialMoment integrates r^order against a converged pro-atom density
// on its radial grid. Order zero recovers the atomic population.
func RadialMoment(set *basis.Set, number int, amplitudes []float64, rg *grid.Radial, order int) (float64, error) {
	pro, err := set.ProAtomDensity(number, amplitudes, rg.Points)
	if err != nil {
		return 0, err
	}
	rpow := make([]float64, rg.Size())
	for i, r := range rg.Points {
		rpow[i] = math.Pow(r, float64(order))
	}
	return rg.Integrate(rg.Sphere(), pro, rpow), nil
}
