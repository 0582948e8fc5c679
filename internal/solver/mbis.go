package solver

import (
	"math"

	"github.com/avanberg/stockpart/internal/basis"
)

const (
	defaultMBISMaxIter = 2000

	// mbisDensityCutoff masks grid points whose target density is too
	// small to contribute meaningfully to the moment updates.
	mbisDensityCutoff = 1e-15
)

// MBIS optimizes interleaved (population, width) pairs of Slater shells
// with the minimal-basis moment update: each sweep reallocates the target
// density over the shells stockholder-style, then resets every shell's
// population to the zeroth radial moment of its share and its width from
// the ratio of zeroth to first moments. Both parameters move, so the
// fixed-amplitude BasisFns of the Problem are ignored; the shell profiles
// are rebuilt from the current widths every sweep.
type MBIS struct{}

func (MBIS) Name() string { return "mbis" }

func (m MBIS) Optimize(p *Problem) ([]float64, error) {
	npt := p.Grid.Size()
	nshell := len(p.Propars) / 2
	vw := p.VolumeWeights()
	r := p.Grid.Points
	maxIter := p.cap(defaultMBISMaxIter)

	pars := cloneVec(p.Propars)
	var oldPro []float64

	for iter := 0; iter < maxIter; iter++ {
		pro := basis.MBISDensity(pars, r)
		floorDensity(pro)

		for k := 0; k < nshell; k++ {
			n, s := pars[2*k], pars[2*k+1]
			norm := n * s * s * s / (8 * math.Pi)
			m0, m1 := 0.0, 0.0
			for i := 0; i < npt; i++ {
				if p.Rho[i] < mbisDensityCutoff {
					continue
				}
				share := vw[i] * p.Rho[i] * norm * math.Exp(-s*r[i]) / pro[i]
				m0 += share
				m1 += share * r[i]
			}
			if m0 <= 0 || m1 <= 0 {
				return nil, fail(m.Name(), iter, 0, ErrNegativeAmplitude)
			}
			pars[2*k] = m0
			pars[2*k+1] = 3 * m0 / m1
		}

		change := densityChange(p.Grid, oldPro, pro)
		if change < p.Threshold {
			pops := make([]float64, nshell)
			for k := range pops {
				pops[k] = pars[2*k]
			}
			if gap := populationGap(pops, p.Population()); math.Abs(gap) > popTol(p.Threshold) {
				return nil, fail(m.Name(), iter, gap, ErrPopulationMismatch)
			}
			return pars, nil
		}
		oldPro = pro
	}
	return nil, fail(m.Name(), maxIter, 0, ErrNotConverged)
}
