package solver

import "math"

// defaultSCMaxIter caps the self-consistent family; all variants report
// ErrNotConverged through a Failure when the cap is exhausted.
const defaultSCMaxIter = 2000

// SC is the self-consistent fixed-point iteration: each cycle rebuilds the
// pro-atom density from the current amplitudes, reallocates the target
// density to the shells in proportion to their fractional contribution,
// and integrates each share into the next amplitude. The update is
// multiplicative, so amplitudes stay non-negative whenever the inputs are.
//
// Damping, if non-zero, blends that fraction of the previous amplitudes
// into each update to suppress oscillation (0.1 keeps 10% of the old
// iterate).
type SC struct {
	Damping float64
}

func (s SC) Name() string {
	if s.Damping > 0 {
		return "sc-damp"
	}
	return "sc"
}

func (s SC) Optimize(p *Problem) ([]float64, error) {
	c, _, err := scIterate(p, s.Name(), cloneVec(p.Propars), s.Damping, p.cap(defaultSCMaxIter))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// scIterate runs the SC loop and returns the converged amplitudes together
// with the final pro-atom density. Failures carry the iteration they
// occurred at and the last density change.
func scIterate(p *Problem, name string, c []float64, damping float64, maxIter int) ([]float64, []float64, error) {
	npt := p.Grid.Size()
	vw := p.VolumeWeights()
	pop := p.Population()

	var oldPro []float64
	prev := cloneVec(c)
	change := 0.0
	for iter := 0; iter < maxIter; iter++ {
		for _, ck := range c {
			if ck < -negTol {
				return nil, nil, fail(name, iter, change, ErrNegativeAmplitude)
			}
		}
		pro := proDensity(c, p.BasisFns, npt)

		copy(prev, c)
		scUpdate(c, pro, p, vw)
		if damping > 0 {
			for k := range c {
				c[k] = (1-damping)*c[k] + damping*prev[k]
			}
		}

		change = densityChange(p.Grid, oldPro, pro)
		if change < p.Threshold {
			if gap := populationGap(c, pop); math.Abs(gap) > popTol(p.Threshold) {
				return nil, nil, fail(name, iter, gap, ErrPopulationMismatch)
			}
			if err := checkNonNegative(c); err != nil {
				return nil, nil, fail(name, iter, change, err)
			}
			return c, pro, nil
		}
		oldPro = pro
	}
	return nil, nil, fail(name, maxIter, change, ErrNotConverged)
}

// scUpdate writes the next fixed-point iterate into c: the integral of
// each shell's proportional share of the target density.
func scUpdate(c []float64, pro []float64, p *Problem, vw []float64) {
	for k := range c {
		fn := p.BasisFns[k]
		ck := c[k]
		sum := 0.0
		for i, w := range vw {
			sum += w * ck * fn[i] * p.Rho[i] / pro[i]
		}
		c[k] = sum
	}
}

// popTol is the tolerance on the population equality at convergence.
func popTol(threshold float64) float64 {
	return math.Max(1e-4, 100*threshold)
}
