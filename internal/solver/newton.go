package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const defaultNewtonMaxIter = 1000

// Newton drives the fixed-point residual
//
//	h_k(c) = 1 - integral( w(r) g_k(r) rho(r) / rho0(c; r) )
//
// to zero with full Newton steps, using the analytic Jacobian
//
//	J_kj = integral( w(r) g_k(r) g_j(r) rho(r) / rho0^2 ).
//
// Quadratic convergence near the fixed point, but no safeguard against
// stepping outside the non-negative cone: a negative amplitude aborts the
// run, as does a singular Jacobian.
type Newton struct{}

func (Newton) Name() string { return "newton" }

func (n Newton) Optimize(p *Problem) ([]float64, error) {
	nprim, npt := p.NPrim(), p.Grid.Size()
	vw := p.VolumeWeights()
	pop := p.Population()
	maxIter := p.cap(defaultNewtonMaxIter)

	c := cloneVec(p.Propars)
	var oldPro []float64

	h := make([]float64, nprim)
	jac := mat.NewDense(nprim, nprim, nil)
	step := mat.NewVecDense(nprim, nil)

	for iter := 0; iter < maxIter; iter++ {
		if err := checkNonNegative(c); err != nil {
			return nil, fail(n.Name(), iter, 0, err)
		}
		pro := proDensity(c, p.BasisFns, npt)
		fixedPointResidual(h, jac, c, pro, p, vw)

		var lu mat.LU
		lu.Factorize(jac)
		if err := lu.SolveVecTo(step, false, mat.NewVecDense(nprim, h)); err != nil {
			return nil, fail(n.Name(), iter, floats.Norm(h, 2), ErrSingularSystem)
		}
		for k := 0; k < nprim; k++ {
			c[k] -= step.AtVec(k)
		}

		change := densityChange(p.Grid, oldPro, pro)
		if change < p.Threshold {
			if gap := populationGap(c, pop); math.Abs(gap) > popTol(p.Threshold) {
				return nil, fail(n.Name(), iter, gap, ErrPopulationMismatch)
			}
			if err := checkNonNegative(c); err != nil {
				return nil, fail(n.Name(), iter, change, err)
			}
			return c, nil
		}
		oldPro = pro
	}
	return nil, fail(n.Name(), maxIter, 0, ErrNotConverged)
}

// fixedPointResidual fills h with the fixed-point residual at c and, when
// jac is non-nil, the analytic Jacobian. pro must already be floored.
func fixedPointResidual(h []float64, jac *mat.Dense, c []float64, pro []float64, p *Problem, vw []float64) {
	nprim := len(c)
	ratio := make([]float64, len(pro))
	for i := range pro {
		ratio[i] = vw[i] * p.Rho[i] / pro[i]
	}
	for k := 0; k < nprim; k++ {
		fnk := p.BasisFns[k]
		sum := 0.0
		for i, r := range ratio {
			sum += r * fnk[i]
		}
		h[k] = 1 - sum
		if jac == nil {
			continue
		}
		for j := k; j < nprim; j++ {
			fnj := p.BasisFns[j]
			v := 0.0
			for i, r := range ratio {
				v += r * fnk[i] * fnj[i] / pro[i]
			}
			jac.Set(k, j, v)
			jac.Set(j, k, v)
		}
	}
}
