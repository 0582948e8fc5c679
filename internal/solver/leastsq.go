package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// LeastSquares minimizes the weighted pointwise residual between the
// pro-atom density and the target profile over the radial grid, with box
// constraints c >= 0. The pro-atom density is linear in the amplitudes, so
// the fit reduces to non-negative least squares, solved with the classic
// Lawson-Hanson active-set iteration. The population constraint is only
// satisfied approximately (soft), as in the original least-squares scheme.
type LeastSquares struct{}

func (LeastSquares) Name() string { return "leastsq" }

func (l LeastSquares) Optimize(p *Problem) ([]float64, error) {
	nprim := p.NPrim()
	npt := p.Grid.Size()
	vw := p.VolumeWeights()

	a := mat.NewDense(npt, nprim, nil)
	y := mat.NewVecDense(npt, nil)
	for i := 0; i < npt; i++ {
		for k := 0; k < nprim; k++ {
			a.Set(i, k, vw[i]*p.BasisFns[k][i])
		}
		y.SetVec(i, vw[i]*p.Rho[i])
	}

	c, err := nnls(a, y, p.Threshold, p.cap(3*nprim+30))
	if err != nil {
		return nil, fail(l.Name(), 0, 0, err)
	}
	if err := checkNonNegative(c); err != nil {
		return nil, fail(l.Name(), 0, 0, err)
	}
	return c, nil
}

// nnls solves min ||A c - y|| subject to c >= 0 (Lawson & Hanson 1974).
func nnls(a *mat.Dense, y *mat.VecDense, tol float64, maxOuter int) ([]float64, error) {
	npt, n := a.Dims()
	if tol <= 0 {
		tol = 1e-10
	}
	c := make([]float64, n)
	passive := make([]bool, n)

	resid := mat.NewVecDense(npt, nil)
	grad := mat.NewVecDense(n, nil)

	for outer := 0; outer < maxOuter; outer++ {
		// gradient of 0.5*||Ac-y||^2 at the current iterate
		resid.CopyVec(y)
		var ac mat.VecDense
		ac.MulVec(a, mat.NewVecDense(n, c))
		resid.SubVec(resid, &ac)
		grad.MulVec(a.T(), resid)

		best, bestVal := -1, tol
		for k := 0; k < n; k++ {
			if !passive[k] && grad.AtVec(k) > bestVal {
				best, bestVal = k, grad.AtVec(k)
			}
		}
		if best < 0 {
			return c, nil
		}
		passive[best] = true

		for inner := 0; inner < maxOuter; inner++ {
			z, err := lsSubproblem(a, y, passive)
			if err != nil {
				return nil, err
			}
			minZ := math.Inf(1)
			for k := 0; k < n; k++ {
				if passive[k] && z[k] < minZ {
					minZ = z[k]
				}
			}
			if minZ > 0 {
				copy(c, z)
				break
			}
			// step to the boundary of the feasible region
			alpha := 1.0
			for k := 0; k < n; k++ {
				if passive[k] && z[k] <= 0 {
					if s := c[k] / (c[k] - z[k]); s < alpha {
						alpha = s
					}
				}
			}
			for k := 0; k < n; k++ {
				c[k] += alpha * (z[k] - c[k])
				if passive[k] && c[k] <= 1e-14 {
					c[k] = 0
					passive[k] = false
				}
			}
		}
	}
	return nil, ErrNotConverged
}

// lsSubproblem solves the unconstrained least squares restricted to the
// passive columns; non-passive entries are zero.
func lsSubproblem(a *mat.Dense, y *mat.VecDense, passive []bool) ([]float64, error) {
	npt, n := a.Dims()
	cols := make([]int, 0, n)
	for k := 0; k < n; k++ {
		if passive[k] {
			cols = append(cols, k)
		}
	}
	sub := mat.NewDense(npt, len(cols), nil)
	for j, k := range cols {
		for i := 0; i < npt; i++ {
			sub.Set(i, j, a.At(i, k))
		}
	}
	var qr mat.QR
	qr.Factorize(sub)
	var sol mat.VecDense
	if err := qr.SolveVecTo(&sol, false, y); err != nil {
		return nil, ErrSingularSystem
	}
	z := make([]float64, n)
	for j, k := range cols {
		z[k] = sol.AtVec(j)
	}
	return z, nil
}
