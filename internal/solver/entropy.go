package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const defaultConvexMaxIter = 1000

// ConvexOpt minimizes the negative log-likelihood
//
//	F(c) = -integral( w(r) rho(r) ln rho0(c; r) )
//
// subject to sum(c) = N and c >= 0. F is convex in the amplitudes, so the
// interior-point scheme converges to the global optimum: a logarithmic
// barrier keeps the iterate strictly positive, a bordered KKT Newton step
// preserves the population equality exactly, and the barrier weight is
// shrunk geometrically once each subproblem settles.
type ConvexOpt struct{}

func (ConvexOpt) Name() string { return "convex" }

func (co ConvexOpt) Optimize(p *Problem) ([]float64, error) {
	nprim, npt := p.NPrim(), p.Grid.Size()
	vw := p.VolumeWeights()
	pop := p.Population()
	maxIter := p.cap(defaultConvexMaxIter)

	// strictly interior start on the equality plane
	c := cloneVec(p.Propars)
	for k := range c {
		if c[k] < 1e-8 {
			c[k] = 1e-8
		}
	}
	if s := floats.Sum(c); s > 0 {
		floats.Scale(pop/s, c)
	}

	grad := make([]float64, nprim)
	hess := mat.NewDense(nprim, nprim, nil)
	kkt := mat.NewDense(nprim+1, nprim+1, nil)
	rhs := mat.NewVecDense(nprim+1, nil)

	mu := 1.0
	const muShrink = 0.2
	const muFloor = 1e-12

	for iter := 0; iter < maxIter; iter++ {
		pro := proDensity(c, p.BasisFns, npt)
		likelihoodDerivs(grad, hess, pro, p, vw)

		kkt.Zero()
		for k := 0; k < nprim; k++ {
			for j := 0; j < nprim; j++ {
				kkt.Set(k, j, hess.At(k, j))
			}
			kkt.Set(k, k, hess.At(k, k)+mu/(c[k]*c[k]))
			kkt.Set(k, nprim, 1)
			kkt.Set(nprim, k, 1)
			rhs.SetVec(k, -(grad[k] - mu/c[k]))
		}
		rhs.SetVec(nprim, 0)

		var lu mat.LU
		lu.Factorize(kkt)
		var sol mat.VecDense
		if err := lu.SolveVecTo(&sol, false, rhs); err != nil {
			return nil, fail(co.Name(), iter, floats.Norm(grad, 2), ErrSingularSystem)
		}

		// fraction-to-boundary step keeps the iterate strictly positive
		alpha := 1.0
		for k := 0; k < nprim; k++ {
			if d := sol.AtVec(k); d < 0 {
				if a := -0.99 * c[k] / d; a < alpha {
					alpha = a
				}
			}
		}
		stepNorm := 0.0
		for k := 0; k < nprim; k++ {
			d := alpha * sol.AtVec(k)
			c[k] += d
			stepNorm += d * d
		}
		stepNorm = math.Sqrt(stepNorm)

		if stepNorm < p.Threshold {
			if mu > muFloor {
				mu *= muShrink
				continue
			}
			if gap := populationGap(c, pop); math.Abs(gap) > popTol(p.Threshold) {
				return nil, fail(co.Name(), iter, gap, ErrPopulationMismatch)
			}
			if err := checkNonNegative(c); err != nil {
				return nil, fail(co.Name(), iter, stepNorm, err)
			}
			return c, nil
		}
	}
	return nil, fail(co.Name(), maxIter, 0, ErrNotConverged)
}

// likelihoodDerivs fills the gradient and, when hess is non-nil, the
// Hessian of the negative log-likelihood at the pro-atom density pro.
func likelihoodDerivs(grad []float64, hess *mat.Dense, pro []float64, p *Problem, vw []float64) {
	nprim := len(grad)
	ratio := make([]float64, len(pro))
	for i := range pro {
		ratio[i] = vw[i] * p.Rho[i] / pro[i]
	}
	for k := 0; k < nprim; k++ {
		fnk := p.BasisFns[k]
		s := 0.0
		for i, r := range ratio {
			s += r * fnk[i]
		}
		grad[k] = -s
		if hess == nil {
			continue
		}
		for j := k; j < nprim; j++ {
			fnj := p.BasisFns[j]
			v := 0.0
			for i, r := range ratio {
				v += r * fnk[i] * fnj[i] / pro[i]
			}
			hess.Set(k, j, v)
			hess.Set(j, k, v)
		}
	}
}

// penaltyWeight scales the quadratic population penalty in PenaltyMin.
const penaltyWeight = 1e4

// PenaltyMin solves the same log-likelihood fit as ConvexOpt but folds
// the population equality into a quadratic penalty and substitutes
// u = ln c, which turns the bound-constrained problem into a smooth
// unconstrained one handled by L-BFGS. The population is therefore only
// approximately conserved, within the usual tolerance.
type PenaltyMin struct{}

func (PenaltyMin) Name() string { return "penalty" }

func (pm PenaltyMin) Optimize(p *Problem) ([]float64, error) {
	nprim, npt := p.NPrim(), p.Grid.Size()
	vw := p.VolumeWeights()
	pop := p.Population()

	u0 := make([]float64, nprim)
	for k, ck := range p.Propars {
		if ck < 1e-8 {
			ck = 1e-8
		}
		u0[k] = math.Log(ck)
	}

	expand := func(u []float64) []float64 {
		c := make([]float64, nprim)
		for k := range u {
			c[k] = math.Exp(u[k])
		}
		return c
	}

	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			c := expand(u)
			pro := proDensity(c, p.BasisFns, npt)
			f := 0.0
			for i, w := range vw {
				f -= w * p.Rho[i] * math.Log(pro[i])
			}
			gap := pop - floats.Sum(c)
			return f + penaltyWeight*gap*gap
		},
		Grad: func(g, u []float64) {
			c := expand(u)
			pro := proDensity(c, p.BasisFns, npt)
			likelihoodDerivs(g, nil, pro, p, vw)
			gap := pop - floats.Sum(c)
			for k := range g {
				// chain rule through c = exp(u)
				g[k] = c[k] * (g[k] - 2*penaltyWeight*gap)
			}
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: p.Threshold,
		MajorIterations:   p.cap(defaultConvexMaxIter),
	}
	res, err := optimize.Minimize(problem, u0, settings, &optimize.LBFGS{})
	if err != nil && res == nil {
		return nil, fail(pm.Name(), 0, 0, ErrNotConverged)
	}
	// a stalled line search near the optimum still leaves a usable
	// iterate; the population check below decides whether to accept it
	c := expand(res.X)
	if gap := populationGap(c, pop); math.Abs(gap) > popTol(p.Threshold) {
		return nil, fail(pm.Name(), res.Stats.MajorIterations, gap, ErrPopulationMismatch)
	}
	return c, nil
}
