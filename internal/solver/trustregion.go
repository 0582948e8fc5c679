package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const defaultTrustMaxIter = 50000

// TrustRegion minimizes the squared residual norm ||h(c)||^2 with a
// dogleg trust-region method over the Gauss-Newton model: the step
// interpolates between the steepest-descent (Cauchy) point and the
// Gauss-Newton step, clipped to the current trust radius, and the radius
// grows or shrinks with the agreement between predicted and actual
// reduction. Iterates are projected onto the non-negative cone after each
// accepted step. Robust on ill-conditioned shells at the price of many
// cheap iterations.
type TrustRegion struct{}

func (TrustRegion) Name() string { return "trust" }

func (t TrustRegion) Optimize(p *Problem) ([]float64, error) {
	nprim, npt := p.NPrim(), p.Grid.Size()
	vw := p.VolumeWeights()
	maxIter := p.cap(defaultTrustMaxIter)

	c := cloneVec(p.Propars)
	h := make([]float64, nprim)
	trialH := make([]float64, nprim)
	trial := make([]float64, nprim)
	jac := mat.NewDense(nprim, nprim, nil)
	grad := make([]float64, nprim)

	pro := proDensity(c, p.BasisFns, npt)
	fixedPointResidual(h, jac, c, pro, p, vw)
	obj := 0.5 * floats.Dot(h, h)

	radius := 1.0
	const maxRadius = 100.0

	for iter := 0; iter < maxIter; iter++ {
		norm := floats.Norm(h, 2)
		if norm < p.Threshold {
			if gap := populationGap(c, p.Population()); math.Abs(gap) > popTol(p.Threshold) {
				return nil, fail(t.Name(), iter, gap, ErrPopulationMismatch)
			}
			return c, nil
		}

		// gradient of 0.5*||h||^2 is J^T h (J symmetric here)
		for k := 0; k < nprim; k++ {
			s := 0.0
			for j := 0; j < nprim; j++ {
				s += jac.At(j, k) * h[j]
			}
			grad[k] = s
		}

		step := doglegStep(jac, h, grad, radius)

		for k := 0; k < nprim; k++ {
			trial[k] = c[k] + step[k]
			if trial[k] < 0 {
				trial[k] = 0
			}
		}
		trialPro := proDensity(trial, p.BasisFns, npt)
		fixedPointResidual(trialH, nil, trial, trialPro, p, vw)
		trialObj := 0.5 * floats.Dot(trialH, trialH)

		predicted := -floats.Dot(grad, step)
		for k := 0; k < nprim; k++ {
			js := 0.0
			for j := 0; j < nprim; j++ {
				js += jac.At(k, j) * step[j]
			}
			predicted -= 0.5 * js * js
		}
		actual := obj - trialObj

		rho := -1.0
		if predicted > 0 {
			rho = actual / predicted
		}
		if rho < 0.25 {
			radius *= 0.25
			if radius < 1e-14 {
				return nil, fail(t.Name(), iter, norm, ErrNotConverged)
			}
		} else if rho > 0.75 && floats.Norm(step, 2) > 0.99*radius {
			radius = math.Min(2*radius, maxRadius)
		}
		if rho > 1e-4 {
			copy(c, trial)
			copy(h, trialH)
			obj = trialObj
			pro = trialPro
			fixedPointResidual(h, jac, c, pro, p, vw)
		}
	}
	return nil, fail(t.Name(), maxIter, 0, ErrNotConverged)
}

// doglegStep combines the Cauchy point and the Gauss-Newton step within
// the trust radius. A singular Jacobian falls back to steepest descent.
func doglegStep(jac *mat.Dense, h, grad []float64, radius float64) []float64 {
	n := len(h)

	// Cauchy point: minimize the model along -grad
	gg := floats.Dot(grad, grad)
	jg := make([]float64, n)
	for k := 0; k < n; k++ {
		s := 0.0
		for j := 0; j < n; j++ {
			s += jac.At(k, j) * grad[j]
		}
		jg[k] = s
	}
	gJJg := floats.Dot(jg, jg)
	cauchy := make([]float64, n)
	if gJJg > 0 {
		tau := gg / gJJg
		for k := range cauchy {
			cauchy[k] = -tau * grad[k]
		}
	}
	cauchyNorm := floats.Norm(cauchy, 2)
	if cauchyNorm >= radius {
		scale := radius / cauchyNorm
		floats.Scale(scale, cauchy)
		return cauchy
	}

	var lu mat.LU
	lu.Factorize(jac)
	var gn mat.VecDense
	if err := lu.SolveVecTo(&gn, false, mat.NewVecDense(n, h)); err != nil {
		return cauchy
	}
	newton := make([]float64, n)
	for k := 0; k < n; k++ {
		newton[k] = -gn.AtVec(k)
	}
	if floats.Norm(newton, 2) <= radius {
		return newton
	}

	// walk the dogleg segment from the Cauchy point toward the Newton
	// step until it crosses the trust boundary
	d := make([]float64, n)
	for k := range d {
		d[k] = newton[k] - cauchy[k]
	}
	a := floats.Dot(d, d)
	b := 2 * floats.Dot(cauchy, d)
	cc := floats.Dot(cauchy, cauchy) - radius*radius
	disc := b*b - 4*a*cc
	tau := 0.0
	if a > 0 && disc >= 0 {
		tau = (-b + math.Sqrt(disc)) / (2 * a)
	}
	out := make([]float64, n)
	for k := range out {
		out[k] = cauchy[k] + tau*d[k]
	}
	return out
}
