package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const defaultRootMaxIter = 1000

// RootReport carries diagnostics from a nonlinear root search.
type RootReport struct {
	Iterations int
	Residual   float64
	Message    string
}

// RootFind treats the amplitude optimality conditions as a nonlinear
// system h(c) = 0 and solves it with a damped Newton search: full steps
// are halved until the residual norm decreases, which keeps the iterate
// from overshooting into regions where the pro-atom density collapses.
// Slower than bare Newton near the solution but far more tolerant of poor
// starting amplitudes.
type RootFind struct{}

func (RootFind) Name() string { return "root" }

func (r RootFind) Optimize(p *Problem) ([]float64, error) {
	c, rep, err := solveRoot(p, cloneVec(p.Propars), p.cap(defaultRootMaxIter))
	if err != nil {
		return nil, fail(r.Name(), rep.Iterations, rep.Residual, err)
	}
	if gap := populationGap(c, p.Population()); math.Abs(gap) > popTol(p.Threshold) {
		return nil, fail(r.Name(), rep.Iterations, gap, ErrPopulationMismatch)
	}
	if err := checkNonNegative(c); err != nil {
		return nil, fail(r.Name(), rep.Iterations, rep.Residual, err)
	}
	return c, nil
}

// solveRoot runs the damped Newton search on the fixed-point residual.
// The report is valid whether or not an error is returned.
func solveRoot(p *Problem, c []float64, maxIter int) ([]float64, RootReport, error) {
	nprim, npt := p.NPrim(), p.Grid.Size()
	vw := p.VolumeWeights()

	h := make([]float64, nprim)
	trial := make([]float64, nprim)
	jac := mat.NewDense(nprim, nprim, nil)
	step := mat.NewVecDense(nprim, nil)

	pro := proDensity(c, p.BasisFns, npt)
	fixedPointResidual(h, jac, c, pro, p, vw)
	norm := floats.Norm(h, 2)

	rep := RootReport{Residual: norm}
	for iter := 0; iter < maxIter; iter++ {
		rep.Iterations = iter
		if norm < p.Threshold {
			rep.Message = "converged"
			return c, rep, nil
		}

		var lu mat.LU
		lu.Factorize(jac)
		if err := lu.SolveVecTo(step, false, mat.NewVecDense(nprim, h)); err != nil {
			rep.Message = "singular Jacobian"
			return nil, rep, ErrSingularSystem
		}

		// backtracking line search on the residual norm
		alpha := 1.0
		improved := false
		for ls := 0; ls < 30; ls++ {
			for k := 0; k < nprim; k++ {
				trial[k] = c[k] - alpha*step.AtVec(k)
				if trial[k] < 0 {
					trial[k] = 0
				}
			}
			trialPro := proDensity(trial, p.BasisFns, npt)
			fixedPointResidual(h, nil, trial, trialPro, p, vw)
			if tn := floats.Norm(h, 2); tn < norm {
				copy(c, trial)
				pro = trialPro
				norm = tn
				improved = true
				break
			}
			alpha /= 2
		}
		if !improved {
			rep.Message = "line search stalled"
			rep.Residual = norm
			return nil, rep, ErrNotConverged
		}
		fixedPointResidual(h, jac, c, pro, p, vw)
		rep.Residual = norm
	}
	rep.Message = "iteration cap exhausted"
	return nil, rep, ErrNotConverged
}
