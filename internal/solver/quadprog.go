package solver

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/avanberg/stockpart/internal/basis"
)

// QuadProg solves the closed-form least-squares fit: minimize
// 0.5*c'Sc - c'b over the shell amplitudes, subject to sum(c) equal to the
// target population and c >= 0. S is the Gram matrix of the shell basis
// under the L2 inner product and b collects the overlaps with the target
// density. A small active-set iteration enforces the inequality
// constraints; no inner fixed-point iteration is involved.
type QuadProg struct{}

func (QuadProg) Name() string { return "quadprog" }

func (q QuadProg) Optimize(p *Problem) ([]float64, error) {
	nprim := p.NPrim()
	vw := p.VolumeWeights()

	S := q.gram(p)
	b := make([]float64, nprim)
	for k := 0; k < nprim; k++ {
		s := 0.0
		for i, w := range vw {
			s += w * p.BasisFns[k][i] * p.Rho[i]
		}
		b[k] = 2 * s
	}
	pop := p.Population()

	fixed := make([]bool, nprim)
	c := make([]float64, nprim)
	const feasTol = 1e-12

	for iter := 0; iter < 10*nprim+20; iter++ {
		free := make([]int, 0, nprim)
		for k := 0; k < nprim; k++ {
			if !fixed[k] {
				free = append(free, k)
			}
		}
		lam, err := solveEqualityQP(S, b, pop, free, c)
		if err != nil {
			return nil, fail(q.Name(), iter, 0, err)
		}

		// most violated non-negativity constraint joins the active set
		worst, worstVal := -1, -feasTol
		for _, k := range free {
			if c[k] < worstVal {
				worst, worstVal = k, c[k]
			}
		}
		if worst >= 0 {
			fixed[worst] = true
			continue
		}

		// release an active constraint with a negative multiplier
		release, relVal := -1, -1e-10
		for k := 0; k < nprim; k++ {
			if !fixed[k] {
				continue
			}
			mu := -b[k] + lam
			for j := 0; j < nprim; j++ {
				mu += S[k][j] * c[j]
			}
			if mu < relVal {
				release, relVal = k, mu
			}
		}
		if release >= 0 {
			fixed[release] = false
			continue
		}

		for k := range c {
			if c[k] < 0 {
				c[k] = 0
			}
		}
		if gap := populationGap(c, pop); math.Abs(gap) > math.Max(1e-8, p.Threshold) {
			return nil, fail(q.Name(), iter, gap, ErrPopulationMismatch)
		}
		return c, nil
	}
	return nil, fail(q.Name(), 10*nprim+20, 0, ErrNotConverged)
}

// gram builds the basis Gram matrix. For Gaussian shells the closed form
// 2*(ak*al)^1.5 / (pi^1.5 * (ak+al)^1.5) applies; other shell kinds fall
// back to quadrature on the problem grid.
func (q QuadProg) gram(p *Problem) [][]float64 {
	nprim := p.NPrim()
	S := make([][]float64, nprim)
	for k := range S {
		S[k] = make([]float64, nprim)
	}
	if p.Kind == basis.Gauss && len(p.Widths) == nprim {
		for k := 0; k < nprim; k++ {
			for l := k; l < nprim; l++ {
				ak, al := p.Widths[k], p.Widths[l]
				v := 2 / math.Pow(math.Pi, 1.5) *
					math.Pow(ak*al, 1.5) / math.Pow(ak+al, 1.5)
				S[k][l] = v
				S[l][k] = v
			}
		}
		return S
	}
	vw := p.VolumeWeights()
	for k := 0; k < nprim; k++ {
		for l := k; l < nprim; l++ {
			s := 0.0
			for i, w := range vw {
				s += w * p.BasisFns[k][i] * p.BasisFns[l][i]
			}
			S[k][l] = 2 * s
			S[l][k] = 2 * s
		}
	}
	return S
}

// solveEqualityQP solves the KKT system of the equality-constrained
// subproblem restricted to the free variables, writing amplitudes into c
// (fixed variables get zero) and returning the constraint multiplier.
func solveEqualityQP(S [][]float64, b []float64, pop float64, free []int, c []float64) (float64, error) {
	m := len(free)
	if m == 0 {
		return 0, ErrSingularSystem
	}
	K := mat.NewDense(m+1, m+1, nil)
	rhs := mat.NewVecDense(m+1, nil)
	for i, fi := range free {
		for j, fj := range free {
			K.Set(i, j, S[fi][fj])
		}
		K.Set(i, m, 1)
		K.Set(m, i, 1)
		rhs.SetVec(i, b[fi])
	}
	rhs.SetVec(m, pop)

	var lu mat.LU
	lu.Factorize(K)
	var sol mat.VecDense
	if err := lu.SolveVecTo(&sol, false, rhs); err != nil {
		return 0, ErrSingularSystem
	}
	for k := range c {
		c[k] = 0
	}
	for i, fi := range free {
		c[fi] = sol.AtVec(i)
	}
	return sol.AtVec(m), nil
}
