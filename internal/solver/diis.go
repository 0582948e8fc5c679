package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultDIISSize is the history window when none is configured.
const DefaultDIISSize = 8

const defaultDIISMaxIter = 1000

// DIIS accelerates the self-consistent iteration with Pulay extrapolation:
// once a bounded window of past iterate/residual pairs has filled, the
// mixing coefficients come from the Pulay least-squares system (residual
// inner products bordered by a Lagrange row forcing the coefficients to
// sum to one). A near-singular Pulay matrix signals linear dependence
// among the residuals; the solver then degrades permanently to plain
// self-consistent iteration instead of failing.
//
// The residual lives in density space by default; AmplitudeSpace switches
// to the amplitude-space residual c - f(c).
type DIIS struct {
	Size           int
	AmplitudeSpace bool
}

func (d DIIS) Name() string {
	if d.AmplitudeSpace {
		return "diis-p"
	}
	return "diis"
}

func (d DIIS) window() int {
	if d.Size > 0 {
		return d.Size
	}
	return DefaultDIISSize
}

func (d DIIS) Optimize(p *Problem) ([]float64, error) {
	if d.AmplitudeSpace {
		return d.optimizeAmplitude(p)
	}
	return d.optimizeDensity(p)
}

func (d DIIS) optimizeDensity(p *Problem) ([]float64, error) {
	nprim, npt := p.NPrim(), p.Grid.Size()
	vw := p.VolumeWeights()
	pop := p.Population()
	size := d.window()

	shellHist := newRing(size)
	proHist := newRing(size)
	residHist := newRing(size)

	c := cloneVec(p.Propars)
	var oldPro []float64
	diisOff := false
	maxIter := p.cap(defaultDIISMaxIter)

	for iter := 0; iter < maxIter; iter++ {
		shells := make([]float64, nprim*npt)
		for k := 0; k < nprim; k++ {
			fn := p.BasisFns[k]
			for i := 0; i < npt; i++ {
				shells[k*npt+i] = c[k] * fn[i]
			}
		}
		pro := make([]float64, npt)
		for k := 0; k < nprim; k++ {
			for i := 0; i < npt; i++ {
				pro[i] += shells[k*npt+i]
			}
		}
		floorDensity(pro)

		resid := cloneVec(pro)
		if oldPro != nil {
			floats.Sub(resid, oldPro)
		}
		shellHist.push(shells)
		proHist.push(pro)
		residHist.push(resid)

		drms := math.Sqrt(p.Grid.Integrate(p.Grid.Sphere(), resid, resid))
		if drms < p.Threshold {
			if gap := populationGap(c, pop); math.Abs(gap) > popTol(p.Threshold) {
				return nil, fail(d.Name(), iter, gap, ErrPopulationMismatch)
			}
			if err := checkNonNegative(c); err != nil {
				return nil, fail(d.Name(), iter, drms, err)
			}
			return c, nil
		}

		mixShells, mixPro := shells, pro
		if !diisOff && residHist.full() {
			coeff, err := solvePulay(residHist.items())
			if err != nil {
				// linear dependence in the residual history
				diisOff = true
			} else {
				mixShells = mixVectors(coeff, shellHist.items())
				mixPro = mixVectors(coeff, proHist.items())
				floorDensity(mixShells)
				floorDensity(mixPro)
			}
		}

		for k := 0; k < nprim; k++ {
			sum := 0.0
			for i := 0; i < npt; i++ {
				sum += vw[i] * mixShells[k*npt+i] * p.Rho[i] / mixPro[i]
			}
			c[k] = sum
		}
		oldPro = pro
	}
	return nil, fail(d.Name(), maxIter, 0, ErrNotConverged)
}

func (d DIIS) optimizeAmplitude(p *Problem) ([]float64, error) {
	nprim, npt := p.NPrim(), p.Grid.Size()
	vw := p.VolumeWeights()
	size := d.window()

	valHist := newRing(size)
	residHist := newRing(size)

	c := cloneVec(p.Propars)
	diisOff := false
	maxIter := p.cap(defaultDIISMaxIter)

	for iter := 0; iter < maxIter; iter++ {
		pro := proDensity(c, p.BasisFns, npt)
		fval := make([]float64, nprim)
		for k := 0; k < nprim; k++ {
			fn := p.BasisFns[k]
			sum := 0.0
			for i := 0; i < npt; i++ {
				sum += vw[i] * c[k] * fn[i] * p.Rho[i] / pro[i]
			}
			fval[k] = sum
		}
		resid := make([]float64, nprim)
		for k := range resid {
			resid[k] = c[k] - fval[k]
		}

		drms := floats.Norm(resid, 2)
		if drms < p.Threshold {
			return c, nil
		}

		valHist.push(fval)
		residHist.push(resid)

		if !diisOff && residHist.full() {
			coeff, err := solvePulay(residHist.items())
			if err != nil {
				diisOff = true
				c = fval
			} else {
				c = mixVectors(coeff, valHist.items())
			}
		} else {
			c = fval
		}
		if err := checkNonNegative(c); err != nil {
			return nil, fail(d.Name(), iter, drms, err)
		}
	}
	return nil, fail(d.Name(), maxIter, 0, ErrNotConverged)
}

// maxPulayCond bounds the condition number of the bordered Pulay matrix;
// beyond it the residual history is treated as linearly dependent.
const maxPulayCond = 1e14

// solvePulay builds and solves the bordered Pulay system for the mixing
// coefficients. ErrSingularSystem reports linear dependence among the
// residual vectors.
func solvePulay(resids [][]float64) ([]float64, error) {
	m := len(resids)
	dim := m + 1
	b := mat.NewDense(dim, dim, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			v := floats.Dot(resids[i], resids[j])
			b.Set(i, j, v)
			b.Set(j, i, v)
		}
		b.Set(i, m, -1)
		b.Set(m, i, -1)
	}
	rhs := mat.NewVecDense(dim, nil)
	rhs.SetVec(m, -1)

	var lu mat.LU
	lu.Factorize(b)
	if cond := lu.Cond(); math.IsNaN(cond) || cond > maxPulayCond {
		return nil, ErrSingularSystem
	}
	var sol mat.VecDense
	if err := lu.SolveVecTo(&sol, false, rhs); err != nil {
		return nil, ErrSingularSystem
	}
	coeff := make([]float64, m)
	sum := 0.0
	for i := 0; i < m; i++ {
		coeff[i] = sol.AtVec(i)
		sum += coeff[i]
	}
	if math.Abs(sum-1) > 1e-8 {
		return nil, ErrSingularSystem
	}
	return coeff, nil
}

func mixVectors(coeff []float64, hist [][]float64) []float64 {
	out := make([]float64, len(hist[0]))
	for i, ci := range coeff {
		floats.AddScaled(out, ci, hist[i])
	}
	return out
}

// ring is a bounded FIFO of vectors for the DIIS histories.
type ring struct {
	buf  [][]float64
	next int
	n    int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([][]float64, capacity)}
}

func (r *ring) push(v []float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

func (r *ring) full() bool { return r.n == len(r.buf) }

// items returns the stored vectors oldest first.
func (r *ring) items() [][]float64 {
	out := make([][]float64, 0, r.n)
	start := r.next - r.n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
