package part

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/avanberg/stockpart/internal/basis"
	"github.com/avanberg/stockpart/internal/grid"
	"github.com/avanberg/stockpart/internal/solver"
)

// DefaultCutoffRadius bounds the cross-atom Hessian coupling in the joint
// convex solve, in bohr.
const DefaultCutoffRadius = 16.0

// GlobalMode selects the joint optimization strategy.
type GlobalMode string

const (
	// GlobalSC iterates the molecule-wide fixed point on the full grid,
	// with no per-atom spherical averaging step.
	GlobalSC GlobalMode = "global-sc"
	// GlobalConvex minimizes the joint log-likelihood over all shell
	// amplitudes at once under a single total-population constraint.
	GlobalConvex GlobalMode = "global-convex"
)

// GlobalPartitioner optimizes all atoms' shell amplitudes jointly on the
// molecular grid instead of alternating per-atom fits. The joint problem
// sees cross-atom coupling directly, which removes the outer loop; the
// price is one large solve over every shell in the molecule.
type GlobalPartitioner struct {
	atoms []Atom
	mgrid *grid.Molecular
	rho   []float64
	set   *basis.Set
	mode  GlobalMode
	cfg   Config

	// CutoffRadius suppresses convex-solve Hessian coupling between
	// shells on atoms farther apart than this, in bohr.
	CutoffRadius float64

	propars []float64
	ranges  [][2]int
	fns     [][]float64 // per shell (all atoms flattened), molecular-grid profile
	owner   []int       // shell index -> atom index
}

// NewGlobal builds a joint partitioner. Only fixed-width shell bases
// apply; the MBIS parameterization has no joint variant.
func NewGlobal(atoms []Atom, mgrid *grid.Molecular, rho []float64, mode GlobalMode, cfg Config) (*GlobalPartitioner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if mode != GlobalSC && mode != GlobalConvex {
		return nil, fmt.Errorf("part: unknown global mode %q", mode)
	}
	set, err := basis.NewSet(cfg.Basis)
	if err != nil {
		return nil, err
	}

	g := &GlobalPartitioner{
		atoms:        atoms,
		mgrid:        mgrid,
		rho:          rho,
		set:          set,
		mode:         mode,
		cfg:          cfg,
		CutoffRadius: DefaultCutoffRadius,
	}
	g.ranges = make([][2]int, len(atoms))
	for a, atom := range atoms {
		init := set.InitialAmplitudes(atom.Number)
		widths := set.Widths(atom.Number)
		g.ranges[a] = [2]int{len(g.propars), len(g.propars) + len(init)}
		g.propars = append(g.propars, init...)
		d := mgrid.Distances(a)
		for _, w := range widths {
			g.fns = append(g.fns, set.ShellDensity(1, w, d))
			g.owner = append(g.owner, a)
		}
	}
	return g, nil
}

// Run performs the joint optimization and reports per-atom charges from
// the converged amplitude windows.
func (g *GlobalPartitioner) Run(ctx context.Context) (*Result, error) {
	var err error
	result := &Result{Status: StatusIterating}
	switch g.mode {
	case GlobalSC:
		err = g.runSC(ctx, result)
	case GlobalConvex:
		err = g.runConvex(ctx, result)
	}
	if err != nil {
		return result, err
	}

	result.Charges = make([]float64, len(g.atoms))
	result.Propars = make([][]float64, len(g.atoms))
	for a, atom := range g.atoms {
		w := g.propars[g.ranges[a][0]:g.ranges[a][1]]
		result.Charges[a] = atom.Pseudo - floats.Sum(w)
		result.Propars[a] = append([]float64(nil), w...)
	}
	return result, nil
}

func (g *GlobalPartitioner) runSC(ctx context.Context, result *Result) error {
	nsh := len(g.fns)
	npt := g.mgrid.Size()
	w := g.mgrid.Weights

	oldCharges := make([]float64, len(g.atoms))
	for a := range oldCharges {
		oldCharges[a] = math.Inf(1)
	}

	for iter := 0; iter < g.cfg.MaxIter; iter++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		promol := g.promolecule(npt)
		for k := 0; k < nsh; k++ {
			fn := g.fns[k]
			ck := g.propars[k]
			sum := 0.0
			for i := 0; i < npt; i++ {
				sum += w[i] * ck * fn[i] * g.rho[i] / promol[i]
			}
			g.propars[k] = sum
		}

		maxChange := g.recordCharges(result, iter, oldCharges, promol)
		if maxChange < g.cfg.Threshold {
			result.Status = StatusConverged
			return nil
		}
	}
	result.Status = StatusMaxIter
	result.Warnings = append(result.Warnings,
		fmt.Sprintf("joint fixed point not converged after %d iterations", g.cfg.MaxIter))
	return nil
}

// runConvex minimizes -integral( w rho ln rho0 ) over all amplitudes with
// a barrier interior-point scheme, one equality on the total population.
// Hessian blocks between atoms beyond CutoffRadius are dropped; at that
// separation the shell overlap is negligible anyway.
func (g *GlobalPartitioner) runConvex(ctx context.Context, result *Result) error {
	nsh := len(g.fns)
	npt := g.mgrid.Size()
	w := g.mgrid.Weights
	pop := g.mgrid.Integrate(g.rho)

	couple := g.couplingMask()

	c := g.propars
	for k := range c {
		if c[k] < 1e-8 {
			c[k] = 1e-8
		}
	}
	if s := floats.Sum(c); s > 0 {
		floats.Scale(pop/s, c)
	}

	grad := make([]float64, nsh)
	ratio := make([]float64, npt)
	kkt := mat.NewDense(nsh+1, nsh+1, nil)
	rhs := mat.NewVecDense(nsh+1, nil)

	mu := 1.0
	const muShrink = 0.2
	const muFloor = 1e-12

	oldCharges := make([]float64, len(g.atoms))
	for a := range oldCharges {
		oldCharges[a] = math.Inf(1)
	}

	for iter := 0; iter < g.cfg.MaxIter; iter++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		promol := g.promolecule(npt)
		for i := 0; i < npt; i++ {
			ratio[i] = w[i] * g.rho[i] / promol[i]
		}

		kkt.Zero()
		for k := 0; k < nsh; k++ {
			fnk := g.fns[k]
			s := 0.0
			for i, r := range ratio {
				s += r * fnk[i]
			}
			grad[k] = -s
			for j := k; j < nsh; j++ {
				if !couple[g.owner[k]][g.owner[j]] {
					continue
				}
				fnj := g.fns[j]
				v := 0.0
				for i, r := range ratio {
					v += r * fnk[i] * fnj[i] / promol[i]
				}
				kkt.Set(k, j, v)
				kkt.Set(j, k, v)
			}
			kkt.Set(k, k, kkt.At(k, k)+mu/(c[k]*c[k]))
			kkt.Set(k, nsh, 1)
			kkt.Set(nsh, k, 1)
			rhs.SetVec(k, -(grad[k] - mu/c[k]))
		}
		rhs.SetVec(nsh, 0)

		var lu mat.LU
		lu.Factorize(kkt)
		var sol mat.VecDense
		if err := lu.SolveVecTo(&sol, false, rhs); err != nil {
			return fmt.Errorf("part: joint convex step: %w", solver.ErrSingularSystem)
		}

		alpha := 1.0
		for k := 0; k < nsh; k++ {
			if d := sol.AtVec(k); d < 0 {
				if a := -0.99 * c[k] / d; a < alpha {
					alpha = a
				}
			}
		}
		stepNorm := 0.0
		for k := 0; k < nsh; k++ {
			d := alpha * sol.AtVec(k)
			c[k] += d
			stepNorm += d * d
		}
		stepNorm = math.Sqrt(stepNorm)

		g.recordCharges(result, iter, oldCharges, promol)

		if stepNorm < g.cfg.Threshold {
			if mu > muFloor {
				mu *= muShrink
				continue
			}
			result.Status = StatusConverged
			return nil
		}
	}
	result.Status = StatusMaxIter
	result.Warnings = append(result.Warnings,
		fmt.Sprintf("joint convex solve not converged after %d iterations", g.cfg.MaxIter))
	return nil
}

// couplingMask marks atom pairs whose shells keep Hessian coupling.
func (g *GlobalPartitioner) couplingMask() [][]bool {
	cut := g.CutoffRadius
	if cut <= 0 {
		cut = DefaultCutoffRadius
	}
	n := len(g.atoms)
	mask := make([][]bool, n)
	for a := range mask {
		mask[a] = make([]bool, n)
		for b := range mask[a] {
			dx := g.atoms[a].Coord[0] - g.atoms[b].Coord[0]
			dy := g.atoms[a].Coord[1] - g.atoms[b].Coord[1]
			dz := g.atoms[a].Coord[2] - g.atoms[b].Coord[2]
			mask[a][b] = math.Sqrt(dx*dx+dy*dy+dz*dz) <= cut
		}
	}
	return mask
}

func (g *GlobalPartitioner) promolecule(npt int) []float64 {
	promol := make([]float64, npt)
	for k, fn := range g.fns {
		ck := g.propars[k]
		for i := range promol {
			promol[i] += ck * fn[i]
		}
	}
	for i, v := range promol {
		if v < 1e-100 {
			promol[i] = 1e-100
		}
	}
	return promol
}

// recordCharges appends an iteration record and returns the largest
// charge movement.
func (g *GlobalPartitioner) recordCharges(result *Result, iter int, oldCharges []float64, promol []float64) float64 {
	charges := make([]float64, len(g.atoms))
	for a, atom := range g.atoms {
		charges[a] = atom.Pseudo - floats.Sum(g.propars[g.ranges[a][0]:g.ranges[a][1]])
	}
	maxChange := 0.0
	for a := range charges {
		if d := math.Abs(charges[a] - oldCharges[a]); d > maxChange {
			maxChange = d
		}
	}
	copy(oldCharges, charges)

	ln := make([]float64, len(promol))
	for i, v := range promol {
		ln[i] = math.Log(v)
	}
	result.History = append(result.History, IterationRecord{
		Iteration: iter + 1,
		MaxChange: maxChange,
		Entropy:   -g.mgrid.Integrate(g.rho, ln),
		Charges:   charges,
	})
	result.Iterations = iter + 1
	return maxChange
}
