package part

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/avanberg/stockpart/internal/basis"
	"github.com/avanberg/stockpart/internal/grid"
	"github.com/avanberg/stockpart/internal/solver"
)

// Partitioner runs the outer stockholder loop over a molecular density.
//
// Each iteration rebuilds the promolecule from the current pro-atom
// parameters, splits the molecular density into atomic pieces with the
// stockholder weights, spherically averages each piece onto its atom's
// radial grid, and refits every atom's parameters in parallel. The loop
// stops when the largest charge movement drops below the threshold.
type Partitioner struct {
	atoms  []Atom
	mgrid  *grid.Molecular
	rho    []float64 // molecular density on mgrid
	rgrids []*grid.Radial
	set    *basis.Set
	slv    solver.Solver
	cfg    Config

	observers []Observer

	// propars arena: one backing slice, per-atom windows
	propars []float64
	ranges  [][2]int
	widths  [][]float64
	fns     [][][]float64 // per atom, per shell, radial profile
	isMBIS  bool
}

// New builds a Partitioner. rho holds the molecular electron density on
// the molecular grid; rgrids supplies one radial grid per atom.
func New(atoms []Atom, mgrid *grid.Molecular, rho []float64, rgrids []*grid.Radial, cfg Config) (*Partitioner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(atoms) == 0 {
		return nil, fmt.Errorf("part: no atoms")
	}
	if mgrid.NAtoms() != len(atoms) {
		return nil, fmt.Errorf("part: grid built for %d atoms, got %d", mgrid.NAtoms(), len(atoms))
	}
	if len(rho) != mgrid.Size() {
		return nil, fmt.Errorf("part: density has %d values for %d grid points", len(rho), mgrid.Size())
	}
	if len(rgrids) != len(atoms) {
		return nil, fmt.Errorf("part: %d radial grids for %d atoms", len(rgrids), len(atoms))
	}

	set, err := basis.NewSet(cfg.Basis)
	if err != nil {
		return nil, err
	}
	slv, err := solver.New(cfg.Solver, cfg.SolverOpts)
	if err != nil {
		return nil, err
	}

	p := &Partitioner{
		atoms:  atoms,
		mgrid:  mgrid,
		rho:    rho,
		set:    set,
		slv:    slv,
		cfg:    cfg,
		isMBIS: slv.Name() == "mbis",
	}

	p.rgrids = make([]*grid.Radial, len(atoms))
	for a, rg := range rgrids {
		if cfg.LocalGridRadius > 0 {
			rg = rg.Truncate(cfg.LocalGridRadius)
		}
		p.rgrids[a] = rg
	}

	p.initPropars()
	return p, nil
}

// AddObserver registers a per-iteration callback.
func (p *Partitioner) AddObserver(o Observer) { p.observers = append(p.observers, o) }

// initPropars lays out the parameter arena and the fixed shell data.
func (p *Partitioner) initPropars() {
	p.ranges = make([][2]int, len(p.atoms))
	p.widths = make([][]float64, len(p.atoms))
	p.fns = make([][][]float64, len(p.atoms))

	total := 0
	for a, atom := range p.atoms {
		var init []float64
		if p.isMBIS {
			init = basis.MBISInitial(atom.Number)
		} else {
			init = p.set.InitialAmplitudes(atom.Number)
		}
		p.ranges[a] = [2]int{total, total + len(init)}
		total += len(init)
		p.propars = append(p.propars, init...)

		if !p.isMBIS {
			widths := p.set.Widths(atom.Number)
			p.widths[a] = widths
			r := p.rgrids[a].Points
			fns := make([][]float64, len(widths))
			for k, w := range widths {
				fns[k] = p.set.ShellDensity(1, w, r)
			}
			p.fns[a] = fns
		}
	}
}

// atomPropars returns atom a's window into the arena.
func (p *Partitioner) atomPropars(a int) []float64 {
	rg := p.ranges[a]
	return p.propars[rg[0]:rg[1]]
}

// Run executes the outer loop until convergence, the iteration cap, or
// context cancellation.
func (p *Partitioner) Run(ctx context.Context) (*Result, error) {
	natom := len(p.atoms)
	result := &Result{Status: StatusInitializing}

	charges := make([]float64, natom)
	oldCharges := make([]float64, natom)
	for a := range oldCharges {
		oldCharges[a] = math.Inf(1)
	}

	result.Status = StatusIterating
	for iter := 0; iter < p.cfg.MaxIter; iter++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		promol, proatoms := p.promolecule()
		entropy := p.entropy(promol)

		// split the density stockholder-style and refit every atom
		problems := make([]*solver.Problem, natom)
		for a := range p.atoms {
			problems[a] = p.atomProblem(a, promol, proatoms[a])
			charges[a] = p.atoms[a].Pseudo - problems[a].Population()
		}

		errs := make([]error, natom)
		var wg sync.WaitGroup
		for a := 0; a < natom; a++ {
			wg.Add(1)
			go func(a int) {
				defer wg.Done()
				pars, err := p.slv.Optimize(problems[a])
				if err != nil {
					errs[a] = fmt.Errorf("atom %d (Z=%d): %w", a, p.atoms[a].Number, err)
					return
				}
				copy(p.atomPropars(a), pars)
			}(a)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return result, err
			}
		}

		maxChange := 0.0
		for a := range charges {
			if d := math.Abs(charges[a] - oldCharges[a]); d > maxChange {
				maxChange = d
			}
		}
		copy(oldCharges, charges)

		rec := IterationRecord{
			Iteration: iter + 1,
			MaxChange: maxChange,
			Entropy:   entropy,
			Charges:   append([]float64(nil), charges...),
		}
		result.History = append(result.History, rec)
		result.Iterations = iter + 1
		for _, o := range p.observers {
			o.OnIteration(rec)
		}

		if maxChange < p.cfg.Threshold {
			result.Status = StatusConverged
			break
		}
	}

	if result.Status != StatusConverged {
		result.Status = StatusMaxIter
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("charges not converged after %d iterations", result.Iterations))
	}

	result.Charges = append([]float64(nil), oldCharges...)
	result.Propars = make([][]float64, natom)
	for a := range p.atoms {
		result.Propars[a] = append([]float64(nil), p.atomPropars(a)...)
	}
	return result, nil
}

// promolecule evaluates every pro-atom on the molecular grid and their
// floored sum.
func (p *Partitioner) promolecule() (promol []float64, proatoms [][]float64) {
	npt := p.mgrid.Size()
	promol = make([]float64, npt)
	proatoms = make([][]float64, len(p.atoms))
	for a := range p.atoms {
		d := p.mgrid.Distances(a)
		var pro []float64
		if p.isMBIS {
			pro = basis.MBISDensity(p.atomPropars(a), d)
		} else {
			pro, _ = p.set.ProAtomDensity(p.atoms[a].Number, p.atomPropars(a), d)
		}
		proatoms[a] = pro
		for i := range promol {
			promol[i] += pro[i]
		}
	}
	for i, v := range promol {
		if v < 1e-100 {
			promol[i] = 1e-100
		}
	}
	return promol, proatoms
}

// atomProblem assembles atom a's inner fit: the stockholder share of the
// molecular density, spherically averaged onto the atom's radial grid.
func (p *Partitioner) atomProblem(a int, promol, proatom []float64) *solver.Problem {
	share := make([]float64, len(p.rho))
	for i := range share {
		share[i] = p.rho[i] * proatom[i] / promol[i]
	}
	target := p.mgrid.SphericalAverage(a, share, p.rgrids[a])
	return &solver.Problem{
		Rho:       target,
		Propars:   append([]float64(nil), p.atomPropars(a)...),
		Grid:      p.rgrids[a],
		BasisFns:  p.fns[a],
		Widths:    p.widths[a],
		Kind:      p.set.Kind(),
		Threshold: p.cfg.inner(),
	}
}

// entropy is the information distance -integral( w rho ln rho0 ) between
// the molecular density and the promolecule; it decreases monotonically
// as the pro-atoms improve.
func (p *Partitioner) entropy(promol []float64) float64 {
	ln := make([]float64, len(promol))
	for i, v := range promol {
		ln[i] = math.Log(v)
	}
	return -p.mgrid.Integrate(p.rho, ln)
}
