package solver

import (
	"fmt"
	"sort"
	"strings"
)

// Options tunes a solver at construction time; zero values select the
// variant defaults.
type Options struct {
	// DIISSize is the extrapolation history window for the DIIS variants.
	DIISSize int
	// Damping is the fraction of the previous iterate retained per SC
	// update; only the damped fixed-point variant reads it.
	Damping float64
	// MaxIter overrides the per-variant iteration cap.
	MaxIter int
}

// DefaultDamping keeps 10% of the previous iterate in the damped SC
// update.
const DefaultDamping = 0.1

var constructors = map[string]func(Options) Solver{
	"quadprog": func(Options) Solver { return QuadProg{} },
	"leastsq":  func(Options) Solver { return LeastSquares{} },
	"sc":       func(Options) Solver { return SC{} },
	"sc-damp": func(o Options) Solver {
		d := o.Damping
		if d <= 0 {
			d = DefaultDamping
		}
		return SC{Damping: d}
	},
	"diis":   func(o Options) Solver { return DIIS{Size: o.DIISSize} },
	"diis-p": func(o Options) Solver { return DIIS{Size: o.DIISSize, AmplitudeSpace: true} },
	"newton": func(Options) Solver { return Newton{} },
	"root":   func(Options) Solver { return RootFind{} },
	"trust":  func(Options) Solver { return TrustRegion{} },
	"convex": func(Options) Solver { return ConvexOpt{} },
	"penalty": func(Options) Solver {
		return PenaltyMin{}
	},
	"mbis": func(Options) Solver { return MBIS{} },
}

// aliases maps the historical per-scheme integer tags onto registry
// names, e.g. "gisa-1" or "lisa-203".
var aliases = map[string]string{
	"gisa-1": "quadprog",
	"gisa-2": "leastsq",
	"gisa-3": "quadprog",

	"lisa-1":   "convex",
	"lisa-2":   "sc",
	"lisa-103": "penalty",
	"lisa-201": "sc-damp",
	"lisa-202": "diis",
	"lisa-203": "newton",
	"lisa-204": "root",
	"lisa-205": "sc",
	"lisa-206": "diis-p",
	"lisa-207": "trust",
}

// New builds the named solver. Historical integer tags are accepted in
// their scheme-prefixed form.
func New(name string, opts Options) (Solver, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	ctor, ok := constructors[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownSolver, name, strings.Join(Names(), ", "))
	}
	s := ctor(opts)
	return withCap(s, opts.MaxIter), nil
}

// Names lists the canonical solver names, sorted.
func Names() []string {
	out := make([]string, 0, len(constructors))
	for name := range constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// withCap applies an iteration override by wrapping Optimize; the cap
// travels on the Problem so every variant honors it uniformly.
func withCap(s Solver, maxIter int) Solver {
	if maxIter <= 0 {
		return s
	}
	return capped{Solver: s, maxIter: maxIter}
}

type capped struct {
	Solver
	maxIter int
}

func (c capped) Optimize(p *Problem) ([]float64, error) {
	if p.MaxIter == 0 {
		q := *p
		q.MaxIter = c.maxIter
		return c.Solver.Optimize(&q)
	}
	return c.Solver.Optimize(p)
}
