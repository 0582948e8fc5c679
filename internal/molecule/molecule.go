// Package molecule provides small built-in demo systems: geometries,
// promolecule-quality electron densities, and quadrature grids good
// enough to exercise the partitioning end to end. Production callers
// supply their own density and grids; these exist so the tool runs out
// of the box.
package molecule

import (
	"fmt"
	"math"
	"sort"

	"github.com/avanberg/stockpart/internal/basis"
	"github.com/avanberg/stockpart/internal/grid"
	"github.com/avanberg/stockpart/internal/part"
)

// System bundles everything a partitioning run needs.
type System struct {
	Name    string
	Atoms   []part.Atom
	Grid    *grid.Molecular
	Density []float64      // molecular electron density on Grid
	RGrids  []*grid.Radial // per-atom radial grids
}

// DefaultRadialPoints sizes the per-atom radial grids of the demos.
const DefaultRadialPoints = 120

// geometries in bohr
var systems = map[string][]part.Atom{
	"h": {
		{Number: 1, Pseudo: 1, Coord: [3]float64{0, 0, 0}},
	},
	"h2": {
		{Number: 1, Pseudo: 1, Coord: [3]float64{0, 0, -0.7}},
		{Number: 1, Pseudo: 1, Coord: [3]float64{0, 0, 0.7}},
	},
	"hf": {
		{Number: 1, Pseudo: 1, Coord: [3]float64{0, 0, 0}},
		{Number: 9, Pseudo: 9, Coord: [3]float64{0, 0, 1.733}},
	},
	"h2o": {
		{Number: 8, Pseudo: 8, Coord: [3]float64{0, 0, 0}},
		{Number: 1, Pseudo: 1, Coord: [3]float64{1.431, 0, 1.108}},
		{Number: 1, Pseudo: 1, Coord: [3]float64{-1.431, 0, 1.108}},
	},
}

// Names lists the built-in systems, sorted.
func Names() []string {
	out := make([]string, 0, len(systems))
	for name := range systems {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Demo builds a named system with nrad radial points per atom (zero
// selects DefaultRadialPoints). The density is the superposition of
// neutral Slater pro-atoms, which makes near-zero converged charges the
// expected outcome for the homonuclear demos.
func Demo(name string, nrad int) (*System, error) {
	atoms, ok := systems[name]
	if !ok {
		return nil, fmt.Errorf("molecule: unknown system %q (known: %v)", name, Names())
	}
	if nrad <= 0 {
		nrad = DefaultRadialPoints
	}

	rgrids := make([]*grid.Radial, len(atoms))
	for a := range atoms {
		rgrids[a] = grid.NewExponential(nrad, 1e-4, 20)
	}

	points, weights := unionGrid(atoms, rgrids)
	centers := make([][3]float64, len(atoms))
	for a, atom := range atoms {
		centers[a] = atom.Coord
	}
	mg, err := grid.NewMolecular(points, weights, centers)
	if err != nil {
		return nil, err
	}

	set, err := basis.NewSet(basis.Slater)
	if err != nil {
		return nil, err
	}
	density := make([]float64, mg.Size())
	for a, atom := range atoms {
		amps := set.InitialAmplitudes(atom.Number)
		pro, err := set.ProAtomDensity(atom.Number, amps, mg.Distances(a))
		if err != nil {
			return nil, err
		}
		for i := range density {
			density[i] += pro[i]
		}
	}

	return &System{
		Name:    name,
		Atoms:   atoms,
		Grid:    mg,
		Density: density,
		RGrids:  rgrids,
	}, nil
}

// unionGrid lays 26 equal-weight angular directions on every radial
// shell of every atom and resolves the overlap between the atom-centered
// grids with Becke's cell functions, so integrating over the union grid
// counts each region of space once.
func unionGrid(atoms []part.Atom, rgrids []*grid.Radial) ([][3]float64, []float64) {
	dirs := octahedralDirections()
	nang := float64(len(dirs))

	var points [][3]float64
	var weights []float64
	for a, atom := range atoms {
		rg := rgrids[a]
		sphere := rg.Sphere()
		for j, r := range rg.Points {
			wr := sphere[j] * rg.Weights[j] / nang
			for _, d := range dirs {
				pt := [3]float64{
					atom.Coord[0] + r*d[0],
					atom.Coord[1] + r*d[1],
					atom.Coord[2] + r*d[2],
				}
				points = append(points, pt)
				weights = append(weights, wr*beckeWeight(pt, atoms, a))
			}
		}
	}
	return points, weights
}

// octahedralDirections returns the 26 unit vectors through the vertices,
// edge midpoints and face centers of a cube.
func octahedralDirections() [][3]float64 {
	var dirs [][3]float64
	for x := -1; x <= 1; x++ {
		for y := -1; y <= 1; y++ {
			for z := -1; z <= 1; z++ {
				if x == 0 && y == 0 && z == 0 {
					continue
				}
				n := math.Sqrt(float64(x*x + y*y + z*z))
				dirs = append(dirs, [3]float64{float64(x) / n, float64(y) / n, float64(z) / n})
			}
		}
	}
	return dirs
}

// beckeWeight is Becke's fuzzy-cell weight of atom a at point pt: the
// product of pairwise switching functions, normalized over all atoms.
func beckeWeight(pt [3]float64, atoms []part.Atom, a int) float64 {
	if len(atoms) == 1 {
		return 1
	}
	dist := make([]float64, len(atoms))
	for b, atom := range atoms {
		dx := pt[0] - atom.Coord[0]
		dy := pt[1] - atom.Coord[1]
		dz := pt[2] - atom.Coord[2]
		dist[b] = math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	cell := func(i int) float64 {
		p := 1.0
		for b := range atoms {
			if b == i {
				continue
			}
			rab := atomSeparation(atoms[i], atoms[b])
			mu := (dist[i] - dist[b]) / rab
			p *= 0.5 * (1 - beckeSwitch(mu))
		}
		return p
	}
	pa := cell(a)
	total := 0.0
	for b := range atoms {
		total += cell(b)
	}
	if total <= 0 {
		return 0
	}
	return pa / total
}

// beckeSwitch iterates f(mu) = 1.5*mu - 0.5*mu^3 three times.
func beckeSwitch(mu float64) float64 {
	for i := 0; i < 3; i++ {
		mu = 1.5*mu - 0.5*mu*mu*mu
	}
	return mu
}

func atomSeparation(a, b part.Atom) float64 {
	dx := a.Coord[0] - b.Coord[0]
	dy := a.Coord[1] - b.Coord[1]
	dz := a.Coord[2] - b.Coord[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
