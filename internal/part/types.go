// Package part drives the iterative stockholder partitioning: it owns the
// outer self-consistency loop that refines per-atom pro-atom parameters
// until the atomic charges stop moving, delegating each atom's inner fit
// to a solver from the solver package.
package part

import (
	"errors"

	"github.com/avanberg/stockpart/internal/basis"
	"github.com/avanberg/stockpart/internal/solver"
)

// Atom is one center of the partitioning.
type Atom struct {
	Number int        // atomic number
	Pseudo float64    // effective core charge; equals Number for all-electron densities
	Coord  [3]float64 // position in bohr
}

// Status is the lifecycle state of a partitioning run.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusIterating    Status = "iterating"
	StatusConverged    Status = "converged"
	StatusMaxIter      Status = "max-iterations"
)

// Config tunes a partitioning run.
type Config struct {
	Solver     string
	SolverOpts solver.Options
	Basis      basis.Kind

	// Threshold is the outer convergence criterion: the largest absolute
	// charge change between consecutive iterations must fall below it.
	Threshold float64
	// MaxIter caps the outer loop.
	MaxIter int
	// InnerThreshold is handed to the per-atom solvers; zero derives it
	// from Threshold.
	InnerThreshold float64
	// LocalGridRadius truncates each atom's radial grid to this distance
	// in bohr; zero or negative keeps the full grids.
	LocalGridRadius float64
}

// DefaultConfig returns the standard run parameters.
func DefaultConfig() Config {
	return Config{
		Solver:    "sc",
		Basis:     basis.Gauss,
		Threshold: 1e-6,
		MaxIter:   500,
	}
}

func (c Config) inner() float64 {
	if c.InnerThreshold > 0 {
		return c.InnerThreshold
	}
	return c.Threshold * 1e-2
}

func (c Config) validate() error {
	if c.Threshold <= 0 {
		return errors.New("part: threshold must be positive")
	}
	if c.MaxIter <= 0 {
		return errors.New("part: maxiter must be positive")
	}
	return nil
}

// IterationRecord is one outer-loop snapshot.
type IterationRecord struct {
	Iteration int
	MaxChange float64   // largest absolute charge change this iteration
	Entropy   float64   // -integral( w rho ln rho0 ), the information distance driver
	Charges   []float64 // per-atom charges after this iteration
}

// Result collects the outcome of a partitioning run. A run that hits the
// iteration cap still returns a Result, flagged StatusMaxIter, with the
// last iterate; only structural failures return an error instead.
type Result struct {
	Status     Status
	Iterations int
	Charges    []float64
	Propars    [][]float64 // converged pro-atom parameters per atom
	History    []IterationRecord
	Warnings   []string
}

// Observer receives each outer-loop snapshot as it happens.
type Observer interface {
	OnIteration(rec IterationRecord)
}
