package solver

import (
	"errors"
	"fmt"
)

// Failure modes of the inner optimizers.
var (
	// ErrNotConverged indicates the iteration cap was exhausted.
	ErrNotConverged = errors.New("solver: iteration cap exhausted")

	// ErrNegativeAmplitude indicates an amplitude below the non-negativity
	// tolerance, signalling a solver or input defect.
	ErrNegativeAmplitude = errors.New("solver: negative amplitude beyond tolerance")

	// ErrSingularSystem indicates a singular or near-singular linear solve.
	ErrSingularSystem = errors.New("solver: singular linear system")

	// ErrPopulationMismatch indicates the amplitude sum deviates from the
	// integrated target population beyond tolerance.
	ErrPopulationMismatch = errors.New("solver: amplitudes do not sum to target population")

	// ErrUnknownSolver indicates an unrecognized solver name.
	ErrUnknownSolver = errors.New("solver: unknown solver")
)

// Failure wraps a solver error with enough context to diagnose it.
type Failure struct {
	Solver   string
	Iter     int
	Residual float64
	Wrapped  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v (iteration %d, residual %.3e)",
		f.Solver, f.Wrapped, f.Iter, f.Residual)
}

func (f *Failure) Unwrap() error { return f.Wrapped }

func fail(name string, iter int, residual float64, err error) error {
	return &Failure{Solver: name, Iter: iter, Residual: residual, Wrapped: err}
}
