// Package basis evaluates pro-atom shell densities: spherically symmetric
// basis primitives with a fixed width and a variable amplitude, normalized
// so that the amplitude equals the shell's electron population.
package basis

import (
	"fmt"
	"math"
)

// Kind selects the functional form of the shell primitives.
type Kind string

const (
	// Gauss shells are s-type Gaussians: N*(a/pi)^1.5 * exp(-a*r^2).
	Gauss Kind = "gauss"
	// Slater shells are exponentials: N*S^3/(8*pi) * exp(-S*r).
	Slater Kind = "slater"
)

// Set provides per-element shell metadata (counts, widths, initial
// amplitudes) and evaluates shell densities on radial grids. Metadata is
// fixed for the lifetime of an atom and never re-derived mid-optimization.
type Set struct {
	kind Kind
}

// NewSet returns a basis set of the given kind.
func NewSet(kind Kind) (*Set, error) {
	switch kind {
	case Gauss, Slater:
		return &Set{kind: kind}, nil
	default:
		return nil, fmt.Errorf("basis: unknown basis kind %q", kind)
	}
}

// Kind returns the functional form of the set.
func (s *Set) Kind() Kind { return s.kind }

// ShellCount returns the number of shells for an element, one per occupied
// principal shell (noble-gas core counting).
func (s *Set) ShellCount(number int) int {
	return nobleShells(number)
}

// Widths returns the fixed width parameters for an element's shells, an
// even-tempered progression from a tight core width down to a diffuse
// valence width. For Slater shells the widths are exponents in 1/bohr;
// for Gauss shells they are their squares in 1/bohr^2.
func (s *Set) Widths(number int) []float64 {
	slater := slaterWidths(number)
	if s.kind == Slater {
		return slater
	}
	out := make([]float64, len(slater))
	for i, w := range slater {
		out[i] = w * w
	}
	return out
}

// InitialAmplitudes returns the species-dependent warm start: aufbau-style
// shell populations summing to the element's electron count.
func (s *Set) InitialAmplitudes(number int) []float64 {
	return shellPopulations(number)
}

// ShellDensity evaluates one shell on the given radii. The returned profile
// integrates (against 4*pi*r^2 dr) to amplitude.
func (s *Set) ShellDensity(amplitude, width float64, r []float64) []float64 {
	out := make([]float64, len(r))
	s.shellInto(out, amplitude, width, r)
	return out
}

// ShellDensityDeriv evaluates one shell and its radial derivative.
func (s *Set) ShellDensityDeriv(amplitude, width float64, r []float64) (f, df []float64) {
	f = s.ShellDensity(amplitude, width, r)
	df = make([]float64, len(r))
	switch s.kind {
	case Gauss:
		for i := range r {
			df[i] = -2 * width * r[i] * f[i]
		}
	case Slater:
		for i := range r {
			df[i] = -width * f[i]
		}
	}
	return f, df
}

// ProAtomDensity sums an element's shells with the given amplitudes.
func (s *Set) ProAtomDensity(number int, amplitudes []float64, r []float64) ([]float64, error) {
	widths := s.Widths(number)
	if len(amplitudes) != len(widths) {
		return nil, fmt.Errorf("basis: element %d expects %d amplitudes, got %d",
			number, len(widths), len(amplitudes))
	}
	out := make([]float64, len(r))
	tmp := make([]float64, len(r))
	for k, a := range amplitudes {
		s.shellInto(tmp, a, widths[k], r)
		for i := range out {
			out[i] += tmp[i]
		}
	}
	return out, nil
}

func (s *Set) shellInto(dst []float64, amplitude, width float64, r []float64) {
	switch s.kind {
	case Gauss:
		norm := amplitude * math.Pow(width/math.Pi, 1.5)
		for i, ri := range r {
			dst[i] = norm * math.Exp(-width*ri*ri)
		}
	case Slater:
		norm := amplitude * width * width * width / (8 * math.Pi)
		for i, ri := range r {
			dst[i] = norm * math.Exp(-width*ri)
		}
	}
}

var (
	nobleNumbers = [...]int{2, 10, 18, 36, 54, 86, 118}
	shellElec    = [...]float64{2, 8, 8, 18, 18, 32, 32}
)

func nobleShells(number int) int {
	for i, n := range nobleNumbers {
		if number <= n {
			return i + 1
		}
	}
	return len(nobleNumbers)
}

// slaterWidths builds the even-tempered exponent ladder used for an
// element: from 2*Z for the innermost shell down to 2.0 for the valence
// shell, geometric in between.
func slaterWidths(number int) []float64 {
	nshell := nobleShells(number)
	s0 := 2.0 * float64(number)
	ratio := 1.0
	if nshell > 1 {
		ratio = math.Pow(2.0/s0, 1.0/float64(nshell-1))
	}
	out := make([]float64, nshell)
	for k := range out {
		out[k] = s0 * math.Pow(ratio, float64(k))
	}
	return out
}

// shellPopulations distributes Z electrons over the shells, 2 in the core,
// then 8, 8, 18, 18, 32, 32, with the remainder on the outermost shell.
func shellPopulations(number int) []float64 {
	nshell := nobleShells(number)
	out := make([]float64, nshell)
	used := 0.0
	for k := 0; k < nshell-1; k++ {
		out[k] = shellElec[k]
		used += shellElec[k]
	}
	out[nshell-1] = float64(number) - used
	return out
}
