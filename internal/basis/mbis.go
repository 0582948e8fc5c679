package basis

import "math"

// MBIS pro-atoms use interleaved (population, width) pairs per shell, both
// optimized, with Slater-type primitives. The helpers here supply the shell
// counts and warm starts; the update rule itself lives in the solver.

// MBISShellCount returns the number of MBIS shells for an element.
func MBISShellCount(number int) int {
	return nobleShells(number)
}

// MBISInitial returns the interleaved (population, width) warm start for an
// element: aufbau populations and an even-tempered width ladder from 2*Z
// down to 2.0.
func MBISInitial(number int) []float64 {
	nshell := nobleShells(number)
	out := make([]float64, 2*nshell)
	s0 := 2.0 * float64(number)
	ratio := 1.0
	if nshell > 1 {
		ratio = math.Pow(2.0/s0, 1.0/float64(nshell-1))
	}
	used := 0.0
	for k := 0; k < nshell; k++ {
		pop := shellElec[k]
		if k == nshell-1 {
			pop = float64(number) - used
		}
		used += pop
		out[2*k] = pop
		out[2*k+1] = s0 * math.Pow(ratio, float64(k))
	}
	return out
}

// MBISDensity evaluates the pro-atom density for interleaved propars on
// the given radii.
func MBISDensity(propars []float64, r []float64) []float64 {
	out := make([]float64, len(r))
	for k := 0; k+1 < len(propars); k += 2 {
		n, s := propars[k], propars[k+1]
		norm := n * s * s * s / (8 * math.Pi)
		for i, ri := range r {
			out[i] += norm * math.Exp(-s*ri)
		}
	}
	return out
}
