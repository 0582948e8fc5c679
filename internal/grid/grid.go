package grid

import (
	"fmt"
	"math"
)

// rMin keeps quadrature points away from the r=0 singularity of the
// radial measure.
const rMin = 1e-100

// Radial is an atom-centered radial quadrature grid. Points are strictly
// increasing and paired with quadrature weights such that
// Integrate(f) approximates the integral of f(r) dr.
type Radial struct {
	Points  []float64
	Weights []float64

	sphere []float64 // 4*pi*r^2, cached
}

// NewRadial wraps points and weights into a grid after validation.
func NewRadial(points, weights []float64) (*Radial, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("grid: empty radial grid")
	}
	if len(points) != len(weights) {
		return nil, fmt.Errorf("grid: %d points but %d weights", len(points), len(weights))
	}
	prev := 0.0
	for i, r := range points {
		if r <= prev {
			return nil, fmt.Errorf("grid: points must be strictly increasing (index %d)", i)
		}
		prev = r
	}
	g := &Radial{Points: clip(points), Weights: weights}
	g.sphere = make([]float64, len(points))
	for i, r := range g.Points {
		g.sphere[i] = 4 * math.Pi * r * r
	}
	return g, nil
}

// NewExponential builds an n-point exponential grid on [rmin, rmax] with
// trapezoidal weights for the transformed coordinate. This is the default
// radial grid for atoms when no external grid is supplied.
func NewExponential(n int, rmin, rmax float64) *Radial {
	if n < 2 || rmin <= 0 || rmax <= rmin {
		panic(fmt.Sprintf("grid: bad exponential grid spec n=%d rmin=%g rmax=%g", n, rmin, rmax))
	}
	points := make([]float64, n)
	weights := make([]float64, n)
	h := math.Log(rmax/rmin) / float64(n-1)
	for i := 0; i < n; i++ {
		points[i] = rmin * math.Exp(float64(i)*h)
		// dr = r*h for the log-spaced transform
		weights[i] = points[i] * h
	}
	weights[0] *= 0.5
	weights[n-1] *= 0.5
	g, err := NewRadial(points, weights)
	if err != nil {
		panic(err)
	}
	return g
}

// Size returns the number of radial points.
func (g *Radial) Size() int { return len(g.Points) }

// Sphere returns the 4*pi*r^2 factor that turns a radial profile into a
// spherical volume integrand. Callers must not mutate it.
func (g *Radial) Sphere() []float64 { return g.sphere }

// Integrate computes sum_i w_i * prod_f f(i) over the grid. Every factor
// must have the same length as the grid.
func (g *Radial) Integrate(factors ...[]float64) float64 {
	total := 0.0
	for i, w := range g.Weights {
		v := w
		for _, f := range factors {
			v *= f[i]
		}
		total += v
	}
	return total
}

// Truncate returns the subgrid with points at or below radius, sharing the
// backing arrays. The full grid is returned when radius is non-positive or
// +Inf.
func (g *Radial) Truncate(radius float64) *Radial {
	if radius <= 0 || math.IsInf(radius, 1) {
		return g
	}
	n := 0
	for n < len(g.Points) && g.Points[n] <= radius {
		n++
	}
	if n < 2 {
		n = 2
	}
	return &Radial{
		Points:  g.Points[:n],
		Weights: g.Weights[:n],
		sphere:  g.sphere[:n],
	}
}

func clip(r []float64) []float64 {
	out := make([]float64, len(r))
	for i, v := range r {
		if v < rMin {
			v = rMin
		}
		out[i] = v
	}
	return out
}
