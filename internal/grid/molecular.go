package grid

import (
	"fmt"
	"math"
)

// Molecular is a quadrature grid covering the whole molecule. It only
// exposes what the partitioning core needs: point weights, integration,
// and the distance of every point to each atomic center.
type Molecular struct {
	Weights []float64

	dists [][]float64 // per atom, distance from center to every point
}

// NewMolecular builds a molecular grid from explicit points, weights and
// atomic centers. Distances to every center are precomputed once.
func NewMolecular(points [][3]float64, weights []float64, centers [][3]float64) (*Molecular, error) {
	if len(points) != len(weights) {
		return nil, fmt.Errorf("grid: %d points but %d weights", len(points), len(weights))
	}
	m := &Molecular{
		Weights: weights,
		dists:   make([][]float64, len(centers)),
	}
	for a, c := range centers {
		d := make([]float64, len(points))
		for i, p := range points {
			dx := p[0] - c[0]
			dy := p[1] - c[1]
			dz := p[2] - c[2]
			r := math.Sqrt(dx*dx + dy*dy + dz*dz)
			if r < rMin {
				r = rMin
			}
			d[i] = r
		}
		m.dists[a] = d
	}
	return m, nil
}

// Size returns the number of grid points.
func (m *Molecular) Size() int { return len(m.Weights) }

// NAtoms returns the number of centers the grid was built around.
func (m *Molecular) NAtoms() int { return len(m.dists) }

// Distances returns the distance of every grid point to atom iatom.
// Callers must not mutate the returned slice.
func (m *Molecular) Distances(iatom int) []float64 { return m.dists[iatom] }

// Integrate computes sum_i w_i * prod_f f(i) over the molecular grid.
func (m *Molecular) Integrate(factors ...[]float64) float64 {
	total := 0.0
	for i, w := range m.Weights {
		v := w
		for _, f := range factors {
			v *= f[i]
		}
		total += v
	}
	return total
}

// SphericalAverage resamples vals (defined on the molecular grid) onto the
// radial grid of atom iatom by shell binning: each radial point collects the
// weighted mean of the molecular points whose distance to the atom falls in
// its bin. Empty bins are filled by linear interpolation between occupied
// neighbours, or zero outside the occupied range.
func (m *Molecular) SphericalAverage(iatom int, vals []float64, rg *Radial) []float64 {
	d := m.dists[iatom]
	n := rg.Size()
	sums := make([]float64, n)
	wsum := make([]float64, n)

	// bin edges at geometric midpoints of the radial points
	edges := make([]float64, n+1)
	edges[0] = 0
	for j := 1; j < n; j++ {
		edges[j] = math.Sqrt(rg.Points[j-1] * rg.Points[j])
	}
	edges[n] = math.Inf(1)

	for i, r := range d {
		j := searchBin(edges, r)
		sums[j] += m.Weights[i] * vals[i]
		wsum[j] += m.Weights[i]
	}

	out := make([]float64, n)
	occupied := make([]bool, n)
	for j := range out {
		if wsum[j] > 0 {
			out[j] = sums[j] / wsum[j]
			occupied[j] = true
		}
	}
	fillGaps(out, occupied, rg.Points)
	return out
}

// searchBin returns the index j with edges[j] <= r < edges[j+1].
func searchBin(edges []float64, r float64) int {
	lo, hi := 0, len(edges)-1
	for lo < hi-1 {
		mid := (lo + hi) / 2
		if r < edges[mid] {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo
}

func fillGaps(out []float64, occupied []bool, r []float64) {
	n := len(out)
	prev := -1
	for j := 0; j < n; j++ {
		if !occupied[j] {
			continue
		}
		if prev >= 0 && prev < j-1 {
			for k := prev + 1; k < j; k++ {
				t := (r[k] - r[prev]) / (r[j] - r[prev])
				out[k] = (1-t)*out[prev] + t*out[j]
			}
		}
		prev = j
	}
	// bins beyond the last occupied one stay zero
}
