package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/avanberg/stockpart/internal/part"
)

// PlotHistory renders the stored outer-loop trace of a run: the
// convergence curve, the entropy descent, and one charge trace per atom.
func PlotHistory(history []part.IterationRecord) string {
	if len(history) == 0 {
		return "no history to plot"
	}

	var b strings.Builder
	b.WriteString(convergenceGraph(history, 70, 12))
	b.WriteString("\n\n")

	entropies := make([]float64, len(history))
	for i, rec := range history {
		entropies[i] = rec.Entropy
	}
	if spread(entropies) > 0 {
		b.WriteString(asciigraph.Plot(entropies,
			asciigraph.Width(70),
			asciigraph.Height(8),
			asciigraph.Caption("entropy vs iteration"),
		))
		b.WriteString("\n\n")
	}

	natom := len(history[0].Charges)
	for a := 0; a < natom; a++ {
		trace := make([]float64, len(history))
		for i, rec := range history {
			if a < len(rec.Charges) {
				trace[i] = rec.Charges[a]
			}
		}
		if spread(trace) == 0 {
			// flat trace, asciigraph degenerates; summarize instead
			b.WriteString(fmt.Sprintf("atom %d: charge constant at %+.6f\n", a, trace[0]))
			continue
		}
		b.WriteString(asciigraph.Plot(trace,
			asciigraph.Width(70),
			asciigraph.Height(6),
			asciigraph.Caption(fmt.Sprintf("atom %d charge", a)),
		))
		b.WriteString("\n\n")
	}
	return b.String()
}

func spread(v []float64) float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return hi - lo
}
