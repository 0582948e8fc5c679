package viz

import (
	"strings"
	"testing"

	"github.com/avanberg/stockpart/internal/part"
)

func TestPlotHistoryEmpty(t *testing.T) {
	out := PlotHistory(nil)
	if out != "no history to plot" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestPlotHistoryRenders(t *testing.T) {
	history := []part.IterationRecord{
		{Iteration: 1, MaxChange: 1e-1, Entropy: 1.5, Charges: []float64{0.2, -0.2}},
		{Iteration: 2, MaxChange: 1e-2, Entropy: 1.3, Charges: []float64{0.1, -0.1}},
		{Iteration: 3, MaxChange: 1e-3, Entropy: 1.2, Charges: []float64{0.05, -0.05}},
		{Iteration: 4, MaxChange: 1e-4, Entropy: 1.19, Charges: []float64{0.02, -0.02}},
	}
	out := PlotHistory(history)
	if !strings.Contains(out, "log10 max charge change") {
		t.Error("missing convergence caption")
	}
	if !strings.Contains(out, "atom 0 charge") {
		t.Error("missing charge trace")
	}
}

func TestConvergenceGraphTooFewPoints(t *testing.T) {
	history := []part.IterationRecord{{Iteration: 1, MaxChange: 0.1}}
	out := convergenceGraph(history, 40, 6)
	if out != "collecting data..." {
		t.Errorf("unexpected output: %q", out)
	}
}
