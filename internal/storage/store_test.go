package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/avanberg/stockpart/internal/part"
)

func sampleResult() ([]part.Atom, *part.Result) {
	atoms := []part.Atom{
		{Number: 1, Pseudo: 1, Coord: [3]float64{0, 0, -0.7}},
		{Number: 1, Pseudo: 1, Coord: [3]float64{0, 0, 0.7}},
	}
	return atoms, &part.Result{
		Status:     part.StatusConverged,
		Iterations: 3,
		Charges:    []float64{0.001, -0.001},
		Propars:    [][]float64{{1.0}, {1.0}},
		History: []part.IterationRecord{
			{Iteration: 1, MaxChange: 0.5, Entropy: 1.2, Charges: []float64{0.1, -0.1}},
			{Iteration: 2, MaxChange: 0.01, Entropy: 1.1, Charges: []float64{0.01, -0.01}},
			{Iteration: 3, MaxChange: 1e-7, Entropy: 1.1, Charges: []float64{0.001, -0.001}},
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	atoms, result := sampleResult()
	runID, err := st.Save("h2", "sc", "gauss", 1e-6, atoms, result)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if runID == "" {
		t.Error("expected non-empty run id")
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.System != "h2" {
		t.Errorf("expected system 'h2', got '%s'", meta.System)
	}
	if meta.Solver != "sc" {
		t.Errorf("expected solver 'sc', got '%s'", meta.Solver)
	}
	if meta.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", meta.Iterations)
	}

	history, err := st.LoadHistory(runID)
	if err != nil {
		t.Fatalf("load history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 history records, got %d", len(history))
	}
	if history[0].Iteration != 1 {
		t.Errorf("expected iteration 1, got %d", history[0].Iteration)
	}
	if len(history[0].Charges) != 2 {
		t.Errorf("expected 2 charges per record, got %d", len(history[0].Charges))
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	atoms, result := sampleResult()
	if _, err := st.Save("h2", "sc", "gauss", 1e-6, atoms, result); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	atoms, result := sampleResult()
	runID, err := st.Save("h2", "sc", "gauss", 1e-6, atoms, result)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{"metadata.json", "charges.csv", "history.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	atoms, result := sampleResult()
	if err := ExportJSON(path, "h2", "sc", "gauss", 1e-6, atoms, result); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty export")
	}
}
