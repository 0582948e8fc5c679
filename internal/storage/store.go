package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/avanberg/stockpart/internal/part"
)

// Store persists partitioning runs under a base directory, one
// subdirectory per run: metadata.json, charges.csv with the converged
// per-atom results, and history.csv with the outer-loop trace.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string    `json:"id"`
	System     string    `json:"system"`
	Solver     string    `json:"solver"`
	Basis      string    `json:"basis"`
	Threshold  float64   `json:"threshold"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	Iterations int       `json:"iterations"`
	Numbers    []int     `json:"numbers"`
	Charges    []float64 `json:"charges"`
	Warnings   []string  `json:"warnings,omitempty"`
}

func (s *Store) Save(system, solverName, basisName string, threshold float64, atoms []part.Atom, result *part.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s", system, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		System:     system,
		Solver:     solverName,
		Basis:      basisName,
		Threshold:  threshold,
		Timestamp:  time.Now(),
		Status:     string(result.Status),
		Iterations: result.Iterations,
		Numbers:    make([]int, len(atoms)),
		Charges:    result.Charges,
		Warnings:   result.Warnings,
	}
	for a, atom := range atoms {
		meta.Numbers[a] = atom.Number
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := s.writeCharges(runDir, atoms, result); err != nil {
		return "", err
	}
	if err := s.writeHistory(runDir, result); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) writeCharges(runDir string, atoms []part.Atom, result *part.Result) error {
	f, err := os.Create(filepath.Join(runDir, "charges.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"atom", "number", "charge"}); err != nil {
		return err
	}
	for a, atom := range atoms {
		row := []string{
			strconv.Itoa(a),
			strconv.Itoa(atom.Number),
			strconv.FormatFloat(result.Charges[a], 'f', 8, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeHistory(runDir string, result *part.Result) error {
	f, err := os.Create(filepath.Join(runDir, "history.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if len(result.History) == 0 {
		return nil
	}
	header := []string{"iteration", "max_change", "entropy"}
	for a := range result.History[0].Charges {
		header = append(header, fmt.Sprintf("q%d", a))
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, rec := range result.History {
		row := []string{
			strconv.Itoa(rec.Iteration),
			strconv.FormatFloat(rec.MaxChange, 'e', 6, 64),
			strconv.FormatFloat(rec.Entropy, 'f', 8, 64),
		}
		for _, q := range rec.Charges {
			row = append(row, strconv.FormatFloat(q, 'f', 8, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		metaPath := filepath.Join(s.baseDir, entry.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadHistory reads back the outer-loop trace of a stored run: iteration
// numbers, max charge changes, entropies, and per-atom charges.
func (s *Store) LoadHistory(runID string) ([]part.IterationRecord, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "history.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []part.IterationRecord{}, nil
	}

	out := make([]part.IterationRecord, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) < 3 {
			continue
		}
		iter, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}
		change, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		entropy, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			continue
		}
		rec := part.IterationRecord{Iteration: iter, MaxChange: change, Entropy: entropy}
		for _, field := range record[3:] {
			q, err := strconv.ParseFloat(field, 64)
			if err != nil {
				continue
			}
			rec.Charges = append(rec.Charges, q)
		}
		out = append(out, rec)
	}
	return out, nil
}
