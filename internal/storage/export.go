package storage

import (
	"encoding/json"
	"os"

	"github.com/avanberg/stockpart/internal/part"
)

type ExportData struct {
	System     string      `json:"system"`
	Solver     string      `json:"solver"`
	Basis      string      `json:"basis"`
	Threshold  float64     `json:"threshold"`
	Status     string      `json:"status"`
	Iterations int         `json:"iterations"`
	Numbers    []int       `json:"numbers"`
	Charges    []float64   `json:"charges"`
	Propars    [][]float64 `json:"propars"`
	MaxChanges []float64   `json:"max_changes"`
	Entropies  []float64   `json:"entropies"`
	Warnings   []string    `json:"warnings,omitempty"`
}

func buildExport(system, solverName, basisName string, threshold float64, atoms []part.Atom, result *part.Result) ExportData {
	data := ExportData{
		System:     system,
		Solver:     solverName,
		Basis:      basisName,
		Threshold:  threshold,
		Status:     string(result.Status),
		Iterations: result.Iterations,
		Numbers:    make([]int, len(atoms)),
		Charges:    result.Charges,
		Propars:    result.Propars,
		Warnings:   result.Warnings,
	}
	for a, atom := range atoms {
		data.Numbers[a] = atom.Number
	}
	for _, rec := range result.History {
		data.MaxChanges = append(data.MaxChanges, rec.MaxChange)
		data.Entropies = append(data.Entropies, rec.Entropy)
	}
	return data
}

func ExportJSON(path string, system, solverName, basisName string, threshold float64, atoms []part.Atom, result *part.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildExport(system, solverName, basisName, threshold, atoms, result))
}

func ExportJSONStdout(system, solverName, basisName string, threshold float64, atoms []part.Atom, result *part.Result) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildExport(system, solverName, basisName, threshold, atoms, result))
}
