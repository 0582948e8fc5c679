package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Solver != "sc" {
		t.Errorf("expected solver sc, got %s", cfg.Solver)
	}
	if cfg.Threshold <= 0 {
		t.Error("threshold should be positive")
	}
	if cfg.MaxIter <= 0 {
		t.Error("maxiter should be positive")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("h2", "quick")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Solver != "sc" {
		t.Errorf("expected solver sc, got %s", cfg.Solver)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	cfg := GetPreset("h2", "nonexistent")
	if cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}

	cfg = GetPreset("nonexistent", "quick")
	if cfg != nil {
		t.Error("expected nil for nonexistent system")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("h2o")
	if len(presets) == 0 {
		t.Error("expected presets for h2o")
	}

	presets = ListPresets("nonexistent")
	if presets != nil {
		t.Error("expected nil for nonexistent system")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Solver = "diis"
	cfg.Threshold = 1e-7
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Solver != "diis" {
		t.Errorf("expected solver diis, got %s", loaded.Solver)
	}
	if loaded.Threshold != 1e-7 {
		t.Errorf("expected threshold 1e-7, got %g", loaded.Threshold)
	}
	// fields absent from the file keep their defaults
	if loaded.MaxIter != DefaultMaxIter {
		t.Errorf("expected default maxiter, got %d", loaded.MaxIter)
	}
}
