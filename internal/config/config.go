package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultThreshold      = 1e-6
	DefaultMaxIter        = 500
	DefaultInnerThreshold = 1e-8
	DefaultDIISSize       = 8
	DefaultDamping        = 0.1
	DefaultCutoffRadius   = 16.0
	DefaultRadialPoints   = 120
)

type Config struct {
	System          string  `yaml:"system"`
	Solver          string  `yaml:"solver"`
	Basis           string  `yaml:"basis"`
	Threshold       float64 `yaml:"threshold"`
	MaxIter         int     `yaml:"maxiter"`
	InnerThreshold  float64 `yaml:"inner_threshold"`
	LocalGridRadius float64 `yaml:"local_grid_radius"`
	RadialPoints    int     `yaml:"radial_points"`
	DIISSize        int     `yaml:"diis_size"`
	Damping         float64 `yaml:"damping"`
	UseGlobalMethod bool    `yaml:"use_global_method"`
	CutoffRadius    float64 `yaml:"cutoff_radius"`
	// LMax is accepted and carried for angular expansions; the spherical
	// solvers ignore it.
	LMax int `yaml:"lmax,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		System:         "h2",
		Solver:         "sc",
		Basis:          "gauss",
		Threshold:      DefaultThreshold,
		MaxIter:        DefaultMaxIter,
		InnerThreshold: DefaultInnerThreshold,
		RadialPoints:   DefaultRadialPoints,
		DIISSize:       DefaultDIISSize,
		Damping:        DefaultDamping,
		CutoffRadius:   DefaultCutoffRadius,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
