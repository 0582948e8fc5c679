package config

// Presets pair a built-in system with a solver setup that is known to
// behave well on it.
var Presets = map[string]map[string]*Config{
	"h2": {
		"quick": {
			System: "h2", Solver: "sc", Basis: "gauss",
			Threshold: 1e-5, MaxIter: 200, RadialPoints: 80,
		},
		"tight": {
			System: "h2", Solver: "quadprog", Basis: "gauss",
			Threshold: 1e-8, MaxIter: 1000, RadialPoints: 160,
		},
		"accelerated": {
			System: "h2", Solver: "diis", Basis: "gauss",
			Threshold: 1e-6, MaxIter: 500, DIISSize: 8,
		},
	},
	"hf": {
		"quick": {
			System: "hf", Solver: "sc-damp", Basis: "gauss",
			Threshold: 1e-5, MaxIter: 500, Damping: 0.1,
		},
		"tight": {
			System: "hf", Solver: "convex", Basis: "gauss",
			Threshold: 1e-8, MaxIter: 1000, RadialPoints: 160,
		},
	},
	"h2o": {
		"quick": {
			System: "h2o", Solver: "sc", Basis: "gauss",
			Threshold: 1e-5, MaxIter: 500,
		},
		"mbis": {
			System: "h2o", Solver: "mbis", Basis: "slater",
			Threshold: 1e-6, MaxIter: 500,
		},
		"joint": {
			System: "h2o", Solver: "sc", Basis: "gauss",
			Threshold: 1e-6, MaxIter: 500, UseGlobalMethod: true,
		},
	},
}

func GetPreset(system, preset string) *Config {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	cfg, ok := systemPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(system string) []string {
	systemPresets, ok := Presets[system]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(systemPresets))
	for name := range systemPresets {
		names = append(names, name)
	}
	return names
}
