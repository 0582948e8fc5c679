package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/avanberg/stockpart/internal/analysis"
	"github.com/avanberg/stockpart/internal/basis"
	"github.com/avanberg/stockpart/internal/config"
	"github.com/avanberg/stockpart/internal/molecule"
	"github.com/avanberg/stockpart/internal/part"
	"github.com/avanberg/stockpart/internal/solver"
	"github.com/avanberg/stockpart/internal/storage"
	"github.com/avanberg/stockpart/internal/viz"
)

var (
	dataDir         string
	solverName      string
	basisName       string
	threshold       float64
	maxIter         int
	innerThreshold  float64
	localGridRadius float64
	radialPoints    int
	diisSize        int
	damping         float64
	useGlobal       bool
	cutoffRadius    float64
	configFile      string
	preset          string
	compareSolvers  bool
	exportPath      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stockpart",
		Short: "iterative stockholder partitioning of molecular densities",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".stockpart", "data directory")

	partitionCmd := &cobra.Command{
		Use:   "partition [system]",
		Short: "partition a system's density into atomic charges",
		Args:  cobra.ExactArgs(1),
		RunE:  runPartition,
	}
	addRunFlags(partitionCmd)
	partitionCmd.Flags().BoolVar(&compareSolvers, "compare", false, "run every applicable solver and compare charges")

	solversCmd := &cobra.Command{
		Use:   "solvers",
		Short: "list available solvers",
		RunE:  listSolvers,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [system]",
		Short: "list available presets for a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for system: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run's convergence history",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportPath, "output", "", "output path (default stdout)")

	liveCmd := &cobra.Command{
		Use:   "live [system]",
		Short: "partition with a live convergence view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "derived properties of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	rootCmd.AddCommand(partitionCmd, solversCmd, presetsCmd, listCmd, plotCmd, exportCmd, liveCmd, analyzeCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&solverName, "solver", "sc", "inner solver")
	cmd.Flags().StringVar(&basisName, "basis", "gauss", "shell basis (gauss, slater)")
	cmd.Flags().Float64Var(&threshold, "threshold", config.DefaultThreshold, "outer convergence threshold")
	cmd.Flags().IntVar(&maxIter, "maxiter", config.DefaultMaxIter, "outer iteration cap")
	cmd.Flags().Float64Var(&innerThreshold, "inner-threshold", 0, "inner solver threshold (0: derived)")
	cmd.Flags().Float64Var(&localGridRadius, "local-radius", 0, "truncate radial grids at this radius in bohr (0: off)")
	cmd.Flags().IntVar(&radialPoints, "radial-points", config.DefaultRadialPoints, "radial grid points per atom")
	cmd.Flags().IntVar(&diisSize, "diis-size", config.DefaultDIISSize, "DIIS history window")
	cmd.Flags().Float64Var(&damping, "damping", config.DefaultDamping, "SC damping fraction")
	cmd.Flags().BoolVar(&useGlobal, "global", false, "joint optimization on the full grid")
	cmd.Flags().Float64Var(&cutoffRadius, "cutoff", config.DefaultCutoffRadius, "joint-solve coupling cutoff in bohr")
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
}

// resolveConfig merges preset, config file, and CLI flags (flags win).
func resolveConfig(cmd *cobra.Command, system string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.System = system

	if preset != "" {
		p := config.GetPreset(system, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(system))
		}
		applyPreset(cfg, p)
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		loaded.System = system
		cfg = loaded
	}

	if cmd.Flags().Changed("solver") {
		cfg.Solver = solverName
	}
	if cmd.Flags().Changed("basis") {
		cfg.Basis = basisName
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Threshold = threshold
	}
	if cmd.Flags().Changed("maxiter") {
		cfg.MaxIter = maxIter
	}
	if cmd.Flags().Changed("inner-threshold") {
		cfg.InnerThreshold = innerThreshold
	}
	if cmd.Flags().Changed("local-radius") {
		cfg.LocalGridRadius = localGridRadius
	}
	if cmd.Flags().Changed("radial-points") {
		cfg.RadialPoints = radialPoints
	}
	if cmd.Flags().Changed("diis-size") {
		cfg.DIISSize = diisSize
	}
	if cmd.Flags().Changed("damping") {
		cfg.Damping = damping
	}
	if cmd.Flags().Changed("global") {
		cfg.UseGlobalMethod = useGlobal
	}
	if cmd.Flags().Changed("cutoff") {
		cfg.CutoffRadius = cutoffRadius
	}
	return cfg, nil
}

func applyPreset(dst, src *config.Config) {
	*dst = *src
	if dst.Threshold == 0 {
		dst.Threshold = config.DefaultThreshold
	}
	if dst.MaxIter == 0 {
		dst.MaxIter = config.DefaultMaxIter
	}
	if dst.RadialPoints == 0 {
		dst.RadialPoints = config.DefaultRadialPoints
	}
	if dst.CutoffRadius == 0 {
		dst.CutoffRadius = config.DefaultCutoffRadius
	}
}

func partConfig(cfg *config.Config) part.Config {
	return part.Config{
		Solver: cfg.Solver,
		SolverOpts: solver.Options{
			DIISSize: cfg.DIISSize,
			Damping:  cfg.Damping,
		},
		Basis:           basis.Kind(cfg.Basis),
		Threshold:       cfg.Threshold,
		MaxIter:         cfg.MaxIter,
		InnerThreshold:  cfg.InnerThreshold,
		LocalGridRadius: cfg.LocalGridRadius,
	}
}

func runPartition(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	sys, err := molecule.Demo(cfg.System, cfg.RadialPoints)
	if err != nil {
		return err
	}

	if compareSolvers {
		return runComparison(sys, cfg)
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("partitioning %s with %s...\n", cfg.System, cfg.Solver)
	start := time.Now()

	result, err := executeRun(sys, cfg, nil)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg.System, cfg.Solver, cfg.Basis, cfg.Threshold, sys.Atoms, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("status: %s after %d iterations\n", result.Status, result.Iterations)
	printCharges(sys.Atoms, result.Charges)
	if cfg.Solver == "mbis" {
		printValenceSplit(sys.Atoms, result.Propars)
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}

func printValenceSplit(atoms []part.Atom, propars [][]float64) {
	numbers := make([]int, len(atoms))
	for a, atom := range atoms {
		numbers[a] = atom.Number
	}
	core, valence, err := analysis.ValenceSplit(numbers, propars)
	if err != nil {
		fmt.Printf("warning: valence split unavailable: %v\n", err)
		return
	}
	fmt.Println("\ncore / valence charges:")
	for a := range atoms {
		fmt.Printf("  Z%-3d %+0.6f / %+0.6f\n", atoms[a].Number, core[a], valence[a])
	}
}

// executeRun dispatches between the per-atom outer loop and the joint
// modes.
func executeRun(sys *molecule.System, cfg *config.Config, obs part.Observer) (*part.Result, error) {
	pc := partConfig(cfg)
	if cfg.UseGlobalMethod {
		mode := part.GlobalSC
		if cfg.Solver == "convex" || cfg.Solver == "penalty" {
			mode = part.GlobalConvex
		}
		gp, err := part.NewGlobal(sys.Atoms, sys.Grid, sys.Density, mode, pc)
		if err != nil {
			return nil, err
		}
		gp.CutoffRadius = cfg.CutoffRadius
		return gp.Run(context.Background())
	}

	p, err := part.New(sys.Atoms, sys.Grid, sys.Density, sys.RGrids, pc)
	if err != nil {
		return nil, err
	}
	if obs != nil {
		p.AddObserver(obs)
	}
	return p.Run(context.Background())
}

// runComparison runs every amplitude solver on the same system and
// tabulates the converged charges side by side.
func runComparison(sys *molecule.System, cfg *config.Config) error {
	names := solver.Names()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := "SOLVER\tSTATUS\tITER"
	for a := range sys.Atoms {
		header += fmt.Sprintf("\tQ%d", a)
	}
	fmt.Fprintln(w, header)

	for _, name := range names {
		if name == "mbis" && cfg.Basis != string(basis.Slater) {
			// MBIS is tied to Slater shells
			continue
		}
		runCfg := *cfg
		runCfg.Solver = name
		result, err := executeRun(sys, &runCfg, nil)
		if err != nil {
			fmt.Fprintf(w, "%s\terror: %v\t\n", name, err)
			continue
		}
		row := fmt.Sprintf("%s\t%s\t%d", name, result.Status, result.Iterations)
		for _, q := range result.Charges {
			row += fmt.Sprintf("\t%+.4f", q)
		}
		fmt.Fprintln(w, row)
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if cfg.UseGlobalMethod {
		return fmt.Errorf("live view supports the per-atom outer loop only")
	}

	sys, err := molecule.Demo(cfg.System, cfg.RadialPoints)
	if err != nil {
		return err
	}

	result, err := viz.RunLive(cfg.System, cfg.Solver, func(obs part.Observer) (*part.Result, error) {
		return executeRun(sys, cfg, obs)
	})
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg.System, cfg.Solver, cfg.Basis, cfg.Threshold, sys.Atoms, result)
	if err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", runID)
	printCharges(sys.Atoms, result.Charges)
	return nil
}

func listSolvers(cmd *cobra.Command, args []string) error {
	descriptions := map[string]string{
		"quadprog": "constrained quadratic program, closed-form Gram matrix",
		"leastsq":  "non-negative least squares fit",
		"sc":       "self-consistent fixed-point iteration",
		"sc-damp":  "damped self-consistent iteration",
		"diis":     "Pulay-accelerated iteration, density-space residual",
		"diis-p":   "Pulay-accelerated iteration, amplitude-space residual",
		"newton":   "Newton iteration with analytic Jacobian",
		"root":     "damped Newton root search with line search",
		"trust":    "dogleg trust region on the squared residual",
		"convex":   "log-likelihood interior-point minimization",
		"penalty":  "log-likelihood with quadratic population penalty (L-BFGS)",
		"mbis":     "minimal-basis iterative stockholder, variable widths",
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, name := range solver.Names() {
		fmt.Fprintf(w, "%s\t%s\n", name, descriptions[name])
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYSTEM\tSOLVER\tBASIS\tSTATUS\tITER\tTIME")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			run.ID,
			run.System,
			run.Solver,
			run.Basis,
			run.Status,
			run.Iterations,
			run.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	history, err := st.LoadHistory(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("system: %s  solver: %s  status: %s\n\n", meta.System, meta.Solver, meta.Status)
	fmt.Println(viz.PlotHistory(history))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	history, err := st.LoadHistory(args[0])
	if err != nil {
		return err
	}

	atoms := make([]part.Atom, len(meta.Charges))
	for a := range atoms {
		if a < len(meta.Numbers) {
			atoms[a].Number = meta.Numbers[a]
			atoms[a].Pseudo = float64(meta.Numbers[a])
		}
	}
	result := &part.Result{
		Status:     part.Status(meta.Status),
		Iterations: meta.Iterations,
		Charges:    meta.Charges,
		History:    history,
		Warnings:   meta.Warnings,
	}
	if exportPath != "" {
		return storage.ExportJSON(exportPath, meta.System, meta.Solver, meta.Basis, meta.Threshold, atoms, result)
	}
	return storage.ExportJSONStdout(meta.System, meta.Solver, meta.Basis, meta.Threshold, atoms, result)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	sys, err := molecule.Demo(meta.System, 0)
	if err != nil {
		return err
	}
	if len(meta.Charges) != len(sys.Atoms) {
		return fmt.Errorf("run has %d charges but system %s has %d atoms",
			len(meta.Charges), meta.System, len(sys.Atoms))
	}

	stats := analysis.Summarize(meta.Charges)
	dipole := analysis.PointChargeDipole(sys.Atoms, meta.Charges)

	fmt.Printf("run: %s (%s, %s)\n\n", meta.ID, meta.System, meta.Solver)
	printCharges(sys.Atoms, meta.Charges)
	fmt.Printf("\nmax |q|: %.6f\n", stats.MaxAbs)
	fmt.Printf("mean q:  %+.6f\n", stats.Mean)
	fmt.Printf("dipole:  (%+.4f, %+.4f, %+.4f)  |mu| = %.4f e*bohr\n",
		dipole.X, dipole.Y, dipole.Z, dipole.Norm())
	return nil
}

func printCharges(atoms []part.Atom, charges []float64) {
	fmt.Println("\ncharges:")
	names := map[int]string{1: "H", 8: "O", 9: "F"}
	for a, atom := range atoms {
		label := names[atom.Number]
		if label == "" {
			label = fmt.Sprintf("Z%d", atom.Number)
		}
		fmt.Printf("  %-3s %+0.6f\n", label, charges[a])
	}
	total := 0.0
	for _, q := range charges {
		total += q
	}
	fmt.Printf("  sum %+0.6f\n", total)
}
