package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/san-kum/deform/internal/config"
)

var (
	dataDir   string
	meshDir   string
	logLevel  string
	logger    *slog.Logger
	titleText = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	mutedText = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// simulation flags, shared by run, live and bench
	configFile string
	preset     string
	simName    string
	meshName   string
	dt         float64
	mass       float64
	youngs     float64
	poisson    float64
	stiffness  float64
	frames     int
	frameSize  int
	perturb    float64
	seed       int64

	// live view
	frameRate    int
	stepsPerTick int
	theme        string
	gifPath      string

	// exports
	outPath    string
	frameIndex int
	vertex     int

	// serve
	addr     string
	maxSteps int

	// check
	checkSeeds int

	// bench
	benchRuns int

	// sweep
	sweepParams []string
	sweepMetric string

	// scenario
	scenarioSave bool

	// mesh-grid
	gridNX, gridNY        int
	gridWidth, gridHeight float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "deform",
		Short:         "2D deformable body simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("log level %q: %w", logLevel, err)
			}
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).With("service", "deform")
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".deform", "data directory for saved runs")
	rootCmd.PersistentFlags().StringVar(&meshDir, "meshes", "meshes", "mesh store directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [body]",
		Short: "run a simulation and save its frames",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSimulationFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live [body]",
		Short: "run a simulation with live terminal visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSimulationFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")
	liveCmd.Flags().IntVar(&stepsPerTick, "steps", 0, "integrator steps per rendered frame (default: frame size)")
	liveCmd.Flags().StringVar(&theme, "theme", "cyberpunk", "color theme")
	liveCmd.Flags().StringVar(&gifPath, "gif", "deform.gif", "GIF recording path")

	benchCmd := &cobra.Command{
		Use:   "bench [body]",
		Short: "run perturbed copies of a simulation in parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE:  benchSimulation,
	}
	addSimulationFlags(benchCmd)
	benchCmd.Flags().IntVar(&benchRuns, "runs", 4, "number of parallel runs")

	sweepCmd := &cobra.Command{
		Use:   "sweep [body]",
		Short: "grid search material parameters for the lowest metric value",
		Args:  cobra.MaximumNArgs(1),
		RunE:  sweepSimulation,
	}
	addSimulationFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "parameter range name=min:max:n (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "minimize", "max_displacement", "metric to minimize")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run the steps of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().BoolVar(&scenarioSave, "save-all", false, "save every step, not only those marked save")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a vertex trajectory of a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&vertex, "vertex", -1, "vertex to plot (default: last)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a vertex in a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().IntVar(&vertex, "vertex", -1, "vertex to analyze (default: last)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run frames to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")

	exportOBJCmd := &cobra.Command{
		Use:   "export-obj [run_id]",
		Short: "export one frame of a run as Wavefront OBJ",
		Args:  cobra.ExactArgs(1),
		RunE:  exportOBJ,
	}
	exportOBJCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: <run_id>_<frame>.obj)")
	exportOBJCmd.Flags().IntVar(&frameIndex, "frame", -1, "frame number (default: last)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "export a frame or a vertex trajectory as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: <run_id>.svg)")
	exportSVGCmd.Flags().IntVar(&frameIndex, "frame", -1, "frame number (default: last)")
	exportSVGCmd.Flags().IntVar(&vertex, "trajectory", -1, "draw this vertex's trajectory instead of a frame")

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "finite difference check of every material's gradient",
		Args:  cobra.NoArgs,
		RunE:  checkMaterials,
	}
	checkCmd.Flags().IntVar(&checkSeeds, "seeds", 20, "random states per material")

	presetsCmd := &cobra.Command{
		Use:   "presets [body]",
		Short: "list bodies, or the presets of a body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				fmt.Println(titleText.Render("bodies"))
				for _, b := range config.ListBodies() {
					fmt.Printf("  %s %s\n", b, mutedText.Render(fmt.Sprint(config.ListPresets(b))))
				}
				return nil
			}
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for body: %s\n", args[0])
				return nil
			}
			fmt.Println(titleText.Render("presets for " + args[0]))
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	meshesCmd := &cobra.Command{
		Use:   "meshes",
		Short: "list meshes in the mesh store",
		Args:  cobra.NoArgs,
		RunE:  listMeshes,
	}

	meshGridCmd := &cobra.Command{
		Use:   "mesh-grid [name]",
		Short: "write a triangulated rectangle into the mesh store",
		Args:  cobra.ExactArgs(1),
		RunE:  writeGridMesh,
	}
	meshGridCmd.Flags().IntVar(&gridNX, "nx", config.DefaultGridNX, "cells along x")
	meshGridCmd.Flags().IntVar(&gridNY, "ny", config.DefaultGridNY, "cells along y")
	meshGridCmd.Flags().Float64Var(&gridWidth, "width", 2, "width")
	meshGridCmd.Flags().Float64Var(&gridHeight, "height", 1, "height")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve meshes and simulations over HTTP",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&maxSteps, "max-steps", 200000, "maximum steps per request")

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, sweepCmd, scenarioCmd, listCmd, plotCmd, analyzeCmd, exportJSONCmd, exportOBJCmd, exportSVGCmd, checkCmd, presetsCmd, meshesCmd, meshGridCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("command failed", "err", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func addSimulationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "preset of the body (see presets)")
	f.StringVar(&simName, "name", "", "simulation name")
	f.StringVar(&meshName, "mesh", "", "mesh store entry to simulate")
	f.Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	f.Float64Var(&mass, "mass", config.DefaultMass, "total mass")
	f.Float64Var(&youngs, "youngs", config.DefaultYoungsModulus, "Young's modulus (snh, stvk)")
	f.Float64Var(&poisson, "poisson", config.DefaultPoissonsRatio, "Poisson's ratio (snh, stvk)")
	f.Float64Var(&stiffness, "stiffness", 50, "spring stiffness (spring)")
	f.IntVar(&frames, "frames", config.DefaultFrameCount, "number of frames")
	f.IntVar(&frameSize, "frame-size", config.DefaultFrameSize, "integrator steps per frame")
	f.Float64Var(&perturb, "perturb", 0, "jitter free vertices by up to this distance")
	f.Int64Var(&seed, "seed", 0, "random seed for perturbation")
}

// resolveConfig layers defaults, the body preset, the config file and the
// flags the user set, in that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if len(args) > 0 {
		body := args[0]
		name := preset
		if name == "" {
			presets := config.ListPresets(body)
			if len(presets) == 0 {
				return nil, fmt.Errorf("unknown body: %s (available: %v)", body, config.ListBodies())
			}
			name = presets[0]
		}
		cfg = config.GetPreset(body, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets(body))
		}
	} else if preset != "" {
		return nil, fmt.Errorf("--preset needs a body argument")
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = simName
	}
	if flags.Changed("mesh") {
		cfg.Mesh.Name = meshName
	}
	if flags.Changed("dt") {
		cfg.Integrator.Dt = dt
	}
	if flags.Changed("mass") {
		cfg.Mass = mass
	}
	if flags.Changed("youngs") {
		cfg.Material.YoungsModulus = youngs
	}
	if flags.Changed("poisson") {
		cfg.Material.PoissonsRatio = poisson
	}
	if flags.Changed("stiffness") {
		cfg.Material.Stiffness = stiffness
	}
	if flags.Changed("frames") {
		cfg.Frames.Count = frames
	}
	if flags.Changed("frame-size") {
		cfg.Frames.Size = frameSize
	}
	if flags.Changed("perturb") {
		cfg.Perturb = perturb
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
