package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/deform/internal/analysis"
	"github.com/san-kum/deform/internal/automation"
	"github.com/san-kum/deform/internal/config"
	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/export"
	"github.com/san-kum/deform/internal/linalg"
	"github.com/san-kum/deform/internal/material"
	"github.com/san-kum/deform/internal/mesh"
	"github.com/san-kum/deform/internal/meshio"
	"github.com/san-kum/deform/internal/optim"
	"github.com/san-kum/deform/internal/registry"
	"github.com/san-kum/deform/internal/server"
	"github.com/san-kum/deform/internal/sim"
	"github.com/san-kum/deform/internal/storage"
	"github.com/san-kum/deform/internal/viz"
)

func buildSimulation(cfg *config.Config) (*sim.Simulation, error) {
	geo, err := sim.ResolveGeometry(cfg, meshio.NewStore(meshDir))
	if err != nil {
		return nil, err
	}
	s, err := sim.FromConfig(cfg, geo)
	if err != nil {
		return nil, err
	}
	for _, m := range sim.DefaultMetrics() {
		s.AddMetric(m)
	}
	return s, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	s, err := buildSimulation(cfg)
	if err != nil {
		return err
	}
	logger.Info("running", "simulation", s.String(), "frames", cfg.Frames.Count, "frame_size", cfg.Frames.Size)

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	result, runErr := s.Run(ctx)
	elapsed := time.Since(start)
	if runErr != nil && len(result.Payload.Frames) == 0 {
		return runErr
	}
	if runErr != nil {
		logger.Warn("run stopped early, saving completed frames", "frames", len(result.Payload.Frames), "err", runErr)
	}

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	fmt.Println(titleText.Render(s.Name()))
	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d  steps: %d  t=%.4f\n", len(result.Payload.Frames), result.StepsTaken, s.Integrator().Time())
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-18s %12.6g  %s\n", name, result.Metrics[name], viz.Sparkline(result.Series[name], 24))
	}
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	steps := stepsPerTick
	if steps < 1 {
		steps = cfg.Frames.Size
	}
	factory := func() (*sim.Simulation, error) {
		return buildSimulation(cfg.Clone())
	}
	return viz.Run(factory, viz.Options{
		StepsPerTick: steps,
		FrameRate:    frameRate,
		Theme:        theme,
		GIFPath:      gifPath,
	})
}

func benchSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if benchRuns < 1 {
		return fmt.Errorf("runs %d must be positive: %w", benchRuns, dynamo.ErrParameterBounds)
	}

	sims := make([]*sim.Simulation, benchRuns)
	for i := range sims {
		c := cfg.Clone()
		c.Name = fmt.Sprintf("%s-%d", cfg.Name, i)
		c.Seed = cfg.Seed + int64(i)
		if c.Perturb == 0 {
			c.Perturb = 1e-3
		}
		if sims[i], err = buildSimulation(c); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	results, err := sim.NewEnsemble(sims...).Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	fmt.Println(titleText.Render(fmt.Sprintf("%s x%d", cfg.Name, benchRuns)))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSEED\tSTEPS\tKINETIC\tMAX DISP\tDRIFT")
	totalSteps := 0
	for i, r := range results {
		totalSteps += r.StepsTaken
		fmt.Fprintf(w, "%s\t%d\t%d\t%.4g\t%.4g\t%.3e\n",
			r.Name,
			cfg.Seed+int64(i),
			r.StepsTaken,
			r.Metrics["kinetic_energy"],
			r.Metrics["max_displacement"],
			r.Metrics["energy_drift"],
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d steps in %v (%.0f steps/s)\n", totalSteps, elapsed, float64(totalSteps)/elapsed.Seconds())
	return nil
}

// parseRange reads name=min:max:n.
func parseRange(arg string) (string, []float64, error) {
	name, rng, ok := strings.Cut(arg, "=")
	parts := strings.Split(rng, ":")
	if !ok || len(parts) != 3 {
		return "", nil, fmt.Errorf("--param %q must be name=min:max:n", arg)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("--param %q: %w", arg, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("--param %q: %w", arg, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("--param %q: count must be a positive integer", arg)
	}
	return name, optim.Linspace(lo, hi, n), nil
}

func sweepSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(sweepParams) == 0 {
		return fmt.Errorf("at least one --param is required (available: %v)", config.ParamNames())
	}

	names := make([]string, 0, len(sweepParams))
	ranges := make([][]float64, 0, len(sweepParams))
	for _, arg := range sweepParams {
		name, values, err := parseRange(arg)
		if err != nil {
			return err
		}
		if _, err := cfg.GetParam(name); err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	search, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	logger.Info("sweeping", "simulation", cfg.Name, "points", search.Size(), "minimize", sweepMetric)

	ctx, cancel := signalContext()
	defer cancel()

	build := func(params map[string]float64) (*sim.Simulation, error) {
		c := cfg.Clone()
		for name, v := range params {
			if err := c.SetParam(name, v); err != nil {
				return nil, err
			}
		}
		return buildSimulation(c)
	}
	best, bestVal, evals, err := search.Search(ctx, build, sweepMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(sweepMetric))
	for _, e := range evals {
		for _, name := range names {
			fmt.Fprintf(w, "%.4g\t", e.Params[name])
		}
		if e.Err != nil {
			fmt.Fprintf(w, "%s\n", mutedText.Render(e.Err.Error()))
		} else {
			fmt.Fprintf(w, "%.6g\n", e.Value)
		}
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(titleText.Render(fmt.Sprintf("best %s = %.6g", sweepMetric, bestVal)))
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, best[name])
	}
	return nil
}

type cliRunner struct {
	store *storage.Store
}

func (r cliRunner) Build(cfg *config.Config) (*sim.Simulation, error) { return buildSimulation(cfg) }

func (r cliRunner) Save(cfg *config.Config, result *sim.Result) (string, error) {
	return r.store.Save(cfg, result)
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if scenarioSave {
		for i := range sc.Steps {
			sc.Steps[i].Save = true
		}
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println(titleText.Render(sc.Name))
	if sc.Description != "" {
		fmt.Println(mutedText.Render(sc.Description))
	}
	results, err := automation.RunScenario(ctx, sc, cliRunner{store: st}, func(i int, step automation.ScenarioStep) {
		logger.Info("scenario step", "step", i+1, "of", len(sc.Steps), "name", step.Name, "preset", step.Preset)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tNAME\tFRAMES\tSTEPS\tMAX DISP\tRUN ID")
	for i, r := range results {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.4g\t%s\n",
			i+1,
			r.Config.Name,
			len(r.Result.Payload.Frames),
			r.Result.StepsTaken,
			r.Result.Metrics["max_displacement"],
			r.RunID,
		)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
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
	fmt.Fprintln(w, "ID\tNAME\tTIME\tFRAMES\tSTEPS\tDT\tMATERIAL\tINTEG")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4fs\t%s\t%s\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Frames,
			run.Steps,
			run.Dt,
			run.Material,
			run.Integrator,
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, dynamo.Payload, []float64, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, dynamo.Payload{}, nil, err
	}
	payload, times, err := st.LoadFrames(runID)
	if err != nil {
		return nil, dynamo.Payload{}, nil, err
	}
	if len(payload.Frames) == 0 {
		return nil, dynamo.Payload{}, nil, fmt.Errorf("run %s has no frames", runID)
	}
	return meta, payload, times, nil
}

func pickFrame(payload dynamo.Payload, frameNo int) (dynamo.Frame, error) {
	if frameNo < 0 {
		return payload.Frames[len(payload.Frames)-1], nil
	}
	for _, f := range payload.Frames {
		if f.FrameNo == frameNo {
			return f, nil
		}
	}
	return dynamo.Frame{}, fmt.Errorf("frame %d: %w", frameNo, dynamo.ErrNotFound)
}

func pickVertex(payload dynamo.Payload, v int) (int, error) {
	n := len(payload.Frames[0].Vertices) / 2
	if v < 0 {
		v = n - 1
	}
	if v >= n {
		return 0, fmt.Errorf("vertex %d outside [0, %d): %w", v, n, dynamo.ErrDimensionMismatch)
	}
	return v, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, payload, times, err := loadRun(args[0])
	if err != nil {
		return err
	}
	v, err := pickVertex(payload, vertex)
	if err != nil {
		return err
	}

	fmt.Println(titleText.Render("run: " + meta.ID))
	fmt.Printf("material: %s  integrator: %s  frames: %d\n\n", meta.Material, meta.Integrator, len(payload.Frames))

	traj := export.VertexTrajectory(payload.Frames, v)
	xs := make([]float64, len(traj))
	ys := make([]float64, len(traj))
	for i, p := range traj {
		xs[i], ys[i] = p.X, p.Y
	}
	for _, series := range []struct {
		caption string
		data    []float64
	}{
		{fmt.Sprintf("vertex %d x vs frame", v), xs},
		{fmt.Sprintf("vertex %d y vs frame", v), ys},
	} {
		fmt.Println(asciigraph.Plot(series.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(series.caption),
		))
		fmt.Println()
	}
	fmt.Println(mutedText.Render(fmt.Sprintf("t = %.4f .. %.4f", times[0], times[len(times)-1])))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, payload, times, err := loadRun(args[0])
	if err != nil {
		return err
	}
	v, err := pickVertex(payload, vertex)
	if err != nil {
		return err
	}
	if len(times) < 2 {
		return fmt.Errorf("run %s has %d frames, need more for a spectrum: %w", meta.ID, len(times), dynamo.ErrParameterBounds)
	}

	traj := export.VertexTrajectory(payload.Frames, v)
	ys := make([]float64, len(traj))
	for i, p := range traj {
		ys[i] = p.Y
	}
	spectrum, err := analysis.NewSpectrum(ys, times[1]-times[0])
	if err != nil {
		return err
	}

	fmt.Println(titleText.Render("run: " + meta.ID))
	fmt.Println(asciigraph.Plot(spectrum.Amplitude[1:],
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("vertex %d y amplitude spectrum", v)),
	))
	freq, amp := spectrum.Dominant()
	fmt.Printf("\ndominant frequency: %.4f Hz (amplitude %.4g)\n", freq, amp)
	fmt.Println(mutedText.Render(fmt.Sprintf("resolution %.4f Hz, nyquist %.4f Hz", spectrum.Freqs[1], spectrum.Freqs[len(spectrum.Freqs)-1])))
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, payload, times, err := loadRun(args[0])
	if err != nil {
		return err
	}
	data := export.ExportData{
		Name:       meta.Name,
		Material:   meta.Material,
		Integrator: meta.Integrator,
		Dt:         meta.Dt,
		Steps:      meta.Steps,
		Times:      times,
		Frames:     payload.Frames,
		Metrics:    meta.Metrics,
	}
	if outPath == "" {
		return export.ExportJSONStdout(data)
	}
	if err := export.ExportJSON(outPath, data); err != nil {
		return err
	}
	logger.Info("exported", "run", meta.ID, "path", outPath)
	return nil
}

func exportOBJ(cmd *cobra.Command, args []string) error {
	meta, payload, _, err := loadRun(args[0])
	if err != nil {
		return err
	}
	frame, err := pickFrame(payload, frameIndex)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = fmt.Sprintf("%s_%d.obj", meta.ID, frame.FrameNo)
	}
	if err := export.SaveOBJ(path, frame, meta.Indices); err != nil {
		return err
	}
	logger.Info("exported", "run", meta.ID, "frame", frame.FrameNo, "path", path)
	return nil
}

// pinnedFor rebuilds the run's simulation to recover which vertices were
// pinned. Runs without a stored config report none.
func pinnedFor(meta *storage.RunMetadata) []bool {
	if meta.Config == nil {
		return nil
	}
	s, err := buildSimulation(meta.Config)
	if err != nil {
		logger.Debug("cannot rebuild run for pins", "run", meta.ID, "err", err)
		return nil
	}
	return s.Mesh().Pinned()
}

func exportSVG(cmd *cobra.Command, args []string) error {
	meta, payload, _, err := loadRun(args[0])
	if err != nil {
		return err
	}

	var svg string
	if vertex >= 0 {
		if vertex >= len(payload.Frames[0].Vertices)/2 {
			return fmt.Errorf("vertex %d: %w", vertex, dynamo.ErrDimensionMismatch)
		}
		svg = export.TrajectoryToSVG(export.VertexTrajectory(payload.Frames, vertex), 800, 600, "#0077be")
	} else {
		frame, err := pickFrame(payload, frameIndex)
		if err != nil {
			return err
		}
		svg = export.FrameToSVG(frame, meta.Indices, pinnedFor(meta), 800, 600, "#0077be")
	}

	path := outPath
	if path == "" {
		path = meta.ID + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	logger.Info("exported", "run", meta.ID, "path", path)
	return nil
}

func checkMaterials(cmd *cobra.Command, args []string) error {
	springState := func(rng *rand.Rand) linalg.Vector {
		for {
			x := linalg.Random(4, rng)
			d, _ := x.Slice(2, 4).Sub(x.Slice(0, 2))
			if d.Norm() > 0.2 {
				return x
			}
		}
	}
	gradient := func(rng *rand.Rand) linalg.Vector {
		x := linalg.Zero(4)
		for i := range x {
			x[i] = 2*rng.Float64() - 1
		}
		return x
	}

	cases := []struct {
		mat  material.Material
		draw func(*rand.Rand) linalg.Vector
	}{
		{material.NewMassSpring(1, 1), springState},
		{material.NewSTVK(1, 1), gradient},
		{material.NewSNH(1, 1), gradient},
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MATERIAL\tPASSED\tWORST MIN ERROR")
	failed := 0
	for _, c := range cases {
		passed, worst := 0, 0.0
		for s := 1; s <= checkSeeds; s++ {
			report, err := material.CheckMaterial(c.mat, c.draw(rand.New(rand.NewSource(int64(s)))))
			if err != nil {
				return err
			}
			if report.Passed {
				passed++
			}
			worst = max(worst, report.MinError)
		}
		failed += checkSeeds - passed
		fmt.Fprintf(w, "%s\t%d/%d\t%.3e\n", c.mat.Name(), passed, checkSeeds, worst)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d gradient checks failed", failed)
	}
	return nil
}

func listMeshes(cmd *cobra.Command, args []string) error {
	store := meshio.NewStore(meshDir)
	names, err := store.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("no meshes in %s\n", meshDir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERTICES\tTRIANGLES")
	for _, name := range names {
		geo, err := store.Load(name)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t%s\n", name, mutedText.Render(err.Error()))
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\n", name, len(geo.Vertices), len(geo.Triangles))
	}
	return w.Flush()
}

func writeGridMesh(cmd *cobra.Command, args []string) error {
	geo, err := mesh.Grid(gridNX, gridNY, gridWidth, gridHeight)
	if err != nil {
		return err
	}
	if err := meshio.NewStore(meshDir).Save(args[0], geo); err != nil {
		return err
	}
	logger.Info("mesh written", "name", args[0], "vertices", len(geo.Vertices), "triangles", len(geo.Triangles))
	return nil
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	srv := server.New(registry.New(), meshio.NewStore(meshDir), logger, server.WithMaxSteps(maxSteps))
	err := srv.ListenAndServe(ctx, addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
