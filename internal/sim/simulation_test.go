package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/deform/internal/config"
	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/integrator"
	"github.com/san-kum/deform/internal/mesh"
	"github.com/san-kum/deform/internal/meshio"
)

func smallSheet() *config.Config {
	cfg := config.GetPreset("sheet", "snh")
	cfg.Mesh.Grid = config.GridConfig{NX: 4, NY: 2, Width: 2, Height: 1}
	cfg.Frames = config.FramesConfig{Count: 3, Size: 5}
	return cfg
}

func newSim(t *testing.T, cfg *config.Config) *Simulation {
	t.Helper()
	geo, err := ResolveGeometry(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	s, err := FromConfig(cfg, geo)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestFromConfig(t *testing.T) {
	s := newSim(t, smallSheet())

	if s.Integrator().Name() != config.IntegratorArea {
		t.Errorf("expected area integrator, got %s", s.Integrator().Name())
	}
	if s.Integrator().Material().Name() != "SNH" {
		t.Errorf("expected SNH, got %s", s.Integrator().Material().Name())
	}
	pinned := 0
	for _, p := range s.Mesh().Pinned() {
		if p {
			pinned++
		}
	}
	if pinned != 5 {
		t.Errorf("expected the top row of 5 vertices pinned, got %d", pinned)
	}
	if s.String() == "" {
		t.Error("expected a description")
	}
}

func TestFromConfigSpringRope(t *testing.T) {
	cfg := config.GetPreset("rope", "bridge")
	s := newSim(t, cfg)
	if s.Integrator().Name() != config.IntegratorSpring {
		t.Errorf("expected spring integrator, got %s", s.Integrator().Name())
	}
	p := s.Mesh().Pinned()
	if !p[0] || !p[15] || p[7] {
		t.Errorf("expected both ends pinned, got %v", p)
	}

	cfg.Pin.Vertices = []int{99}
	geo, _ := ResolveGeometry(cfg, nil)
	if _, err := FromConfig(cfg, geo); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension error for out of range pin, got %v", err)
	}
}

func TestFromConfigInvalid(t *testing.T) {
	cfg := smallSheet()
	cfg.Integrator.Dt = 0
	if _, err := FromConfig(cfg, mesh.Geometry{}); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected bounds error, got %v", err)
	}
}

func TestResolveGeometryFromStore(t *testing.T) {
	store := meshio.NewStore(t.TempDir())
	grid, _ := mesh.Grid(1, 1, 1, 1)
	if err := store.Save("square", grid); err != nil {
		t.Fatal(err)
	}

	cfg := smallSheet()
	cfg.Mesh.Name = "square"
	geo, err := ResolveGeometry(cfg, store)
	if err != nil {
		t.Fatal(err)
	}
	if len(geo.Triangles) != 2 {
		t.Errorf("expected 2 triangles, got %d", len(geo.Triangles))
	}

	if _, err := ResolveGeometry(cfg, nil); !errors.Is(err, dynamo.ErrNotFound) {
		t.Errorf("expected not found without a store, got %v", err)
	}
}

func TestStepFrames(t *testing.T) {
	s := newSim(t, smallSheet())
	ctx := context.Background()

	f0, err := s.Step(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	f1, err := s.Step(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}

	if f0.FrameNo != 0 || f1.FrameNo != 1 {
		t.Errorf("expected frames 0 and 1, got %d and %d", f0.FrameNo, f1.FrameNo)
	}
	if len(f0.Indices) != 3*s.Mesh().NumTriangles() {
		t.Errorf("expected indices on frame 0, got %d", len(f0.Indices))
	}
	if f1.Indices != nil {
		t.Error("expected no indices after frame 0")
	}
	if len(f1.Vertices) != s.Mesh().DOFs() {
		t.Errorf("expected %d coordinates, got %d", s.Mesh().DOFs(), len(f1.Vertices))
	}
	if s.Integrator().Steps() != 10 {
		t.Errorf("expected 10 steps, got %d", s.Integrator().Steps())
	}

	f1.Vertices[0] = 1000
	if s.Mesh().Positions()[0] == 1000 {
		t.Error("frames must not alias mesh positions")
	}

	if _, err := s.Step(ctx, 0); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected bounds error for empty frame, got %v", err)
	}
}

func TestBatch(t *testing.T) {
	s := newSim(t, smallSheet())
	payload, err := s.Batch(context.Background(), 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(payload.Frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(payload.Frames))
	}
	for i, f := range payload.Frames {
		if f.FrameNo != i {
			t.Errorf("frame %d numbered %d", i, f.FrameNo)
		}
	}
	if len(payload.Indices()) == 0 {
		t.Error("expected the payload to carry indices")
	}
}

func TestStepCanceled(t *testing.T) {
	s := newSim(t, smallSheet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Step(ctx, 5)
	if !errors.Is(err, dynamo.ErrContextCanceled) || !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if s.FrameNo() != 0 || s.Integrator().Steps() != 0 {
		t.Error("canceled step should not advance")
	}
}

type countingObserver struct {
	steps, frames int
}

func (c *countingObserver) OnStep(integrator.Integrator) { c.steps++ }
func (c *countingObserver) OnFrame(dynamo.Frame)         { c.frames++ }

func TestRunMetricsAndObservers(t *testing.T) {
	s := newSim(t, smallSheet())
	for _, m := range DefaultMetrics() {
		s.AddMetric(m)
	}
	obs := &countingObserver{}
	s.AddObserver(obs)

	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(result.Payload.Frames) != 3 || len(result.Times) != 3 {
		t.Errorf("expected 3 frames, got %d", len(result.Payload.Frames))
	}
	if result.StepsTaken != 15 {
		t.Errorf("expected 15 steps, got %d", result.StepsTaken)
	}
	if math.Abs(result.Times[2]-0.15) > 1e-12 {
		t.Errorf("expected final time 0.15, got %f", result.Times[2])
	}
	if obs.steps != 15 || obs.frames != 3 {
		t.Errorf("expected 15 steps and 3 frames observed, got %d and %d", obs.steps, obs.frames)
	}

	for _, name := range []string{"kinetic_energy", "elastic_energy", "max_displacement", "energy_drift", "stability"} {
		if _, ok := result.Metrics[name]; !ok {
			t.Errorf("metric %s not found in result", name)
		}
		if len(result.Series[name]) != 3 {
			t.Errorf("metric %s: expected 3 samples, got %d", name, len(result.Series[name]))
		}
	}
	if result.Metrics["max_displacement"] <= 0 {
		t.Error("sheet should sag under gravity")
	}
}

func TestRunStopsOnDivergence(t *testing.T) {
	cfg := smallSheet()
	cfg.Gravity = []float64{0, math.Inf(-1)}
	s := newSim(t, cfg)

	result, err := s.Run(context.Background())
	if !errors.Is(err, dynamo.ErrDiverged) {
		t.Fatalf("expected divergence, got %v", err)
	}
	if len(result.Payload.Frames) != 0 {
		t.Errorf("expected no frames, got %d", len(result.Payload.Frames))
	}
}

func TestPerturbIsSeeded(t *testing.T) {
	cfg := smallSheet()
	cfg.Perturb = 0.01
	cfg.Seed = 3
	a := newSim(t, cfg).Mesh().Positions()
	b := newSim(t, cfg).Mesh().Positions()
	if !a.Equal(b) {
		t.Error("same seed should give the same perturbation")
	}

	rest := newSim(t, smallSheet()).Mesh().Positions()
	if a.Equal(rest) {
		t.Error("perturbation should move free vertices")
	}
}

func TestEnsemble(t *testing.T) {
	sims := []*Simulation{
		newSim(t, smallSheet()),
		newSim(t, smallSheet()),
		newSim(t, config.GetPreset("rope", "hanging")),
	}
	results, err := NewEnsemble(sims...).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	last := func(r *Result) []float64 { return r.Payload.Frames[len(r.Payload.Frames)-1].Vertices }
	a, b := last(results[0]), last(results[1])
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("identical simulations should match when run concurrently")
		}
	}
}
