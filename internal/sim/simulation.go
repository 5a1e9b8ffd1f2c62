package sim

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/san-kum/deform/internal/config"
	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/integrator"
	"github.com/san-kum/deform/internal/linalg"
	"github.com/san-kum/deform/internal/material"
	"github.com/san-kum/deform/internal/mesh"
	"github.com/san-kum/deform/internal/meshio"
	"github.com/san-kum/deform/internal/metrics"
)

// Simulation steps one integrator and cuts its trajectory into frames.
// It is not safe for concurrent use.
type Simulation struct {
	name       string
	cfg        *config.Config
	integrator integrator.Integrator
	frameNo    int
	metrics    []Metric
	observers  []Observer
}

func New(name string, it integrator.Integrator) *Simulation {
	return &Simulation{
		name:       name,
		integrator: it,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulation) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulation) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulation) Name() string                      { return s.name }
func (s *Simulation) Config() *config.Config            { return s.cfg }
func (s *Simulation) Integrator() integrator.Integrator { return s.integrator }
func (s *Simulation) Mesh() *mesh.TriangleMesh          { return s.integrator.Mesh() }
func (s *Simulation) Metrics() []Metric                 { return s.metrics }

// FrameNo is the number of the next frame Step will emit.
func (s *Simulation) FrameNo() int { return s.frameNo }

func (s *Simulation) String() string {
	m := s.Mesh()
	return fmt.Sprintf("Simulation(%s, TriangleMesh(%d vertices, %d triangles), %s, %s dt=%g)",
		s.name, m.NumVertices(), m.NumTriangles(), s.integrator.Material().Name(), s.integrator.Name(), s.integrator.DT())
}

func DefaultMetrics() []Metric {
	return []Metric{
		metrics.NewKineticEnergy(),
		metrics.NewElasticEnergy(),
		metrics.NewMaxDisplacement(),
		metrics.NewEnergyDrift(),
		metrics.NewStability(100.0),
	}
}

// ResolveGeometry picks the rest geometry named by cfg.Mesh. A store name
// needs a non-nil store.
func ResolveGeometry(cfg *config.Config, store *meshio.Store) (mesh.Geometry, error) {
	mc := cfg.Mesh
	switch {
	case mc.Name != "":
		if store == nil {
			return mesh.Geometry{}, fmt.Errorf("mesh %q: no mesh store: %w", mc.Name, dynamo.ErrNotFound)
		}
		return store.Load(mc.Name)
	case mc.Path != "":
		return meshio.Read(mc.Path)
	case mc.Strip.N > 0:
		return mesh.Strip(mc.Strip.N, mc.Strip.Length)
	default:
		return mesh.Grid(mc.Grid.NX, mc.Grid.NY, mc.Grid.Width, mc.Grid.Height)
	}
}

// FromConfig builds the mesh, material and integrator described by cfg
// on top of geo, then applies pins, gravity and perturbation.
func FromConfig(cfg *config.Config, geo mesh.Geometry) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := mesh.New(geo, cfg.Mass)
	if err != nil {
		return nil, err
	}
	if err := applyPins(m, cfg.Pin); err != nil {
		return nil, err
	}

	opts := []integrator.Option{integrator.WithRayleigh(cfg.Integrator.RayleighAlpha, cfg.Integrator.RayleighBeta)}
	var it integrator.Integrator
	switch cfg.Material.Type {
	case config.MaterialSNH, config.MaterialSTVK:
		lame, err := material.NewLame(cfg.Material.YoungsModulus, cfg.Material.PoissonsRatio)
		if err != nil {
			return nil, err
		}
		var law material.Hyperelastic = material.SNH{Lame: lame}
		if cfg.Material.Type == config.MaterialSTVK {
			law = material.STVK{Lame: lame}
		}
		it, err = integrator.NewForwardEulerArea(m, law, cfg.Integrator.Dt, opts...)
		if err != nil {
			return nil, err
		}
	case config.MaterialSpring:
		spring := material.NewMassSpring(cfg.Material.Stiffness, cfg.Material.RestLength)
		it, err = integrator.NewForwardEulerSpring(m, spring, cfg.Integrator.Dt, opts...)
		if err != nil {
			return nil, err
		}
	}

	if len(cfg.Gravity) == 2 {
		if err := it.AddGravity(linalg.NewVector(cfg.Gravity...)); err != nil {
			return nil, err
		}
	}
	if cfg.Perturb > 0 {
		if err := perturb(m, cfg.Perturb, cfg.Seed); err != nil {
			return nil, err
		}
	}

	s := New(cfg.Name, it)
	s.cfg = cfg.Clone()
	return s, nil
}

func applyPins(m *mesh.TriangleMesh, pin config.PinConfig) error {
	axis := 1
	if pin.Axis == "x" {
		axis = 0
	}
	m.PinWhere(func(_ int, rest linalg.Vector) bool {
		c := rest[axis]
		return (pin.Above != nil && c >= *pin.Above) || (pin.Below != nil && c <= *pin.Below)
	})

	if len(pin.Vertices) == 0 {
		return nil
	}
	pinned := append([]bool(nil), m.Pinned()...)
	for _, idx := range pin.Vertices {
		if idx < 0 || idx >= len(pinned) {
			return fmt.Errorf("pin vertex %d outside [0, %d): %w", idx, len(pinned), dynamo.ErrDimensionMismatch)
		}
		pinned[idx] = true
	}
	return m.SetPinned(pinned)
}

func perturb(m *mesh.TriangleMesh, amplitude float64, seed int64) error {
	rng := rand.New(rand.NewSource(seed))
	x := m.Positions()
	jitter := linalg.Random(len(x), rng)
	for i, p := range m.Pinned() {
		if p {
			continue
		}
		x[2*i] += amplitude * (2*jitter[2*i] - 1)
		x[2*i+1] += amplitude * (2*jitter[2*i+1] - 1)
	}
	return m.SetPositions(x)
}

func canceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err())
	default:
		return nil
	}
}

// Step advances frameSize integrator steps and emits the resulting frame.
// Triangle indices are only attached to frame 0. The context is checked
// between steps; a canceled or failed step emits no frame.
func (s *Simulation) Step(ctx context.Context, frameSize int) (dynamo.Frame, error) {
	if frameSize < 1 {
		return dynamo.Frame{}, fmt.Errorf("frame size %d must be positive: %w", frameSize, dynamo.ErrParameterBounds)
	}
	for i := 0; i < frameSize; i++ {
		if err := canceled(ctx); err != nil {
			return dynamo.Frame{}, err
		}
		if err := s.integrator.Step(); err != nil {
			return dynamo.Frame{}, err
		}
		for _, m := range s.metrics {
			m.Observe(s.integrator)
		}
		for _, obs := range s.observers {
			obs.OnStep(s.integrator)
		}
	}

	frame := dynamo.Frame{
		FrameNo:  s.frameNo,
		Vertices: []float64(s.Mesh().Positions()),
	}
	if s.frameNo == 0 {
		frame.Indices = s.Mesh().FlatIndices()
	}
	s.frameNo++

	for _, obs := range s.observers {
		obs.OnFrame(frame)
	}
	return frame, nil
}

// Batch emits nframes frames of frameSize steps each. On error the frames
// completed so far are returned with it.
func (s *Simulation) Batch(ctx context.Context, frameSize, nframes int) (dynamo.Payload, error) {
	if nframes < 0 {
		return dynamo.Payload{}, fmt.Errorf("frame count %d: %w", nframes, dynamo.ErrParameterBounds)
	}
	payload := dynamo.Payload{Frames: make([]dynamo.Frame, 0, nframes)}
	for i := 0; i < nframes; i++ {
		f, err := s.Step(ctx, frameSize)
		if err != nil {
			return payload, err
		}
		payload.Frames = append(payload.Frames, f)
	}
	return payload, nil
}

// Run resets the metrics and emits the frames configured for the
// simulation, sampling every metric once per frame.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	if s.cfg == nil {
		return nil, fmt.Errorf("simulation %s has no frame configuration: %w", s.name, dynamo.ErrParameterBounds)
	}
	return s.RunFrames(ctx, s.cfg.Frames.Size, s.cfg.Frames.Count)
}

func (s *Simulation) RunFrames(ctx context.Context, frameSize, nframes int) (*Result, error) {
	result := &Result{
		Name:    s.name,
		Payload: dynamo.Payload{Frames: make([]dynamo.Frame, 0, nframes)},
		Times:   make([]float64, 0, nframes),
		Metrics: make(map[string]float64),
		Series:  make(map[string][]float64),
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	startSteps := s.integrator.Steps()
	var runErr error
	for i := 0; i < nframes; i++ {
		f, err := s.Step(ctx, frameSize)
		if err != nil {
			runErr = err
			break
		}
		result.Payload.Frames = append(result.Payload.Frames, f)
		result.Times = append(result.Times, s.integrator.Time())
		for _, m := range s.metrics {
			result.Series[m.Name()] = append(result.Series[m.Name()], m.Value())
		}
	}
	result.StepsTaken = s.integrator.Steps() - startSteps

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, runErr
}
