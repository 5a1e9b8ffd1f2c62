package integrator

import (
	"fmt"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
	"github.com/san-kum/deform/internal/material"
	"github.com/san-kum/deform/internal/mesh"
)

// Integrator is implemented by ForwardEulerArea and ForwardEulerSpring only.
type Integrator interface {
	Name() string
	Step() error
	Mesh() *mesh.TriangleMesh
	Material() material.Material
	Velocity() linalg.Vector
	ExternalForces() linalg.Vector
	DT() float64
	Time() float64
	Steps() int
	AddGravity(g linalg.Vector) error
	Rayleigh() (alpha, beta float64)
	integrator()
}

type Option func(*base)

// WithRayleigh records Rayleigh damping coefficients. They are reported
// by Rayleigh but the explicit update does not apply them.
func WithRayleigh(alpha, beta float64) Option {
	return func(b *base) {
		b.rayleighAlpha = alpha
		b.rayleighBeta = beta
	}
}

type base struct {
	mesh *mesh.TriangleMesh
	dt   float64

	velocity       linalg.Vector
	externalForces linalg.Vector

	rayleighAlpha float64
	rayleighBeta  float64

	steps int
}

func newBase(m *mesh.TriangleMesh, dt float64, opts []Option) (base, error) {
	if m == nil {
		return base{}, fmt.Errorf("integrator: nil mesh: %w", dynamo.ErrParameterBounds)
	}
	if dt <= 0 {
		return base{}, fmt.Errorf("integrator: dt %g must be positive: %w", dt, dynamo.ErrParameterBounds)
	}
	b := base{
		mesh:           m,
		dt:             dt,
		velocity:       linalg.Zero(m.DOFs()),
		externalForces: linalg.Zero(m.DOFs()),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

func (b *base) Mesh() *mesh.TriangleMesh { return b.mesh }
func (b *base) DT() float64              { return b.dt }
func (b *base) Steps() int               { return b.steps }
func (b *base) Time() float64            { return float64(b.steps) * b.dt }

func (b *base) Rayleigh() (alpha, beta float64) { return b.rayleighAlpha, b.rayleighBeta }

// Velocity returns the per-DOF velocity from the last step.
func (b *base) Velocity() linalg.Vector { return b.velocity }

func (b *base) ExternalForces() linalg.Vector { return b.externalForces }

// AddGravity replaces the external forces with g weighted by each vertex's
// one ring area. Vertices of a mesh without triangles get weight 1.
func (b *base) AddGravity(g linalg.Vector) error {
	if len(g) != 2 {
		return fmt.Errorf("integrator: gravity has %d components, want 2: %w", len(g), dynamo.ErrDimensionMismatch)
	}
	areas := b.mesh.OneRingAreas()
	polyline := b.mesh.NumTriangles() == 0
	for i := range areas {
		w := areas[i]
		if polyline {
			w = 1
		}
		b.externalForces[2*i] = g[0] * w
		b.externalForces[2*i+1] = g[1] * w
	}
	return nil
}

// advance applies one explicit update given the material forces R.
func (b *base) advance(R linalg.Vector) error {
	total, err := R.Add(b.externalForces)
	if err != nil {
		return b.fail(err)
	}
	accel, err := b.mesh.Minv().MulElem(total)
	if err != nil {
		return b.fail(err)
	}
	dx, err := accel.Scale(b.dt * b.dt).Add(b.velocity.Scale(b.dt))
	if err != nil {
		return b.fail(err)
	}
	dx, err = dx.MulElem(b.mesh.PinFilter())
	if err != nil {
		return b.fail(err)
	}

	x, err := b.mesh.Positions().Add(dx)
	if err != nil {
		return b.fail(err)
	}
	if !x.IsFinite() {
		return b.fail(fmt.Errorf("non-finite positions: %w", dynamo.ErrDiverged))
	}
	if err := b.mesh.SetPositions(x); err != nil {
		return b.fail(err)
	}
	b.velocity = dx.Div(b.dt)
	b.steps++
	return nil
}

func (b *base) fail(err error) error {
	return &dynamo.StepError{Step: b.steps, Time: b.Time(), Wrapped: err}
}

// ForwardEulerArea integrates a hyperelastic material over triangles.
type ForwardEulerArea struct {
	base
	material material.Hyperelastic
}

func NewForwardEulerArea(m *mesh.TriangleMesh, mat material.Hyperelastic, dt float64, opts ...Option) (*ForwardEulerArea, error) {
	if mat == nil {
		return nil, fmt.Errorf("integrator: nil material: %w", dynamo.ErrParameterBounds)
	}
	b, err := newBase(m, dt, opts)
	if err != nil {
		return nil, err
	}
	if m.NumTriangles() == 0 {
		return nil, fmt.Errorf("integrator: %s needs triangles: %w", mat.Name(), dynamo.ErrNotImplemented)
	}
	return &ForwardEulerArea{base: b, material: mat}, nil
}

func (*ForwardEulerArea) Name() string                  { return "forward-euler-area" }
func (*ForwardEulerArea) integrator()                   {}
func (e *ForwardEulerArea) Material() material.Material { return e.material }

func (e *ForwardEulerArea) Step() error {
	g := e.mesh.ComputeDeformationGradients()
	R, err := e.mesh.ComputeMaterialForces(g, e.material)
	if err != nil {
		return e.fail(err)
	}
	return e.advance(R)
}

// ForwardEulerSpring integrates a MassSpring material over mesh edges.
type ForwardEulerSpring struct {
	base
	material material.MassSpring
}

func NewForwardEulerSpring(m *mesh.TriangleMesh, mat material.MassSpring, dt float64, opts ...Option) (*ForwardEulerSpring, error) {
	b, err := newBase(m, dt, opts)
	if err != nil {
		return nil, err
	}
	return &ForwardEulerSpring{base: b, material: mat}, nil
}

func (*ForwardEulerSpring) Name() string                  { return "forward-euler-spring" }
func (*ForwardEulerSpring) integrator()                   {}
func (e *ForwardEulerSpring) Material() material.Material { return e.material }

func (e *ForwardEulerSpring) Step() error {
	R, err := e.mesh.ComputeSpringForces(e.material)
	if err != nil {
		return e.fail(err)
	}
	return e.advance(R)
}
