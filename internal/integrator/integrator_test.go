package integrator

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
	"github.com/san-kum/deform/internal/material"
	"github.com/san-kum/deform/internal/mesh"
)

func newSheet(t testing.TB) *mesh.TriangleMesh {
	t.Helper()
	geo, err := mesh.Grid(4, 2, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	m, err := mesh.New(geo, 1)
	if err != nil {
		t.Fatal(err)
	}
	m.PinWhere(func(_ int, rest linalg.Vector) bool { return rest[1] > 0.49 })
	return m
}

func newRope(t testing.TB) *mesh.TriangleMesh {
	t.Helper()
	geo, err := mesh.Strip(6, 1)
	if err != nil {
		t.Fatal(err)
	}
	m, err := mesh.New(geo, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	m.PinWhere(func(i int, _ linalg.Vector) bool { return i == 0 })
	return m
}

func TestConstructorValidation(t *testing.T) {
	m := newSheet(t)
	if _, err := NewForwardEulerArea(m, material.NewSNH(1, 1), 0); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected bounds error for dt=0, got %v", err)
	}
	if _, err := NewForwardEulerSpring(m, material.NewMassSpring(1, 0), -0.1); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected bounds error for negative dt, got %v", err)
	}
	if _, err := NewForwardEulerArea(newRope(t), material.NewSNH(1, 1), 0.01); !errors.Is(err, dynamo.ErrNotImplemented) {
		t.Errorf("expected not implemented for area integrator on a polyline, got %v", err)
	}
}

func TestRayleighIsRecorded(t *testing.T) {
	it, err := NewForwardEulerArea(newSheet(t), material.NewSTVK(1, 1), 0.01, WithRayleigh(0.1, 0.2))
	if err != nil {
		t.Fatal(err)
	}
	a, b := it.Rayleigh()
	if a != 0.1 || b != 0.2 {
		t.Errorf("expected (0.1, 0.2), got (%f, %f)", a, b)
	}

	plain, _ := NewForwardEulerArea(newSheet(t), material.NewSTVK(1, 1), 0.01)
	if err := it.AddGravity(linalg.NewVector(0, -1)); err != nil {
		t.Fatal(err)
	}
	if err := plain.AddGravity(linalg.NewVector(0, -1)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := it.Step(); err != nil {
			t.Fatal(err)
		}
		if err := plain.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if !it.Mesh().Positions().Equal(plain.Mesh().Positions()) {
		t.Error("damping coefficients should not change the explicit update")
	}
}

func TestGravityWeights(t *testing.T) {
	m := newSheet(t)
	it, _ := NewForwardEulerArea(m, material.NewSNH(1, 1), 0.01)
	if err := it.AddGravity(linalg.NewVector(0, -2)); err != nil {
		t.Fatal(err)
	}
	for i, a := range m.OneRingAreas() {
		if it.ExternalForces()[2*i] != 0 || math.Abs(it.ExternalForces()[2*i+1]+2*a) > 1e-15 {
			t.Errorf("vertex %d: external force %v, area %f", i, it.ExternalForces().Slice(2*i, 2*i+2), a)
		}
	}
	if err := it.AddGravity(linalg.NewVector(0, 0, -1)); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension error for 3D gravity, got %v", err)
	}

	rope := newRope(t)
	sp, _ := NewForwardEulerSpring(rope, material.NewMassSpring(1, 0), 0.01)
	if err := sp.AddGravity(linalg.NewVector(0, -9.8)); err != nil {
		t.Fatal(err)
	}
	if sp.ExternalForces()[1] != -9.8 {
		t.Errorf("polyline vertices should weigh 1, got %f", sp.ExternalForces()[1])
	}
}

func TestRestStateStaysAtRest(t *testing.T) {
	for _, mat := range []material.Hyperelastic{material.NewSNH(2, 1), material.NewSTVK(2, 1)} {
		m := newSheet(t)
		it, _ := NewForwardEulerArea(m, mat, 0.01)
		rest := m.Positions()
		for i := 0; i < 20; i++ {
			if err := it.Step(); err != nil {
				t.Fatal(err)
			}
		}
		diff, _ := m.Positions().Sub(rest)
		if diff.Norm() > 1e-12 {
			t.Errorf("%s: undisturbed body drifted by %g", mat.Name(), diff.Norm())
		}
	}
}

func TestPinnedVerticesDoNotMove(t *testing.T) {
	tests := []struct {
		name string
		make func(t *testing.T) Integrator
	}{
		{"area", func(t *testing.T) Integrator {
			it, err := NewForwardEulerArea(newSheet(t), material.NewSNH(5, 2), 0.005)
			if err != nil {
				t.Fatal(err)
			}
			return it
		}},
		{"spring", func(t *testing.T) Integrator {
			it, err := NewForwardEulerSpring(newRope(t), material.NewMassSpring(50, 0), 0.001)
			if err != nil {
				t.Fatal(err)
			}
			return it
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := tt.make(t)
			if err := it.AddGravity(linalg.NewVector(0, -1)); err != nil {
				t.Fatal(err)
			}
			m := it.Mesh()
			before := m.Positions()
			for i := 0; i < 50; i++ {
				if err := it.Step(); err != nil {
					t.Fatal(err)
				}
			}
			after := m.Positions()
			v := it.Velocity()
			moved := false
			for i, p := range m.Pinned() {
				if p {
					if after[2*i] != before[2*i] || after[2*i+1] != before[2*i+1] {
						t.Errorf("pinned vertex %d moved", i)
					}
					if v[2*i] != 0 || v[2*i+1] != 0 {
						t.Errorf("pinned vertex %d has velocity %v", i, v.Slice(2*i, 2*i+2))
					}
				} else if after[2*i+1] < before[2*i+1] {
					moved = true
				}
			}
			if !moved {
				t.Error("free vertices should fall under gravity")
			}
			if it.Steps() != 50 || math.Abs(it.Time()-50*it.DT()) > 1e-12 {
				t.Errorf("expected 50 steps, got %d at t=%f", it.Steps(), it.Time())
			}
		})
	}
}

func TestSingleStepUpdate(t *testing.T) {
	geo, _ := mesh.Strip(2, 1)
	m, _ := mesh.New(geo, 2)
	it, _ := NewForwardEulerSpring(m, material.NewMassSpring(1, 0), 0.1)
	if err := it.AddGravity(linalg.NewVector(0, -4)); err != nil {
		t.Fatal(err)
	}
	if err := it.Step(); err != nil {
		t.Fatal(err)
	}
	// dx = Minv * dt^2 * f = 0.5 * 0.01 * -4
	want := linalg.NewVector(0, -0.02, 1, -0.02)
	got := m.Positions()
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-15 {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if math.Abs(it.Velocity()[1]+0.2) > 1e-15 {
		t.Errorf("expected velocity -0.2, got %f", it.Velocity()[1])
	}
}

func TestDeterminism(t *testing.T) {
	run := func() linalg.Vector {
		it, _ := NewForwardEulerArea(newSheet(t), material.NewSTVK(3, 1), 0.01)
		_ = it.AddGravity(linalg.NewVector(0.2, -1))
		for i := 0; i < 30; i++ {
			if err := it.Step(); err != nil {
				t.Fatal(err)
			}
		}
		return it.Mesh().Positions()
	}
	if !run().Equal(run()) {
		t.Error("identical inputs should give identical trajectories")
	}
}

func TestDivergenceLeavesStateUntouched(t *testing.T) {
	geo, _ := mesh.Strip(2, 1)
	m, _ := mesh.New(geo, 1)
	it, _ := NewForwardEulerSpring(m, material.NewMassSpring(1, 0), 0.1)
	if err := it.AddGravity(linalg.NewVector(math.Inf(1), 0)); err != nil {
		t.Fatal(err)
	}
	before := m.Positions()

	err := it.Step()
	if !errors.Is(err, dynamo.ErrDiverged) {
		t.Fatalf("expected divergence, got %v", err)
	}
	var stepErr *dynamo.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != 0 {
		t.Errorf("expected step error at step 0, got %v", err)
	}
	if !m.Positions().Equal(before) {
		t.Error("diverged step must not commit positions")
	}
	if it.Velocity().Norm() != 0 || it.Steps() != 0 {
		t.Error("diverged step must not commit velocity or advance time")
	}
}
