package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/deform/internal/integrator"
)

// KineticEnergy tracks 0.5 * v^T M v at the latest observation.
type KineticEnergy struct {
	name    string
	value   float64
	samples int
}

func NewKineticEnergy() *KineticEnergy {
	return &KineticEnergy{name: "kinetic_energy"}
}

func (k *KineticEnergy) Name() string { return k.name }

func (k *KineticEnergy) Observe(it integrator.Integrator) {
	k.value = kinetic(it)
	k.samples++
}

func (k *KineticEnergy) Value() float64 { return k.value }

func (k *KineticEnergy) Reset() {
	k.value = 0
	k.samples = 0
}

func kinetic(it integrator.Integrator) float64 {
	v := it.Velocity()
	mv := make([]float64, len(v))
	floats.MulTo(mv, it.Mesh().M(), v)
	return 0.5 * floats.Dot(mv, v)
}

// ElasticEnergy tracks the stored material energy at the latest
// observation.
type ElasticEnergy struct {
	name  string
	value float64
	err   error
}

func NewElasticEnergy() *ElasticEnergy {
	return &ElasticEnergy{name: "elastic_energy"}
}

func (e *ElasticEnergy) Name() string { return e.name }

func (e *ElasticEnergy) Observe(it integrator.Integrator) {
	e.value, e.err = elastic(it)
}

func (e *ElasticEnergy) Value() float64 { return e.value }

// Err is the error from the last observation, if any.
func (e *ElasticEnergy) Err() error { return e.err }

func (e *ElasticEnergy) Reset() {
	e.value = 0
	e.err = nil
}

func elastic(it integrator.Integrator) (float64, error) {
	m := it.Mesh()
	return m.ElasticEnergy(m.ComputeDeformationGradients(), it.Material())
}

// gravitational is the potential of the constant external forces relative
// to the rest positions.
func gravitational(it integrator.Integrator) float64 {
	m := it.Mesh()
	x := m.Positions()
	rest := make([]float64, 0, len(x))
	for _, v := range m.RestVertices() {
		rest = append(rest, v[0], v[1])
	}
	floats.Sub(x, rest)
	return -floats.Dot(it.ExternalForces(), x)
}

// TotalEnergy is kinetic + elastic + external potential.
func TotalEnergy(it integrator.Integrator) (float64, error) {
	e, err := elastic(it)
	if err != nil {
		return 0, err
	}
	return kinetic(it) + e + gravitational(it), nil
}

// EnergyDrift tracks the largest relative deviation of the total energy
// from its first observed value.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(it integrator.Integrator) {
	energy, err := TotalEnergy(it)
	if err != nil {
		return
	}
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}
