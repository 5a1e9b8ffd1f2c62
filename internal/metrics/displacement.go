package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/deform/internal/integrator"
)

// MaxDisplacement is the largest distance of any vertex from its rest
// position over all observations.
type MaxDisplacement struct {
	name  string
	value float64
}

func NewMaxDisplacement() *MaxDisplacement {
	return &MaxDisplacement{name: "max_displacement"}
}

func (d *MaxDisplacement) Name() string { return d.name }

func (d *MaxDisplacement) Observe(it integrator.Integrator) {
	m := it.Mesh()
	rest := m.RestVertices()
	dist := make([]float64, len(rest))
	for i, v := range m.Vertices() {
		dist[i] = math.Hypot(v[0]-rest[i][0], v[1]-rest[i][1])
	}
	if len(dist) > 0 {
		d.value = math.Max(d.value, floats.Max(dist))
	}
}

func (d *MaxDisplacement) Value() float64 { return d.value }

func (d *MaxDisplacement) Reset() { d.value = 0 }
