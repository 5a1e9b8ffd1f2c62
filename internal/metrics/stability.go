package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/deform/internal/integrator"
)

// Stability is the fraction of observations whose largest velocity
// component stays below threshold. Explicit steps that are too large for
// the material stiffness show up here before they diverge.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(it integrator.Integrator) {
	s.samples++
	v := it.Velocity()
	if len(v) == 0 {
		return
	}
	peak := math.Max(math.Abs(floats.Max(v)), math.Abs(floats.Min(v)))
	if peak > s.threshold || math.IsNaN(peak) {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
