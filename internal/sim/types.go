package sim

import (
	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/integrator"
)

type Metric interface {
	Name() string
	Observe(it integrator.Integrator)
	Value() float64
	Reset()
}

// Observer is notified after every integrator step and every emitted
// frame.
type Observer interface {
	OnStep(it integrator.Integrator)
	OnFrame(f dynamo.Frame)
}

type Result struct {
	Name       string
	Payload    dynamo.Payload
	Times      []float64
	StepsTaken int
	// Metrics holds the final value of each metric; Series holds its value
	// at every frame.
	Metrics map[string]float64
	Series  map[string][]float64
}
