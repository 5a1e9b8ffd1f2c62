package sim

import (
	"context"

	"github.com/san-kum/deform/internal/dynamo"
)

// Ensemble runs independent simulations concurrently, at most GOMAXPROCS
// at a time. The simulations must not share a mesh.
type Ensemble struct {
	sims []*Simulation
}

func NewEnsemble(sims ...*Simulation) *Ensemble {
	return &Ensemble{sims: sims}
}

func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(e.sims))
	errs := make([]error, len(e.sims))

	dynamo.ParallelFor(len(e.sims), 1, func(start, end int) {
		for i := start; i < end; i++ {
			results[i], errs[i] = e.sims[i].Run(ctx)
		}
	})

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}

	return results, nil
}
