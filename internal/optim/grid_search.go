// Package optim searches simulation parameters for the best value of a
// metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/sim"
)

// Evaluation is one grid point. Err is set when the simulation could not
// be built or failed while running; Value is then NaN.
type Evaluation struct {
	Params map[string]float64
	Value  float64
	Err    error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("grid search: %d parameters, %d ranges: %w", len(params), len(ranges), dynamo.ErrDimensionMismatch)
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("grid search: empty range for %s: %w", params[i], dynamo.ErrParameterBounds)
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search runs build at every grid point, in row-major order over the
// parameters, and minimizes the final value of metricName. Failed points
// are recorded and skipped; cancellation stops the search.
func (g *GridSearch) Search(
	ctx context.Context,
	build func(params map[string]float64) (*sim.Simulation, error),
	metricName string,
) (map[string]float64, float64, []Evaluation, error) {

	best := math.Inf(1)
	var bestParams map[string]float64
	evals := make([]Evaluation, 0, g.Size())

	err := g.searchRecursive(ctx, 0, make(map[string]float64), func(params map[string]float64) error {
		e := Evaluation{Params: params, Value: math.NaN()}
		e.Value, e.Err = evaluate(ctx, build, params, metricName)
		if errors.Is(e.Err, dynamo.ErrContextCanceled) {
			return e.Err
		}
		evals = append(evals, e)
		if e.Err == nil && e.Value < best {
			best = e.Value
			bestParams = params
		}
		return nil
	})
	if err != nil {
		return bestParams, best, evals, err
	}
	if bestParams == nil {
		return nil, best, evals, fmt.Errorf("grid search: no grid point produced %s: %w", metricName, dynamo.ErrNotFound)
	}
	return bestParams, best, evals, nil
}

func evaluate(ctx context.Context, build func(map[string]float64) (*sim.Simulation, error), params map[string]float64, metricName string) (float64, error) {
	s, err := build(params)
	if err != nil {
		return math.NaN(), err
	}
	result, err := s.Run(ctx)
	if err != nil {
		return math.NaN(), err
	}
	val, ok := result.Metrics[metricName]
	if !ok {
		return math.NaN(), fmt.Errorf("metric %q: %w", metricName, dynamo.ErrNotFound)
	}
	return val, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	visit func(map[string]float64) error,
) error {
	if depth == len(g.paramNames) {
		return visit(current)
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, visit); err != nil {
			return err
		}
	}
	return nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
