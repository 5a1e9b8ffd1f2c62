package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrDimensionMismatch indicates operands whose lengths or shapes do not agree.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch")

	// ErrSingular indicates a zero pivot during inversion, including a
	// degenerate (zero area) rest triangle.
	ErrSingular = errors.New("dynamo: singular matrix")

	// ErrStaleGradient indicates deformation gradients that no longer match
	// the current vertex positions.
	ErrStaleGradient = errors.New("dynamo: stale deformation gradient")

	// ErrNotImplemented marks an operation that is declared but unsupported.
	ErrNotImplemented = errors.New("dynamo: not implemented")

	// ErrDiverged indicates the state became NaN or Inf after a step.
	ErrDiverged = errors.New("dynamo: simulation diverged (NaN or Inf detected)")

	// ErrParameterBounds indicates a parameter value is outside valid range.
	ErrParameterBounds = errors.New("dynamo: parameter out of valid bounds")

	// ErrContextCanceled indicates the simulation was interrupted between steps.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")

	// ErrNotFound indicates an unknown simulation or mesh name.
	ErrNotFound = errors.New("dynamo: not found")

	// ErrExists indicates a name collision in a registry.
	ErrExists = errors.New("dynamo: already exists")
)

// StepError wraps an error with the step at which it happened.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
