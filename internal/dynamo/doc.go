// Package dynamo holds the types shared by every layer of the deformable
// body simulator:
//
//   - the error taxonomy ([ErrDimensionMismatch], [ErrSingular],
//     [ErrStaleGradient], [ErrNotImplemented], [ErrDiverged], ...)
//   - [Frame] and [Payload], the plain numeric output of a run
//
// Errors are sentinels matched with errors.Is; callers add context with
// fmt.Errorf("op: ...: %w", err).
//
// # Thread Safety
//
// Nothing in the simulation core locks. A mesh and the integrator that owns
// it must be driven by one goroutine at a time; the registry package
// serialises access for hosted simulations.
package dynamo
