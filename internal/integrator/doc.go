// Package integrator advances a TriangleMesh through time with explicit
// forward Euler steps.
//
// ForwardEulerArea drives hyperelastic materials through per-triangle
// deformation gradients; ForwardEulerSpring drives MassSpring over the mesh
// edges. Both share the same update:
//
//	dx = Minv * dt^2 * (R + fext) + v * dt
//	dx = dx * filter            (0 on pinned DOFs)
//	x  = x + dx
//	v  = dx / dt
//
// A step whose new positions are not finite is rejected with ErrDiverged
// and leaves the mesh and velocity untouched. Integrators are not safe for
// concurrent use.
package integrator
