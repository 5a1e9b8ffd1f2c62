// Package viz draws deforming meshes in the terminal.
//
// The live view is a Bubble Tea program:
//
//   - [Model]: steps a simulation and renders its wireframe
//   - [Canvas]: Braille-based pixel canvas, 2x4 sub-pixels per cell
//   - [Viewport]: world to sub-pixel mapping fitted to the rest shape
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Rebuild the simulation from its config
//	T     - Cycle color themes
//	G     - Toggle GIF recording
//	?     - Show help overlay
//	[]    - Time travel (rewind/forward)
package viz
