// Package analysis extracts oscillation content from simulated
// trajectories.
//
// [NewSpectrum] turns a uniformly sampled series, such as one vertex
// coordinate across the frames of a run, into a one-sided amplitude
// spectrum. [Spectrum.Dominant] reports the strongest non-zero frequency,
// which for a pinned sheet or a hanging rope is its fundamental mode.
package analysis
