package dynamo

// Frame is the geometry emitted after a batch of integrator steps.
// Indices are only populated on the first frame of a run since the
// triangle set never changes.
type Frame struct {
	FrameNo  int       `json:"frameno"`
	Vertices []float64 `json:"vertices"`
	Indices  []int     `json:"indices,omitempty"`
}

type Payload struct {
	Frames []Frame `json:"frames"`
}

// Indices returns the triangle index array carried by the payload, if any.
func (p Payload) Indices() []int {
	for _, f := range p.Frames {
		if len(f.Indices) > 0 {
			return f.Indices
		}
	}
	return nil
}
