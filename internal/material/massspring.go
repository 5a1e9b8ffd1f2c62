package material

import (
	"fmt"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
)

// MassSpring is a linear spring between two 2D points. Its state is the
// stacked position vector [p0; p1].
type MassSpring struct {
	Stiffness  float64
	RestLength float64
}

func NewMassSpring(k, d float64) MassSpring {
	return MassSpring{Stiffness: k, RestLength: d}
}

func (MassSpring) Name() string { return "MassSpring" }
func (MassSpring) material()    {}

// WithRestLength returns a copy with a different rest length.
func (s MassSpring) WithRestLength(d float64) MassSpring {
	s.RestLength = d
	return s
}

func split(op string, x linalg.Vector) (p0, p1 linalg.Vector, err error) {
	if len(x) != 4 {
		return nil, nil, fmt.Errorf("%s: state has %d entries, want 4: %w", op, len(x), dynamo.ErrDimensionMismatch)
	}
	return x.Slice(0, 2), x.Slice(2, 4), nil
}

func (s MassSpring) Psi(x linalg.Vector) (float64, error) {
	p0, p1, err := split("spring psi", x)
	if err != nil {
		return 0, err
	}
	d, _ := p1.Sub(p0)
	stretch := d.Norm() - s.RestLength
	return 0.5 * s.Stiffness * stretch * stretch, nil
}

// PK1 is the gradient of Psi with respect to [p0; p1]. It is undefined
// when p0 == p1.
func (s MassSpring) PK1(x linalg.Vector) (linalg.Vector, error) {
	p0, p1, err := split("spring pk1", x)
	if err != nil {
		return nil, err
	}
	d, _ := p1.Sub(p0)
	length := d.Norm()
	coeff := s.Stiffness * (length - s.RestLength) / length

	return linalg.Vector{
		-coeff * d[0], -coeff * d[1],
		coeff * d[0], coeff * d[1],
	}, nil
}

func (s MassSpring) Hessian(x linalg.Vector) (*linalg.Matrix, error) {
	return nil, fmt.Errorf("spring hessian: %w", dynamo.ErrNotImplemented)
}
