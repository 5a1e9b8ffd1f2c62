package material

import (
	"fmt"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
)

// SNH is the stable neo-Hookean model of Smith et al. 2018, without the
// log regulariser.
type SNH struct {
	Lame
}

func NewSNH(lambda, mu float64) SNH {
	return SNH{Lame{Lambda: lambda, Mu: mu}}
}

func (SNH) Name() string { return "SNH" }
func (SNH) material()    {}

func (m SNH) alpha() float64 { return 1.0 + m.Mu/m.Lambda }

// checkLambda rejects lambda == 0, where alpha is unbounded.
func (m SNH) checkLambda(op string) error {
	if m.Lambda == 0 {
		return fmt.Errorf("%s: lambda must be non-zero: %w", op, dynamo.ErrParameterBounds)
	}
	return nil
}

func (m SNH) Psi(F *linalg.Matrix) (float64, error) {
	if err := check2x2("snh psi", F); err != nil {
		return 0, err
	}
	if err := m.checkLambda("snh psi"); err != nil {
		return 0, err
	}
	Ic := F.SquaredNorm()
	J, _ := F.Det()
	r := J - m.alpha()
	return 0.5 * (m.Mu*(Ic-3.0) + m.Lambda*r*r), nil
}

func (m SNH) PK1(F *linalg.Matrix) (*linalg.Matrix, error) {
	if err := check2x2("snh pk1", F); err != nil {
		return nil, err
	}
	if err := m.checkLambda("snh pk1"); err != nil {
		return nil, err
	}
	J, _ := F.Det()
	dJdF := PJPF(F)
	P, _ := F.Scale(m.Mu).Sub(dJdF.Scale(m.Mu))
	_ = P.AddInPlace(dJdF.Scale(m.Lambda * (J - 1)))
	return P, nil
}

func (m SNH) Hessian(F *linalg.Matrix) (*linalg.Matrix, error) {
	return nil, fmt.Errorf("snh hessian: %w", dynamo.ErrNotImplemented)
}

// PJPF is dJ/dF for a 2x2 F, the cofactor matrix of F.
func PJPF(F *linalg.Matrix) *linalg.Matrix {
	f0, f1 := F.At(0, 0), F.At(1, 0)
	f2, f3 := F.At(0, 1), F.At(1, 1)
	m, _ := linalg.NewMatrix(2, 2, []float64{
		f3, -f1,
		-f2, f0,
	})
	return m
}
