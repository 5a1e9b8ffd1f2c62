package material

import (
	"fmt"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
)

// STVK is the St. Venant-Kirchhoff model.
type STVK struct {
	Lame
}

func NewSTVK(lambda, mu float64) STVK {
	return STVK{Lame{Lambda: lambda, Mu: mu}}
}

func (STVK) Name() string { return "STVK" }
func (STVK) material()    {}

// greenStrain computes E = 1/2 (F^T F - I).
func greenStrain(F *linalg.Matrix) *linalg.Matrix {
	FtF, _ := F.Transpose().Mul(F)
	E, _ := FtF.Sub(linalg.Identity(2))
	return E.Scale(0.5)
}

func (m STVK) Psi(F *linalg.Matrix) (float64, error) {
	if err := check2x2("stvk psi", F); err != nil {
		return 0, err
	}
	E := greenStrain(F)
	tr, _ := E.Trace()
	return m.Mu*E.SquaredNorm() + 0.5*m.Lambda*tr*tr, nil
}

func (m STVK) PK1(F *linalg.Matrix) (*linalg.Matrix, error) {
	if err := check2x2("stvk pk1", F); err != nil {
		return nil, err
	}
	return F.Mul(m.pk2(F))
}

// pk2 is the second Piola-Kirchhoff stress S = lambda tr(E) I + 2 mu E.
func (m STVK) pk2(F *linalg.Matrix) *linalg.Matrix {
	E := greenStrain(F)
	tr, _ := E.Trace()
	S, _ := linalg.Identity(2).Scale(m.Lambda * tr).Add(E.Scale(2 * m.Mu))
	return S
}

func (m STVK) Hessian(F *linalg.Matrix) (*linalg.Matrix, error) {
	return nil, fmt.Errorf("stvk hessian: %w", dynamo.ErrNotImplemented)
}
