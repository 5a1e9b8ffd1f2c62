package material

import (
	"fmt"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
)

// Material is the closed set of constitutive laws: MassSpring, STVK and
// SNH. The unexported method keeps other packages from adding to it.
type Material interface {
	Name() string
	material()
}

// Hyperelastic laws are functions of the 2x2 deformation gradient F.
type Hyperelastic interface {
	Material
	// Psi is the strain energy density.
	Psi(F *linalg.Matrix) (float64, error)
	// PK1 is the first Piola-Kirchhoff stress, dPsi/dF.
	PK1(F *linalg.Matrix) (*linalg.Matrix, error)
	// Hessian is declared for implicit integration and is not implemented.
	Hessian(F *linalg.Matrix) (*linalg.Matrix, error)
}

// Lame holds the Lamé parameters.
type Lame struct {
	Lambda float64
	Mu     float64
}

func ComputeMu(youngs, poisson float64) float64 {
	return youngs / (2.0 * (1.0 + poisson))
}

// ComputeLambda diverges as poisson approaches 0.5.
func ComputeLambda(youngs, poisson float64) float64 {
	return (youngs * poisson) / ((1.0 + poisson) * (1.0 - 2.0*poisson))
}

// NewLame converts Young's modulus and Poisson's ratio.
func NewLame(youngs, poisson float64) (Lame, error) {
	if youngs <= 0 {
		return Lame{}, fmt.Errorf("youngs modulus %g must be positive: %w", youngs, dynamo.ErrParameterBounds)
	}
	if poisson <= -1 || poisson >= 0.5 {
		return Lame{}, fmt.Errorf("poisson ratio %g outside (-1, 0.5): %w", poisson, dynamo.ErrParameterBounds)
	}
	return Lame{Lambda: ComputeLambda(youngs, poisson), Mu: ComputeMu(youngs, poisson)}, nil
}

func check2x2(op string, F *linalg.Matrix) error {
	if r, c := F.Shape(); r != 2 || c != 2 {
		return fmt.Errorf("%s: F is %dx%d, want 2x2: %w", op, r, c, dynamo.ErrDimensionMismatch)
	}
	return nil
}
