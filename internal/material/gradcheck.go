package material

import (
	"fmt"
	"math"

	"github.com/san-kum/deform/internal/linalg"
)

const (
	fdInitialStep = 1e-4
	fdStepFactor  = 0.1
	fdRefinements = 5
	fdTolerance   = 1e-6
)

// GradientReport is the outcome of a finite-difference gradient check.
type GradientReport struct {
	Passed   bool
	MinError float64
	// Errors holds ||analytic - finite difference|| per step size.
	Errors []float64
	Steps  []float64
}

func (r GradientReport) String() string {
	status := "failed"
	if r.Passed {
		status = "passed"
	}
	return fmt.Sprintf("gradient check %s (min error %.3e over %d step sizes)", status, r.MinError, len(r.Steps))
}

// CheckGradient compares grad(x) against forward differences of psi,
// using step sizes 1e-4, 1e-5, ..., 1e-8. It passes when the smallest
// error seen falls below 1e-6.
func CheckGradient(psi func(linalg.Vector) (float64, error), grad func(linalg.Vector) (linalg.Vector, error), x linalg.Vector) (GradientReport, error) {
	psi0, err := psi(x)
	if err != nil {
		return GradientReport{}, err
	}
	analytic, err := grad(x)
	if err != nil {
		return GradientReport{}, err
	}

	report := GradientReport{MinError: math.MaxFloat64}
	eps := fdInitialStep
	for k := 0; k < fdRefinements; k++ {
		fd := linalg.Zero(len(x))
		for i := range x {
			xp := x.Clone()
			xp[i] += eps
			psiP, err := psi(xp)
			if err != nil {
				return GradientReport{}, err
			}
			fd[i] = (psiP - psi0) / eps
		}

		diff, err := analytic.Sub(fd)
		if err != nil {
			return GradientReport{}, err
		}
		e := diff.Norm()
		report.Errors = append(report.Errors, e)
		report.Steps = append(report.Steps, eps)
		report.MinError = math.Min(report.MinError, e)

		eps *= fdStepFactor
	}

	report.Passed = report.MinError < fdTolerance
	return report, nil
}

// CheckMaterial runs CheckGradient on a material's Psi/PK1 pair. Springs
// take a stacked 4-vector; hyperelastic laws take F flattened column-wise.
func CheckMaterial(m Material, x linalg.Vector) (GradientReport, error) {
	switch m := m.(type) {
	case MassSpring:
		return CheckGradient(m.Psi, m.PK1, x)
	case Hyperelastic:
		psi := func(v linalg.Vector) (float64, error) {
			F, err := linalg.Unflatten(v, 2, 2)
			if err != nil {
				return 0, err
			}
			return m.Psi(F)
		}
		grad := func(v linalg.Vector) (linalg.Vector, error) {
			F, err := linalg.Unflatten(v, 2, 2)
			if err != nil {
				return nil, err
			}
			P, err := m.PK1(F)
			if err != nil {
				return nil, err
			}
			return P.ColwiseFlatten(), nil
		}
		return CheckGradient(psi, grad, x)
	default:
		return GradientReport{}, fmt.Errorf("gradient check: unsupported material %s", m.Name())
	}
}
