package material_test

import (
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
	"github.com/san-kum/deform/internal/material"
)

// randomSpringState draws [p0; p1] in the unit square, rejecting springs
// too short for the gradient to be well conditioned.
func randomSpringState(rng *rand.Rand) linalg.Vector {
	for {
		x := linalg.Random(4, rng)
		d, _ := x.Slice(2, 4).Sub(x.Slice(0, 2))
		if d.Norm() > 0.2 {
			return x
		}
	}
}

func randomF(rng *rand.Rand) linalg.Vector {
	x := linalg.Zero(4)
	for i := range x {
		x[i] = 2*rng.Float64() - 1
	}
	return x
}

var _ = Describe("Lame parameters", func() {
	It("converts Young's modulus and Poisson's ratio", func() {
		Expect(material.ComputeMu(5, 0.25)).To(BeNumerically("~", 2.0, 1e-12))
		Expect(material.ComputeLambda(5, 0.25)).To(BeNumerically("~", 2.0, 1e-12))
	})

	It("rejects incompressible and out of range ratios", func() {
		_, err := material.NewLame(5, 0.5)
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		_, err = material.NewLame(-1, 0.3)
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))

		l, err := material.NewLame(5, 0.45)
		Expect(err).NotTo(HaveOccurred())
		Expect(l.Mu).To(BeNumerically("~", 5/2.9, 1e-12))
	})
})

var _ = Describe("MassSpring", func() {
	spring := material.NewMassSpring(1, 1)

	It("has zero energy and force at rest length", func() {
		x := linalg.NewVector(0, 0, 1, 0)
		psi, err := spring.Psi(x)
		Expect(err).NotTo(HaveOccurred())
		Expect(psi).To(BeZero())

		f, err := spring.PK1(x)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Norm()).To(BeZero())
	})

	It("pulls the endpoints together when stretched", func() {
		f, err := spring.PK1(linalg.NewVector(0, 0, 2, 0))
		Expect(err).NotTo(HaveOccurred())
		Expect([]float64(f)).To(Equal([]float64{-1, 0, 1, 0}))
	})

	It("requires a 4-vector", func() {
		_, err := spring.Psi(linalg.Zero(3))
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		_, err = spring.PK1(linalg.Zero(6))
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("does not implement a hessian", func() {
		_, err := spring.Hessian(linalg.Zero(4))
		Expect(err).To(MatchError(dynamo.ErrNotImplemented))
	})
})

var _ = Describe("hyperelastic laws", func() {
	DescribeTable("are stress free at the identity",
		func(m material.Hyperelastic) {
			P, err := m.PK1(linalg.Identity(2))
			Expect(err).NotTo(HaveOccurred())
			Expect(P.Norm()).To(BeNumerically("<", 1e-14))
		},
		Entry("STVK", material.NewSTVK(1, 1)),
		Entry("SNH", material.NewSNH(1, 1)),
		Entry("SNH stiff", material.NewSNH(40, 3)),
	)

	DescribeTable("reject non 2x2 gradients",
		func(m material.Hyperelastic) {
			_, err := m.Psi(linalg.Identity(3))
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
			_, err = m.PK1(linalg.Zeros(2, 3))
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
			_, err = m.Hessian(linalg.Identity(2))
			Expect(err).To(MatchError(dynamo.ErrNotImplemented))
		},
		Entry("STVK", material.NewSTVK(1, 1)),
		Entry("SNH", material.NewSNH(1, 1)),
	)

	It("rejects SNH without a lambda", func() {
		lame, err := material.NewLame(5, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(lame.Lambda).To(BeZero())

		snh := material.SNH{Lame: lame}
		_, err = snh.Psi(linalg.Identity(2))
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
		_, err = snh.PK1(linalg.Identity(2))
		Expect(err).To(MatchError(dynamo.ErrParameterBounds))
	})

	It("computes the STVK energy of a uniform stretch", func() {
		F, _ := linalg.NewMatrix(2, 2, []float64{2, 0, 0, 1})
		// E = diag(1.5, 0): mu*2.25 + lambda/2*2.25
		psi, err := material.NewSTVK(1, 1).Psi(F)
		Expect(err).NotTo(HaveOccurred())
		Expect(psi).To(BeNumerically("~", 3.375, 1e-12))
	})

	It("uses the cofactor matrix for dJ/dF", func() {
		F, _ := linalg.NewMatrix(2, 2, []float64{1, 2, 3, 4})
		Expect(material.PJPF(F).Values()).To(Equal([]float64{4, -3, -2, 1}))
	})
})

var _ = Describe("finite difference gradient check", func() {
	It("walks five step sizes from 1e-4 down to 1e-8", func() {
		rng := rand.New(rand.NewSource(7))
		report, err := material.CheckMaterial(material.NewSTVK(1, 1), randomF(rng))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Steps).To(HaveLen(5))
		Expect(report.Steps[0]).To(BeNumerically("~", 1e-4, 1e-18))
		Expect(report.Steps[4]).To(BeNumerically("~", 1e-8, 1e-20))
	})

	It("fails a gradient that does not match the energy", func() {
		psi := func(x linalg.Vector) (float64, error) { return x.SquaredNorm(), nil }
		wrong := func(x linalg.Vector) (linalg.Vector, error) { return x.Clone(), nil }
		report, err := material.CheckGradient(psi, wrong, linalg.NewVector(1, 2))
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Passed).To(BeFalse())
		Expect(report.MinError).To(BeNumerically(">", 1))
	})

	DescribeTable("holds for every material at random states",
		func(m material.Material, draw func(*rand.Rand) linalg.Vector) {
			for seed := int64(1); seed <= 50; seed++ {
				rng := rand.New(rand.NewSource(seed))
				x := draw(rng)
				report, err := material.CheckMaterial(m, x)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.Passed).To(BeTrue(), "seed %d x=%v: %s", seed, x, report)
				Expect(math.IsNaN(report.MinError)).To(BeFalse())
			}
		},
		Entry("MassSpring(k=1, d=1)", material.NewMassSpring(1, 1), randomSpringState),
		Entry("STVK(lambda=1, mu=1)", material.NewSTVK(1, 1), randomF),
		Entry("SNH(lambda=1, mu=1)", material.NewSNH(1, 1), randomF),
	)
})
