package linalg

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestVectorAddSubRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 1; n <= 12; n++ {
		a := Random(n, rng)
		b := Random(n, rng)

		sum, err := a.Add(b)
		require.NoError(t, err)
		back, err := sum.Sub(b)
		require.NoError(t, err)
		assert.InDeltaSlicef(t, a, back, 1e-12, "n=%d", n)

		c := a.Clone()
		require.NoError(t, c.AddInPlace(b))
		require.NoError(t, c.SubInPlace(b))
		assert.InDeltaSlicef(t, a, c, 1e-12, "in place n=%d", n)
	}
}

func TestVectorDimensionMismatch(t *testing.T) {
	a := Zero(3)
	b := Zero(4)

	_, err := a.Add(b)
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	_, err = a.Sub(b)
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	_, err = a.Dot(b)
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	_, err = a.MulElem(b)
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	assert.ErrorIs(t, a.AddInPlace(b), dynamo.ErrDimensionMismatch)
	assert.ErrorIs(t, a.Scatter([]int{0, 1}, []float64{1}), dynamo.ErrDimensionMismatch)

	_, err = NewVector(1, 2).Cross(NewVector(3, 4))
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	_, err = NewVector(1, 2, 3).Cross(NewVector(3, 4))
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}

func TestVectorProducts(t *testing.T) {
	x := NewVector(1, 0, 0)
	y := NewVector(0, 1, 0)

	z, err := x.Cross(y)
	require.NoError(t, err)
	assert.Equal(t, Vector{0, 0, 1}, z)

	d, err := NewVector(1, 2, 3).Dot(NewVector(4, 5, 6))
	require.NoError(t, err)
	assert.Equal(t, 32.0, d)

	assert.InDelta(t, 5.0, NewVector(3, 4).Norm(), 1e-15)
	assert.InDelta(t, 1.0, NewVector(3, 4).Normalized().Norm(), 1e-15)
	assert.False(t, Zero(2).Normalized().IsFinite())
}

func TestVectorIndexing(t *testing.T) {
	v := NewVector(0, 1, 2, 3, 4, 5)

	assert.Equal(t, Vector{2, 3}, v.Slice(2, 4))
	g, err := v.Gather([]int{5, 0})
	require.NoError(t, err)
	assert.Equal(t, Vector{5, 0}, g)

	_, err = v.Gather([]int{6})
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	_, err = v.Gather([]int{-1})
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)

	require.NoError(t, v.Scatter([]int{0, 1}, []float64{9, 8}))
	assert.Equal(t, 9.0, v.At(0))
	assert.Equal(t, 8.0, v.At(1))

	assert.ErrorIs(t, v.Scatter([]int{1, 6}, []float64{7, 7}), dynamo.ErrDimensionMismatch)
	assert.Equal(t, 8.0, v.At(1), "failed scatter must not write")

	s := v.Slice(0, 2)
	s.Set(0, -1)
	assert.Equal(t, 9.0, v.At(0), "slice must copy")
}

func TestMatrixAddSubRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for r := 1; r <= 5; r++ {
		for c := 1; c <= 5; c++ {
			a := RandomMatrix(r, c, rng)
			b := RandomMatrix(r, c, rng)

			sum, err := a.Add(b)
			require.NoError(t, err)
			back, err := sum.Sub(b)
			require.NoError(t, err)
			assert.InDeltaSlicef(t, a.Values(), back.Values(), 1e-12, "%dx%d", r, c)
		}
	}

	_, err := Zeros(2, 3).Add(Zeros(3, 2))
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}

func TestMatrixMultiply(t *testing.T) {
	a, err := NewMatrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	b, err := NewMatrix(3, 2, []float64{7, 8, 9, 10, 11, 12})
	require.NoError(t, err)

	c, err := a.Mul(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{58, 64, 139, 154}, c.Values())

	v, err := a.MulVec(NewVector(1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, Vector{6, 15}, v)

	_, err = a.Mul(a)
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	_, err = a.MulVec(NewVector(1, 1))
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
	_, err = NewMatrix(2, 2, []float64{1, 2, 3})
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}

func TestMatrixShapeOps(t *testing.T) {
	a, err := NewMatrix(2, 2, []float64{1, 2, 3, 4})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 3, 2, 4}, a.Transpose().Values())
	assert.Equal(t, Vector{1, 3, 2, 4}, a.ColwiseFlatten())
	assert.Equal(t, Vector{3, 4}, a.Row(1))
	assert.Equal(t, Vector{2, 4}, a.Col(1))

	back, err := Unflatten(a.ColwiseFlatten(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, a.Values(), back.Values())

	tr, err := a.Trace()
	require.NoError(t, err)
	assert.Equal(t, 5.0, tr)

	det, err := a.Det()
	require.NoError(t, err)
	assert.Equal(t, -2.0, det)

	_, err = Identity(3).Det()
	assert.ErrorIs(t, err, dynamo.ErrNotImplemented)
	_, err = Zeros(2, 3).Trace()
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)

	assert.InDelta(t, math.Sqrt(30), a.Norm(), 1e-15)
}

func TestMatrixInverseKnown(t *testing.T) {
	a, err := NewMatrix(3, 3, []float64{7, 8, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)

	inv, err := a.Inv()
	require.NoError(t, err)

	expected := []float64{
		-1.0 / 6, -8.0 / 3, 11.0 / 6,
		1.0 / 3, 7.0 / 3, -5.0 / 3,
		-1.0 / 6, 0, 1.0 / 6,
	}
	assert.InDeltaSlice(t, expected, inv.Values(), 1e-6)

	id, err := inv.Mul(a)
	require.NoError(t, err)
	assert.InDeltaSlice(t, Identity(3).Values(), id.Values(), 1e-6)
}

func TestMatrixInverseAgainstGonum(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for n := 1; n <= 6; n++ {
		a := RandomMatrix(n, n, rng)
		// keep it diagonally dominant so the non-pivoting path is well posed
		for i := 0; i < n; i++ {
			a.Set(i, i, a.At(i, i)+float64(n))
		}

		inv, err := a.Inv()
		require.NoError(t, err)

		var ref mat.Dense
		require.NoError(t, ref.Inverse(mat.NewDense(n, n, a.Values())))
		assert.InDeltaSlicef(t, ref.RawMatrix().Data, inv.Values(), 1e-9, "n=%d", n)
	}
}

func TestMatrixInverseSingular(t *testing.T) {
	a, err := NewMatrix(2, 2, []float64{0, 1, 1, 0})
	require.NoError(t, err)

	// invertible, but the first pivot is zero and there is no row swap
	_, err = a.Inv()
	assert.True(t, errors.Is(err, dynamo.ErrSingular))

	_, err = Zeros(2, 3).Inv()
	assert.ErrorIs(t, err, dynamo.ErrDimensionMismatch)
}

func TestDiagonal(t *testing.T) {
	d := Diagonal(NewVector(1, 0, 2))
	v, err := d.MulVec(NewVector(3, 3, 3))
	require.NoError(t, err)
	assert.Equal(t, Vector{3, 0, 6}, v)
}
