package linalg

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/san-kum/deform/internal/dynamo"
)

// Vector is a dense column vector. Most methods return a fresh Vector;
// the *InPlace variants mutate the receiver.
type Vector []float64

func NewVector(values ...float64) Vector {
	v := make(Vector, len(values))
	copy(v, values)
	return v
}

func Zero(n int) Vector {
	return make(Vector, n)
}

func One(n int) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

// Random fills a vector with uniform samples from [0, 1).
func Random(n int, rng *rand.Rand) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = rng.Float64()
	}
	return v
}

func (v Vector) Len() int { return len(v) }

func (v Vector) Clone() Vector {
	c := make(Vector, len(v))
	copy(c, v)
	return c
}

func (v Vector) At(i int) float64 { return v[i] }

func (v Vector) Set(i int, value float64) { v[i] = value }

func (v Vector) checkLen(op string, other Vector) error {
	if len(v) != len(other) {
		return fmt.Errorf("%s: lengths %d and %d: %w", op, len(v), len(other), dynamo.ErrDimensionMismatch)
	}
	return nil
}

func (v Vector) Add(other Vector) (Vector, error) {
	if err := v.checkLen("vector add", other); err != nil {
		return nil, err
	}
	result := make(Vector, len(v))
	for i := range v {
		result[i] = v[i] + other[i]
	}
	return result, nil
}

func (v Vector) AddInPlace(other Vector) error {
	if err := v.checkLen("vector add", other); err != nil {
		return err
	}
	for i := range v {
		v[i] += other[i]
	}
	return nil
}

func (v Vector) Sub(other Vector) (Vector, error) {
	if err := v.checkLen("vector sub", other); err != nil {
		return nil, err
	}
	result := make(Vector, len(v))
	for i := range v {
		result[i] = v[i] - other[i]
	}
	return result, nil
}

func (v Vector) SubInPlace(other Vector) error {
	if err := v.checkLen("vector sub", other); err != nil {
		return err
	}
	for i := range v {
		v[i] -= other[i]
	}
	return nil
}

// MulElem is the element-wise (Hadamard) product.
func (v Vector) MulElem(other Vector) (Vector, error) {
	if err := v.checkLen("vector mul", other); err != nil {
		return nil, err
	}
	result := make(Vector, len(v))
	for i := range v {
		result[i] = v[i] * other[i]
	}
	return result, nil
}

func (v Vector) Scale(factor float64) Vector {
	result := make(Vector, len(v))
	for i := range v {
		result[i] = v[i] * factor
	}
	return result
}

func (v Vector) ScaleInPlace(factor float64) {
	for i := range v {
		v[i] *= factor
	}
}

func (v Vector) Div(divisor float64) Vector {
	result := make(Vector, len(v))
	for i := range v {
		result[i] = v[i] / divisor
	}
	return result
}

func (v Vector) DivInPlace(divisor float64) {
	for i := range v {
		v[i] /= divisor
	}
}

func (v Vector) Dot(other Vector) (float64, error) {
	if err := v.checkLen("vector dot", other); err != nil {
		return 0, err
	}
	return dot(v, other), nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Cross is only defined for two 3-vectors.
func (v Vector) Cross(other Vector) (Vector, error) {
	if len(v) != 3 || len(other) != 3 {
		return nil, fmt.Errorf("vector cross: lengths %d and %d, want 3: %w", len(v), len(other), dynamo.ErrDimensionMismatch)
	}
	return Vector{
		v[1]*other[2] - v[2]*other[1],
		v[2]*other[0] - v[0]*other[2],
		v[0]*other[1] - v[1]*other[0],
	}, nil
}

func (v Vector) SquaredNorm() float64 { return dot(v, v) }

func (v Vector) Norm() float64 { return math.Sqrt(dot(v, v)) }

// Normalized divides by the norm. A zero vector yields NaN entries.
func (v Vector) Normalized() Vector { return v.Div(v.Norm()) }

func (v Vector) Normalize() { v.DivInPlace(v.Norm()) }

// Slice copies the half-open range [a, b).
func (v Vector) Slice(a, b int) Vector {
	return NewVector(v[a:b]...)
}

// Gather returns the entries at the given indices.
func (v Vector) Gather(idx []int) (Vector, error) {
	result := make(Vector, len(idx))
	for i, j := range idx {
		if j < 0 || j >= len(v) {
			return nil, fmt.Errorf("vector gather: index %d outside [0, %d): %w", j, len(v), dynamo.ErrDimensionMismatch)
		}
		result[i] = v[j]
	}
	return result, nil
}

// Scatter writes values[k] to index idx[k].
func (v Vector) Scatter(idx []int, values []float64) error {
	if len(idx) != len(values) {
		return fmt.Errorf("vector scatter: %d indices for %d values: %w", len(idx), len(values), dynamo.ErrDimensionMismatch)
	}
	for _, j := range idx {
		if j < 0 || j >= len(v) {
			return fmt.Errorf("vector scatter: index %d outside [0, %d): %w", j, len(v), dynamo.ErrDimensionMismatch)
		}
	}
	for k, j := range idx {
		v[j] = values[k]
	}
	return nil
}

// Equal reports exact element-wise equality.
func (v Vector) Equal(other Vector) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

func (v Vector) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
