package linalg

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/san-kum/deform/internal/dynamo"
)

// Matrix is a dense row-major matrix.
type Matrix struct {
	rows, cols int
	data       []float64
}

// NewMatrix wraps data (row-major, copied) as a rows x cols matrix.
func NewMatrix(rows, cols int, data []float64) (*Matrix, error) {
	if rows <= 0 || cols <= 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("new matrix: %dx%d with %d entries: %w", rows, cols, len(data), dynamo.ErrDimensionMismatch)
	}
	m := Zeros(rows, cols)
	copy(m.data, data)
	return m, nil
}

func Zeros(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

func Ones(rows, cols int) *Matrix {
	m := Zeros(rows, cols)
	for i := range m.data {
		m.data[i] = 1
	}
	return m
}

func Identity(n int) *Matrix {
	m := Zeros(n, n)
	for i := 0; i < n; i++ {
		m.data[i*n+i] = 1
	}
	return m
}

func RandomMatrix(rows, cols int, rng *rand.Rand) *Matrix {
	m := Zeros(rows, cols)
	for i := range m.data {
		m.data[i] = rng.Float64()
	}
	return m
}

// Diagonal builds a square matrix with d on its diagonal.
func Diagonal(d Vector) *Matrix {
	n := len(d)
	m := Zeros(n, n)
	for i, x := range d {
		m.data[i*n+i] = x
	}
	return m
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) Shape() (int, int) { return m.rows, m.cols }

func (m *Matrix) At(i, j int) float64 { return m.data[i*m.cols+j] }

func (m *Matrix) Set(i, j int, value float64) { m.data[i*m.cols+j] = value }

func (m *Matrix) Row(i int) Vector {
	return NewVector(m.data[i*m.cols : (i+1)*m.cols]...)
}

func (m *Matrix) Col(j int) Vector {
	v := make(Vector, m.rows)
	for i := 0; i < m.rows; i++ {
		v[i] = m.data[i*m.cols+j]
	}
	return v
}

func (m *Matrix) SetRow(i int, v Vector) error {
	if len(v) != m.cols {
		return fmt.Errorf("set row: %d entries for %d columns: %w", len(v), m.cols, dynamo.ErrDimensionMismatch)
	}
	copy(m.data[i*m.cols:(i+1)*m.cols], v)
	return nil
}

func (m *Matrix) SetCol(j int, v Vector) error {
	if len(v) != m.rows {
		return fmt.Errorf("set col: %d entries for %d rows: %w", len(v), m.rows, dynamo.ErrDimensionMismatch)
	}
	for i := 0; i < m.rows; i++ {
		m.data[i*m.cols+j] = v[i]
	}
	return nil
}

func (m *Matrix) Clone() *Matrix {
	c := Zeros(m.rows, m.cols)
	copy(c.data, m.data)
	return c
}

// Values exposes the row-major backing slice.
func (m *Matrix) Values() []float64 { return m.data }

func (m *Matrix) sameShape(op string, other *Matrix) error {
	if m.rows != other.rows || m.cols != other.cols {
		return fmt.Errorf("%s: %dx%d and %dx%d: %w", op, m.rows, m.cols, other.rows, other.cols, dynamo.ErrDimensionMismatch)
	}
	return nil
}

func (m *Matrix) Add(other *Matrix) (*Matrix, error) {
	if err := m.sameShape("matrix add", other); err != nil {
		return nil, err
	}
	result := m.Clone()
	for i := range result.data {
		result.data[i] += other.data[i]
	}
	return result, nil
}

func (m *Matrix) AddInPlace(other *Matrix) error {
	if err := m.sameShape("matrix add", other); err != nil {
		return err
	}
	for i := range m.data {
		m.data[i] += other.data[i]
	}
	return nil
}

func (m *Matrix) Sub(other *Matrix) (*Matrix, error) {
	if err := m.sameShape("matrix sub", other); err != nil {
		return nil, err
	}
	result := m.Clone()
	for i := range result.data {
		result.data[i] -= other.data[i]
	}
	return result, nil
}

func (m *Matrix) SubInPlace(other *Matrix) error {
	if err := m.sameShape("matrix sub", other); err != nil {
		return err
	}
	for i := range m.data {
		m.data[i] -= other.data[i]
	}
	return nil
}

func (m *Matrix) Scale(factor float64) *Matrix {
	result := m.Clone()
	for i := range result.data {
		result.data[i] *= factor
	}
	return result
}

// MulVec computes m·v as row·v dot products.
func (m *Matrix) MulVec(v Vector) (Vector, error) {
	if m.cols != len(v) {
		return nil, fmt.Errorf("matrix mul vec: %dx%d and %d: %w", m.rows, m.cols, len(v), dynamo.ErrDimensionMismatch)
	}
	result := make(Vector, m.rows)
	for i := 0; i < m.rows; i++ {
		result[i] = dot(m.data[i*m.cols:(i+1)*m.cols], v)
	}
	return result, nil
}

// Mul computes m·other as row·column dot products.
func (m *Matrix) Mul(other *Matrix) (*Matrix, error) {
	if m.cols != other.rows {
		return nil, fmt.Errorf("matrix mul: %dx%d and %dx%d: %w", m.rows, m.cols, other.rows, other.cols, dynamo.ErrDimensionMismatch)
	}
	result := Zeros(m.rows, other.cols)
	for j := 0; j < other.cols; j++ {
		col := other.Col(j)
		for i := 0; i < m.rows; i++ {
			result.data[i*other.cols+j] = dot(m.data[i*m.cols:(i+1)*m.cols], col)
		}
	}
	return result, nil
}

func (m *Matrix) Transpose() *Matrix {
	t := Zeros(m.cols, m.rows)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			t.data[j*m.rows+i] = m.data[i*m.cols+j]
		}
	}
	return t
}

func (m *Matrix) Trace() (float64, error) {
	if m.rows != m.cols {
		return 0, fmt.Errorf("trace of %dx%d: %w", m.rows, m.cols, dynamo.ErrDimensionMismatch)
	}
	sum := 0.0
	for i := 0; i < m.rows; i++ {
		sum += m.data[i*m.cols+i]
	}
	return sum, nil
}

func (m *Matrix) SquaredNorm() float64 { return dot(m.data, m.data) }

// Norm is the Frobenius norm.
func (m *Matrix) Norm() float64 { return Vector(m.data).Norm() }

// ColwiseFlatten stacks the columns into one vector.
func (m *Matrix) ColwiseFlatten() Vector {
	v := make(Vector, 0, len(m.data))
	for j := 0; j < m.cols; j++ {
		for i := 0; i < m.rows; i++ {
			v = append(v, m.data[i*m.cols+j])
		}
	}
	return v
}

// Unflatten is the inverse of ColwiseFlatten.
func Unflatten(v Vector, rows, cols int) (*Matrix, error) {
	if len(v) != rows*cols {
		return nil, fmt.Errorf("unflatten: %d entries into %dx%d: %w", len(v), rows, cols, dynamo.ErrDimensionMismatch)
	}
	m := Zeros(rows, cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			m.data[i*cols+j] = v[j*rows+i]
		}
	}
	return m, nil
}

// Det is only supported for 2x2 matrices.
func (m *Matrix) Det() (float64, error) {
	if m.rows != m.cols {
		return 0, fmt.Errorf("determinant of %dx%d: %w", m.rows, m.cols, dynamo.ErrDimensionMismatch)
	}
	if m.rows != 2 {
		return 0, fmt.Errorf("determinant of %dx%d: %w", m.rows, m.cols, dynamo.ErrNotImplemented)
	}
	return m.data[0]*m.data[3] - m.data[1]*m.data[2], nil
}

// Inv inverts a square matrix with Gauss-Jordan elimination and no
// pivoting. A zero on the diagonal during elimination is reported as
// ErrSingular even when a row swap would have succeeded.
func (m *Matrix) Inv() (*Matrix, error) {
	if m.rows != m.cols {
		return nil, fmt.Errorf("invert %dx%d: %w", m.rows, m.cols, dynamo.ErrDimensionMismatch)
	}
	n := m.rows
	a := m.Clone()
	inv := Identity(n)

	for i := 0; i < n; i++ {
		pivot := a.data[i*n+i]
		if pivot == 0 {
			return nil, fmt.Errorf("invert: zero pivot at row %d: %w", i, dynamo.ErrSingular)
		}

		for j := 0; j < n; j++ {
			a.data[i*n+j] /= pivot
			inv.data[i*n+j] /= pivot
		}

		for r := 0; r < n; r++ {
			if r == i {
				continue
			}
			factor := a.data[r*n+i]
			for k := 0; k < n; k++ {
				a.data[r*n+k] -= factor * a.data[i*n+k]
				inv.data[r*n+k] -= factor * inv.data[i*n+k]
			}
		}
	}

	return inv, nil
}

func (m *Matrix) String() string {
	var sb strings.Builder
	for i := 0; i < m.rows; i++ {
		sb.WriteString(fmt.Sprint(m.Row(i)))
		sb.WriteByte('\n')
	}
	return sb.String()
}
