package mesh

import (
	"fmt"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
)

// Geometry is parsed rest geometry: 2D vertex positions and triangles as
// index triples into Vertices.
type Geometry struct {
	Vertices  []linalg.Vector
	Triangles [][3]int
}

// Validate checks that every vertex is 2D and every index is in range.
func (g Geometry) Validate() error {
	if len(g.Vertices) == 0 {
		return fmt.Errorf("geometry: no vertices: %w", dynamo.ErrDimensionMismatch)
	}
	for i, v := range g.Vertices {
		if len(v) != 2 {
			return fmt.Errorf("geometry: vertex %d has %d coordinates: %w", i, len(v), dynamo.ErrDimensionMismatch)
		}
	}
	n := len(g.Vertices)
	for t, tri := range g.Triangles {
		for _, idx := range tri {
			if idx < 0 || idx >= n {
				return fmt.Errorf("geometry: triangle %d index %d outside [0, %d): %w", t, idx, n, dynamo.ErrDimensionMismatch)
			}
		}
	}
	return nil
}

// Embed3 lifts a 2D point into the z=0 plane.
func Embed3(v linalg.Vector) linalg.Vector {
	return linalg.NewVector(v[0], v[1], 0)
}

// TriangleArea is half the magnitude of the cross product of two edges.
// All three points must be 3-vectors.
func TriangleArea(t0, t1, t2 linalg.Vector) (float64, error) {
	a, err := t1.Sub(t0)
	if err != nil {
		return 0, err
	}
	b, err := t2.Sub(t0)
	if err != nil {
		return 0, err
	}
	c, err := a.Cross(b)
	if err != nil {
		return 0, err
	}
	return 0.5 * c.Norm(), nil
}

// edgeMatrix builds [v1-v0 | v2-v0].
func edgeMatrix(v0, v1, v2 linalg.Vector) *linalg.Matrix {
	D := linalg.Zeros(2, 2)
	D.Set(0, 0, v1[0]-v0[0])
	D.Set(1, 0, v1[1]-v0[1])
	D.Set(0, 1, v2[0]-v0[0])
	D.Set(1, 1, v2[1]-v0[1])
	return D
}

// invert2x2 inverts a 2x2 matrix through its adjugate. It fails only when
// the determinant is zero, so rest triangles of any vertex order invert.
func invert2x2(D *linalg.Matrix) (*linalg.Matrix, error) {
	a, b := D.At(0, 0), D.At(0, 1)
	c, d := D.At(1, 0), D.At(1, 1)
	det := a*d - b*c
	if det == 0 {
		return nil, fmt.Errorf("invert: zero determinant: %w", dynamo.ErrSingular)
	}
	inv := linalg.Zeros(2, 2)
	inv.Set(0, 0, d/det)
	inv.Set(0, 1, -b/det)
	inv.Set(1, 0, -c/det)
	inv.Set(1, 1, a/det)
	return inv, nil
}

// dDsdx returns dDs/dx_k for the k-th triangle DOF, ordered
// v0x, v0y, v1x, v1y, v2x, v2y.
func dDsdx(k int) *linalg.Matrix {
	D := linalg.Zeros(2, 2)
	switch k {
	case 0:
		D.Set(0, 0, -1)
		D.Set(0, 1, -1)
	case 1:
		D.Set(1, 0, -1)
		D.Set(1, 1, -1)
	case 2:
		D.Set(0, 0, 1)
	case 3:
		D.Set(1, 0, 1)
	case 4:
		D.Set(0, 1, 1)
	case 5:
		D.Set(1, 1, 1)
	}
	return D
}

// FPartialDerivative is the 4x6 operator mapping triangle DOFs to the
// column-wise flattened deformation gradient.
func FPartialDerivative(DmInv *linalg.Matrix) *linalg.Matrix {
	pFpx := linalg.Zeros(4, 6)
	for k := 0; k < 6; k++ {
		col, _ := dDsdx(k).Mul(DmInv)
		_ = pFpx.SetCol(k, col.ColwiseFlatten())
	}
	return pFpx
}
