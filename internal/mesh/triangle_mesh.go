package mesh

import (
	"fmt"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
	"github.com/san-kum/deform/internal/material"
)

// Spring is an undirected edge between two vertices.
type Spring struct {
	A, B       int
	RestLength float64
}

// TriangleMesh owns the rest and current geometry of a 2D body together
// with everything precomputed from the rest state.
type TriangleMesh struct {
	restVertices []linalg.Vector
	vertices     []linalg.Vector
	triangles    [][3]int
	springs      []Spring

	dmInverses   []*linalg.Matrix
	pFpxs        []*linalg.Matrix
	restAreas    []float64
	oneRingAreas []float64

	pinned []bool

	mass float64
	m    linalg.Vector
	minv linalg.Vector

	// generation is bumped on every position write; Gradients remember
	// the generation they were computed at.
	generation uint64
}

// Gradients holds per-triangle deformation gradients computed for one
// set of vertex positions. It can only be obtained from
// ComputeDeformationGradients and goes stale on the next position write.
type Gradients struct {
	mesh       *TriangleMesh
	generation uint64
	fs         []*linalg.Matrix
}

func (g Gradients) Len() int { return len(g.fs) }

func (g Gradients) F(i int) *linalg.Matrix { return g.fs[i] }

// Fresh reports whether the gradients still match the mesh positions.
func (g Gradients) Fresh() bool {
	return g.mesh != nil && g.generation == g.mesh.generation
}

// New precomputes the rest state of geo. Every rest triangle must have
// non-zero area.
func New(geo Geometry, uniformMass float64) (*TriangleMesh, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if uniformMass <= 0 {
		return nil, fmt.Errorf("mesh: mass %g must be positive: %w", uniformMass, dynamo.ErrParameterBounds)
	}

	n := len(geo.Vertices)
	mesh := &TriangleMesh{
		restVertices: make([]linalg.Vector, n),
		vertices:     make([]linalg.Vector, n),
		triangles:    append([][3]int(nil), geo.Triangles...),
		dmInverses:   make([]*linalg.Matrix, len(geo.Triangles)),
		pFpxs:        make([]*linalg.Matrix, len(geo.Triangles)),
		restAreas:    make([]float64, len(geo.Triangles)),
		oneRingAreas: make([]float64, n),
		pinned:       make([]bool, n),
		mass:         uniformMass,
		m:            linalg.One(2 * n).Scale(uniformMass),
		minv:         linalg.One(2 * n).Div(uniformMass),
	}
	for i, v := range geo.Vertices {
		mesh.restVertices[i] = v.Clone()
		mesh.vertices[i] = v.Clone()
	}

	for t, tri := range mesh.triangles {
		v0, v1, v2 := mesh.restVertices[tri[0]], mesh.restVertices[tri[1]], mesh.restVertices[tri[2]]

		DmInv, err := invert2x2(edgeMatrix(v0, v1, v2))
		if err != nil {
			return nil, fmt.Errorf("mesh: rest triangle %d %v: %w", t, tri, err)
		}
		mesh.dmInverses[t] = DmInv
		mesh.pFpxs[t] = FPartialDerivative(DmInv)

		area, err := TriangleArea(Embed3(v0), Embed3(v1), Embed3(v2))
		if err != nil {
			return nil, err
		}
		mesh.restAreas[t] = area
		for _, idx := range tri {
			mesh.oneRingAreas[idx] += area / 3.0
		}
	}

	mesh.buildSprings()
	return mesh, nil
}

// buildSprings collects the unique triangle edges in first-seen order. A
// mesh without triangles is treated as a polyline.
func (m *TriangleMesh) buildSprings() {
	if len(m.triangles) == 0 {
		for i := 0; i+1 < len(m.vertices); i++ {
			m.addSpring(i, i+1)
		}
		return
	}

	seen := make(map[[2]int]bool)
	for _, tri := range m.triangles {
		for k := 0; k < 3; k++ {
			a, b := tri[k], tri[(k+1)%3]
			key := [2]int{min(a, b), max(a, b)}
			if seen[key] {
				continue
			}
			seen[key] = true
			m.addSpring(key[0], key[1])
		}
	}
}

func (m *TriangleMesh) addSpring(a, b int) {
	d, _ := m.restVertices[b].Sub(m.restVertices[a])
	m.springs = append(m.springs, Spring{A: a, B: b, RestLength: d.Norm()})
}

// DOFs is the number of scalar coordinates, two per vertex.
func (m *TriangleMesh) DOFs() int { return 2 * len(m.vertices) }

func (m *TriangleMesh) NumVertices() int  { return len(m.vertices) }
func (m *TriangleMesh) NumTriangles() int { return len(m.triangles) }

func (m *TriangleMesh) RestVertices() []linalg.Vector { return m.restVertices }
func (m *TriangleMesh) Vertices() []linalg.Vector     { return m.vertices }
func (m *TriangleMesh) Triangles() [][3]int           { return m.triangles }
func (m *TriangleMesh) Springs() []Spring             { return m.springs }
func (m *TriangleMesh) RestAreas() []float64          { return m.restAreas }
func (m *TriangleMesh) OneRingAreas() []float64       { return m.oneRingAreas }
func (m *TriangleMesh) DmInverse(t int) *linalg.Matrix {
	return m.dmInverses[t]
}

// Mass is the uniform per-DOF mass.
func (m *TriangleMesh) Mass() float64 { return m.mass }

// M and Minv are the diagonals of the lumped mass matrix and its inverse.
func (m *TriangleMesh) M() linalg.Vector    { return m.m }
func (m *TriangleMesh) Minv() linalg.Vector { return m.minv }

func (m *TriangleMesh) Pinned() []bool { return m.pinned }

// SetPinned replaces the pin flags, one per vertex.
func (m *TriangleMesh) SetPinned(pinned []bool) error {
	if len(pinned) != len(m.vertices) {
		return fmt.Errorf("mesh: %d pin flags for %d vertices: %w", len(pinned), len(m.vertices), dynamo.ErrDimensionMismatch)
	}
	copy(m.pinned, pinned)
	return nil
}

// PinWhere pins every vertex whose rest position satisfies pred and
// returns how many were pinned.
func (m *TriangleMesh) PinWhere(pred func(i int, rest linalg.Vector) bool) int {
	count := 0
	for i, v := range m.restVertices {
		m.pinned[i] = pred(i, v)
		if m.pinned[i] {
			count++
		}
	}
	return count
}

// PinFilter is 0 on the DOFs of pinned vertices and 1 elsewhere.
func (m *TriangleMesh) PinFilter() linalg.Vector {
	filter := linalg.One(m.DOFs())
	for i, p := range m.pinned {
		if p {
			filter[2*i] = 0
			filter[2*i+1] = 0
		}
	}
	return filter
}

// Positions packs the current vertices into one DOF vector.
func (m *TriangleMesh) Positions() linalg.Vector {
	x := make(linalg.Vector, 0, m.DOFs())
	for _, v := range m.vertices {
		x = append(x, v[0], v[1])
	}
	return x
}

// SetPositions unpacks x into the vertices. Any previously computed
// Gradients become stale.
func (m *TriangleMesh) SetPositions(x linalg.Vector) error {
	if len(x) != m.DOFs() {
		return fmt.Errorf("mesh: %d positions for %d DOFs: %w", len(x), m.DOFs(), dynamo.ErrDimensionMismatch)
	}
	for i := range m.vertices {
		m.vertices[i] = linalg.NewVector(x[2*i], x[2*i+1])
	}
	m.generation++
	return nil
}

// FlatIndices returns the triangle index triples as one array.
func (m *TriangleMesh) FlatIndices() []int {
	idx := make([]int, 0, 3*len(m.triangles))
	for _, tri := range m.triangles {
		idx = append(idx, tri[0], tri[1], tri[2])
	}
	return idx
}

// ComputeDeformationGradients computes F = Ds * DmInverse per triangle
// from the current positions.
func (m *TriangleMesh) ComputeDeformationGradients() Gradients {
	fs := make([]*linalg.Matrix, len(m.triangles))
	for t, tri := range m.triangles {
		Ds := edgeMatrix(m.vertices[tri[0]], m.vertices[tri[1]], m.vertices[tri[2]])
		fs[t], _ = Ds.Mul(m.dmInverses[t])
	}
	return Gradients{mesh: m, generation: m.generation, fs: fs}
}

func (m *TriangleMesh) checkFresh(g Gradients) error {
	if g.mesh != m || g.generation != m.generation {
		return fmt.Errorf("mesh: gradients from generation %d, mesh at %d: %w", g.generation, m.generation, dynamo.ErrStaleGradient)
	}
	return nil
}

// ComputeMaterialForces assembles the global force vector for mat. Springs
// act on raw edge positions and ignore g; hyperelastic laws need fresh g.
func (m *TriangleMesh) ComputeMaterialForces(g Gradients, mat material.Material) (linalg.Vector, error) {
	switch mat := mat.(type) {
	case material.MassSpring:
		return m.ComputeSpringForces(mat)
	case material.Hyperelastic:
		if len(m.triangles) == 0 {
			return nil, fmt.Errorf("mesh: %s forces on a mesh without triangles: %w", mat.Name(), dynamo.ErrNotImplemented)
		}
		if err := m.checkFresh(g); err != nil {
			return nil, err
		}
		return m.triangleForces(g, mat)
	default:
		return nil, fmt.Errorf("mesh: forces for %s: %w", mat.Name(), dynamo.ErrNotImplemented)
	}
}

func (m *TriangleMesh) triangleForces(g Gradients, mat material.Hyperelastic) (linalg.Vector, error) {
	R := linalg.Zero(m.DOFs())
	for t, tri := range m.triangles {
		f, err := m.triangleForce(t, g.fs[t], mat)
		if err != nil {
			return nil, err
		}
		for j, idx := range tri {
			R[2*idx] += f[2*j]
			R[2*idx+1] += f[2*j+1]
		}
	}
	return R, nil
}

// triangleForce is -restArea * pFpx^T * vec(P(F)) for triangle t.
func (m *TriangleMesh) triangleForce(t int, F *linalg.Matrix, mat material.Hyperelastic) (linalg.Vector, error) {
	P, err := mat.PK1(F)
	if err != nil {
		return nil, fmt.Errorf("mesh: triangle %d: %w", t, err)
	}
	f, err := m.pFpxs[t].Transpose().MulVec(P.ColwiseFlatten())
	if err != nil {
		return nil, err
	}
	f.ScaleInPlace(-m.restAreas[t])
	return f, nil
}

// ComputeSpringForces applies mat to every spring. A non-positive rest
// length on mat means each spring keeps its own rest length.
func (m *TriangleMesh) ComputeSpringForces(mat material.MassSpring) (linalg.Vector, error) {
	R := linalg.Zero(m.DOFs())
	for s, sp := range m.springs {
		law := m.springLaw(mat, sp)
		a, b := m.vertices[sp.A], m.vertices[sp.B]
		pk1, err := law.PK1(linalg.NewVector(a[0], a[1], b[0], b[1]))
		if err != nil {
			return nil, fmt.Errorf("mesh: spring %d: %w", s, err)
		}
		R[2*sp.A] -= pk1[0]
		R[2*sp.A+1] -= pk1[1]
		R[2*sp.B] -= pk1[2]
		R[2*sp.B+1] -= pk1[3]
	}
	return R, nil
}

func (m *TriangleMesh) springLaw(mat material.MassSpring, sp Spring) material.MassSpring {
	if mat.RestLength <= 0 {
		return mat.WithRestLength(sp.RestLength)
	}
	return mat
}

// ElasticEnergy is the total stored energy: sum of restArea * psi(F) for
// hyperelastic laws, sum of psi over springs for MassSpring.
func (m *TriangleMesh) ElasticEnergy(g Gradients, mat material.Material) (float64, error) {
	total := 0.0
	switch mat := mat.(type) {
	case material.MassSpring:
		for _, sp := range m.springs {
			a, b := m.vertices[sp.A], m.vertices[sp.B]
			psi, err := m.springLaw(mat, sp).Psi(linalg.NewVector(a[0], a[1], b[0], b[1]))
			if err != nil {
				return 0, err
			}
			total += psi
		}
	case material.Hyperelastic:
		if err := m.checkFresh(g); err != nil {
			return 0, err
		}
		for t := range m.triangles {
			psi, err := mat.Psi(g.fs[t])
			if err != nil {
				return 0, err
			}
			total += m.restAreas[t] * psi
		}
	default:
		return 0, fmt.Errorf("mesh: energy for %s: %w", mat.Name(), dynamo.ErrNotImplemented)
	}
	return total, nil
}
