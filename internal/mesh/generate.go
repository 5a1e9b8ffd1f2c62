package mesh

import (
	"fmt"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
)

// Grid builds a width x height rectangle centered on the origin, split into
// nx by ny cells of two counter-clockwise triangles each.
func Grid(nx, ny int, width, height float64) (Geometry, error) {
	if nx < 1 || ny < 1 || width <= 0 || height <= 0 {
		return Geometry{}, fmt.Errorf("grid %dx%d (%gx%g): %w", nx, ny, width, height, dynamo.ErrParameterBounds)
	}

	var geo Geometry
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			x := -width/2 + width*float64(i)/float64(nx)
			y := -height/2 + height*float64(j)/float64(ny)
			geo.Vertices = append(geo.Vertices, linalg.NewVector(x, y))
		}
	}

	at := func(i, j int) int { return j*(nx+1) + i }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			geo.Triangles = append(geo.Triangles,
				[3]int{at(i, j), at(i+1, j), at(i+1, j+1)},
				[3]int{at(i, j), at(i+1, j+1), at(i, j+1)},
			)
		}
	}
	return geo, nil
}

// Strip builds a horizontal polyline of n vertices spanning length,
// starting at the origin. It has no triangles.
func Strip(n int, length float64) (Geometry, error) {
	if n < 2 || length <= 0 {
		return Geometry{}, fmt.Errorf("strip of %d vertices over %g: %w", n, length, dynamo.ErrParameterBounds)
	}
	var geo Geometry
	for i := 0; i < n; i++ {
		geo.Vertices = append(geo.Vertices, linalg.NewVector(length*float64(i)/float64(n-1), 0))
	}
	return geo, nil
}
