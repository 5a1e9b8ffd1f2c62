package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/deform/internal/dynamo"
)

type Point struct{ X, Y float64 }

// bounds is a padded bounding box mapped onto a width x height canvas with
// y pointing up.
type bounds struct {
	minX, minY, rangeX, rangeY float64
	width, height              int
}

func newBounds(points []Point, width, height int) bounds {
	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	return bounds{minX: minX, minY: minY, rangeX: rangeX * 1.2, rangeY: rangeY * 1.2, width: width, height: height}
}

func (b bounds) project(p Point) (float64, float64) {
	x := (p.X - b.minX) / b.rangeX * float64(b.width)
	y := float64(b.height) - (p.Y-b.minY)/b.rangeY*float64(b.height)
	return x, y
}

func svgHeader(sb *strings.Builder, width, height int) {
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))
}

func framePoints(frame dynamo.Frame) []Point {
	points := make([]Point, len(frame.Vertices)/2)
	for i := range points {
		points[i] = Point{frame.Vertices[2*i], frame.Vertices[2*i+1]}
	}
	return points
}

// FrameToSVG draws the triangles of a frame as a wireframe. Pinned
// vertices, if given, are marked with dots. With no indices the vertices
// are joined as a polyline.
func FrameToSVG(frame dynamo.Frame, indices []int, pinned []bool, width, height int, strokeColor string) string {
	points := framePoints(frame)
	if len(points) == 0 {
		return ""
	}
	b := newBounds(points, width, height)

	var sb strings.Builder
	svgHeader(&sb, width, height)
	sb.WriteString(fmt.Sprintf(`<g fill="none" stroke="%s" stroke-width="1" stroke-linejoin="round">
`, strokeColor))

	if len(indices) >= 3 {
		for t := 0; t+2 < len(indices); t += 3 {
			sb.WriteString(`<path d="M`)
			for k := 0; k < 3; k++ {
				x, y := b.project(points[indices[t+k]])
				if k > 0 {
					sb.WriteString(" L")
				}
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			}
			sb.WriteString(" Z\"/>\n")
		}
	} else {
		sb.WriteString(polylinePath(points, b))
	}
	sb.WriteString("</g>\n")

	if len(pinned) == len(points) {
		sb.WriteString(`<g fill="#ff4444">` + "\n")
		for i, p := range pinned {
			if !p {
				continue
			}
			x, y := b.project(points[i])
			sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="2.5"/>
`, x, y))
		}
		sb.WriteString("</g>\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func polylinePath(points []Point, b bounds) string {
	var sb strings.Builder
	sb.WriteString(`<path d="M`)
	for i, p := range points {
		x, y := b.project(p)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString("\"/>\n")
	return sb.String()
}

// VertexTrajectory collects the path of one vertex across frames.
func VertexTrajectory(frames []dynamo.Frame, vertex int) []Point {
	points := make([]Point, 0, len(frames))
	for _, f := range frames {
		if 2*vertex+1 >= len(f.Vertices) {
			continue
		}
		points = append(points, Point{f.Vertices[2*vertex], f.Vertices[2*vertex+1]})
	}
	return points
}

// TrajectoryToSVG draws a path through points.
func TrajectoryToSVG(points []Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}
	b := newBounds(points, width, height)

	var sb strings.Builder
	svgHeader(&sb, width, height)
	sb.WriteString(fmt.Sprintf(`<g fill="none" stroke="%s" stroke-width="1.5">
`, strokeColor))
	sb.WriteString(polylinePath(points, b))
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}
