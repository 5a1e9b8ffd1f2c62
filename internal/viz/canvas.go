package viz

import (
	"math"
	"strings"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
	return c
}

// PixelWidth and PixelHeight are the canvas size in sub-pixels.
func (c *Canvas) PixelWidth() int  { return c.Width * 2 }
func (c *Canvas) PixelHeight() int { return c.Height * 4 }

// Set sets a pixel at (x, y) in sub-pixel coordinates. Out of range
// pixels are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}

	col := x / 2
	row := y / 4
	if col >= c.Width || row >= c.Height {
		return
	}

	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// IsSet reports whether the sub-pixel at (x, y) is lit.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawDot lights a (2r+1)-pixel square centered on (x, y).
func (c *Canvas) DrawDot(x, y, r int) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c.Set(x+dx, y+dy)
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Viewport maps world coordinates onto canvas sub-pixels with a uniform
// scale, y pointing up.
type Viewport struct {
	MinX, MinY float64
	Scale      float64
	OffX, OffY int
	pixelH     int
}

// FitViewport frames the flattened 2D points xy inside c with a margin
// of pad sub-pixels on every side.
func FitViewport(c *Canvas, xy []float64, pad int) Viewport {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(xy); i += 2 {
		minX = math.Min(minX, xy[i])
		maxX = math.Max(maxX, xy[i])
		minY = math.Min(minY, xy[i+1])
		maxY = math.Max(maxY, xy[i+1])
	}
	if math.IsInf(minX, 1) {
		minX, maxX, minY, maxY = -1, 1, -1, 1
	}

	w := float64(c.PixelWidth() - 2*pad - 1)
	h := float64(c.PixelHeight() - 2*pad - 1)
	spanX := math.Max(maxX-minX, 1e-9)
	spanY := math.Max(maxY-minY, 1e-9)
	scale := math.Min(w/spanX, h/spanY)

	return Viewport{
		MinX:   minX,
		MinY:   minY,
		Scale:  scale,
		OffX:   pad + int((w-spanX*scale)/2),
		OffY:   pad + int((h-spanY*scale)/2),
		pixelH: c.PixelHeight(),
	}
}

// Project returns the sub-pixel for world point (x, y).
func (v Viewport) Project(x, y float64) (int, int) {
	px := v.OffX + int(math.Round((x-v.MinX)*v.Scale))
	py := v.pixelH - 1 - (v.OffY + int(math.Round((y-v.MinY)*v.Scale)))
	return px, py
}

// DrawWireframe draws every edge between flattened 2D positions and marks
// pinned vertices with a dot.
func (c *Canvas) DrawWireframe(v Viewport, xy []float64, edges [][2]int, pinned []bool) {
	n := len(xy) / 2
	for _, e := range edges {
		if e[0] >= n || e[1] >= n {
			continue
		}
		x0, y0 := v.Project(xy[2*e[0]], xy[2*e[0]+1])
		x1, y1 := v.Project(xy[2*e[1]], xy[2*e[1]+1])
		c.DrawLine(x0, y0, x1, y1)
	}
	for i, p := range pinned {
		if p && i < n {
			x, y := v.Project(xy[2*i], xy[2*i+1])
			c.DrawDot(x, y, 1)
		}
	}
}
