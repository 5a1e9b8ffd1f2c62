// Package meshio reads and writes 2D meshes in the Triangle .node/.ele
// format and serves a directory of them as a named catalog.
package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/linalg"
	"github.com/san-kum/deform/internal/mesh"
)

// records yields the whitespace separated fields of every data line. The
// first line is the file header and '#' lines are comments.
func records(r io.Reader, minFields int, fn func(line int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < minFields {
			continue
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadNodes parses a .node file: "index x y [attributes...]" per line.
func ReadNodes(r io.Reader) ([]linalg.Vector, error) {
	var vertices []linalg.Vector
	err := records(r, 3, func(line int, fields []string) error {
		x, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("node line %d: %w", line, err)
		}
		y, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return fmt.Errorf("node line %d: %w", line, err)
		}
		vertices = append(vertices, linalg.NewVector(x, y))
		return nil
	})
	return vertices, err
}

// ReadElements parses a .ele file: "index a b c" per line with 1-based
// vertex indices, returned 0-based.
func ReadElements(r io.Reader) ([][3]int, error) {
	var triangles [][3]int
	err := records(r, 4, func(line int, fields []string) error {
		var tri [3]int
		for k := 0; k < 3; k++ {
			idx, err := strconv.Atoi(fields[k+1])
			if err != nil {
				return fmt.Errorf("element line %d: %w", line, err)
			}
			tri[k] = idx - 1
		}
		triangles = append(triangles, tri)
		return nil
	})
	return triangles, err
}

// Read loads prefix.node and prefix.ele. Both files must exist.
func Read(prefix string) (mesh.Geometry, error) {
	nodeFile, eleFile := prefix+".node", prefix+".ele"
	for _, path := range []string{nodeFile, eleFile} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return mesh.Geometry{}, fmt.Errorf("could not find %s: %w", path, dynamo.ErrNotFound)
			}
			return mesh.Geometry{}, err
		}
	}

	nf, err := os.Open(nodeFile)
	if err != nil {
		return mesh.Geometry{}, err
	}
	defer nf.Close()
	vertices, err := ReadNodes(nf)
	if err != nil {
		return mesh.Geometry{}, fmt.Errorf("%s: %w", nodeFile, err)
	}

	ef, err := os.Open(eleFile)
	if err != nil {
		return mesh.Geometry{}, err
	}
	defer ef.Close()
	triangles, err := ReadElements(ef)
	if err != nil {
		return mesh.Geometry{}, fmt.Errorf("%s: %w", eleFile, err)
	}

	geo := mesh.Geometry{Vertices: vertices, Triangles: triangles}
	if err := geo.Validate(); err != nil {
		return mesh.Geometry{}, fmt.Errorf("%s: %w", prefix, err)
	}
	return geo, nil
}

func WriteNodes(w io.Writer, vertices []linalg.Vector) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d 2 0 0\n", len(vertices))
	for i, v := range vertices {
		fmt.Fprintf(bw, "%d %s %s\n", i+1, formatFloat(v[0]), formatFloat(v[1]))
	}
	return bw.Flush()
}

func WriteElements(w io.Writer, triangles [][3]int) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d 3 0\n", len(triangles))
	for i, tri := range triangles {
		fmt.Fprintf(bw, "%d %d %d %d\n", i+1, tri[0]+1, tri[1]+1, tri[2]+1)
	}
	return bw.Flush()
}

// Write stores geo as prefix.node and prefix.ele.
func Write(prefix string, geo mesh.Geometry) error {
	if err := writeFile(prefix+".node", func(w io.Writer) error { return WriteNodes(w, geo.Vertices) }); err != nil {
		return err
	}
	return writeFile(prefix+".ele", func(w io.Writer) error { return WriteElements(w, geo.Triangles) })
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
