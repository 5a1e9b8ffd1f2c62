package meshio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/mesh"
)

// Store is a directory holding one sub-directory per mesh, each with
// <name>.1.node/.ele (Triangle's refined output) or <name>.node/.ele.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) Load(name string) (mesh.Geometry, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return mesh.Geometry{}, fmt.Errorf("mesh %q: %w", name, dynamo.ErrNotFound)
	}
	base := filepath.Join(s.Dir, name, name)

	geo, err := Read(base + ".1")
	if errors.Is(err, dynamo.ErrNotFound) {
		geo, err = Read(base)
	}
	if errors.Is(err, dynamo.ErrNotFound) {
		return mesh.Geometry{}, fmt.Errorf("mesh %q: %w", name, dynamo.ErrNotFound)
	}
	return geo, err
}

// Save writes geo as <dir>/<name>/<name>.node/.ele.
func (s *Store) Save(name string, geo mesh.Geometry) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("mesh name %q: %w", name, dynamo.ErrParameterBounds)
	}
	dir := filepath.Join(s.Dir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return Write(filepath.Join(dir, name), geo)
}
