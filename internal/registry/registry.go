// Package registry keeps named simulations alive between requests.
// Lookups share a map lock; stepping a simulation holds that
// simulation's own lock so different simulations advance concurrently.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/sim"
)

type entry struct {
	mu      sync.Mutex
	sim     *sim.Simulation
	created time.Time
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// Info is a point-in-time summary of a registered simulation.
type Info struct {
	Name       string    `json:"name"`
	Material   string    `json:"material"`
	Integrator string    `json:"integrator"`
	Vertices   int       `json:"vertices"`
	Triangles  int       `json:"triangles"`
	DT         float64   `json:"dt"`
	Steps      int       `json:"steps"`
	Time       float64   `json:"time"`
	NextFrame  int       `json:"next_frame"`
	Created    time.Time `json:"created"`
}

func New() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (r *Registry) Add(s *sim.Simulation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[s.Name()]; ok {
		return fmt.Errorf("simulation %q: %w", s.Name(), dynamo.ErrExists)
	}
	r.entries[s.Name()] = &entry{sim: s, created: r.now()}
	return nil
}

func (r *Registry) get(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("simulation %q: %w", name, dynamo.ErrNotFound)
	}
	return e, nil
}

func (r *Registry) Exists(name string) bool {
	_, err := r.get(name)
	return err == nil
}

func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return fmt.Errorf("simulation %q: %w", name, dynamo.ErrNotFound)
	}
	delete(r.entries, name)
	return nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With runs fn while holding the simulation's lock.
func (r *Registry) With(name string, fn func(*sim.Simulation) error) error {
	e, err := r.get(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sim)
}

func (r *Registry) Step(ctx context.Context, name string, frameSize int) (dynamo.Frame, error) {
	var frame dynamo.Frame
	err := r.With(name, func(s *sim.Simulation) error {
		var err error
		frame, err = s.Step(ctx, frameSize)
		return err
	})
	return frame, err
}

func (r *Registry) Batch(ctx context.Context, name string, frameSize, nframes int) (dynamo.Payload, error) {
	var payload dynamo.Payload
	err := r.With(name, func(s *sim.Simulation) error {
		var err error
		payload, err = s.Batch(ctx, frameSize, nframes)
		return err
	})
	return payload, err
}

func (r *Registry) Describe(name string) (Info, error) {
	e, err := r.get(name)
	if err != nil {
		return Info{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return describe(e), nil
}

// List describes every simulation in name order.
func (r *Registry) List() []Info {
	infos := make([]Info, 0)
	for _, name := range r.Names() {
		info, err := r.Describe(name)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

func describe(e *entry) Info {
	s := e.sim
	it := s.Integrator()
	m := s.Mesh()
	return Info{
		Name:       s.Name(),
		Material:   it.Material().Name(),
		Integrator: it.Name(),
		Vertices:   m.NumVertices(),
		Triangles:  m.NumTriangles(),
		DT:         it.DT(),
		Steps:      it.Steps(),
		Time:       it.Time(),
		NextFrame:  s.FrameNo(),
		Created:    e.created,
	}
}
