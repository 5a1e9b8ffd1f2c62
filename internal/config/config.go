package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/deform/internal/dynamo"
)

const (
	DefaultMass          = 5.0
	DefaultYoungsModulus = 5.0
	DefaultPoissonsRatio = 0.45
	DefaultDt            = 0.01
	DefaultFrameCount    = 20
	DefaultFrameSize     = 50
	DefaultGridNX        = 8
	DefaultGridNY        = 4
)

const (
	MaterialSNH    = "snh"
	MaterialSTVK   = "stvk"
	MaterialSpring = "spring"

	IntegratorArea   = "forward-euler-area"
	IntegratorSpring = "forward-euler-spring"
)

type Config struct {
	Name       string           `yaml:"name" json:"name"`
	Mesh       MeshConfig       `yaml:"mesh" json:"mesh"`
	Mass       float64          `yaml:"mass" json:"mass"`
	Material   MaterialConfig   `yaml:"material" json:"material"`
	Integrator IntegratorConfig `yaml:"integrator" json:"integrator"`
	Gravity    []float64        `yaml:"gravity" json:"gravity"`
	Pin        PinConfig        `yaml:"pin" json:"pin"`
	Frames     FramesConfig     `yaml:"frames" json:"frames"`
	// Perturb jitters the free rest positions by up to this distance,
	// drawn from Seed.
	Perturb float64 `yaml:"perturb,omitempty" json:"perturb,omitempty"`
	Seed    int64   `yaml:"seed" json:"seed"`
}

// MeshConfig selects the rest geometry. The first of Name (mesh store
// entry), Path (.node/.ele prefix), Strip and Grid that is set wins.
type MeshConfig struct {
	Name  string      `yaml:"name,omitempty" json:"name,omitempty"`
	Path  string      `yaml:"path,omitempty" json:"path,omitempty"`
	Grid  GridConfig  `yaml:"grid" json:"grid"`
	Strip StripConfig `yaml:"strip" json:"strip"`
}

type GridConfig struct {
	NX     int     `yaml:"nx" json:"nx"`
	NY     int     `yaml:"ny" json:"ny"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

type StripConfig struct {
	N      int     `yaml:"n" json:"n"`
	Length float64 `yaml:"length" json:"length"`
}

type MaterialConfig struct {
	Type          string  `yaml:"type" json:"type"`
	YoungsModulus float64 `yaml:"youngs_modulus" json:"youngs_modulus"`
	PoissonsRatio float64 `yaml:"poissons_ratio" json:"poissons_ratio"`
	Stiffness     float64 `yaml:"stiffness" json:"stiffness"`
	RestLength    float64 `yaml:"rest_length" json:"rest_length"`
}

type IntegratorConfig struct {
	Type          string  `yaml:"type" json:"type"`
	Dt            float64 `yaml:"dt" json:"dt"`
	RayleighAlpha float64 `yaml:"rayleigh_alpha" json:"rayleigh_alpha"`
	RayleighBeta  float64 `yaml:"rayleigh_beta" json:"rayleigh_beta"`
}

// PinConfig pins every vertex whose rest coordinate on Axis is >= Above or
// <= Below. Vertices lists extra indices to pin.
type PinConfig struct {
	Axis     string   `yaml:"axis,omitempty" json:"axis,omitempty"`
	Above    *float64 `yaml:"above,omitempty" json:"above,omitempty"`
	Below    *float64 `yaml:"below,omitempty" json:"below,omitempty"`
	Vertices []int    `yaml:"vertices,omitempty" json:"vertices,omitempty"`
}

type FramesConfig struct {
	Count int `yaml:"count" json:"count"`
	Size  int `yaml:"size" json:"size"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "sheet",
		Mesh: MeshConfig{
			Grid: GridConfig{NX: DefaultGridNX, NY: DefaultGridNY, Width: 2, Height: 1},
		},
		Mass: DefaultMass,
		Material: MaterialConfig{
			Type:          MaterialSNH,
			YoungsModulus: DefaultYoungsModulus,
			PoissonsRatio: DefaultPoissonsRatio,
		},
		Integrator: IntegratorConfig{Type: IntegratorArea, Dt: DefaultDt},
		Gravity:    []float64{0, -1},
		Pin:        PinConfig{Axis: "y", Above: Float(0.49)},
		Frames:     FramesConfig{Count: DefaultFrameCount, Size: DefaultFrameSize},
	}
}

// Float returns a pointer to v, for optional fields.
func Float(v float64) *float64 { return &v }

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	// pin thresholds are not merged with the defaults
	cfg.Pin = PinConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Clone() *Config {
	out := *c
	out.Gravity = append([]float64(nil), c.Gravity...)
	out.Pin.Vertices = append([]int(nil), c.Pin.Vertices...)
	if c.Pin.Above != nil {
		out.Pin.Above = Float(*c.Pin.Above)
	}
	if c.Pin.Below != nil {
		out.Pin.Below = Float(*c.Pin.Below)
	}
	return &out
}

// Hyperelastic reports whether the material type is integrated over
// triangles rather than springs.
func (m MaterialConfig) Hyperelastic() bool {
	return m.Type == MaterialSNH || m.Type == MaterialSTVK
}

func (c *Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("config: "+format+": %w", append(args, dynamo.ErrParameterBounds)...)
	}

	if c.Name == "" {
		return bad("name is required")
	}
	if c.Mass <= 0 {
		return bad("mass %g must be positive", c.Mass)
	}

	switch c.Material.Type {
	case MaterialSNH, MaterialSTVK:
		if c.Material.YoungsModulus <= 0 {
			return bad("youngs_modulus %g must be positive", c.Material.YoungsModulus)
		}
		if c.Material.PoissonsRatio <= -1 || c.Material.PoissonsRatio >= 0.5 {
			return bad("poissons_ratio %g outside (-1, 0.5)", c.Material.PoissonsRatio)
		}
		if c.Material.Type == MaterialSNH && c.Material.PoissonsRatio == 0 {
			return bad("material snh needs a non-zero poissons_ratio")
		}
		if c.Integrator.Type != IntegratorArea {
			return bad("material %s needs integrator %s, got %q", c.Material.Type, IntegratorArea, c.Integrator.Type)
		}
	case MaterialSpring:
		if c.Material.Stiffness <= 0 {
			return bad("stiffness %g must be positive", c.Material.Stiffness)
		}
		if c.Integrator.Type != IntegratorSpring {
			return bad("material spring needs integrator %s, got %q", IntegratorSpring, c.Integrator.Type)
		}
	default:
		return bad("unknown material %q", c.Material.Type)
	}

	if c.Integrator.Dt <= 0 {
		return bad("dt %g must be positive", c.Integrator.Dt)
	}
	if len(c.Gravity) != 0 && len(c.Gravity) != 2 {
		return fmt.Errorf("config: gravity has %d components, want 2: %w", len(c.Gravity), dynamo.ErrDimensionMismatch)
	}
	if c.Pin.Axis != "" && c.Pin.Axis != "x" && c.Pin.Axis != "y" {
		return bad("pin axis %q must be x or y", c.Pin.Axis)
	}
	if c.Perturb < 0 {
		return bad("perturb %g must not be negative", c.Perturb)
	}
	if c.Frames.Count < 0 || c.Frames.Size < 1 {
		return bad("frames count %d size %d", c.Frames.Count, c.Frames.Size)
	}

	m := c.Mesh
	if m.Name == "" && m.Path == "" && m.Strip.N == 0 {
		if m.Grid.NX < 1 || m.Grid.NY < 1 || m.Grid.Width <= 0 || m.Grid.Height <= 0 {
			return bad("grid %dx%d (%gx%g)", m.Grid.NX, m.Grid.NY, m.Grid.Width, m.Grid.Height)
		}
	}
	if m.Strip.N != 0 && m.Name == "" && m.Path == "" {
		if m.Strip.N < 2 || m.Strip.Length <= 0 {
			return bad("strip of %d vertices over %g", m.Strip.N, m.Strip.Length)
		}
		if c.Material.Hyperelastic() {
			return fmt.Errorf("config: strip has no triangles for %s: %w", c.Material.Type, dynamo.ErrNotImplemented)
		}
	}
	return nil
}
