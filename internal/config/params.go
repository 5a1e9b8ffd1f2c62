package config

import (
	"fmt"
	"sort"

	"github.com/san-kum/deform/internal/dynamo"
)

// params maps tunable scalar names onto config fields.
var params = map[string]func(*Config) *float64{
	"mass":           func(c *Config) *float64 { return &c.Mass },
	"dt":             func(c *Config) *float64 { return &c.Integrator.Dt },
	"youngs_modulus": func(c *Config) *float64 { return &c.Material.YoungsModulus },
	"poissons_ratio": func(c *Config) *float64 { return &c.Material.PoissonsRatio },
	"stiffness":      func(c *Config) *float64 { return &c.Material.Stiffness },
	"rest_length":    func(c *Config) *float64 { return &c.Material.RestLength },
	"rayleigh_alpha": func(c *Config) *float64 { return &c.Integrator.RayleighAlpha },
	"rayleigh_beta":  func(c *Config) *float64 { return &c.Integrator.RayleighBeta },
	"perturb":        func(c *Config) *float64 { return &c.Perturb },
}

// ParamNames lists the names accepted by SetParam and GetParam.
func ParamNames() []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetParam sets a tunable scalar by name. It does not validate the result.
func (c *Config) SetParam(name string, v float64) error {
	field, ok := params[name]
	if !ok {
		return fmt.Errorf("config: unknown parameter %q (available: %v): %w", name, ParamNames(), dynamo.ErrNotFound)
	}
	*field(c) = v
	return nil
}

func (c *Config) GetParam(name string) (float64, error) {
	field, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("config: unknown parameter %q: %w", name, dynamo.ErrNotFound)
	}
	return *field(c), nil
}
