package config

import "sort"

var Presets = map[string]map[string]*Config{
	"sheet": {
		"snh": {
			Name: "sheet-snh",
			Mesh: MeshConfig{Grid: GridConfig{NX: 8, NY: 4, Width: 2, Height: 1}},
			Mass: 5,
			Material: MaterialConfig{
				Type: MaterialSNH, YoungsModulus: 5, PoissonsRatio: 0.45,
			},
			Integrator: IntegratorConfig{Type: IntegratorArea, Dt: 0.01},
			Gravity:    []float64{0, -1},
			Pin:        PinConfig{Axis: "y", Above: Float(0.49)},
			Frames:     FramesConfig{Count: 20, Size: 50},
		},
		"stvk": {
			Name: "sheet-stvk",
			Mesh: MeshConfig{Grid: GridConfig{NX: 8, NY: 4, Width: 2, Height: 1}},
			Mass: 5,
			Material: MaterialConfig{
				Type: MaterialSTVK, YoungsModulus: 5, PoissonsRatio: 0.3,
			},
			Integrator: IntegratorConfig{Type: IntegratorArea, Dt: 0.01},
			Gravity:    []float64{0, -1},
			Pin:        PinConfig{Axis: "y", Above: Float(0.49)},
			Frames:     FramesConfig{Count: 20, Size: 50},
		},
		"cantilever": {
			Name: "sheet-cantilever",
			Mesh: MeshConfig{Grid: GridConfig{NX: 12, NY: 3, Width: 3, Height: 0.5}},
			Mass: 2,
			Material: MaterialConfig{
				Type: MaterialSNH, YoungsModulus: 20, PoissonsRatio: 0.4,
			},
			Integrator: IntegratorConfig{Type: IntegratorArea, Dt: 0.002},
			Gravity:    []float64{0, -2},
			Pin:        PinConfig{Axis: "x", Below: Float(-1.49)},
			Frames:     FramesConfig{Count: 40, Size: 100},
		},
		"springs": {
			Name: "sheet-springs",
			Mesh: MeshConfig{Grid: GridConfig{NX: 8, NY: 4, Width: 2, Height: 1}},
			Mass: 1,
			Material: MaterialConfig{
				Type: MaterialSpring, Stiffness: 50,
			},
			Integrator: IntegratorConfig{Type: IntegratorSpring, Dt: 0.002},
			Gravity:    []float64{0, -1},
			Pin:        PinConfig{Axis: "y", Above: Float(0.49)},
			Frames:     FramesConfig{Count: 20, Size: 100},
		},
	},
	"rope": {
		"hanging": {
			Name:     "rope-hanging",
			Mesh:     MeshConfig{Strip: StripConfig{N: 12, Length: 2}},
			Mass:     0.1,
			Material: MaterialConfig{Type: MaterialSpring, Stiffness: 20},
			Integrator: IntegratorConfig{
				Type: IntegratorSpring, Dt: 0.001,
			},
			Gravity: []float64{0, -9.8},
			Pin:     PinConfig{Vertices: []int{0}},
			Frames:  FramesConfig{Count: 30, Size: 100},
		},
		"bridge": {
			Name:     "rope-bridge",
			Mesh:     MeshConfig{Strip: StripConfig{N: 16, Length: 3}},
			Mass:     0.1,
			Material: MaterialConfig{Type: MaterialSpring, Stiffness: 40},
			Integrator: IntegratorConfig{
				Type: IntegratorSpring, Dt: 0.001,
			},
			Gravity: []float64{0, -9.8},
			Pin:     PinConfig{Vertices: []int{0, 15}},
			Frames:  FramesConfig{Count: 30, Size: 100},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(body, preset string) *Config {
	bodyPresets, ok := Presets[body]
	if !ok {
		return nil
	}
	cfg, ok := bodyPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(body string) []string {
	bodyPresets, ok := Presets[body]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(bodyPresets))
	for name := range bodyPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListBodies() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
