// Package automation runs scripted sequences of simulations described in
// YAML.
package automation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/deform/internal/config"
	"github.com/san-kum/deform/internal/dynamo"
	"github.com/san-kum/deform/internal/sim"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run. Its base config is a preset
// ("body/variant"), a config file, or the defaults, in that order;
// Params and Frames are applied on top.
type ScenarioStep struct {
	Name   string             `yaml:"name"`
	Preset string             `yaml:"preset"`
	Config string             `yaml:"config"`
	Params map[string]float64 `yaml:"params"`
	Frames *int               `yaml:"frames"`
	Save   bool               `yaml:"save"`
}

// StepResult pairs a step's resolved config with its outcome. RunID is
// set when the step was saved.
type StepResult struct {
	Config *config.Config
	Result *sim.Result
	RunID  string
}

// Runner builds and persists simulations for RunScenario.
type Runner interface {
	Build(cfg *config.Config) (*sim.Simulation, error)
	Save(cfg *config.Config, result *sim.Result) (string, error)
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps: %w", path, dynamo.ErrParameterBounds)
	}
	return &scenario, nil
}

// Resolve builds the config of one step.
func (s ScenarioStep) Resolve() (*config.Config, error) {
	cfg := config.DefaultConfig()
	switch {
	case s.Preset != "":
		body, variant, ok := strings.Cut(s.Preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset %q must be body/variant: %w", s.Preset, dynamo.ErrParameterBounds)
		}
		cfg = config.GetPreset(body, variant)
		if cfg == nil {
			return nil, fmt.Errorf("preset %q: %w", s.Preset, dynamo.ErrNotFound)
		}
	case s.Config != "":
		loaded, err := config.Load(s.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if s.Name != "" {
		cfg.Name = s.Name
	}
	for name, v := range s.Params {
		if err := cfg.SetParam(name, v); err != nil {
			return nil, err
		}
	}
	if s.Frames != nil {
		cfg.Frames.Count = *s.Frames
	}
	return cfg, cfg.Validate()
}

// RunScenario executes all steps in order and stops at the first failure.
// Results of the steps completed so far are returned with the error.
func RunScenario(ctx context.Context, scenario *Scenario, runner Runner, progress func(i int, step ScenarioStep)) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		if progress != nil {
			progress(i, step)
		}

		cfg, err := step.Resolve()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		s, err := runner.Build(cfg)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		result, err := s.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Config: cfg, Result: result}
		if step.Save {
			if sr.RunID, err = runner.Save(cfg, result); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}
