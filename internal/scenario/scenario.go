// Package scenario loads scripted agent runs and replays them as an event
// stream, standing in for the real receiver during development.
package scenario

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultScenario []byte

// Step is one event in a scenario.
type Step struct {
	Event string        `yaml:"event"`
	Delay time.Duration `yaml:"delay"`
	// Data is encoded as JSON. Nil data is sent as an empty object.
	Data any `yaml:"data"`
	// Raw, when set, is sent verbatim instead of Data.
	Raw *string `yaml:"raw"`
}

// Payload returns the data field for the step.
func (s Step) Payload() (string, error) {
	if s.Raw != nil {
		return *s.Raw, nil
	}
	if s.Data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s.Data)
	if err != nil {
		return "", fmt.Errorf("encode %s data: %w", s.Event, err)
	}
	return string(b), nil
}

// Scenario is an ordered list of steps, optionally repeated.
type Scenario struct {
	Name  string        `yaml:"name"`
	Loop  bool          `yaml:"loop"`
	Pause time.Duration `yaml:"pause"` // wait before repeating
	Steps []Step        `yaml:"steps"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in scenario.
func Default() *Scenario {
	sc, err := Parse(defaultScenario)
	if err != nil {
		panic(fmt.Sprintf("built-in scenario: %v", err))
	}
	return sc
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that every step can be sent.
func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	if sc.Pause < 0 {
		return errors.New("scenario pause must be >= 0")
	}
	for i, step := range sc.Steps {
		if step.Event == "" {
			return fmt.Errorf("step %d: missing event name", i)
		}
		if step.Delay < 0 {
			return fmt.Errorf("step %d: delay must be >= 0", i)
		}
		if _, err := step.Payload(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}
