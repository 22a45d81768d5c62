package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/lagprobe/internal/config"
	"github.com/roach88/lagprobe/internal/latency"
)

// Scenario defines one simulated measurement and what its report must show.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Display configures the simulated display.
	Display DisplaySpec `yaml:"display"`

	// Config is applied on top of the defaults, like a profile.
	Config config.File `yaml:"config"`

	// Label is stored with the session.
	Label string `yaml:"label,omitempty"`

	// Assertions validate the final report.
	Assertions []Assertion `yaml:"assertions"`
}

// DisplaySpec configures the simulated display. Durations are Go duration
// strings; empty fields take the simulator defaults.
type DisplaySpec struct {
	Width     int    `yaml:"width,omitempty"`
	Height    int    `yaml:"height,omitempty"`
	RefreshHz int    `yaml:"refresh_hz,omitempty"`
	Latency   string `yaml:"latency,omitempty"`
	Jitter    string `yaml:"jitter,omitempty"`
	Wait      string `yaml:"wait,omitempty"`
	Seed      int64  `yaml:"seed,omitempty"`
}

// durations parses the latency, jitter and wait strings.
func (d DisplaySpec) durations() (lat, jitter, wait time.Duration, err error) {
	parse := func(field, s string) (time.Duration, error) {
		if s == "" {
			return 0, nil
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("display.%s: %w", field, err)
		}
		return v, nil
	}
	if lat, err = parse("latency", d.Latency); err != nil {
		return
	}
	if jitter, err = parse("jitter", d.Jitter); err != nil {
		return
	}
	wait, err = parse("wait", d.Wait)
	return
}

// Assertion validates the final report.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected value for pooled_count and failed_runs.
	Count int `yaml:"count,omitempty"`

	// Min and Max bound mean_between (milliseconds) and counter. A nil
	// bound is open.
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`

	// Verdict is the expected verdict prefix (verdict).
	Verdict string `yaml:"verdict,omitempty"`

	// Code is the advisory code (advisory).
	Code string `yaml:"code,omitempty"`

	// Counter names a diagnostic counter by its JSON name (counter).
	Counter string `yaml:"counter,omitempty"`
}

// Assertion type constants.
const (
	AssertPooledCount = "pooled_count"
	AssertMeanBetween = "mean_between"
	AssertVerdict     = "verdict"
	AssertNoData      = "no_data"
	AssertAdvisory    = "advisory"
	AssertCounter     = "counter"
	AssertFailedRuns  = "failed_runs"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Display.Width < 0 || s.Display.Height < 0 || s.Display.RefreshHz < 0 {
		return fmt.Errorf("display: width, height and refresh_hz must be non-negative")
	}
	if _, _, _, err := s.Display.durations(); err != nil {
		return err
	}
	if _, err := config.Default().Apply(s.Config); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPooledCount, AssertFailedRuns:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertMeanBetween:
		if a.Min == nil && a.Max == nil {
			return fmt.Errorf("assertions[%d]: min or max is required for mean_between", index)
		}
	case AssertVerdict:
		if a.Verdict == "" {
			return fmt.Errorf("assertions[%d]: verdict is required for verdict", index)
		}
	case AssertNoData:
	case AssertAdvisory:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for advisory", index)
		}
	case AssertCounter:
		if _, ok := counterValue(latency.DiagnosticCounters{}, a.Counter); !ok {
			return fmt.Errorf("assertions[%d]: unknown counter %q", index, a.Counter)
		}
		if a.Min == nil && a.Max == nil {
			return fmt.Errorf("assertions[%d]: min or max is required for counter", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
		return fmt.Errorf("assertions[%d]: min %g exceeds max %g", index, *a.Min, *a.Max)
	}
	return nil
}

// FindScenarios returns the YAML scenario files under dir in lexical order.
// A non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}
