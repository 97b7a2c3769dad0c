package harness

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: one program, optional heap
// writes, a number of runs and the values expected afterwards.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Program is the path of a CUE or YAML program file, relative to the
	// scenario file when loaded with LoadScenario.
	Program string `yaml:"program"`

	// Order selects the stencil object byte order: "little" (default) or "big".
	Order string `yaml:"order,omitempty"`

	// Runs is how many times the program is executed. Defaults to 1.
	Runs int `yaml:"runs,omitempty"`

	// Setup overwrites heap values after compiling and before running.
	Setup []WriteStep `yaml:"setup,omitempty"`

	// Expect maps output names to their expected values.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Tolerance is the relative tolerance for float outputs. Defaults to 1e-5.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// ExpectError makes the scenario pass only if loading, building or
	// compiling the program fails with a message containing this text.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the compiled program and its results.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// WriteStep stores a value into a named heap net.
type WriteStep struct {
	Write string `yaml:"write"`
	Value any    `yaml:"value"`
}

// Assertion validates the compiled stream or the read-back values.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Output names the value checked by dtype.
	Output string `yaml:"output,omitempty"`

	// Dtype is the expected dtype name (used by dtype).
	Dtype string `yaml:"dtype,omitempty"`

	// Op is the command name counted by stream_count, e.g. PATCH_OBJECT.
	Op string `yaml:"op,omitempty"`

	// Count is the expected number for stream_count, heap_nets and steps.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertMatchesReference = "matches_reference"
	AssertDtype            = "dtype"
	AssertStreamCount      = "stream_count"
	AssertHeapNets         = "heap_nets"
	AssertSteps            = "steps"
)

const defaultTolerance = 1e-5

// LoadScenario reads and parses a scenario YAML file. The program path is
// resolved relative to the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative program path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Reject unknown fields so typos like "assertion:" are caught
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) && basePath != "" {
		scenario.Program = filepath.Join(basePath, scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// byteOrder returns the stencil byte order selected by the scenario.
func (s *Scenario) byteOrder() binary.ByteOrder {
	if s.Order == "big" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (s *Scenario) runs() int {
	if s.Runs <= 0 {
		return 1
	}
	return s.Runs
}

func (s *Scenario) tolerance() float64 {
	if s.Tolerance <= 0 {
		return defaultTolerance
	}
	return s.Tolerance
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Program == "" {
		return fmt.Errorf("program is required")
	}

	switch s.Order {
	case "", "little", "big":
	default:
		return fmt.Errorf("order must be little or big, got %q", s.Order)
	}

	if s.Runs < 0 {
		return fmt.Errorf("runs must not be negative")
	}

	if s.ExpectError == "" && len(s.Expect) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("scenario needs expect, expect_error or assertions")
	}

	for i, w := range s.Setup {
		if w.Write == "" {
			return fmt.Errorf("setup[%d]: write is required", i)
		}
		if w.Value == nil {
			return fmt.Errorf("setup[%d]: value is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion[%d]: %w", i, err)
		}
	}

	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertMatchesReference:
		return nil
	case AssertDtype:
		if a.Output == "" || a.Dtype == "" {
			return fmt.Errorf("dtype requires output and dtype")
		}
	case AssertStreamCount:
		if a.Op == "" {
			return fmt.Errorf("stream_count requires op")
		}
	case AssertHeapNets, AssertSteps:
		return nil
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
