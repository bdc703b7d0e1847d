package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Case defines a conformance case.
type Case struct {
	// Name uniquely identifies this case. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this case validates.
	Description string `yaml:"description"`

	// Graph is the path to the graph file (.json, .cue, .yaml or .yml).
	// LoadCase resolves it relative to the case file.
	Graph string `yaml:"graph"`

	// Assertions are checked against the compilation result.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates one property of a compilation.
type Assertion struct {
	// Type specifies the assertion type:
	// - "compile_error": compilation fails with Code
	// - "layout": Arena has TotalSize and, if given, Offsets
	// - "kernel_count": exactly Count kernels
	// - "entry_points": kernel entry points equal EntryPoints
	// - "outputs": reference execution of Inputs yields Expect
	// - "order_warnings": exactly Count order warnings
	Type string `yaml:"type"`

	// Code is the expected E2xx code (used by compile_error).
	Code string `yaml:"code,omitempty"`

	// Arena is "weight" or "data" (used by layout).
	Arena string `yaml:"arena,omitempty"`

	// TotalSize is the expected arena size in elements (used by layout).
	TotalSize *int64 `yaml:"total_size,omitempty"`

	// Offsets are the expected buffer offsets (used by layout).
	Offsets []int64 `yaml:"offsets,omitempty"`

	// Count is the expected count (used by kernel_count and order_warnings).
	Count *int `yaml:"count,omitempty"`

	// EntryPoints are the expected kernel entry points (used by entry_points).
	EntryPoints []string `yaml:"entry_points,omitempty"`

	// Weights is the weight arena contents (used by outputs).
	Weights []float64 `yaml:"weights,omitempty"`

	// Inputs holds one slice per graph input (used by outputs).
	Inputs [][]float64 `yaml:"inputs,omitempty"`

	// Expect holds one slice per graph output (used by outputs).
	Expect [][]float64 `yaml:"expect,omitempty"`

	// Tolerance is the absolute tolerance for outputs. Defaults to 1e-9.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Assertion type constants.
const (
	AssertCompileError  = "compile_error"
	AssertLayout        = "layout"
	AssertKernelCount   = "kernel_count"
	AssertEntryPoints   = "entry_points"
	AssertOutputs       = "outputs"
	AssertOrderWarnings = "order_warnings"
)

// LoadCase reads and parses a case YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadCase(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read case file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var c Case
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the graph path relative to the case file BEFORE validation
	if c.Graph != "" && !filepath.IsAbs(c.Graph) {
		c.Graph = filepath.Join(filepath.Dir(path), c.Graph)
	}

	if err := validateCase(&c); err != nil {
		return nil, fmt.Errorf("invalid case: %w", err)
	}
	return &c, nil
}

// validateCase checks that required fields are present and valid.
func validateCase(c *Case) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Description == "" {
		return fmt.Errorf("description is required")
	}
	if c.Graph == "" {
		return fmt.Errorf("graph is required")
	}
	if _, err := os.Stat(c.Graph); os.IsNotExist(err) {
		return fmt.Errorf("graph file not found: %s", c.Graph)
	}
	if len(c.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	compileError := false
	for i := range c.Assertions {
		a := &c.Assertions[i]
		if err := validateAssertion(i, a); err != nil {
			return err
		}
		if a.Type == AssertCompileError {
			compileError = true
		}
	}
	if compileError && len(c.Assertions) > 1 {
		return fmt.Errorf("compile_error must be the only assertion")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCompileError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for compile_error", index)
		}
	case AssertLayout:
		if a.Arena != "weight" && a.Arena != "data" {
			return fmt.Errorf("assertions[%d]: arena must be \"weight\" or \"data\" for layout", index)
		}
		if a.TotalSize == nil && a.Offsets == nil {
			return fmt.Errorf("assertions[%d]: total_size or offsets is required for layout", index)
		}
	case AssertKernelCount, AssertOrderWarnings:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for %s", index, a.Type)
		}
	case AssertEntryPoints:
		if len(a.EntryPoints) == 0 {
			return fmt.Errorf("assertions[%d]: entry_points list is required", index)
		}
	case AssertOutputs:
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for outputs", index)
		}
		if a.Tolerance < 0 {
			return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
