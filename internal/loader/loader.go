package loader

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dnnplan/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// Error code constants - shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeUnsupported = "E002" // Unsupported file extension
	ErrCodeLoadFailed  = "E004" // Syntax error in CUE, JSON or YAML
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeSchema      = "E006" // File does not match the schema
	ErrCodeWriteFailed = "E007" // File write error
)

// LoadError represents an error that occurred while reading an input file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadGraph reads a graph file, choosing the format from its extension.
func LoadGraph(path string) (*ir.Graph, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue", ".json":
		return ParseCUE(path, data)
	case ".yaml", ".yml":
		return ParseYAML(path, data)
	default:
		return nil, &LoadError{Code: ErrCodeUnsupported, Message: fmt.Sprintf("unsupported graph file extension %q (want .cue, .json, .yaml or .yml)", ext)}
	}
}

// ParseCUE compiles src (CUE or JSON) and unifies it with #Graph.
// filename is used for error positions only.
func ParseCUE(filename string, src []byte) (*ir.Graph, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("graph schema: %v", err)}
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(ErrCodeLoadFailed, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Graph")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(ErrCodeSchema, err)
	}

	out, err := unified.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(ErrCodeSchema, err)
	}
	var g ir.Graph
	if err := json.Unmarshal(out, &g); err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: %v", filename, err)}
	}
	return &g, nil
}

// cueLoadError converts a CUE error, keeping the first position.
func cueLoadError(code string, err error) *LoadError {
	le := &LoadError{Code: code, Message: err.Error()}
	if positions := cueerrors.Positions(err); len(positions) > 0 {
		le.Pos = positions[0]
		le.Message = errorMessages(err)
	}
	return le
}

// errorMessages joins the messages of a CUE error list without their
// position prefixes.
func errorMessages(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		format, args := e.Msg()
		msgs[i] = fmt.Sprintf(format, args...)
		if path := e.Path(); len(path) > 0 {
			msgs[i] = strings.Join(path, ".") + ": " + msgs[i]
		}
	}
	return strings.Join(msgs, "; ")
}

type yamlGraph struct {
	Name         string      `yaml:"name"`
	Layers       []yamlLayer `yaml:"layers"`
	Inputs       []int       `yaml:"inputs"`
	Outputs      []int       `yaml:"outputs"`
	DataShapes   []ir.Shape  `yaml:"data_shapes"`
	WeightShapes []ir.Shape  `yaml:"weight_shapes"`
}

type yamlLayer struct {
	Name        *string        `yaml:"name"`
	Type        string         `yaml:"type"`
	Params      map[string]any `yaml:"params"`
	Bottoms     []int          `yaml:"bottoms"`
	Tops        []int          `yaml:"tops"`
	Temporaries []int          `yaml:"temporaries"`
	Weights     []int          `yaml:"weights"`
}

// ParseYAML decodes a YAML graph, rejecting unknown fields.
func ParseYAML(filename string, src []byte) (*ir.Graph, error) {
	var yg yamlGraph
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&yg); err != nil {
		if errors.Is(err, io.EOF) {
			return &ir.Graph{}, nil
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: %v", filename, err)}
	}

	g := &ir.Graph{
		Name:         yg.Name,
		Layers:       make([]ir.Layer, len(yg.Layers)),
		Inputs:       yg.Inputs,
		Outputs:      yg.Outputs,
		DataShapes:   yg.DataShapes,
		WeightShapes: yg.WeightShapes,
	}
	for i, l := range yg.Layers {
		if l.Name == nil {
			return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: layers[%d]: name is required", filename, i)}
		}
		if l.Type == "" {
			return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: layers[%d]: type is required", filename, i)}
		}
		layer := ir.Layer{
			Name:        *l.Name,
			Type:        l.Type,
			Bottoms:     l.Bottoms,
			Tops:        l.Tops,
			Temporaries: l.Temporaries,
			Weights:     l.Weights,
		}
		if l.Params != nil {
			raw, err := json.Marshal(l.Params)
			if err != nil {
				return nil, &LoadError{Code: ErrCodeSchema, Message: fmt.Sprintf("%s: layers[%d].params: %v", filename, i, err)}
			}
			layer.Params = raw
		}
		g.Layers[i] = layer
	}
	return g, nil
}

// LoadVector reads a JSON array of numbers, such as a weight arena.
func LoadVector(path string) ([]float64, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: want a JSON array of numbers: %v", path, err)}
	}
	return v, nil
}

// LoadMatrix reads a JSON array of number arrays, such as graph inputs.
func LoadMatrix(path string) ([][]float64, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var m [][]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: want a JSON array of number arrays: %v", path, err)}
	}
	return m, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return data, nil
}
