package compiler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/layers"
	"github.com/roach88/dnnplan/internal/testutil"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidGraphs(t *testing.T) {
	for name, g := range map[string]*ir.Graph{
		"relu":   testutil.ReluGraph(),
		"linear": testutil.LinearGraph(),
		"mlp":    testutil.MLPGraph(),
		"empty":  {},
	} {
		t.Run(name, func(t *testing.T) {
			errs := Validate(g, layers.Default())
			assert.Empty(t, errs)
		})
	}
}

// A graph Validate accepts always compiles.
func TestValidateAgreesWithGenerate(t *testing.T) {
	for _, g := range []*ir.Graph{testutil.ReluGraph(), testutil.LinearGraph(), testutil.MLPGraph()} {
		require.Empty(t, Validate(g, layers.Default()))
		_, err := Generate(g)
		assert.NoError(t, err, g.Name)
	}
}

func TestValidateInvalidShapes(t *testing.T) {
	g := testutil.ReluGraph()
	g.DataShapes = []ir.Shape{{1, 0}, {-2}}
	g.WeightShapes = []ir.Shape{{3}, {0}}

	errs := Validate(g, layers.Default())
	require.Len(t, errs, 3)
	assert.Equal(t, []string{ErrInvalidShape, ErrInvalidShape, ErrInvalidShape}, codes(errs))
	assert.Equal(t, "weight_shapes[1]", errs[0].Field)
	assert.Equal(t, "data_shapes[0]", errs[1].Field)
	assert.Equal(t, "data_shapes[1]", errs[2].Field)
	assert.Contains(t, errs[2].Message, "shape 1")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	g := &ir.Graph{
		Layers: []ir.Layer{
			{Name: "a", Type: "relu", Bottoms: []int{0}, Tops: []int{9}},
			{Name: "a", Type: "", Bottoms: []int{0}, Tops: []int{1}},
			{Name: "c", Type: "mystery", Bottoms: []int{0}, Tops: []int{1}},
		},
		Inputs:     []int{0},
		Outputs:    []int{4},
		DataShapes: []ir.Shape{{4}, {4}},
	}

	errs := Validate(g, layers.Default())
	assert.Equal(t, []string{
		ErrBoundaryOutOfRange,
		ErrIndexOutOfRange,
		ErrDuplicateLayerName,
		ErrMissingLayerType,
		ErrUnknownLayerKind,
	}, codes(errs))

	assert.Equal(t, "outputs[0]", errs[0].Field)
	assert.Empty(t, errs[0].Layer)
	assert.Equal(t, "layers[0].tops[0]", errs[1].Field)
	assert.Equal(t, "a", errs[1].Layer)
	assert.Equal(t, "layers[1].name", errs[2].Field)
	assert.Equal(t, "layers[1].type", errs[3].Field)
	assert.Equal(t, "layers[2].type", errs[4].Field)
	assert.Contains(t, errs[4].Message, `"mystery"`)
}

func TestValidateParams(t *testing.T) {
	g := testutil.ReluGraph()
	g.Layers[0].Type = "leaky_relu"
	g.Layers[0].Params = json.RawMessage(`{"slope": 0.2}`)

	errs := Validate(g, layers.Default())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrInvalidParams, errs[0].Code)
	assert.Equal(t, "layers[0].params", errs[0].Field)
	assert.Equal(t, "r1", errs[0].Layer)
}

func TestValidateBufferMismatch(t *testing.T) {
	g := testutil.LinearGraph()
	g.WeightShapes[1] = ir.Shape{3}

	errs := Validate(g, layers.Default())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrBufferMismatch, errs[0].Code)
	assert.Equal(t, "layers[0].weights", errs[0].Field)
	assert.Contains(t, errs[0].Message, "bias size 3, want 2")
}

func TestValidateNilGraph(t *testing.T) {
	errs := Validate(nil, layers.Default())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCompileFailed, errs[0].Code)
	assert.Equal(t, "graph", errs[0].Field)
}

func TestValidateOverlappingBuffers(t *testing.T) {
	g := &ir.Graph{
		Layers: []ir.Layer{
			{Name: "fc", Type: "linear", Bottoms: []int{0}, Tops: []int{0}, Weights: []int{0}},
		},
		Inputs:       []int{0},
		Outputs:      []int{0},
		DataShapes:   []ir.Shape{{1, 2}},
		WeightShapes: []ir.Shape{{2, 2}},
	}

	errs := Validate(g, layers.Default())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrBufferMismatch, errs[0].Code)
	assert.Equal(t, "layers[0].tops", errs[0].Field)
	assert.Contains(t, errs[0].Message, "overlaps bottoms")

	_, err := New(layers.Default(), nil).Generate(g)
	require.Error(t, err)
	assert.Equal(t, ErrBufferMismatch, ErrorCode(err))
}

func TestValidateSkipsDryRunOnBadIndices(t *testing.T) {
	g := testutil.LinearGraph()
	g.Layers[0].Weights = []int{0, 5}

	errs := Validate(g, layers.Default())
	require.Len(t, errs, 1)
	assert.Equal(t, ErrIndexOutOfRange, errs[0].Code)
	assert.Equal(t, "layers[0].weights[1]", errs[0].Field)
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Field: "layers[0].type", Message: "layer type is required", Code: ErrMissingLayerType, Layer: "r1"}
	assert.Equal(t, `[E205] layer "r1": layers[0].type: layer type is required`, e.Error())

	e = ValidationError{Field: "inputs[0]", Message: "bad", Code: ErrBoundaryOutOfRange}
	assert.Equal(t, "[E203] inputs[0]: bad", e.Error())
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCompileFailed, ErrorCode(assert.AnError))
	assert.Equal(t, ErrIndexOutOfRange, ErrorCode(&IndexError{LayerIndex: 0}))
	assert.Equal(t, ErrBoundaryOutOfRange, ErrorCode(&IndexError{LayerIndex: -1}))
	assert.Equal(t, ErrUnknownLayerKind, ErrorCode(&layers.UnknownKindError{Type: "x"}))
}

func TestIndexErrorMessage(t *testing.T) {
	e := &IndexError{Layer: "fc", LayerIndex: 2, Slot: "weights", Position: 1, Index: 5, Limit: 3}
	assert.Equal(t, `layer "fc" (#2): weights[1] = 5 out of range [0, 3)`, e.Error())

	e = &IndexError{LayerIndex: -1, Slot: "inputs", Position: 0, Index: -1, Limit: 2}
	assert.Equal(t, "graph inputs[0] = -1 out of range [0, 2)", e.Error())
}
