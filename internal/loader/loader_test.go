package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dnnplan/internal/ir"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func requireLoadError(t *testing.T, err error, code string) *LoadError {
	t.Helper()
	require.Error(t, err)
	var le *LoadError
	require.True(t, errors.As(err, &le), "expected *LoadError, got %T: %v", err, err)
	assert.Equal(t, code, le.Code, le.Error())
	return le
}

const reluJSON = `{
  "name": "relu",
  "layers": [
    {"name": "r1", "type": "relu", "bottoms": [0], "tops": [1]}
  ],
  "inputs": [0],
  "outputs": [1],
  "data_shapes": [[1, 4], [1, 4]],
  "weight_shapes": []
}`

func assertReluGraph(t *testing.T, g *ir.Graph) {
	t.Helper()
	assert.Equal(t, "relu", g.Name)
	require.Len(t, g.Layers, 1)
	assert.Equal(t, "r1", g.Layers[0].Name)
	assert.Equal(t, "relu", g.Layers[0].Type)
	assert.Equal(t, []int{0}, g.Layers[0].Bottoms)
	assert.Equal(t, []int{1}, g.Layers[0].Tops)
	assert.Empty(t, g.Layers[0].Weights)
	assert.Empty(t, g.Layers[0].Temporaries)
	assert.Equal(t, []int{0}, g.Inputs)
	assert.Equal(t, []int{1}, g.Outputs)
	assert.Equal(t, []ir.Shape{{1, 4}, {1, 4}}, g.DataShapes)
	assert.Empty(t, g.WeightShapes)
}

func TestLoadGraphJSON(t *testing.T) {
	g, err := LoadGraph(writeFile(t, "relu.json", reluJSON))
	require.NoError(t, err)
	assertReluGraph(t, g)
	assert.Equal(t, ir.MustGraphHash(g), ir.MustGraphHash(g))
}

func TestLoadGraphCUE(t *testing.T) {
	src := `
// Same graph as relu.json, written with a let binding.
let row = [1, 4]

name: "relu"
layers: [{name: "r1", type: "relu", bottoms: [0], tops: [1]}]
inputs: [0]
outputs: [1]
data_shapes: [row, row]
`
	g, err := LoadGraph(writeFile(t, "relu.cue", src))
	require.NoError(t, err)
	assertReluGraph(t, g)
}

func TestLoadGraphFormatsHashEqual(t *testing.T) {
	fromJSON, err := LoadGraph(writeFile(t, "relu.json", reluJSON))
	require.NoError(t, err)

	yamlSrc := `
name: relu
layers:
  - name: r1
    type: relu
    bottoms: [0]
    tops: [1]
inputs: [0]
outputs: [1]
data_shapes: [[1, 4], [1, 4]]
`
	fromYAML, err := LoadGraph(writeFile(t, "relu.yaml", yamlSrc))
	require.NoError(t, err)

	assert.Equal(t, ir.MustGraphHash(fromJSON), ir.MustGraphHash(fromYAML))
}

func TestLoadGraphParams(t *testing.T) {
	src := `{
  "layers": [{"name": "a", "type": "leaky_relu", "params": {"alpha": 0.2}, "bottoms": [0], "tops": [1]}],
  "data_shapes": [[4], [4]]
}`
	g, err := LoadGraph(writeFile(t, "leaky.json", src))
	require.NoError(t, err)
	assert.JSONEq(t, `{"alpha": 0.2}`, string(g.Layers[0].Params))

	yamlSrc := `
layers:
  - name: a
    type: leaky_relu
    params:
      alpha: 0.2
    bottoms: [0]
    tops: [1]
data_shapes: [[4], [4]]
`
	g, err = LoadGraph(writeFile(t, "leaky.yml", yamlSrc))
	require.NoError(t, err)
	assert.JSONEq(t, `{"alpha": 0.2}`, string(g.Layers[0].Params))
}

func TestLoadGraphDefaults(t *testing.T) {
	g, err := LoadGraph(writeFile(t, "empty.json", `{}`))
	require.NoError(t, err)
	assert.Empty(t, g.Layers)
	assert.Empty(t, g.DataShapes)
	assert.Empty(t, g.WeightShapes)
	assert.Empty(t, g.Inputs)
	assert.Empty(t, g.Outputs)
}

func TestLoadGraphUnknownField(t *testing.T) {
	le := requireLoadError(t, mustFail(LoadGraph(writeFile(t, "bad.json", `{"bogus": 1}`))), ErrCodeSchema)
	assert.Contains(t, le.Error(), "bogus")

	le = requireLoadError(t, mustFail(LoadGraph(writeFile(t, "bad.yaml", "bogus: 1\n"))), ErrCodeLoadFailed)
	assert.Contains(t, le.Error(), "bogus")
}

func TestLoadGraphUnknownLayerField(t *testing.T) {
	src := `{"layers": [{"name": "a", "type": "relu", "inputs": [0]}]}`
	le := requireLoadError(t, mustFail(LoadGraph(writeFile(t, "bad.json", src))), ErrCodeSchema)
	assert.Contains(t, le.Error(), "inputs")
}

func TestLoadGraphMissingType(t *testing.T) {
	requireLoadError(t, mustFail(LoadGraph(writeFile(t, "bad.json", `{"layers": [{"name": "a"}]}`))), ErrCodeSchema)

	yamlSrc := "layers:\n  - name: a\n"
	requireLoadError(t, mustFail(LoadGraph(writeFile(t, "bad.yaml", yamlSrc))), ErrCodeSchema)
}

func TestLoadGraphMissingLayerName(t *testing.T) {
	le := requireLoadError(t, mustFail(LoadGraph(writeFile(t, "bad.json", `{"layers": [{"type": "relu"}]}`))), ErrCodeSchema)
	assert.Contains(t, le.Error(), "name")

	yamlSrc := "layers:\n  - type: relu\n"
	le = requireLoadError(t, mustFail(LoadGraph(writeFile(t, "bad.yaml", yamlSrc))), ErrCodeSchema)
	assert.Contains(t, le.Error(), "layers[0]: name is required")

	g, err := LoadGraph(writeFile(t, "ok.yaml", "layers:\n  - name: \"\"\n    type: relu\n"))
	require.NoError(t, err)
	assert.Equal(t, "", g.Layers[0].Name)
}

func TestLoadGraphSyntaxError(t *testing.T) {
	path := writeFile(t, "broken.json", "{\n  \"layers\": [\n")
	le := requireLoadError(t, mustFail(LoadGraph(path)), ErrCodeLoadFailed)
	require.True(t, le.Pos.IsValid())
	assert.Equal(t, path, le.Pos.Filename())
}

func TestLoadGraphWrongType(t *testing.T) {
	requireLoadError(t, mustFail(LoadGraph(writeFile(t, "bad.json", `{"inputs": ["zero"]}`))), ErrCodeSchema)
}

func TestLoadGraphNotFound(t *testing.T) {
	requireLoadError(t, mustFail(LoadGraph(filepath.Join(t.TempDir(), "missing.json"))), ErrCodeNotFound)
}

func TestLoadGraphUnsupportedExtension(t *testing.T) {
	le := requireLoadError(t, mustFail(LoadGraph(writeFile(t, "graph.txt", reluJSON))), ErrCodeUnsupported)
	assert.Contains(t, le.Message, `".txt"`)
}

func TestLoadVectorAndMatrix(t *testing.T) {
	v, err := LoadVector(writeFile(t, "w.json", `[1, 2.5, -3]`))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3}, v)

	m, err := LoadMatrix(writeFile(t, "in.json", `[[1, 2], [3]]`))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3}}, m)

	_, err = LoadVector(writeFile(t, "bad.json", `{"a": 1}`))
	requireLoadError(t, err, ErrCodeLoadFailed)

	_, err = LoadMatrix(writeFile(t, "bad.json", `[1, 2]`))
	requireLoadError(t, err, ErrCodeLoadFailed)
}

func TestLoadErrorString(t *testing.T) {
	e := &LoadError{Code: ErrCodeNotFound, Message: "file not found: x.json"}
	assert.Equal(t, "E005: file not found: x.json", e.Error())
}

func mustFail(_ *ir.Graph, err error) error { return err }
