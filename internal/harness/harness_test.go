package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_TestdataCases(t *testing.T) {
	paths, err := filepath.Glob("testdata/cases/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			c, err := LoadCase(path)
			require.NoError(t, err)

			result, err := Run(c)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_CompileErrorResult(t *testing.T) {
	c, err := LoadCase("testdata/cases/unknown_kind.yaml")
	require.NoError(t, err)

	result, err := Run(c)
	require.NoError(t, err)
	assert.Nil(t, result.Artifact)
	require.Error(t, result.CompileErr)
	assert.Equal(t, "E204", result.ErrorCode)
	assert.Contains(t, result.CompileErr.Error(), `"conv2d_winograd"`)
}

func TestRun_FailingAssertions(t *testing.T) {
	count := 2
	total := int64(9)
	c := &Case{
		Name:        "relu_wrong",
		Description: "deliberately wrong expectations",
		Graph:       "testdata/graphs/relu.json",
		Assertions: []Assertion{
			{Type: AssertKernelCount, Count: &count},
			{Type: AssertLayout, Arena: "data", TotalSize: &total},
			{Type: AssertEntryPoints, EntryPoints: []string{"relu_other"}},
			{Type: AssertOutputs, Inputs: [][]float64{{1, 1, 1, 1}}, Expect: [][]float64{{0, 0, 0, 0}}},
		},
	}

	result, err := Run(c)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected 2 kernel(s), got 1")
	assert.Contains(t, result.Errors[1], "expected data arena total size 9, got 8")
	assert.Contains(t, result.Errors[2], "[relu_other]")
	assert.Contains(t, result.Errors[3], "output 0[0]: expected 0, got 1")
}

func TestRun_UnexpectedSuccess(t *testing.T) {
	c := &Case{
		Name:        "relu_should_fail",
		Description: "expects an error from a valid graph",
		Graph:       "testdata/graphs/relu.json",
		Assertions:  []Assertion{{Type: AssertCompileError, Code: "E204"}},
	}

	result, err := Run(c)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "compilation succeeded")
}

func TestRun_AssertionsAfterCompileFailure(t *testing.T) {
	count := 1
	c := &Case{
		Name:        "unknown",
		Description: "kernel count on a graph that does not compile",
		Graph:       "testdata/graphs/unknown_kind.json",
		Assertions:  []Assertion{{Type: AssertKernelCount, Count: &count}},
	}

	result, err := Run(c)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "compilation failed")
}

func TestRun_OrderWarnings(t *testing.T) {
	graph := filepath.Join(t.TempDir(), "inplace.json")
	require.NoError(t, os.WriteFile(graph, []byte(`{
  "layers": [
    {"name": "a", "type": "relu", "bottoms": [0], "tops": [1]},
    {"name": "b", "type": "tanh", "bottoms": [1], "tops": [1]}
  ],
  "inputs": [0],
  "outputs": [1],
  "data_shapes": [[3], [3]]
}`), 0644))

	one := 1
	c := &Case{
		Name:        "inplace",
		Description: "in-place update is reported",
		Graph:       graph,
		Assertions:  []Assertion{{Type: AssertOrderWarnings, Count: &one}},
	}

	result, err := Run(c)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "info", result.Warnings[0].Level)
}

func TestRun_UnreadableGraph(t *testing.T) {
	c := &Case{
		Name:       "missing",
		Graph:      filepath.Join(t.TempDir(), "missing.json"),
		Assertions: []Assertion{{Type: AssertCompileError, Code: "E204"}},
	}
	_, err := Run(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load graph")
}
