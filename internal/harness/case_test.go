package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCase(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "case.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadCase_Valid(t *testing.T) {
	c, err := LoadCase("testdata/cases/relu.yaml")
	require.NoError(t, err)

	assert.Equal(t, "relu", c.Name)
	assert.Equal(t, filepath.Join("testdata", "graphs", "relu.json"), c.Graph)
	require.Len(t, c.Assertions, 5)
	assert.Equal(t, AssertLayout, c.Assertions[0].Type)
	require.NotNil(t, c.Assertions[0].TotalSize)
	assert.Equal(t, int64(8), *c.Assertions[0].TotalSize)
	assert.Equal(t, []int64{0, 4}, c.Assertions[0].Offsets)
	assert.Equal(t, [][]float64{{-1, 2, -3, 4}}, c.Assertions[4].Inputs)
}

func TestLoadCase_AllTestdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/cases/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		_, err := LoadCase(path)
		assert.NoError(t, err, path)
	}
}

func TestLoadCase_UnknownField(t *testing.T) {
	dir := t.TempDir()
	path := writeCase(t, dir, `
name: x
description: x
graph: g.json
assertion:
  - type: kernel_count
    count: 1
`)
	_, err := LoadCase(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadCase_MissingFile(t *testing.T) {
	_, err := LoadCase(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read case file")
}

func TestLoadCase_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\ngraph: g.json\nassertions: [{type: kernel_count, count: 1}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\ngraph: g.json\nassertions: [{type: kernel_count, count: 1}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing graph",
			content: "name: n\ndescription: d\nassertions: [{type: kernel_count, count: 1}]\n",
			wantErr: "graph is required",
		},
		{
			name:    "graph not found",
			content: "name: n\ndescription: d\ngraph: nope.json\nassertions: [{type: kernel_count, count: 1}]\n",
			wantErr: "graph file not found",
		},
		{
			name:    "no assertions",
			content: "name: n\ndescription: d\ngraph: g.json\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\ngraph: g.json\nassertions: [{type: trace_order}]\n",
			wantErr: `unknown assertion type "trace_order"`,
		},
		{
			name:    "kernel_count without count",
			content: "name: n\ndescription: d\ngraph: g.json\nassertions: [{type: kernel_count}]\n",
			wantErr: "non-negative count is required",
		},
		{
			name:    "bad arena",
			content: "name: n\ndescription: d\ngraph: g.json\nassertions: [{type: layout, arena: host, total_size: 1}]\n",
			wantErr: `arena must be "weight" or "data"`,
		},
		{
			name:    "layout without expectation",
			content: "name: n\ndescription: d\ngraph: g.json\nassertions: [{type: layout, arena: data}]\n",
			wantErr: "total_size or offsets is required",
		},
		{
			name:    "compile_error without code",
			content: "name: n\ndescription: d\ngraph: g.json\nassertions: [{type: compile_error}]\n",
			wantErr: "code is required",
		},
		{
			name:    "compile_error with others",
			content: "name: n\ndescription: d\ngraph: g.json\nassertions: [{type: compile_error, code: E204}, {type: kernel_count, count: 0}]\n",
			wantErr: "compile_error must be the only assertion",
		},
		{
			name:    "outputs without expect",
			content: "name: n\ndescription: d\ngraph: g.json\nassertions: [{type: outputs, inputs: [[1]]}]\n",
			wantErr: "expect is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "g.json"), []byte(`{}`), 0644))
			_, err := LoadCase(writeCase(t, dir, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
