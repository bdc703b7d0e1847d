package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Shape is an ordered list of dimension sizes.
type Shape []int64

// Clone returns a copy that does not share storage with s.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// String renders the shape as "[d0,d1,...]".
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Graph is a static computation graph, already in dependency order.
type Graph struct {
	Name         string  `json:"name,omitempty"`
	Layers       []Layer `json:"layers"`
	Inputs       []int   `json:"inputs"`  // indices into DataShapes
	Outputs      []int   `json:"outputs"` // indices into DataShapes
	DataShapes   []Shape `json:"data_shapes"`
	WeightShapes []Shape `json:"weight_shapes"`
}

// Layer is one node of the graph.
type Layer struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`             // selects the layer compiler
	Params      json.RawMessage `json:"params,omitempty"` // kind-specific, decoded by the layer compiler
	Bottoms     []int           `json:"bottoms"`          // indices into DataShapes
	Tops        []int           `json:"tops"`             // indices into DataShapes
	Temporaries []int           `json:"temporaries"`      // indices into DataShapes
	Weights     []int           `json:"weights"`          // indices into WeightShapes
}

// Buffer is a region of an arena.
type Buffer struct {
	Shape  Shape `json:"shape"`
	Offset int64 `json:"offset"` // elements from the start of the arena
	Size   int64 `json:"size"`   // elements
}

// End returns the first offset past the buffer.
func (b Buffer) End() int64 {
	return b.Offset + b.Size
}

// LayoutAssignment packs an ordered shape table into one arena.
type LayoutAssignment struct {
	Buffers   []Buffer `json:"buffers"`
	TotalSize int64    `json:"total_size"`
}

// IOBuffers groups the resolved buffers of one layer.
type IOBuffers struct {
	Bottoms     []Buffer `json:"bottoms"`
	Tops        []Buffer `json:"tops"`
	Temporaries []Buffer `json:"temporaries"`
	Weights     []Buffer `json:"weights"`
}

// LaunchSize is a 1-3 dimensional launch tuple. Unused dimensions are 1.
type LaunchSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Depth  int `json:"depth"`
}

// NewLaunchSize builds a LaunchSize from one to three dimensions.
// Missing trailing dimensions default to 1.
func NewLaunchSize(dims ...int) (LaunchSize, error) {
	if len(dims) == 0 || len(dims) > 3 {
		return LaunchSize{}, fmt.Errorf("launch size needs 1 to 3 dimensions, got %d", len(dims))
	}
	ls := LaunchSize{Width: 1, Height: 1, Depth: 1}
	for i, d := range dims {
		if d < 1 {
			return LaunchSize{}, fmt.Errorf("launch dimension %d must be positive, got %d", i, d)
		}
		switch i {
		case 0:
			ls.Width = d
		case 1:
			ls.Height = d
		case 2:
			ls.Depth = d
		}
	}
	return ls, nil
}

// Count returns the number of elements covered by the launch tuple.
func (l LaunchSize) Count() int {
	return l.Width * l.Height * l.Depth
}

// KernelDescriptor is one unit of GPU work.
type KernelDescriptor struct {
	ThreadgroupsPerGrid   LaunchSize `json:"threadgroups_per_grid"`
	ThreadsPerThreadgroup LaunchSize `json:"threads_per_threadgroup"`
	KernelSource          string     `json:"kernel_source"`
	EntryPoint            string     `json:"entry_point"`
}

// PipelineArtifact is the compiled execution plan.
//
// Kernels run in slice order. Inputs and Outputs index into
// DataBuffersAssignment.Buffers.
type PipelineArtifact struct {
	WeightBuffersAssignment LayoutAssignment   `json:"weight_buffers_assignment"`
	DataBuffersAssignment   LayoutAssignment   `json:"data_buffers_assignment"`
	Kernels                 []KernelDescriptor `json:"kernels"`
	Inputs                  []int              `json:"inputs"`
	Outputs                 []int              `json:"outputs"`
}

// InputBuffers returns the data buffers bound to the graph inputs.
func (a *PipelineArtifact) InputBuffers() ([]Buffer, error) {
	return a.pick("inputs", a.Inputs)
}

// OutputBuffers returns the data buffers read back after a run.
func (a *PipelineArtifact) OutputBuffers() ([]Buffer, error) {
	return a.pick("outputs", a.Outputs)
}

func (a *PipelineArtifact) pick(slot string, indices []int) ([]Buffer, error) {
	bufs := a.DataBuffersAssignment.Buffers
	out := make([]Buffer, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(bufs) {
			return nil, fmt.Errorf("%s[%d] = %d out of range [0, %d)", slot, i, idx, len(bufs))
		}
		out[i] = bufs[idx]
	}
	return out, nil
}
