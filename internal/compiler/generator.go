package compiler

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/layers"
	"github.com/roach88/dnnplan/internal/layout"
)

// Generator assembles a PipelineArtifact from a graph.
//
// A Generator holds no per-compilation state, so one value may serve
// concurrent Generate calls.
type Generator struct {
	registry *layers.Registry
	logger   *slog.Logger
}

// New creates a Generator. A nil registry means layers.Default(); a nil
// logger discards output.
func New(registry *layers.Registry, logger *slog.Logger) *Generator {
	if registry == nil {
		registry = layers.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Generator{registry: registry, logger: logger}
}

// Generate compiles g with the built-in layer kinds.
func Generate(g *ir.Graph) (*ir.PipelineArtifact, error) {
	return New(nil, nil).Generate(g)
}

// Generate compiles a graph into a pipeline artifact.
//
// Execution flow:
//  1. Check every graph and layer cross-reference (first failure is returned)
//  2. Lay out weight_shapes and data_shapes in two independent arenas
//  3. For each layer, in graph order: resolve its buffers, build its compiler
//     from the registry and append the kernels it returns
//  4. Package both layouts, the kernels and the graph's inputs/outputs
//
// Layers are processed exactly in the given order; the graph must already be
// in dependency order. On error no artifact is returned.
func (gen *Generator) Generate(g *ir.Graph) (*ir.PipelineArtifact, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	if err := checkReferences(g); err != nil {
		return nil, err
	}

	weights, err := layout.Assign(g.WeightShapes)
	if err != nil {
		return nil, fmt.Errorf("weight_shapes: %w", err)
	}
	data, err := layout.Assign(g.DataShapes)
	if err != nil {
		return nil, fmt.Errorf("data_shapes: %w", err)
	}
	gen.logger.Debug("buffers assigned",
		"weight_buffers", len(weights.Buffers),
		"weight_total", weights.TotalSize,
		"data_buffers", len(data.Buffers),
		"data_total", data.TotalSize,
	)

	kernels := []ir.KernelDescriptor{}
	for i, layer := range g.Layers {
		c, err := gen.registry.Build(layer)
		if err != nil {
			return nil, err
		}
		layerKernels, err := c.GetKernels(resolveIO(layer, weights, data))
		if err != nil {
			return nil, err
		}
		threads := 0
		for _, k := range layerKernels {
			threads += k.ThreadgroupsPerGrid.Count() * k.ThreadsPerThreadgroup.Count()
		}
		gen.logger.Debug("layer compiled",
			"index", i,
			"layer", layer.Name,
			"type", layer.Type,
			"kernels", len(layerKernels),
			"threads", threads,
		)
		kernels = append(kernels, layerKernels...)
	}

	artifact := &ir.PipelineArtifact{
		WeightBuffersAssignment: weights,
		DataBuffersAssignment:   data,
		Kernels:                 kernels,
		Inputs:                  cloneIndices(g.Inputs),
		Outputs:                 cloneIndices(g.Outputs),
	}
	gen.logger.Info("pipeline generated",
		"graph", g.Name,
		"layers", len(g.Layers),
		"kernels", len(kernels),
		"weight_total", weights.TotalSize,
		"data_total", data.TotalSize,
	)
	return artifact, nil
}

// checkReferences returns the first out-of-range graph or layer index.
func checkReferences(g *ir.Graph) error {
	if errs := checkBoundary(g); len(errs) > 0 {
		return errs[0]
	}
	for i := range g.Layers {
		if errs := checkLayerIndices(g, i); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

// cloneIndices copies an index list, turning nil into an empty list.
func cloneIndices(in []int) []int {
	if in == nil {
		return []int{}
	}
	return slices.Clone(in)
}
