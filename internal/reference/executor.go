package reference

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/layers"
	"github.com/roach88/dnnplan/internal/layout"
)

// Executor runs pipeline artifacts on host memory.
type Executor struct {
	registry *layers.Registry
	logger   *slog.Logger
}

// New creates an Executor. A nil registry means layers.Default(); a nil
// logger discards output.
func New(registry *layers.Registry, logger *slog.Logger) *Executor {
	if registry == nil {
		registry = layers.Default()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{registry: registry, logger: logger}
}

// Run executes artifact, compiled from g, with the given weight arena and one
// slice per graph input. It returns one slice per graph output, in order.
//
// weights must hold exactly the weight arena's total size; inputs[i] must
// match the size of data buffer artifact.Inputs[i].
func (e *Executor) Run(g *ir.Graph, artifact *ir.PipelineArtifact, weights []float64, inputs [][]float64) ([][]float64, error) {
	wa, da := artifact.WeightBuffersAssignment, artifact.DataBuffersAssignment
	if int64(len(weights)) != wa.TotalSize {
		return nil, fmt.Errorf("weights: got %d value(s), weight arena holds %d", len(weights), wa.TotalSize)
	}
	if len(inputs) != len(artifact.Inputs) {
		return nil, fmt.Errorf("inputs: got %d, graph has %d", len(inputs), len(artifact.Inputs))
	}

	inBufs, err := artifact.InputBuffers()
	if err != nil {
		return nil, err
	}
	data := make([]float64, da.TotalSize)
	for i, b := range inBufs {
		if int64(len(inputs[i])) != b.Size {
			return nil, fmt.Errorf("input %d: got %d value(s), buffer %s holds %d", i, len(inputs[i]), b.Shape, b.Size)
		}
		copy(data[b.Offset:b.End()], inputs[i])
	}

	for i, layer := range g.Layers {
		c, err := e.registry.Build(layer)
		if err != nil {
			return nil, err
		}
		ev, ok := c.(layers.Evaluator)
		if !ok {
			return nil, fmt.Errorf("layer %q: kind %q has no host evaluator", layer.Name, layer.Type)
		}
		bufs, err := resolveIO(layer, wa, da)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", layer.Name, err)
		}
		if err := ev.Evaluate(bufs, weights, data); err != nil {
			return nil, fmt.Errorf("evaluate layer %q: %w", layer.Name, err)
		}
		e.logger.Debug("layer evaluated", "index", i, "layer", layer.Name, "type", layer.Type)
	}

	outBufs, err := artifact.OutputBuffers()
	if err != nil {
		return nil, err
	}
	outputs := make([][]float64, len(outBufs))
	for i, b := range outBufs {
		outputs[i] = append([]float64(nil), data[b.Offset:b.End()]...)
	}
	return outputs, nil
}

// Run executes artifact with the built-in layer kinds.
func Run(g *ir.Graph, artifact *ir.PipelineArtifact, weights []float64, inputs [][]float64) ([][]float64, error) {
	return New(nil, nil).Run(g, artifact, weights, inputs)
}

func resolveIO(layer ir.Layer, weights, data ir.LayoutAssignment) (ir.IOBuffers, error) {
	var (
		bufs ir.IOBuffers
		err  error
	)
	if bufs.Bottoms, err = layout.Resolve(data, layer.Bottoms); err != nil {
		return bufs, fmt.Errorf("bottoms: %w", err)
	}
	if bufs.Tops, err = layout.Resolve(data, layer.Tops); err != nil {
		return bufs, fmt.Errorf("tops: %w", err)
	}
	if bufs.Temporaries, err = layout.Resolve(data, layer.Temporaries); err != nil {
		return bufs, fmt.Errorf("temporaries: %w", err)
	}
	if bufs.Weights, err = layout.Resolve(weights, layer.Weights); err != nil {
		return bufs, fmt.Errorf("weights: %w", err)
	}
	return bufs, nil
}
