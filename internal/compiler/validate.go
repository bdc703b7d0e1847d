package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/layers"
	"github.com/roach88/dnnplan/internal/layout"
)

// Validation error codes (E200-E299)
const (
	ErrCompileFailed      = "E200" // unclassified compilation failure
	ErrInvalidShape       = "E201" // non-positive dimension or size overflow
	ErrIndexOutOfRange    = "E202" // layer bottoms/tops/temporaries/weights index out of range
	ErrBoundaryOutOfRange = "E203" // graph inputs/outputs index out of range
	ErrUnknownLayerKind   = "E204" // no compiler registered for the layer type
	ErrMissingLayerType   = "E205" // layer type is empty
	ErrDuplicateLayerName = "E206" // two layers share a name
	ErrInvalidParams      = "E207" // params do not decode for the layer kind
	ErrBufferMismatch     = "E208" // resolved buffers do not fit the layer kind
)

// ValidationError represents one problem found in a graph.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Layer   string `json:"layer,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("[%s] layer %q: %s: %s", e.Code, e.Layer, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a graph against a registry.
// Returns all errors found (does not fail-fast). A graph with no validation
// errors compiles.
func Validate(g *ir.Graph, registry *layers.Registry) []ValidationError {
	if g == nil {
		return []ValidationError{{Field: "graph", Message: ErrNilGraph.Error(), Code: ErrCompileFailed}}
	}
	var errs []ValidationError

	weights, werrs := validateShapes("weight_shapes", g.WeightShapes)
	data, derrs := validateShapes("data_shapes", g.DataShapes)
	errs = append(errs, werrs...)
	errs = append(errs, derrs...)
	layoutsOK := len(werrs) == 0 && len(derrs) == 0

	for _, ie := range checkBoundary(g) {
		errs = append(errs, ValidationError{
			Field:   fmt.Sprintf("%s[%d]", ie.Slot, ie.Position),
			Message: ie.Error(),
			Code:    ErrBoundaryOutOfRange,
		})
	}

	names := make(map[string]int)
	for i, layer := range g.Layers {
		if prev, dup := names[layer.Name]; dup && layer.Name != "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("layers[%d].name", i),
				Message: fmt.Sprintf("duplicate layer name (first used by layer #%d)", prev),
				Code:    ErrDuplicateLayerName,
				Layer:   layer.Name,
			})
		} else {
			names[layer.Name] = i
		}

		indexErrs := checkLayerIndices(g, i)
		for _, ie := range indexErrs {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("layers[%d].%s[%d]", i, ie.Slot, ie.Position),
				Message: ie.Error(),
				Code:    ErrIndexOutOfRange,
				Layer:   layer.Name,
			})
		}

		if layer.Type == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("layers[%d].type", i),
				Message: "layer type is required",
				Code:    ErrMissingLayerType,
				Layer:   layer.Name,
			})
			continue
		}

		c, err := registry.Build(layer)
		if err != nil {
			errs = append(errs, layerValidationError(i, layer, err))
			continue
		}

		// Dry-run the kind against its buffers when they resolve.
		if !layoutsOK || len(indexErrs) > 0 {
			continue
		}
		if _, err := c.GetKernels(resolveIO(layer, weights, data)); err != nil {
			errs = append(errs, layerValidationError(i, layer, err))
		}
	}

	return errs
}

// validateShapes lays out one shape table, reporting every bad shape.
func validateShapes(field string, shapes []ir.Shape) (ir.LayoutAssignment, []ValidationError) {
	var errs []ValidationError
	for i, shape := range shapes {
		if _, err := layout.Size(shape); err != nil {
			var se *layout.ShapeError
			if errors.As(err, &se) {
				se.Index = i
			}
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: err.Error(),
				Code:    ErrInvalidShape,
			})
		}
	}
	if len(errs) > 0 {
		return ir.LayoutAssignment{}, errs
	}
	a, err := layout.Assign(shapes)
	if err != nil {
		return ir.LayoutAssignment{}, []ValidationError{{Field: field, Message: err.Error(), Code: ErrInvalidShape}}
	}
	return a, nil
}

func layerValidationError(i int, layer ir.Layer, err error) ValidationError {
	field := fmt.Sprintf("layers[%d]", i)
	var (
		uk *layers.UnknownKindError
		pe *layers.ParamsError
		be *layers.BufferError
	)
	switch {
	case errors.As(err, &uk):
		field += ".type"
	case errors.As(err, &pe):
		field += ".params"
	case errors.As(err, &be):
		field += "." + be.Slot
	}
	return ValidationError{
		Field:   field,
		Message: err.Error(),
		Code:    ErrorCode(err),
		Layer:   layer.Name,
	}
}

// checkBoundary returns every out-of-range graph input or output.
func checkBoundary(g *ir.Graph) []*IndexError {
	var errs []*IndexError
	limit := len(g.DataShapes)
	for _, slot := range []struct {
		name    string
		indices []int
	}{
		{"inputs", g.Inputs},
		{"outputs", g.Outputs},
	} {
		for pos, idx := range slot.indices {
			if idx < 0 || idx >= limit {
				errs = append(errs, &IndexError{LayerIndex: -1, Slot: slot.name, Position: pos, Index: idx, Limit: limit})
			}
		}
	}
	return errs
}

// checkLayerIndices returns every out-of-range index of layer i.
func checkLayerIndices(g *ir.Graph, i int) []*IndexError {
	layer := g.Layers[i]
	var errs []*IndexError
	for _, slot := range []struct {
		name    string
		indices []int
		limit   int
	}{
		{"bottoms", layer.Bottoms, len(g.DataShapes)},
		{"tops", layer.Tops, len(g.DataShapes)},
		{"temporaries", layer.Temporaries, len(g.DataShapes)},
		{"weights", layer.Weights, len(g.WeightShapes)},
	} {
		for pos, idx := range slot.indices {
			if idx < 0 || idx >= slot.limit {
				errs = append(errs, &IndexError{
					Layer:      layer.Name,
					LayerIndex: i,
					Slot:       slot.name,
					Position:   pos,
					Index:      idx,
					Limit:      slot.limit,
				})
			}
		}
	}
	return errs
}

// resolveIO maps a layer's index lists onto the two layouts.
// Indices must already be checked.
func resolveIO(layer ir.Layer, weights, data ir.LayoutAssignment) ir.IOBuffers {
	pick := func(a ir.LayoutAssignment, indices []int) []ir.Buffer {
		out := make([]ir.Buffer, len(indices))
		for i, idx := range indices {
			out[i] = a.Buffers[idx]
		}
		return out
	}
	return ir.IOBuffers{
		Bottoms:     pick(data, layer.Bottoms),
		Tops:        pick(data, layer.Tops),
		Temporaries: pick(data, layer.Temporaries),
		Weights:     pick(weights, layer.Weights),
	}
}
