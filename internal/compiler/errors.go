package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/dnnplan/internal/layers"
	"github.com/roach88/dnnplan/internal/layout"
)

// ErrNilGraph is returned when there is no graph to compile.
var ErrNilGraph = errors.New("nil graph")

// IndexError reports a cross-reference that is out of range for its table.
// It is a precondition violation of the input graph and aborts compilation.
type IndexError struct {
	Layer      string // layer name, empty for graph inputs/outputs
	LayerIndex int    // position of the layer in the graph, -1 for graph inputs/outputs
	Slot       string // "bottoms", "tops", "temporaries", "weights", "inputs" or "outputs"
	Position   int    // position within the slot
	Index      int    // the offending value
	Limit      int    // length of the referenced shape table
}

func (e *IndexError) Error() string {
	if e.LayerIndex < 0 {
		return fmt.Sprintf("graph %s[%d] = %d out of range [0, %d)", e.Slot, e.Position, e.Index, e.Limit)
	}
	return fmt.Sprintf("layer %q (#%d): %s[%d] = %d out of range [0, %d)",
		e.Layer, e.LayerIndex, e.Slot, e.Position, e.Index, e.Limit)
}

// IsIndexError reports whether err is, or wraps, an IndexError.
func IsIndexError(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie)
}

// ErrorCode maps a compilation error to its validation code.
// Unrecognized errors map to ErrCompileFailed.
func ErrorCode(err error) string {
	var (
		ie *IndexError
		uk *layers.UnknownKindError
		pe *layers.ParamsError
		be *layers.BufferError
		se *layout.ShapeError
	)
	switch {
	case errors.As(err, &ie):
		if ie.LayerIndex < 0 {
			return ErrBoundaryOutOfRange
		}
		return ErrIndexOutOfRange
	case errors.As(err, &uk):
		return ErrUnknownLayerKind
	case errors.As(err, &pe):
		return ErrInvalidParams
	case errors.As(err, &be):
		return ErrBufferMismatch
	case errors.As(err, &se):
		return ErrInvalidShape
	default:
		return ErrCompileFailed
	}
}
