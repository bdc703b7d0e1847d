package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/dnnplan/internal/ir"
)

// ShapeError reports a shape that cannot be laid out.
type ShapeError struct {
	Index   int   // position in the shape table
	Dim     int   // offending dimension, -1 when the whole shape overflows
	Value   int64 // offending dimension value
	Message string
}

func (e *ShapeError) Error() string {
	if e.Dim >= 0 {
		return fmt.Sprintf("shape %d: dimension %d is %d: %s", e.Index, e.Dim, e.Value, e.Message)
	}
	return fmt.Sprintf("shape %d: %s", e.Index, e.Message)
}

// Size returns the element count of a shape, checking every dimension is
// positive and the product fits in an int64. The empty shape is a scalar of
// size 1.
func Size(shape ir.Shape) (int64, error) {
	size := int64(1)
	for d, n := range shape {
		if n < 1 {
			return 0, &ShapeError{Dim: d, Value: n, Message: "dimensions must be positive"}
		}
		if size > math.MaxInt64/n {
			return 0, &ShapeError{Dim: -1, Message: fmt.Sprintf("size of %s overflows", shape)}
		}
		size *= n
	}
	return size, nil
}

// Assign packs shapes into one arena in table order.
//
// buffers[i].Offset is the sum of the sizes of buffers[0..i-1] and TotalSize
// is the sum of all sizes. The returned buffers own copies of the shapes.
func Assign(shapes []ir.Shape) (ir.LayoutAssignment, error) {
	var offset int64
	buffers := make([]ir.Buffer, 0, len(shapes))
	for i, shape := range shapes {
		size, err := Size(shape)
		if err != nil {
			var se *ShapeError
			if errors.As(err, &se) {
				se.Index = i
			}
			return ir.LayoutAssignment{}, err
		}
		if offset > math.MaxInt64-size {
			return ir.LayoutAssignment{}, &ShapeError{Index: i, Dim: -1, Message: "arena size overflows"}
		}
		buffers = append(buffers, ir.Buffer{
			Shape:  shape.Clone(),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}
	return ir.LayoutAssignment{Buffers: buffers, TotalSize: offset}, nil
}

// Resolve looks up the buffers for a list of indices.
// It returns an error naming the first index out of range.
func Resolve(a ir.LayoutAssignment, indices []int) ([]ir.Buffer, error) {
	out := make([]ir.Buffer, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(a.Buffers) {
			return nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(a.Buffers))
		}
		out[i] = a.Buffers[idx]
	}
	return out, nil
}
