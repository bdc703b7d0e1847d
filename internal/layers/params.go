package layers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/dnnplan/internal/ir"
)

// decodeParams decodes layer.Params into dst, rejecting unknown fields.
// Absent or null params leave dst untouched.
func decodeParams(layer ir.Layer, dst any) error {
	raw := bytes.TrimSpace(layer.Params)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &ParamsError{Layer: layer.Name, Type: layer.Type, Err: err}
	}
	if dec.More() {
		return &ParamsError{Layer: layer.Name, Type: layer.Type, Err: fmt.Errorf("trailing data after params object")}
	}
	return nil
}

// maxKernelElement bounds every arena position a kernel addresses. Kernels
// index with 32-bit uint and the last threadgroup runs past the count.
const maxKernelElement = math.MaxUint32 - threadsPerThreadgroup

// expectBuffers checks the arity of one slot and that its buffers are
// addressable by a kernel.
func expectBuffers(layer ir.Layer, slot string, bufs []ir.Buffer, n int) error {
	if len(bufs) != n {
		return &BufferError{
			Layer:   layer.Name,
			Type:    layer.Type,
			Slot:    slot,
			Message: fmt.Sprintf("expected %d buffer(s), got %d", n, len(bufs)),
		}
	}
	return expectAddressable(layer, slot, bufs)
}

func expectAddressable(layer ir.Layer, slot string, bufs []ir.Buffer) error {
	for i, b := range bufs {
		if b.End() > maxKernelElement {
			return &BufferError{
				Layer:   layer.Name,
				Type:    layer.Type,
				Slot:    slot,
				Message: fmt.Sprintf("buffer %d ends at element %d, past the kernel index limit %d", i, b.End(), int64(maxKernelElement)),
			}
		}
	}
	return nil
}

// view returns the part of an arena covered by b.
func view(arena []float64, b ir.Buffer) ([]float64, error) {
	if b.Offset < 0 || b.End() > int64(len(arena)) {
		return nil, fmt.Errorf("buffer [%d, %d) outside arena of %d element(s)", b.Offset, b.End(), len(arena))
	}
	return arena[b.Offset:b.End():b.End()], nil
}

// expectDisjoint rejects a buffer in slot that shares data arena elements
// with other.
func expectDisjoint(layer ir.Layer, slot string, b ir.Buffer, otherSlot string, other ir.Buffer) error {
	if b.Offset < other.End() && other.Offset < b.End() {
		return &BufferError{
			Layer:   layer.Name,
			Type:    layer.Type,
			Slot:    slot,
			Message: fmt.Sprintf("[%d, %d) overlaps %s [%d, %d)", b.Offset, b.End(), otherSlot, other.Offset, other.End()),
		}
	}
	return nil
}
