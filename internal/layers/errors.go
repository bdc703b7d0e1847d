package layers

import (
	"errors"
	"fmt"
)

// UnknownKindError is returned when a layer's type tag matches no registered
// compiler. It aborts the whole compilation.
type UnknownKindError struct {
	Layer string // layer name
	Type  string // the unrecognized tag, verbatim
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown layer kind %q (layer %q)", e.Type, e.Layer)
}

// IsUnknownKind reports whether err is, or wraps, an UnknownKindError.
func IsUnknownKind(err error) bool {
	var uk *UnknownKindError
	return errors.As(err, &uk)
}

// ParamsError reports params that do not decode into the kind's configuration.
type ParamsError struct {
	Layer string
	Type  string
	Err   error
}

func (e *ParamsError) Error() string {
	return fmt.Sprintf("layer %q (%s): invalid params: %v", e.Layer, e.Type, e.Err)
}

func (e *ParamsError) Unwrap() error {
	return e.Err
}

// BufferError reports resolved buffers that do not fit the layer kind:
// wrong arity in a slot or mismatched sizes.
type BufferError struct {
	Layer   string
	Type    string
	Slot    string // "bottoms", "tops", "temporaries" or "weights"
	Message string
}

func (e *BufferError) Error() string {
	return fmt.Sprintf("layer %q (%s): %s: %s", e.Layer, e.Type, e.Slot, e.Message)
}
