package layers

import (
	"fmt"
	"math"

	"github.com/roach88/dnnplan/internal/ir"
)

// SoftmaxParams configures a softmax layer. Only the last axis is supported;
// Axis may be omitted, -1, or the index of the last axis.
type SoftmaxParams struct {
	Axis *int `json:"axis,omitempty"`
}

// softmax normalizes each row along the last axis in two kernels:
// exponentiate and sum per row into the temporary, then divide.
type softmax struct {
	layer  ir.Layer
	params SoftmaxParams
}

// NewSoftmax is the factory for the "softmax" kind.
func NewSoftmax(layer ir.Layer) (Compiler, error) {
	s := &softmax{layer: layer}
	if err := decodeParams(layer, &s.params); err != nil {
		return nil, err
	}
	return s, nil
}

// rows returns the number of rows and the row width.
func (s *softmax) rows(io ir.IOBuffers) (rows, channels int64, err error) {
	if err := expectBuffers(s.layer, "bottoms", io.Bottoms, 1); err != nil {
		return 0, 0, err
	}
	if err := expectBuffers(s.layer, "tops", io.Tops, 1); err != nil {
		return 0, 0, err
	}
	if err := expectBuffers(s.layer, "temporaries", io.Temporaries, 1); err != nil {
		return 0, 0, err
	}
	if err := expectBuffers(s.layer, "weights", io.Weights, 0); err != nil {
		return 0, 0, err
	}

	x := io.Bottoms[0]
	rank := len(x.Shape)
	if s.params.Axis != nil {
		if axis := *s.params.Axis; axis != -1 && axis != rank-1 {
			return 0, 0, &ParamsError{Layer: s.layer.Name, Type: s.layer.Type,
				Err: fmt.Errorf("axis %d: only the last axis is supported", axis)}
		}
	}

	channels = 1
	if rank > 0 {
		channels = x.Shape[rank-1]
	}
	if channels < 1 {
		return 0, 0, &BufferError{Layer: s.layer.Name, Type: s.layer.Type, Slot: "bottoms",
			Message: fmt.Sprintf("shape %s has an empty last axis", x.Shape)}
	}
	rows = x.Size / channels

	if y := io.Tops[0]; y.Size != x.Size {
		return 0, 0, &BufferError{Layer: s.layer.Name, Type: s.layer.Type, Slot: "tops",
			Message: fmt.Sprintf("size %d does not match bottom size %d", y.Size, x.Size)}
	}
	if t := io.Temporaries[0]; t.Size < rows {
		return 0, 0, &BufferError{Layer: s.layer.Name, Type: s.layer.Type, Slot: "temporaries",
			Message: fmt.Sprintf("size %d cannot hold %d row sum(s)", t.Size, rows)}
	}
	if err := expectDisjoint(s.layer, "temporaries", io.Temporaries[0], "bottoms", x); err != nil {
		return 0, 0, err
	}
	if err := expectDisjoint(s.layer, "temporaries", io.Temporaries[0], "tops", io.Tops[0]); err != nil {
		return 0, 0, err
	}
	return rows, channels, nil
}

// GetKernels returns the exponentiate/sum kernel (one thread per row)
// followed by the normalize kernel (one thread per element).
func (s *softmax) GetKernels(io ir.IOBuffers) ([]ir.KernelDescriptor, error) {
	rows, channels, err := s.rows(io)
	if err != nil {
		return nil, err
	}
	base := kernelData{
		X:        io.Bottoms[0].Offset,
		Y:        io.Tops[0].Offset,
		T:        io.Temporaries[0].Offset,
		Channels: channels,
	}

	exp := base
	exp.EntryPoint = entryPoint(KindSoftmax, s.layer.Name, "exp")
	exp.Count = rows
	k1, err := renderKernel("softmax_exp", exp)
	if err != nil {
		return nil, err
	}

	norm := base
	norm.EntryPoint = entryPoint(KindSoftmax, s.layer.Name, "normalize")
	norm.Count = rows * channels
	k2, err := renderKernel("softmax_normalize", norm)
	if err != nil {
		return nil, err
	}
	return []ir.KernelDescriptor{k1, k2}, nil
}

// Evaluate runs the same two passes on the host arenas.
func (s *softmax) Evaluate(io ir.IOBuffers, _, data []float64) error {
	rows, channels, err := s.rows(io)
	if err != nil {
		return err
	}
	x, err := view(data, io.Bottoms[0])
	if err != nil {
		return err
	}
	y, err := view(data, io.Tops[0])
	if err != nil {
		return err
	}
	sums, err := view(data, io.Temporaries[0])
	if err != nil {
		return err
	}

	for r := int64(0); r < rows; r++ {
		row := x[r*channels : (r+1)*channels]
		m := row[0]
		for _, v := range row[1:] {
			m = math.Max(m, v)
		}
		var sum float64
		for c, v := range row {
			e := math.Exp(v - m)
			y[r*channels+int64(c)] = e
			sum += e
		}
		sums[r] = sum
	}
	for i := range y {
		y[i] /= sums[int64(i)/channels]
	}
	return nil
}
