package layers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/dnnplan/internal/ir"
)

// LinearParams configures a linear layer. Both fields are optional; when set
// they must agree with the weight matrix shape.
type LinearParams struct {
	InFeatures  int64 `json:"in_features,omitempty"`
	OutFeatures int64 `json:"out_features,omitempty"`
}

// linear computes y = x·W (+ b).
//
// Buffers: one bottom viewed as [batch, in], weights W [in, out] and an
// optional bias [out], one top of batch*out elements. W is row-major.
type linear struct {
	layer  ir.Layer
	params LinearParams
}

// NewLinear is the factory for the "linear" kind.
func NewLinear(layer ir.Layer) (Compiler, error) {
	l := &linear{layer: layer}
	if err := decodeParams(layer, &l.params); err != nil {
		return nil, err
	}
	if l.params.InFeatures < 0 || l.params.OutFeatures < 0 {
		return nil, &ParamsError{Layer: layer.Name, Type: layer.Type, Err: fmt.Errorf("feature counts must be positive")}
	}
	return l, nil
}

// linearDims are the resolved problem sizes.
type linearDims struct {
	batch, in, out int64
	hasBias        bool
}

func (l *linear) bufferError(slot, format string, args ...any) error {
	return &BufferError{Layer: l.layer.Name, Type: l.layer.Type, Slot: slot, Message: fmt.Sprintf(format, args...)}
}

func (l *linear) dims(io ir.IOBuffers) (linearDims, error) {
	var d linearDims
	if err := expectBuffers(l.layer, "bottoms", io.Bottoms, 1); err != nil {
		return d, err
	}
	if err := expectBuffers(l.layer, "tops", io.Tops, 1); err != nil {
		return d, err
	}
	if err := expectBuffers(l.layer, "temporaries", io.Temporaries, 0); err != nil {
		return d, err
	}
	if len(io.Weights) != 1 && len(io.Weights) != 2 {
		return d, l.bufferError("weights", "expected weight matrix and optional bias, got %d buffer(s)", len(io.Weights))
	}
	if err := expectAddressable(l.layer, "weights", io.Weights); err != nil {
		return d, err
	}

	w := io.Weights[0]
	if len(w.Shape) != 2 {
		return d, l.bufferError("weights", "weight matrix must be rank 2 [in, out], got %s", w.Shape)
	}
	d.in, d.out = w.Shape[0], w.Shape[1]
	if d.in < 1 || d.out < 1 {
		return d, l.bufferError("weights", "weight matrix %s has a non-positive dimension", w.Shape)
	}
	if l.params.InFeatures != 0 && l.params.InFeatures != d.in {
		return d, l.bufferError("weights", "in_features is %d but weight matrix is %s", l.params.InFeatures, w.Shape)
	}
	if l.params.OutFeatures != 0 && l.params.OutFeatures != d.out {
		return d, l.bufferError("weights", "out_features is %d but weight matrix is %s", l.params.OutFeatures, w.Shape)
	}

	x := io.Bottoms[0]
	if x.Size%d.in != 0 {
		return d, l.bufferError("bottoms", "size %d is not a multiple of in_features %d", x.Size, d.in)
	}
	d.batch = x.Size / d.in
	if y := io.Tops[0]; y.Size != d.batch*d.out {
		return d, l.bufferError("tops", "size %d, want batch %d x out_features %d", y.Size, d.batch, d.out)
	}
	if err := expectDisjoint(l.layer, "tops", io.Tops[0], "bottoms", x); err != nil {
		return d, err
	}

	if len(io.Weights) == 2 {
		if b := io.Weights[1]; b.Size != d.out {
			return d, l.bufferError("weights", "bias size %d, want %d", b.Size, d.out)
		}
		d.hasBias = true
	}
	return d, nil
}

// GetKernels returns one kernel with a thread per output element.
func (l *linear) GetKernels(io ir.IOBuffers) ([]ir.KernelDescriptor, error) {
	d, err := l.dims(io)
	if err != nil {
		return nil, err
	}
	data := kernelData{
		EntryPoint: entryPoint(KindLinear, l.layer.Name),
		Count:      d.batch * d.out,
		X:          io.Bottoms[0].Offset,
		Y:          io.Tops[0].Offset,
		W:          io.Weights[0].Offset,
		In:         d.in,
		Out:        d.out,
		HasBias:    d.hasBias,
	}
	if d.hasBias {
		data.B = io.Weights[1].Offset
	}
	k, err := renderKernel("linear", data)
	if err != nil {
		return nil, err
	}
	return []ir.KernelDescriptor{k}, nil
}

// Evaluate computes the layer on the host arenas with gonum.
func (l *linear) Evaluate(io ir.IOBuffers, weights, data []float64) error {
	d, err := l.dims(io)
	if err != nil {
		return err
	}
	xs, err := view(data, io.Bottoms[0])
	if err != nil {
		return err
	}
	ws, err := view(weights, io.Weights[0])
	if err != nil {
		return err
	}
	ys, err := view(data, io.Tops[0])
	if err != nil {
		return err
	}

	x := mat.NewDense(int(d.batch), int(d.in), xs)
	w := mat.NewDense(int(d.in), int(d.out), ws)
	var y mat.Dense
	y.Mul(x, w)

	if d.hasBias {
		bs, err := view(weights, io.Weights[1])
		if err != nil {
			return err
		}
		bias := mat.NewVecDense(int(d.out), bs)
		for n := 0; n < int(d.batch); n++ {
			row := y.RowView(n).(*mat.VecDense)
			row.AddVec(row, bias)
		}
	}

	copy(ys, y.RawMatrix().Data)
	return nil
}
