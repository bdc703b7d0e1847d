package layers

import (
	"fmt"
	"math"

	"github.com/roach88/dnnplan/internal/ir"
)

// ActivationParams configures the elementwise activation kinds.
// Only leaky_relu accepts a field.
type ActivationParams struct {
	// Alpha is the negative slope of leaky_relu. Defaults to 0.01.
	Alpha *float64 `json:"alpha,omitempty"`
}

const defaultLeakyAlpha = 0.01

// activation compiles an elementwise activation: one bottom, one top of the
// same size, no weights and no temporaries.
type activation struct {
	layer ir.Layer
	kind  string
	alpha float64
}

func newActivationFactory(kind string) Factory {
	return func(layer ir.Layer) (Compiler, error) {
		return newActivation(kind, layer)
	}
}

func newActivation(kind string, layer ir.Layer) (*activation, error) {
	a := &activation{layer: layer, kind: kind, alpha: defaultLeakyAlpha}

	var params ActivationParams
	if err := decodeParams(layer, &params); err != nil {
		return nil, err
	}
	if params.Alpha != nil {
		if kind != KindLeakyReLU {
			return nil, &ParamsError{Layer: layer.Name, Type: layer.Type, Err: fmt.Errorf("%s takes no alpha", kind)}
		}
		if math.IsNaN(*params.Alpha) || math.IsInf(*params.Alpha, 0) {
			return nil, &ParamsError{Layer: layer.Name, Type: layer.Type, Err: fmt.Errorf("alpha must be finite")}
		}
		a.alpha = *params.Alpha
	}
	return a, nil
}

func (a *activation) check(io ir.IOBuffers) error {
	if err := expectBuffers(a.layer, "bottoms", io.Bottoms, 1); err != nil {
		return err
	}
	if err := expectBuffers(a.layer, "tops", io.Tops, 1); err != nil {
		return err
	}
	if err := expectBuffers(a.layer, "weights", io.Weights, 0); err != nil {
		return err
	}
	if err := expectBuffers(a.layer, "temporaries", io.Temporaries, 0); err != nil {
		return err
	}
	if io.Bottoms[0].Size != io.Tops[0].Size {
		return &BufferError{
			Layer:   a.layer.Name,
			Type:    a.layer.Type,
			Slot:    "tops",
			Message: fmt.Sprintf("size %d does not match bottom size %d", io.Tops[0].Size, io.Bottoms[0].Size),
		}
	}
	return nil
}

// expr is the MSL expression for one element, reading v.
func (a *activation) expr() string {
	switch a.kind {
	case KindReLU:
		return "max(v, 0.0f)"
	case KindSigmoid:
		return "1.0f / (1.0f + exp(-v))"
	case KindTanh:
		return "tanh(v)"
	case KindLeakyReLU:
		return fmt.Sprintf("v > 0.0f ? v : %s * v", floatLiteral(a.alpha))
	}
	panic("layers: unhandled activation kind " + a.kind)
}

// GetKernels returns a single kernel with one thread per element.
func (a *activation) GetKernels(io ir.IOBuffers) ([]ir.KernelDescriptor, error) {
	if err := a.check(io); err != nil {
		return nil, err
	}
	k, err := renderKernel("elementwise", kernelData{
		EntryPoint: entryPoint(a.kind, a.layer.Name),
		Count:      io.Tops[0].Size,
		X:          io.Bottoms[0].Offset,
		Y:          io.Tops[0].Offset,
		Expr:       a.expr(),
	})
	if err != nil {
		return nil, err
	}
	return []ir.KernelDescriptor{k}, nil
}

func (a *activation) apply(v float64) float64 {
	switch a.kind {
	case KindReLU:
		return math.Max(v, 0)
	case KindSigmoid:
		return 1 / (1 + math.Exp(-v))
	case KindTanh:
		return math.Tanh(v)
	case KindLeakyReLU:
		if v > 0 {
			return v
		}
		return a.alpha * v
	}
	panic("layers: unhandled activation kind " + a.kind)
}

// Evaluate applies the activation on the host arenas.
func (a *activation) Evaluate(io ir.IOBuffers, _, data []float64) error {
	if err := a.check(io); err != nil {
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
	for i, v := range x {
		y[i] = a.apply(v)
	}
	return nil
}
