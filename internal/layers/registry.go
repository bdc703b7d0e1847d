package layers

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/dnnplan/internal/ir"
)

// Compiler turns one configured layer into kernels.
type Compiler interface {
	// GetKernels returns the layer's kernels in execution order.
	GetKernels(io ir.IOBuffers) ([]ir.KernelDescriptor, error)
}

// Evaluator is implemented by compilers that can also run the layer on the
// CPU. weights and data are the two host-side arenas.
type Evaluator interface {
	Evaluate(io ir.IOBuffers, weights, data []float64) error
}

// Factory builds a Compiler from a layer's name and params.
type Factory func(layer ir.Layer) (Compiler, error)

// Registry maps type tags to factories.
//
// Thread-safety: all methods are safe for concurrent use, so one registry
// can serve concurrent compilations.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default creates a registry holding every built-in layer kind.
func Default() *Registry {
	r := NewRegistry()
	for tag, f := range builtins() {
		r.MustRegister(tag, f)
	}
	return r
}

// Register adds a factory for tag. Registering a tag twice is an error.
func (r *Registry) Register(tag string, f Factory) error {
	if tag == "" {
		return fmt.Errorf("register: empty layer type")
	}
	if f == nil {
		return fmt.Errorf("register %q: nil factory", tag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[tag]; exists {
		return fmt.Errorf("register %q: layer type already registered", tag)
	}
	r.factories[tag] = f
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tag string, f Factory) {
	if err := r.Register(tag, f); err != nil {
		panic(err)
	}
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[tag]
	return ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// Build instantiates the compiler for layer.Type.
// Returns *UnknownKindError when no factory is registered for the tag.
func (r *Registry) Build(layer ir.Layer) (Compiler, error) {
	r.mu.RLock()
	f, ok := r.factories[layer.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, &UnknownKindError{Layer: layer.Name, Type: layer.Type}
	}
	return f(layer)
}

func builtins() map[string]Factory {
	return map[string]Factory{
		KindReLU:      newActivationFactory(KindReLU),
		KindSigmoid:   newActivationFactory(KindSigmoid),
		KindTanh:      newActivationFactory(KindTanh),
		KindLeakyReLU: newActivationFactory(KindLeakyReLU),
		KindLinear:    NewLinear,
		KindSoftmax:   NewSoftmax,
	}
}

// Built-in layer type tags.
const (
	KindReLU      = "relu"
	KindSigmoid   = "sigmoid"
	KindTanh      = "tanh"
	KindLeakyReLU = "leaky_relu"
	KindLinear    = "linear"
	KindSoftmax   = "softmax"
)
