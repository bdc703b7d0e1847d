// Package layers holds the layer compilers: one per layer kind, selected by
// the layer's type tag through a Registry.
//
// A layer compiler is built from the layer's name and params, then asked for
// the kernels that implement the layer against already-resolved buffers:
//
//	reg := layers.Default()
//	c, err := reg.Build(layer)              // *UnknownKindError if the tag is not registered
//	kernels, err := c.GetKernels(ioBuffers) // zero or more kernels, in execution order
//
// # Kernel conventions
//
// Kernels are Metal Shading Language compute functions. Every kernel takes
// the weight arena as buffer(0) and the data arena as buffer(1); buffer
// offsets are baked into the generated source. Launches are 1-D with 64
// threads per threadgroup and every kernel bounds-checks its thread index.
//
// # Reference evaluation
//
// Built-in kinds also implement Evaluator, a float64 CPU version of the same
// computation over host-side arenas. The reference package uses it to check
// compiled layouts numerically.
package layers
