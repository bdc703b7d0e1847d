// Package reference executes a compiled pipeline on the CPU.
//
// The executor follows the artifact exactly as a GPU runtime would: one
// weight arena and one data arena sized from the two layouts, graph inputs
// copied into their data buffers, layers run in graph order against arena
// offsets, and graph outputs read back. Each layer kind supplies the host
// computation through layers.Evaluator.
//
// It exists to check generated plans numerically; it is not a fast path.
package reference
