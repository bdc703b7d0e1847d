// Package layout assigns arena offsets to tensor shapes.
//
// The allocator is a sequential bump allocator: every shape gets a disjoint
// region, in table order, with no gaps, no alignment padding and no reuse.
// Downstream kernels rely on offsets staying valid for the whole pipeline, so
// regions are never shared even when tensor lifetimes do not overlap.
package layout
