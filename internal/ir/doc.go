// Package ir provides the intermediate representation types for dnnplan.
//
// This package contains the graph model consumed by the compiler and the
// pipeline artifact it produces, plus canonical serialization and content
// hashing. All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Sizes and offsets are element counts (one float32 per element), never bytes
//   - Layout buffers are index-aligned with the shape table they came from
//   - All JSON tags use snake_case
//   - Empty index lists serialize as [] rather than null
package ir
