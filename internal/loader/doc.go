// Package loader reads graph description files and numeric arrays.
//
// Supported graph formats, chosen by extension:
//   - .cue, .json: compiled with the CUE SDK and unified with the embedded
//     #Graph schema (schema.cue). JSON is read as CUE, so errors in either
//     carry file:line:column positions.
//   - .yaml, .yml: decoded with gopkg.in/yaml.v3, unknown fields rejected.
//
// Loading checks structure only; shape and index semantics are checked by
// the compiler.
package loader
