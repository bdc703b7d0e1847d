package compiler

import (
	"fmt"
	"slices"

	"github.com/roach88/dnnplan/internal/ir"
)

// OrderWarning describes a data-flow oddity in a graph's layer order.
//
// Warnings never block compilation: the generator executes layers in the
// order given and does not reorder them.
type OrderWarning struct {
	Layer   string `json:"layer,omitempty"` // layer name, empty for graph-level findings
	Buffer  int    `json:"buffer"`          // data buffer index
	Message string `json:"message"`
	Level   string `json:"level"` // "warning" or "info"
}

// AnalyzeOrder walks layers in graph order and reports:
//   - reads of a data buffer no earlier layer wrote and that is not a graph input
//   - data buffers written by more than one layer (info when the writer also reads it)
//   - graph outputs that no layer writes and that are not graph inputs
//
// Out-of-range indices are skipped; Validate reports them.
// A well-ordered graph returns an empty list.
func AnalyzeOrder(g *ir.Graph) []OrderWarning {
	warnings := []OrderWarning{}
	limit := len(g.DataShapes)

	// writer[i] is the name of the last layer that wrote data buffer i.
	available := make([]bool, limit)
	writer := make(map[int]string)
	for _, idx := range g.Inputs {
		if idx >= 0 && idx < limit {
			available[idx] = true
		}
	}

	for _, layer := range g.Layers {
		for _, idx := range layer.Bottoms {
			if idx < 0 || idx >= limit || available[idx] {
				continue
			}
			warnings = append(warnings, OrderWarning{
				Layer:   layer.Name,
				Buffer:  idx,
				Message: fmt.Sprintf("reads data buffer %d before any layer writes it", idx),
				Level:   "warning",
			})
		}

		for _, idx := range layer.Tops {
			if idx < 0 || idx >= limit {
				continue
			}
			if prev, ok := writer[idx]; ok {
				w := OrderWarning{
					Layer:   layer.Name,
					Buffer:  idx,
					Message: fmt.Sprintf("overwrites data buffer %d written by layer %q", idx, prev),
					Level:   "warning",
				}
				if slices.Contains(layer.Bottoms, idx) {
					w.Message = fmt.Sprintf("updates data buffer %d in place (written by layer %q)", idx, prev)
					w.Level = "info"
				}
				warnings = append(warnings, w)
			}
			writer[idx] = layer.Name
			available[idx] = true
		}
	}

	for _, idx := range g.Outputs {
		if idx < 0 || idx >= limit || available[idx] {
			continue
		}
		warnings = append(warnings, OrderWarning{
			Buffer:  idx,
			Message: fmt.Sprintf("graph output %d is never written", idx),
			Level:   "warning",
		})
	}

	return warnings
}
