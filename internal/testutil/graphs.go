package testutil

import (
	"encoding/json"

	"github.com/roach88/dnnplan/internal/ir"
)

// Graph fixtures shared by package tests. Each call returns a fresh graph.

// ReluGraph is the single-layer relu pipeline: data 0 -> relu -> data 1.
func ReluGraph() *ir.Graph {
	return &ir.Graph{
		Name: "relu",
		Layers: []ir.Layer{
			{Name: "r1", Type: "relu", Bottoms: []int{0}, Tops: []int{1}},
		},
		Inputs:       []int{0},
		Outputs:      []int{1},
		DataShapes:   []ir.Shape{{1, 4}, {1, 4}},
		WeightShapes: []ir.Shape{},
	}
}

// LinearGraph is a 3->2 linear layer with bias.
func LinearGraph() *ir.Graph {
	return &ir.Graph{
		Name: "linear",
		Layers: []ir.Layer{
			{Name: "fc", Type: "linear", Bottoms: []int{0}, Tops: []int{1}, Weights: []int{0, 1}},
		},
		Inputs:       []int{0},
		Outputs:      []int{1},
		DataShapes:   []ir.Shape{{1, 3}, {1, 2}},
		WeightShapes: []ir.Shape{{3, 2}, {2}},
	}
}

// MLPGraph is linear -> relu -> linear -> softmax over a batch of 2.
func MLPGraph() *ir.Graph {
	return &ir.Graph{
		Name: "mlp",
		Layers: []ir.Layer{
			{Name: "fc1", Type: "linear", Params: json.RawMessage(`{"in_features":4,"out_features":3}`),
				Bottoms: []int{0}, Tops: []int{1}, Weights: []int{0, 1}},
			{Name: "act1", Type: "relu", Bottoms: []int{1}, Tops: []int{2}},
			{Name: "fc2", Type: "linear", Bottoms: []int{2}, Tops: []int{3}, Weights: []int{2}},
			{Name: "prob", Type: "softmax", Bottoms: []int{3}, Tops: []int{4}, Temporaries: []int{5}},
		},
		Inputs:       []int{0},
		Outputs:      []int{4},
		DataShapes:   []ir.Shape{{2, 4}, {2, 3}, {2, 3}, {2, 2}, {2, 2}, {2}},
		WeightShapes: []ir.Shape{{4, 3}, {3}, {3, 2}},
	}
}
