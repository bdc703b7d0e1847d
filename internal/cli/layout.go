package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/layout"
	"github.com/roach88/dnnplan/internal/loader"
)

// LayoutResult holds both arena assignments of a graph.
type LayoutResult struct {
	Weights ir.LayoutAssignment `json:"weights"`
	Data    ir.LayoutAssignment `json:"data"`
}

// NewLayoutCommand creates the layout command.
func NewLayoutCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout <graph>",
		Short: "Show the arena layout of a graph",
		Long: `Pack the weight and data shape tables of a graph into their arenas
and print every buffer's shape, offset and size. No kernels are generated.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLayout(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runLayout(opts *RootOptions, graphPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	g, err := loader.LoadGraph(graphPath)
	if err != nil {
		return fail(formatter, err)
	}

	weights, err := layout.Assign(g.WeightShapes)
	if err != nil {
		return fail(formatter, fmt.Errorf("weight_shapes: %w", err))
	}
	data, err := layout.Assign(g.DataShapes)
	if err != nil {
		return fail(formatter, fmt.Errorf("data_shapes: %w", err))
	}

	if formatter.Format == "json" {
		return formatter.Success(LayoutResult{Weights: weights, Data: data})
	}

	if err := layout.Describe(formatter.Writer, "weight", weights); err != nil {
		return err
	}
	return layout.Describe(formatter.Writer, "data", data)
}
