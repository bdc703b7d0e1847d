package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dnnplan/internal/compiler"
	"github.com/roach88/dnnplan/internal/loader"
	"github.com/roach88/dnnplan/internal/reference"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Weights string // JSON array holding the whole weight arena
	Inputs  string // JSON array with one array per graph input
}

// RunResult holds the graph outputs of a reference run.
type RunResult struct {
	Graph   string      `json:"graph"`
	Kernels int         `json:"kernels"`
	Outputs [][]float64 `json:"outputs"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <graph>",
		Short: "Compile a graph and evaluate it on the host",
		Long: `Compile a graph, then evaluate every layer on the CPU against the
compiled arena layout and print the graph outputs.

The weights file holds the whole weight arena as one JSON array, in
buffer order. The inputs file holds one JSON array per graph input.

Examples:
  dnnplan run mlp.yaml --weights mlp.weights.json --inputs mlp.inputs.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Weights, "weights", "", "weight arena file (JSON array)")
	cmd.Flags().StringVar(&opts.Inputs, "inputs", "", "graph inputs file (JSON array of arrays)")

	return cmd
}

func runRun(opts *RunOptions, graphPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	g, err := loader.LoadGraph(graphPath)
	if err != nil {
		return fail(formatter, err)
	}

	weights := []float64{}
	if opts.Weights != "" {
		if weights, err = loader.LoadVector(opts.Weights); err != nil {
			return fail(formatter, err)
		}
	}
	inputs := [][]float64{}
	if opts.Inputs != "" {
		if inputs, err = loader.LoadMatrix(opts.Inputs); err != nil {
			return fail(formatter, err)
		}
	}

	artifact, err := compiler.New(nil, logger).Generate(g)
	if err != nil {
		return fail(formatter, err)
	}
	formatter.VerboseLog("Evaluating %d layer(s) on the host", len(g.Layers))

	outputs, err := reference.New(nil, logger).Run(g, artifact, weights, inputs)
	if err != nil {
		return fail(formatter, err)
	}

	result := RunResult{Graph: g.Name, Kernels: len(artifact.Kernels), Outputs: outputs}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Evaluated %d layer(s), %d output(s)\n\n", len(g.Layers), len(outputs))
	for i, out := range outputs {
		fmt.Fprintf(w, "  output %d: %v\n", i, out)
	}
	return nil
}
