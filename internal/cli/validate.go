package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dnnplan/internal/compiler"
	"github.com/roach88/dnnplan/internal/layers"
	"github.com/roach88/dnnplan/internal/loader"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors"`
	Warnings []compiler.OrderWarning    `json:"warnings"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph>",
		Short: "Validate a graph without generating kernels",
		Long: `Validate a graph file without producing an artifact.

Reports every problem instead of stopping at the first: bad shapes,
out-of-range indices, unknown layer kinds, malformed params and buffers
a layer kind cannot use. Layer order findings are reported as warnings
and never fail validation.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, graphPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	g, err := loader.LoadGraph(graphPath)
	if err != nil {
		return fail(formatter, err)
	}
	formatter.VerboseLog("Validating graph %q: %d layer(s)", g.Name, len(g.Layers))

	result := ValidationResult{
		Errors:   compiler.Validate(g, layers.Default()),
		Warnings: compiler.AnalyzeOrder(g),
	}
	if result.Errors == nil {
		result.Errors = []compiler.ValidationError{}
	}
	result.Valid = len(result.Errors) == 0

	if formatter.Format == "json" {
		return outputValidateJSON(formatter, result)
	}
	return outputValidateText(formatter, result)
}

// outputValidateJSON outputs the validation result as a CLIResponse.
func outputValidateJSON(formatter *OutputFormatter, result ValidationResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.Valid {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    result.Errors[0].Code,
			Message: fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)),
		}
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

// outputValidateText outputs the validation result for humans.
func outputValidateText(formatter *OutputFormatter, result ValidationResult) error {
	w := formatter.Writer

	if result.Valid {
		fmt.Fprintln(w, "✓ Graph valid")
	} else {
		fmt.Fprintln(w, "✗ Validation failed")
		fmt.Fprintln(w)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e.Error())
		}
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warning := range result.Warnings {
			if warning.Layer != "" {
				fmt.Fprintf(w, "  %s: layer %q %s\n", warning.Level, warning.Layer, warning.Message)
			} else {
				fmt.Fprintf(w, "  %s: %s\n", warning.Level, warning.Message)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}
