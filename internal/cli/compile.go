package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/dnnplan/internal/compiler"
	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/loader"
	"github.com/roach88/dnnplan/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output   string // output file path
	Database string // compile cache path, empty to disable
}

// CompileResult summarizes one compilation.
type CompileResult struct {
	Graph        string               `json:"graph"`
	GraphHash    string               `json:"graph_hash"`
	ArtifactHash string               `json:"artifact_hash"`
	Layers       int                  `json:"layers"`
	Kernels      int                  `json:"kernels"`
	WeightTotal  int64                `json:"weight_total"`
	DataTotal    int64                `json:"data_total"`
	Cached       bool                 `json:"cached"`
	Output       string               `json:"output,omitempty"`
	Artifact     *ir.PipelineArtifact `json:"artifact,omitempty"` // set when no output file is given
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <graph>",
		Short: "Compile a graph to a pipeline artifact",
		Long: `Compile a graph file (.json, .cue, .yaml) to a pipeline artifact.

Buffers are packed into the weight and data arenas, then each layer is
compiled to its kernels in graph order. With --db, the compilation is
looked up in and recorded to a SQLite compile cache keyed by graph hash
and compiler version.

Exit codes:
  0 - Compiled
  1 - Graph rejected (see error code)
  2 - Command error (unreadable graph, database error)

Examples:
  dnnplan compile model.json -o model.plan.json
  dnnplan compile model.cue --db cache.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.Database, "db", "", "compile cache database path")

	return cmd
}

func runCompile(opts *CompileOptions, graphPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd)

	g, err := loader.LoadGraph(graphPath)
	if err != nil {
		return fail(formatter, err)
	}
	formatter.VerboseLog("Loaded graph %q: %d layer(s) from %s", g.Name, len(g.Layers), graphPath)

	graphHash, err := ir.GraphHash(g)
	if err != nil {
		return fail(formatter, err)
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return failCommand(formatter, "opening database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	artifact, cached, err := compileCached(cmd.Context(), st, g, graphHash, logger)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return failCommand(formatter, exitErr.Message, exitErr.Err)
		}
		return fail(formatter, err)
	}

	artifactHash, err := ir.ArtifactHash(artifact)
	if err != nil {
		return fail(formatter, err)
	}

	result := CompileResult{
		Graph:        g.Name,
		GraphHash:    graphHash,
		ArtifactHash: artifactHash,
		Layers:       len(g.Layers),
		Kernels:      len(artifact.Kernels),
		WeightTotal:  artifact.WeightBuffersAssignment.TotalSize,
		DataTotal:    artifact.DataBuffersAssignment.TotalSize,
		Cached:       cached,
		Output:       opts.Output,
	}

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeArtifactToFile(artifact, opts.Output); err != nil {
			_ = formatter.Error(loader.ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, loader.ErrCodeWriteFailed, err)
		}
	} else {
		result.Artifact = artifact
	}

	return outputCompileSuccess(formatter, result)
}

// compileCached returns the cached artifact for the graph when st holds
// one, and otherwise compiles the graph and records it in st.
// Store failures are returned as ExitErrors.
func compileCached(ctx context.Context, st *store.Store, g *ir.Graph, graphHash string, logger *slog.Logger) (*ir.PipelineArtifact, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if st != nil {
		rec, found, err := st.FindCompilation(ctx, graphHash, ir.CompilerVersion)
		if err != nil {
			return nil, false, WrapExitError(ExitCommandError, "reading compile cache", err)
		}
		if found {
			logger.Info("cache hit", "graph", g.Name, "id", rec.ID, "seq", rec.Seq)
			return rec.Artifact, true, nil
		}
	}

	artifact, err := compiler.New(nil, logger).Generate(g)
	if err != nil {
		return nil, false, err
	}

	if st != nil {
		rec, _, err := st.RecordCompilation(ctx, g, artifact)
		if err != nil {
			return nil, false, WrapExitError(ExitCommandError, "recording compilation", err)
		}
		logger.Info("compilation recorded", "graph", g.Name, "id", rec.ID, "seq", rec.Seq)
	}
	return artifact, false, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result CompileResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	name := result.Graph
	if name == "" {
		name = "(unnamed)"
	}
	suffix := ""
	if result.Cached {
		suffix = " (cached)"
	}
	fmt.Fprintf(w, "✓ Compiled %s: %d layer(s), %d kernel(s)%s\n\n", name, result.Layers, result.Kernels, suffix)
	fmt.Fprintf(w, "  weight arena: %d element(s)\n", result.WeightTotal)
	fmt.Fprintf(w, "  data arena:   %d element(s)\n", result.DataTotal)
	fmt.Fprintf(w, "  graph hash:    %s\n", result.GraphHash)
	fmt.Fprintf(w, "  artifact hash: %s\n", result.ArtifactHash)

	if result.Output != "" {
		fmt.Fprintf(w, "\nWrote artifact to %s\n", result.Output)
	}
	return nil
}

// writeArtifactToFile writes the artifact as indented JSON.
func writeArtifactToFile(artifact *ir.PipelineArtifact, filename string) error {
	// Use standard JSON with indentation for readability
	// (canonical JSON without indentation is used only for hashing)
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
