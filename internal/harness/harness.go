package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dnnplan/internal/compiler"
	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/loader"
	"github.com/roach88/dnnplan/internal/store"
	"github.com/roach88/dnnplan/internal/testutil"
)

// Run executes a case and returns the result.
//
// Execution flow:
//  1. Load the graph file
//  2. Compile it with the built-in layer kinds
//  3. On success, record the compilation in a fresh in-memory store and
//     check the stored artifact reads back with the same hash
//  4. Evaluate assertions
//
// An error is returned only when the case cannot be run at all (unreadable
// graph, store failure). Compilation failures are results.
func Run(c *Case) (*Result, error) {
	g, err := loader.LoadGraph(c.Graph)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	result := NewResult()
	result.Warnings = compiler.AnalyzeOrder(g)

	artifact, err := compiler.New(nil, logger).Generate(g)
	if err != nil {
		result.CompileErr = err
		result.ErrorCode = compiler.ErrorCode(err)
	} else {
		result.Artifact = artifact
		if err := checkStoreRoundTrip(g, artifact, result); err != nil {
			return nil, err
		}
	}

	for _, msg := range EvaluateAssertions(g, result, c.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// checkStoreRoundTrip records the compilation in an in-memory store and
// reads it back.
func checkStoreRoundTrip(g *ir.Graph, artifact *ir.PipelineArtifact, result *Result) error {
	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequenceIDGenerator()))
	if err != nil {
		return fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	rec, _, err := st.RecordCompilation(ctx, g, artifact)
	if err != nil {
		return fmt.Errorf("record compilation: %w", err)
	}
	stored, err := st.ReadCompilation(ctx, rec.ID)
	if err != nil {
		result.AddError(fmt.Sprintf("stored artifact does not read back: %v", err))
		return nil
	}
	got, err := ir.ArtifactHash(stored.Artifact)
	if err != nil {
		return err
	}
	if got != rec.ArtifactHash {
		result.AddError(fmt.Sprintf("stored artifact hash %s, compiled %s", got, rec.ArtifactHash))
	}
	return nil
}
