package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/dnnplan/internal/compiler"
	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/testutil"
)

// createTestStore creates a new store in a temp dir with sequential IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequenceIDGenerator()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustCompile compiles g or fails the test.
func mustCompile(t *testing.T, g *ir.Graph) *ir.PipelineArtifact {
	t.Helper()
	a, err := compiler.Generate(g)
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	return a
}
