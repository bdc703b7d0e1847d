package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dnnplan/internal/ir"
	"github.com/roach88/dnnplan/internal/testutil"
)

func TestRecordCompilation_Insert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	g := testutil.MLPGraph()
	a := mustCompile(t, g)

	rec, inserted, err := s.RecordCompilation(ctx, g, a)
	require.NoError(t, err)
	assert.True(t, inserted)

	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, "mlp", rec.GraphName)
	assert.Equal(t, ir.MustGraphHash(g), rec.GraphHash)
	assert.Equal(t, ir.CompilerVersion, rec.CompilerVersion)
	assert.Equal(t, ir.IRVersion, rec.IRVersion)
	assert.Equal(t, 4, rec.LayerCount)
	assert.Equal(t, 5, rec.KernelCount)
	assert.Equal(t, int64(12+3+6), rec.WeightTotal)
	assert.Equal(t, int64(8+6+6+4+4+2), rec.DataTotal)

	want, err := ir.ArtifactHash(a)
	require.NoError(t, err)
	assert.Equal(t, want, rec.ArtifactHash)
}

func TestRecordCompilation_DuplicateReturnsExisting(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	g := testutil.ReluGraph()
	a := mustCompile(t, g)

	first, inserted, err := s.RecordCompilation(ctx, g, a)
	require.NoError(t, err)
	require.True(t, inserted)

	second, inserted, err := s.RecordCompilation(ctx, testutil.ReluGraph(), a)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Seq, second.Seq)

	all, err := s.ListCompilations(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordCompilation_SeqIncreases(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for i, g := range []*ir.Graph{testutil.ReluGraph(), testutil.LinearGraph(), testutil.MLPGraph()} {
		rec, inserted, err := s.RecordCompilation(ctx, g, mustCompile(t, g))
		require.NoError(t, err)
		require.True(t, inserted)
		assert.Equal(t, int64(i+1), rec.Seq)
	}
}

func TestRecordCompilation_Kernels(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	g := testutil.MLPGraph()
	a := mustCompile(t, g)
	rec, _, err := s.RecordCompilation(ctx, g, a)
	require.NoError(t, err)

	kernels, err := s.ListKernels(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, kernels, len(a.Kernels))
	for i, k := range kernels {
		assert.Equal(t, i, k.Position)
		assert.Equal(t, rec.ID, k.CompilationID)
		assert.Equal(t, a.Kernels[i].EntryPoint, k.EntryPoint)
		assert.Equal(t, a.Kernels[i].ThreadgroupsPerGrid, k.ThreadgroupsPerGrid)
		assert.Equal(t, a.Kernels[i].ThreadsPerThreadgroup, k.ThreadsPerThreadgroup)
		assert.Equal(t, len(a.Kernels[i].KernelSource), k.SourceBytes)
	}
}

func TestDeleteCompilation_CascadesKernels(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	g := testutil.LinearGraph()
	rec, _, err := s.RecordCompilation(ctx, g, mustCompile(t, g))
	require.NoError(t, err)

	require.NoError(t, s.DeleteCompilation(ctx, rec.ID))
	require.NoError(t, s.DeleteCompilation(ctx, rec.ID))

	_, err = s.ReadCompilation(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	kernels, err := s.ListKernels(ctx, rec.ID)
	require.NoError(t, err)
	assert.Empty(t, kernels)
}
