package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dnnplan/internal/ir"
)

// RecordCompilation stores a successful compilation of g.
//
// The record is keyed by (graph hash, ir.CompilerVersion). If that key is
// already present the existing record is returned with inserted=false and
// nothing is written. Seq is assigned as one past the highest stored seq.
func (s *Store) RecordCompilation(ctx context.Context, g *ir.Graph, a *ir.PipelineArtifact) (rec ir.CompilationRecord, inserted bool, err error) {
	graphHash, err := ir.GraphHash(g)
	if err != nil {
		return rec, false, fmt.Errorf("record compilation: %w", err)
	}
	artifactHash, err := ir.ArtifactHash(a)
	if err != nil {
		return rec, false, fmt.Errorf("record compilation: %w", err)
	}
	artifactJSON, err := marshalArtifact(a)
	if err != nil {
		return rec, false, fmt.Errorf("record compilation: %w", err)
	}

	rec = ir.CompilationRecord{
		ID:              s.ids.Generate(),
		GraphName:       g.Name,
		GraphHash:       graphHash,
		ArtifactHash:    artifactHash,
		CompilerVersion: ir.CompilerVersion,
		IRVersion:       ir.IRVersion,
		LayerCount:      len(g.Layers),
		KernelCount:     len(a.Kernels),
		WeightTotal:     a.WeightBuffersAssignment.TotalSize,
		DataTotal:       a.DataBuffersAssignment.TotalSize,
		Artifact:        a,
	}

	// Use a transaction to ensure atomicity of insert-or-select
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rec, false, fmt.Errorf("record compilation: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO compilations
		(id, seq, graph_name, graph_hash, artifact_hash, compiler_version, ir_version,
		 layer_count, kernel_count, weight_total, data_total, artifact)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM compilations WHERE true
		ON CONFLICT(graph_hash, compiler_version) DO NOTHING
	`,
		rec.ID,
		rec.GraphName,
		rec.GraphHash,
		rec.ArtifactHash,
		rec.CompilerVersion,
		rec.IRVersion,
		rec.LayerCount,
		rec.KernelCount,
		rec.WeightTotal,
		rec.DataTotal,
		artifactJSON,
	)
	if err != nil {
		return rec, false, fmt.Errorf("record compilation: insert: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return rec, false, fmt.Errorf("record compilation: rows affected: %w", err)
	}

	if n == 0 {
		existing, err := findCompilation(ctx, tx, graphHash, ir.CompilerVersion)
		if err != nil {
			return rec, false, fmt.Errorf("record compilation: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return rec, false, fmt.Errorf("record compilation: commit: %w", err)
		}
		return existing, false, nil
	}

	for i, k := range a.Kernels {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kernels
			(compilation_id, position, entry_point,
			 groups_width, groups_height, groups_depth,
			 threads_width, threads_height, threads_depth, source_bytes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ID, i, k.EntryPoint,
			k.ThreadgroupsPerGrid.Width, k.ThreadgroupsPerGrid.Height, k.ThreadgroupsPerGrid.Depth,
			k.ThreadsPerThreadgroup.Width, k.ThreadsPerThreadgroup.Height, k.ThreadsPerThreadgroup.Depth,
			len(k.KernelSource),
		)
		if err != nil {
			return rec, false, fmt.Errorf("record compilation: insert kernel %d: %w", i, err)
		}
	}

	if err := tx.QueryRowContext(ctx, `SELECT seq FROM compilations WHERE id = ?`, rec.ID).Scan(&rec.Seq); err != nil {
		return rec, false, fmt.Errorf("record compilation: read seq: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return rec, false, fmt.Errorf("record compilation: commit: %w", err)
	}
	return rec, true, nil
}

// DeleteCompilation removes a compilation and its kernels.
// Deleting an unknown ID is not an error.
func (s *Store) DeleteCompilation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM compilations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete compilation: %w", err)
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrNotFound is returned when a compilation does not exist.
var ErrNotFound = errors.New("compilation not found")
