package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dnnplan/internal/ir"
)

const compilationColumns = `
	id, seq, graph_name, graph_hash, artifact_hash, compiler_version, ir_version,
	layer_count, kernel_count, weight_total, data_total, artifact`

// FindCompilation returns the cached compilation of a graph hash under a
// compiler version. found is false when there is none.
func (s *Store) FindCompilation(ctx context.Context, graphHash, compilerVersion string) (rec ir.CompilationRecord, found bool, err error) {
	rec, err = findCompilation(ctx, s.db, graphHash, compilerVersion)
	if errors.Is(err, ErrNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

func findCompilation(ctx context.Context, q queryer, graphHash, compilerVersion string) (ir.CompilationRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT`+compilationColumns+`
		FROM compilations
		WHERE graph_hash = ? AND compiler_version = ?
	`, graphHash, compilerVersion)
	return scanCompilation(row)
}

// ReadCompilation returns the compilation with the given ID, artifact
// included. Returns ErrNotFound if it does not exist.
func (s *Store) ReadCompilation(ctx context.Context, id string) (ir.CompilationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+compilationColumns+`
		FROM compilations
		WHERE id = ?
	`, id)
	return scanCompilation(row)
}

// ListCompilations returns the most recent compilations, newest first,
// without their artifacts. A limit of zero or less returns all of them.
//
// Returns an empty slice (not nil) if the cache is empty.
func (s *Store) ListCompilations(ctx context.Context, limit int) ([]ir.CompilationRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, graph_name, graph_hash, artifact_hash, compiler_version, ir_version,
		       layer_count, kernel_count, weight_total, data_total
		FROM compilations
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	records := []ir.CompilationRecord{}
	for rows.Next() {
		var rec ir.CompilationRecord
		if err := rows.Scan(
			&rec.ID, &rec.Seq, &rec.GraphName, &rec.GraphHash, &rec.ArtifactHash,
			&rec.CompilerVersion, &rec.IRVersion,
			&rec.LayerCount, &rec.KernelCount, &rec.WeightTotal, &rec.DataTotal,
		); err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return records, nil
}

// ListKernels returns the kernel summaries of a compilation in launch order.
func (s *Store) ListKernels(ctx context.Context, compilationID string) ([]ir.KernelRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT compilation_id, position, entry_point,
		       groups_width, groups_height, groups_depth,
		       threads_width, threads_height, threads_depth, source_bytes
		FROM kernels
		WHERE compilation_id = ?
		ORDER BY position ASC
	`, compilationID)
	if err != nil {
		return nil, fmt.Errorf("query kernels: %w", err)
	}
	defer rows.Close()

	kernels := []ir.KernelRecord{}
	for rows.Next() {
		var k ir.KernelRecord
		if err := rows.Scan(
			&k.CompilationID, &k.Position, &k.EntryPoint,
			&k.ThreadgroupsPerGrid.Width, &k.ThreadgroupsPerGrid.Height, &k.ThreadgroupsPerGrid.Depth,
			&k.ThreadsPerThreadgroup.Width, &k.ThreadsPerThreadgroup.Height, &k.ThreadsPerThreadgroup.Depth,
			&k.SourceBytes,
		); err != nil {
			return nil, fmt.Errorf("scan kernel: %w", err)
		}
		kernels = append(kernels, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kernels: %w", err)
	}
	return kernels, nil
}

func scanCompilation(row *sql.Row) (ir.CompilationRecord, error) {
	var (
		rec      ir.CompilationRecord
		artifact string
	)
	err := row.Scan(
		&rec.ID, &rec.Seq, &rec.GraphName, &rec.GraphHash, &rec.ArtifactHash,
		&rec.CompilerVersion, &rec.IRVersion,
		&rec.LayerCount, &rec.KernelCount, &rec.WeightTotal, &rec.DataTotal,
		&artifact,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("scan compilation: %w", err)
	}
	if rec.Artifact, err = unmarshalArtifact(artifact, rec.ArtifactHash); err != nil {
		return rec, fmt.Errorf("compilation %s: %w", rec.ID, err)
	}
	return rec, nil
}
