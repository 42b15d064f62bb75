package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"claimforge/compliance/pkg/edits"
)

// ReplaceSnapshot replaces the table of every kind the snapshot includes
// and records its build provenance, all in one transaction. Readers see
// either the previous rows or the new ones. Kinds the snapshot leaves nil
// are untouched.
func (s *Store) ReplaceSnapshot(ctx context.Context, snap *edits.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	var kinds []edits.Kind
	for _, k := range edits.AllKinds() {
		if snap.Includes(k) {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return fmt.Errorf("snapshot includes no edit kinds")
	}

	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return edits.NewStoreError(s.dialect.name, "begin", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, k := range kinds {
		if err := s.replaceKind(ctx, tx, k, snap); err != nil {
			return edits.NewStoreError(s.dialect.name, "replace_"+string(k), err)
		}
	}
	for _, b := range snap.Builds {
		if err := s.insertBuild(ctx, tx, b); err != nil {
			return edits.NewStoreError(s.dialect.name, "insert_build", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return edits.NewStoreError(s.dialect.name, "commit", err)
	}
	gen := s.generation.Add(1)

	s.logger.InfoContext(ctx, "snapshot replaced",
		"kinds", kinds,
		"ptp_rows", len(snap.PTP),
		"mue_rows", len(snap.MUE),
		"aoc_rows", len(snap.AOC),
		"generation", gen,
		"duration", time.Since(start),
	)
	return nil
}

func (s *Store) replaceKind(ctx context.Context, tx *sql.Tx, kind edits.Kind, snap *edits.Snapshot) error {
	switch kind {
	case edits.KindPTP:
		if _, err := tx.ExecContext(ctx, "DELETE FROM ptp_edits"); err != nil {
			return err
		}
		return insertBatches(ctx, s, tx, "ptp_edits", ptpColumns, 8, snap.PTP, func(r edits.PTPEdit) []any {
			return []any{r.Column1, r.Column2, r.ModifierIndicator, r.EffectiveDate, r.DeletionDate,
				string(r.ProviderType), r.Rationale, r.SourceFile}
		})

	case edits.KindMUE:
		if _, err := tx.ExecContext(ctx, "DELETE FROM mue_limits"); err != nil {
			return err
		}
		return insertBatches(ctx, s, tx, "mue_limits", mueColumns, 7, snap.MUE, func(r edits.MUELimit) []any {
			return []any{r.Code, r.MaxUnits, r.EffectiveDate, string(r.ServiceType),
				r.AdjudicationIndicator, r.Rationale, r.SourceFile}
		})

	case edits.KindAOC:
		if _, err := tx.ExecContext(ctx, "DELETE FROM aoc_edits"); err != nil {
			return err
		}
		return insertBatches(ctx, s, tx, "aoc_edits", aocColumns, 6, snap.AOC, func(r edits.AOCEdit) []any {
			return []any{r.AddOnCode, r.PrimaryCode, r.EffectiveDate, r.DeletionDate, r.EditType, r.SourceFile}
		})
	}
	return fmt.Errorf("unknown edit kind %q", kind)
}

// insertBatches writes rows with multi-row INSERT statements of at most
// s.batchSize rows each.
func insertBatches[T any](ctx context.Context, s *Store, tx *sql.Tx, table, columns string, width int, rows []T, values func(T) []any) error {
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"

	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))
		batch := rows[start:end]

		groups := make([]string, len(batch))
		args := make([]any, 0, len(batch)*width)
		for i, r := range batch {
			groups[i] = group
			args = append(args, values(r)...)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, columns, strings.Join(groups, ", "))
		if _, err := tx.ExecContext(ctx, s.dialect.rebind(query), args...); err != nil {
			return fmt.Errorf("inserting rows %d-%d into %s: %w", start, end, table, err)
		}
	}
	return nil
}

// insertBuild records b, replacing any earlier record with the same
// build id and kind.
func (s *Store) insertBuild(ctx context.Context, tx *sql.Tx, b edits.BuildRecord) error {
	files, err := json.Marshal(b.SourceFiles)
	if err != nil {
		return err
	}
	if b.SourceFiles == nil {
		files = []byte("[]")
	}
	_, err = tx.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO snapshot_builds (
			build_id, kind, source_url, source_files, row_count, digest, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (build_id, kind) DO UPDATE SET
			source_url = excluded.source_url,
			source_files = excluded.source_files,
			row_count = excluded.row_count,
			digest = excluded.digest,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`),
		b.BuildID, string(b.Kind), b.SourceURL, string(files), b.RowCount, b.Digest,
		formatTime(b.StartedAt), formatTime(b.FinishedAt),
	)
	return err
}
