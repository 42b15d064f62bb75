package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"claimforge/compliance/pkg/edits"
)

// TableCounts holds the number of rows per edit table.
type TableCounts struct {
	PTP int `json:"ptp"`
	MUE int `json:"mue"`
	AOC int `json:"aoc"`
}

// distinct returns the sorted unique non-empty codes.
func distinct(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// scope appends the provider and date-of-service filters. An empty
// provider matches every row; an empty asOf disables date filtering.
func scope(where []string, args []any, providerColumn string, provider edits.ProviderType, asOf string, hasDeletion bool) ([]string, []any) {
	if provider != edits.ProviderUnscoped {
		where = append(where, fmt.Sprintf("(%s = ? OR %s = '')", providerColumn, providerColumn))
		args = append(args, string(provider))
	}
	if asOf != "" {
		where = append(where, "(effective_date = '' OR effective_date <= ?)")
		args = append(args, asOf)
		if hasDeletion {
			where = append(where, "(deletion_date = '' OR deletion_date > ?)")
			args = append(args, asOf)
		}
	}
	return where, args
}

// PTPEdits returns every PTP row whose two codes are both among codes, in
// either direction, using one query for all orderings.
func (s *Store) PTPEdits(ctx context.Context, codes []string, provider edits.ProviderType, asOf string) ([]edits.PTPEdit, error) {
	codes = distinct(codes)
	if len(codes) < 2 {
		return nil, nil
	}

	in := placeholders(len(codes))
	where := []string{
		"column1 IN (" + in + ")",
		"column2 IN (" + in + ")",
		"column1 <> column2",
	}
	args := make([]any, 0, 2*len(codes)+3)
	for _, c := range codes {
		args = append(args, c)
	}
	for _, c := range codes {
		args = append(args, c)
	}
	where, args = scope(where, args, "provider_type", provider, asOf, true)

	query := "SELECT " + ptpColumns + " FROM ptp_edits WHERE " + strings.Join(where, " AND ") +
		" ORDER BY column1, column2, provider_type, effective_date"

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, s.readError("query_ptp", err)
	}
	defer rows.Close()

	var out []edits.PTPEdit
	for rows.Next() {
		var r edits.PTPEdit
		var pt string
		if err := rows.Scan(&r.Column1, &r.Column2, &r.ModifierIndicator, &r.EffectiveDate,
			&r.DeletionDate, &pt, &r.Rationale, &r.SourceFile); err != nil {
			return nil, s.readError("scan_ptp", err)
		}
		r.ProviderType = edits.ProviderType(pt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("query_ptp", err)
	}
	return out, nil
}

// MUELimits returns the MUE rows for codes scoped to provider.
func (s *Store) MUELimits(ctx context.Context, codes []string, provider edits.ProviderType, asOf string) ([]edits.MUELimit, error) {
	codes = distinct(codes)
	if len(codes) == 0 {
		return nil, nil
	}

	where := []string{"code IN (" + placeholders(len(codes)) + ")"}
	args := make([]any, 0, len(codes)+2)
	for _, c := range codes {
		args = append(args, c)
	}
	where, args = scope(where, args, "service_type", provider, asOf, false)

	query := "SELECT " + mueColumns + " FROM mue_limits WHERE " + strings.Join(where, " AND ") +
		" ORDER BY code, max_units, service_type"

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, s.readError("query_mue", err)
	}
	defer rows.Close()

	var out []edits.MUELimit
	for rows.Next() {
		var r edits.MUELimit
		var service string
		if err := rows.Scan(&r.Code, &r.MaxUnits, &r.EffectiveDate, &service,
			&r.AdjudicationIndicator, &r.Rationale, &r.SourceFile); err != nil {
			return nil, s.readError("scan_mue", err)
		}
		r.ServiceType = edits.ProviderType(service)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("query_mue", err)
	}
	return out, nil
}

// AOCEdits returns the AOC rows whose add-on code is among codes.
func (s *Store) AOCEdits(ctx context.Context, codes []string, asOf string) ([]edits.AOCEdit, error) {
	codes = distinct(codes)
	if len(codes) == 0 {
		return nil, nil
	}

	where := []string{"add_on_code IN (" + placeholders(len(codes)) + ")"}
	args := make([]any, 0, len(codes)+2)
	for _, c := range codes {
		args = append(args, c)
	}
	where, args = scope(where, args, "", edits.ProviderUnscoped, asOf, true)

	query := "SELECT " + aocColumns + " FROM aoc_edits WHERE " + strings.Join(where, " AND ") +
		" ORDER BY add_on_code, primary_code"

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, s.readError("query_aoc", err)
	}
	defer rows.Close()

	var out []edits.AOCEdit
	for rows.Next() {
		var r edits.AOCEdit
		if err := rows.Scan(&r.AddOnCode, &r.PrimaryCode, &r.EffectiveDate, &r.DeletionDate,
			&r.EditType, &r.SourceFile); err != nil {
			return nil, s.readError("scan_aoc", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("query_aoc", err)
	}
	return out, nil
}

// HasPTPRows reports whether the PTP table holds at least one row.
func (s *Store) HasPTPRows(ctx context.Context) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM ptp_edits LIMIT 1").Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.readError("has_ptp_rows", err)
	}
	return true, nil
}

// Counts returns the number of rows in each edit table.
func (s *Store) Counts(ctx context.Context) (TableCounts, error) {
	var c TableCounts
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM ptp_edits),
		(SELECT COUNT(*) FROM mue_limits),
		(SELECT COUNT(*) FROM aoc_edits)`).Scan(&c.PTP, &c.MUE, &c.AOC)
	if err != nil {
		return TableCounts{}, s.readError("counts", err)
	}
	return c, nil
}

// LatestBuilds returns the most recent build record of each kind, in
// kind order.
func (s *Store) LatestBuilds(ctx context.Context) ([]edits.BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.build_id, b.kind, b.source_url, b.source_files, b.row_count, b.digest, b.started_at, b.finished_at
		FROM snapshot_builds b
		WHERE b.finished_at = (
			SELECT MAX(finished_at) FROM snapshot_builds WHERE kind = b.kind
		)
		ORDER BY b.kind, b.build_id`)
	if err != nil {
		return nil, s.readError("latest_builds", err)
	}
	defer rows.Close()

	byKind := make(map[edits.Kind]edits.BuildRecord)
	for rows.Next() {
		var (
			b                 edits.BuildRecord
			kind, files       string
			started, finished string
		)
		if err := rows.Scan(&b.BuildID, &kind, &b.SourceURL, &files, &b.RowCount, &b.Digest, &started, &finished); err != nil {
			return nil, s.readError("scan_build", err)
		}
		b.Kind = edits.Kind(kind)
		if b.StartedAt, err = parseTime(started); err != nil {
			s.logger.WarnContext(ctx, "malformed started_at in build record", "build_id", b.BuildID, "error", err)
		}
		if b.FinishedAt, err = parseTime(finished); err != nil {
			s.logger.WarnContext(ctx, "malformed finished_at in build record", "build_id", b.BuildID, "error", err)
		}
		if err := json.Unmarshal([]byte(files), &b.SourceFiles); err != nil {
			s.logger.WarnContext(ctx, "malformed source_files in build record", "build_id", b.BuildID, "error", err)
		}
		if _, seen := byKind[b.Kind]; !seen {
			byKind[b.Kind] = b
		}
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("latest_builds", err)
	}

	var out []edits.BuildRecord
	for _, k := range edits.AllKinds() {
		if b, ok := byKind[k]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

// TableDigest returns the sha256 of a kind's rows in canonical order. It
// equals the digest recorded for the build that wrote them.
func (s *Store) TableDigest(ctx context.Context, kind edits.Kind) (string, error) {
	switch kind {
	case edits.KindPTP:
		rows, err := s.PTPRows(ctx)
		if err != nil {
			return "", err
		}
		rows, _ = edits.SortPTP(rows)
		return edits.DigestPTP(rows), nil
	case edits.KindMUE:
		rows, err := s.MUERows(ctx)
		if err != nil {
			return "", err
		}
		rows, _ = edits.SortMUE(rows)
		return edits.DigestMUE(rows), nil
	case edits.KindAOC:
		rows, err := s.AOCRows(ctx)
		if err != nil {
			return "", err
		}
		rows, _ = edits.SortAOC(rows)
		return edits.DigestAOC(rows), nil
	}
	return "", fmt.Errorf("unknown edit kind %q", kind)
}

// PTPRows returns the whole PTP table.
func (s *Store) PTPRows(ctx context.Context) ([]edits.PTPEdit, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+ptpColumns+" FROM ptp_edits")
	if err != nil {
		return nil, s.readError("dump_ptp", err)
	}
	defer rows.Close()

	var out []edits.PTPEdit
	for rows.Next() {
		var r edits.PTPEdit
		var provider string
		if err := rows.Scan(&r.Column1, &r.Column2, &r.ModifierIndicator, &r.EffectiveDate,
			&r.DeletionDate, &provider, &r.Rationale, &r.SourceFile); err != nil {
			return nil, s.readError("dump_ptp", err)
		}
		r.ProviderType = edits.ProviderType(provider)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("dump_ptp", err)
	}
	return out, nil
}

// MUERows returns the whole MUE table.
func (s *Store) MUERows(ctx context.Context) ([]edits.MUELimit, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+mueColumns+" FROM mue_limits")
	if err != nil {
		return nil, s.readError("dump_mue", err)
	}
	defer rows.Close()

	var out []edits.MUELimit
	for rows.Next() {
		var r edits.MUELimit
		var service string
		if err := rows.Scan(&r.Code, &r.MaxUnits, &r.EffectiveDate, &service,
			&r.AdjudicationIndicator, &r.Rationale, &r.SourceFile); err != nil {
			return nil, s.readError("dump_mue", err)
		}
		r.ServiceType = edits.ProviderType(service)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("dump_mue", err)
	}
	return out, nil
}

// AOCRows returns the whole AOC table.
func (s *Store) AOCRows(ctx context.Context) ([]edits.AOCEdit, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+aocColumns+" FROM aoc_edits")
	if err != nil {
		return nil, s.readError("dump_aoc", err)
	}
	defer rows.Close()

	var out []edits.AOCEdit
	for rows.Next() {
		var r edits.AOCEdit
		if err := rows.Scan(&r.AddOnCode, &r.PrimaryCode, &r.EffectiveDate, &r.DeletionDate,
			&r.EditType, &r.SourceFile); err != nil {
			return nil, s.readError("dump_aoc", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.readError("dump_aoc", err)
	}
	return out, nil
}
