package edits

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"slices"
	"strconv"
	"strings"
)

// SortPTP orders rows canonically and removes duplicates that differ only
// by source file. It returns the number of rows removed.
func SortPTP(rows []PTPEdit) ([]PTPEdit, int) {
	slices.SortFunc(rows, func(a, b PTPEdit) int {
		return cmp.Or(
			cmp.Compare(a.Column1, b.Column1),
			cmp.Compare(a.Column2, b.Column2),
			cmp.Compare(a.ProviderType, b.ProviderType),
			cmp.Compare(a.EffectiveDate, b.EffectiveDate),
			cmp.Compare(a.DeletionDate, b.DeletionDate),
			cmp.Compare(a.ModifierIndicator, b.ModifierIndicator),
			cmp.Compare(a.Rationale, b.Rationale),
			cmp.Compare(a.SourceFile, b.SourceFile),
		)
	})
	before := len(rows)
	rows = slices.CompactFunc(rows, func(a, b PTPEdit) bool {
		a.SourceFile, b.SourceFile = "", ""
		return a == b
	})
	return rows, before - len(rows)
}

// SortMUE orders rows canonically and removes duplicates that differ only
// by source file.
func SortMUE(rows []MUELimit) ([]MUELimit, int) {
	slices.SortFunc(rows, func(a, b MUELimit) int {
		return cmp.Or(
			cmp.Compare(a.Code, b.Code),
			cmp.Compare(a.ServiceType, b.ServiceType),
			cmp.Compare(a.MaxUnits, b.MaxUnits),
			cmp.Compare(a.EffectiveDate, b.EffectiveDate),
			cmp.Compare(a.AdjudicationIndicator, b.AdjudicationIndicator),
			cmp.Compare(a.Rationale, b.Rationale),
			cmp.Compare(a.SourceFile, b.SourceFile),
		)
	})
	before := len(rows)
	rows = slices.CompactFunc(rows, func(a, b MUELimit) bool {
		a.SourceFile, b.SourceFile = "", ""
		return a == b
	})
	return rows, before - len(rows)
}

// SortAOC orders rows canonically and removes duplicates that differ only
// by source file.
func SortAOC(rows []AOCEdit) ([]AOCEdit, int) {
	slices.SortFunc(rows, func(a, b AOCEdit) int {
		return cmp.Or(
			cmp.Compare(a.AddOnCode, b.AddOnCode),
			cmp.Compare(a.PrimaryCode, b.PrimaryCode),
			cmp.Compare(a.EffectiveDate, b.EffectiveDate),
			cmp.Compare(a.DeletionDate, b.DeletionDate),
			cmp.Compare(a.EditType, b.EditType),
			cmp.Compare(a.SourceFile, b.SourceFile),
		)
	})
	before := len(rows)
	rows = slices.CompactFunc(rows, func(a, b AOCEdit) bool {
		a.SourceFile, b.SourceFile = "", ""
		return a == b
	})
	return rows, before - len(rows)
}

// Canonical encoding separators. Neither occurs in publisher data.
const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// DigestPTP returns the sha256 of rows in their given order. Callers pass
// rows already ordered by SortPTP.
func DigestPTP(rows []PTPEdit) string {
	h := sha256.New()
	for _, r := range rows {
		writeRecord(h, r.Column1, r.Column2, r.ModifierIndicator, r.EffectiveDate,
			r.DeletionDate, string(r.ProviderType), r.Rationale, r.SourceFile)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestMUE returns the sha256 of rows in their given order.
func DigestMUE(rows []MUELimit) string {
	h := sha256.New()
	for _, r := range rows {
		writeRecord(h, r.Code, strconv.Itoa(r.MaxUnits), r.EffectiveDate, string(r.ServiceType),
			r.AdjudicationIndicator, r.Rationale, r.SourceFile)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestAOC returns the sha256 of rows in their given order.
func DigestAOC(rows []AOCEdit) string {
	h := sha256.New()
	for _, r := range rows {
		writeRecord(h, r.AddOnCode, r.PrimaryCode, r.EffectiveDate, r.DeletionDate, r.EditType, r.SourceFile)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeRecord(w io.Writer, fields ...string) {
	_, _ = w.Write([]byte(strings.Join(fields, fieldSep) + recordSep))
}
