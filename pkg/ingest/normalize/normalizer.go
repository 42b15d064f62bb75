package normalize

import (
	"fmt"
	"log/slog"

	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest/extract"
)

// Result holds the canonical rows of one kind and how they were obtained.
type Result struct {
	Kind edits.Kind

	PTP []edits.PTPEdit
	MUE []edits.MUELimit
	AOC []edits.AOCEdit

	// Tables is the number of RowSets that had the kind's required headers.
	Tables int

	// RowsRead counts data rows in those tables.
	RowsRead int

	// Dropped counts rows missing a required field or carrying an
	// implausible code.
	Dropped int

	// Duplicates counts rows removed by deduplication.
	Duplicates int
}

// Count returns the number of canonical rows.
func (r *Result) Count() int {
	return len(r.PTP) + len(r.MUE) + len(r.AOC)
}

// Apply sets the kind's rows on the snapshot.
func (r *Result) Apply(s *edits.Snapshot) {
	switch r.Kind {
	case edits.KindPTP:
		s.PTP = r.PTP
	case edits.KindMUE:
		s.MUE = r.MUE
	case edits.KindAOC:
		s.AOC = r.AOC
	}
}

// Normalizer maps decoded tables onto canonical edit rows.
type Normalizer struct {
	classifier Classifier
	logger     *slog.Logger
}

// New creates a Normalizer. A nil classifier uses FilenameClassifier.
func New(classifier Classifier) *Normalizer {
	if classifier == nil {
		classifier = FilenameClassifier{}
	}
	return &Normalizer{
		classifier: classifier,
		logger:     slog.Default().With("component", "normalize"),
	}
}

// Normalize converts every RowSet into canonical rows of kind. origin is
// the downloaded file name; together with each table's entry name it feeds
// provider type classification. The output is sorted and deduplicated so
// identical input yields identical rows. A result with no rows fails with
// edits.ErrEmptyDataset.
func (n *Normalizer) Normalize(kind edits.Kind, origin string, sets []extract.RowSet) (*Result, error) {
	aliases, ok := Aliases[kind]
	if !ok {
		return nil, fmt.Errorf("unknown edit kind %q", kind)
	}

	res := &Result{Kind: kind}
	for _, rs := range sets {
		idx := NewHeaderIndex(rs.Headers, aliases)
		if !hasRequired(idx, kind) {
			n.logger.Debug("table lacks required headers",
				"kind", kind,
				"table", rs.Name(),
				"headers", rs.Headers,
			)
			continue
		}
		res.Tables++
		res.RowsRead += len(rs.Rows)

		source := origin + " " + rs.Name()
		switch kind {
		case edits.KindPTP:
			n.ptpRows(res, idx, rs, source)
		case edits.KindMUE:
			n.mueRows(res, idx, rs, source)
		case edits.KindAOC:
			n.aocRows(res, idx, rs)
		}
	}

	switch kind {
	case edits.KindPTP:
		res.PTP, res.Duplicates = edits.SortPTP(res.PTP)
	case edits.KindMUE:
		res.MUE, res.Duplicates = edits.SortMUE(res.MUE)
	case edits.KindAOC:
		res.AOC, res.Duplicates = edits.SortAOC(res.AOC)
	}

	n.logger.Info("normalized rows",
		"kind", kind,
		"origin", origin,
		"tables", res.Tables,
		"rows_read", res.RowsRead,
		"rows", res.Count(),
		"dropped", res.Dropped,
		"duplicates", res.Duplicates,
	)

	if res.Count() == 0 {
		return res, fmt.Errorf("%w: %s from %s (%d tables, %d rows read)",
			edits.ErrEmptyDataset, kind.Title(), origin, res.Tables, res.RowsRead)
	}
	return res, nil
}

func hasRequired(idx HeaderIndex, kind edits.Kind) bool {
	for _, f := range Required[kind] {
		if !idx.Has(f) {
			return false
		}
	}
	return true
}

func (n *Normalizer) ptpRows(res *Result, idx HeaderIndex, rs extract.RowSet, source string) {
	provider := n.classifier.Classify(edits.KindPTP, source)
	for _, row := range rs.Rows {
		c1, ok1 := codeField(idx, row, FieldColumn1)
		c2, ok2 := codeField(idx, row, FieldColumn2)
		if !ok1 || !ok2 {
			res.Dropped++
			continue
		}
		indicator, _ := idx.Value(row, FieldIndicator)
		rationale, _ := idx.Value(row, FieldRationale)
		res.PTP = append(res.PTP, edits.PTPEdit{
			Column1:           c1,
			Column2:           c2,
			ModifierIndicator: indicator,
			EffectiveDate:     dateField(idx, row, FieldEffective),
			DeletionDate:      dateField(idx, row, FieldDeletion),
			ProviderType:      provider,
			Rationale:         rationale,
			SourceFile:        rs.Source,
		})
	}
}

func (n *Normalizer) mueRows(res *Result, idx HeaderIndex, rs extract.RowSet, source string) {
	for _, row := range rs.Rows {
		code, ok := codeField(idx, row, FieldCode)
		if !ok {
			res.Dropped++
			continue
		}
		raw, header := idx.Value(row, FieldUnits)
		units, ok := Units(raw)
		if !ok {
			res.Dropped++
			continue
		}
		mai, _ := idx.Value(row, FieldAdjudicator)
		rationale, _ := idx.Value(row, FieldRationale)
		res.MUE = append(res.MUE, edits.MUELimit{
			Code:                  code,
			MaxUnits:              units,
			EffectiveDate:         dateField(idx, row, FieldEffective),
			ServiceType:           n.classifier.Classify(edits.KindMUE, source+" "+header),
			AdjudicationIndicator: mai,
			Rationale:             rationale,
			SourceFile:            rs.Source,
		})
	}
}

func (n *Normalizer) aocRows(res *Result, idx HeaderIndex, rs extract.RowSet) {
	for _, row := range rs.Rows {
		addOn, ok1 := codeField(idx, row, FieldAddOn)
		primary, ok2 := codeField(idx, row, FieldPrimary)
		if !ok1 || !ok2 {
			res.Dropped++
			continue
		}
		editType, _ := idx.Value(row, FieldEditType)
		res.AOC = append(res.AOC, edits.AOCEdit{
			AddOnCode:     addOn,
			PrimaryCode:   primary,
			EffectiveDate: dateField(idx, row, FieldEffective),
			DeletionDate:  dateField(idx, row, FieldDeletion),
			EditType:      editType,
			SourceFile:    rs.Source,
		})
	}
}

func codeField(idx HeaderIndex, row extract.Row, f Field) (string, bool) {
	raw, _ := idx.Value(row, f)
	return Code(raw)
}

func dateField(idx HeaderIndex, row extract.Row, f Field) string {
	raw, _ := idx.Value(row, f)
	d, _ := Date(raw)
	return d
}

// Merge combines results of one kind, typically from the files of a
// release split into parts, and deduplicates across them.
func Merge(kind edits.Kind, results ...*Result) *Result {
	out := &Result{Kind: kind}
	for _, r := range results {
		if r == nil {
			continue
		}
		out.PTP = append(out.PTP, r.PTP...)
		out.MUE = append(out.MUE, r.MUE...)
		out.AOC = append(out.AOC, r.AOC...)
		out.Tables += r.Tables
		out.RowsRead += r.RowsRead
		out.Dropped += r.Dropped
		out.Duplicates += r.Duplicates
	}

	var removed int
	switch kind {
	case edits.KindPTP:
		out.PTP, removed = edits.SortPTP(out.PTP)
	case edits.KindMUE:
		out.MUE, removed = edits.SortMUE(out.MUE)
	case edits.KindAOC:
		out.AOC, removed = edits.SortAOC(out.AOC)
	}
	out.Duplicates += removed
	return out
}
