package normalize

import (
	"strings"

	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest/extract"
)

// Field names a canonical column of an edit row.
type Field string

const (
	FieldColumn1     Field = "column1"
	FieldColumn2     Field = "column2"
	FieldIndicator   Field = "modifier_indicator"
	FieldEffective   Field = "effective_date"
	FieldDeletion    Field = "deletion_date"
	FieldRationale   Field = "rationale"
	FieldCode        Field = "code"
	FieldUnits       Field = "max_units"
	FieldAdjudicator Field = "adjudication_indicator"
	FieldAddOn       Field = "add_on_code"
	FieldPrimary     Field = "primary_code"
	FieldEditType    Field = "edit_type"
)

// Aliases lists the accepted header spellings per field, in priority order.
// Publishers change header wording between releases; aliases are compared
// after NormalizeHeader.
var Aliases = map[edits.Kind]map[Field][]string{
	edits.KindPTP: {
		FieldColumn1:   {"column 1", "column1", "primary code", "comprehensive code"},
		FieldColumn2:   {"column 2", "column2", "secondary code", "component code"},
		FieldIndicator: {"modifier", "modifier indicator"},
		FieldEffective: {"effective date"},
		FieldDeletion:  {"deletion date"},
		FieldRationale: {"ptp edit rationale", "rationale"},
	},
	edits.KindMUE: {
		FieldCode: {"hcpcs/cpt code", "hcpcs code", "cpt code", "code"},
		FieldUnits: {
			"practitioner services mue values",
			"outpatient hospital services mue values",
			"dme supplier services mue values",
			"mue values",
			"mue value",
			"max units",
		},
		FieldAdjudicator: {"mue adjudication indicator"},
		FieldRationale:   {"mue rationale"},
		FieldEffective:   {"effective date"},
	},
	edits.KindAOC: {
		FieldAddOn:     {"add-on code", "addon code", "add on code", "aoc"},
		FieldPrimary:   {"primary code", "primary codes", "primary"},
		FieldEffective: {"effective date", "add-on code effective date"},
		FieldDeletion:  {"deletion date", "add-on code deletion date"},
		FieldEditType:  {"aoc edit type", "edit type"},
	},
}

// Required lists the fields a row must carry to be kept.
var Required = map[edits.Kind][]Field{
	edits.KindPTP: {FieldColumn1, FieldColumn2},
	edits.KindMUE: {FieldCode, FieldUnits},
	edits.KindAOC: {FieldAddOn, FieldPrimary},
}

// Hints returns the header fragments that identify a kind's header row.
func Hints(kind edits.Kind) []string {
	switch kind {
	case edits.KindPTP:
		return []string{"column 1", "column1", "comprehensive code"}
	case edits.KindMUE:
		return []string{"mue value", "max units"}
	case edits.KindAOC:
		return []string{"add-on code", "addon code", "add on code"}
	}
	return nil
}

// HeaderIndex resolves canonical fields to the headers of one table.
type HeaderIndex struct {
	fields map[Field][]string
}

// NewHeaderIndex matches headers against aliases in two passes. The exact
// pass keeps headers equal to an alias, in alias order. The prefix pass
// then adds headers that start with an alias at a word boundary, so
// "Modifier 0=not allowed 1=allowed" resolves to the indicator. Headers
// matched exactly by any field are not reused by the prefix pass.
func NewHeaderIndex(headers []string, aliases map[Field][]string) HeaderIndex {
	normalized := make([]string, len(headers))
	exact := make(map[string]bool, len(headers))
	for i, h := range headers {
		normalized[i] = extract.NormalizeHeader(h)
	}

	idx := HeaderIndex{fields: make(map[Field][]string, len(aliases))}
	for field, names := range aliases {
		for _, alias := range names {
			for i, h := range normalized {
				if h == alias {
					idx.add(field, headers[i])
					exact[headers[i]] = true
				}
			}
		}
	}

	for field, names := range aliases {
		for _, alias := range names {
			for i, h := range normalized {
				if exact[headers[i]] || !hasWordPrefix(h, alias) {
					continue
				}
				idx.add(field, headers[i])
			}
		}
	}
	return idx
}

func (h HeaderIndex) add(field Field, header string) {
	for _, existing := range h.fields[field] {
		if existing == header {
			return
		}
	}
	h.fields[field] = append(h.fields[field], header)
}

// Has reports whether any header resolved to field.
func (h HeaderIndex) Has(field Field) bool {
	return len(h.fields[field]) > 0
}

// Headers returns the headers resolved to field in priority order.
func (h HeaderIndex) Headers(field Field) []string {
	return h.fields[field]
}

// Value returns the first non-empty cell for field along with the header
// it came from.
func (h HeaderIndex) Value(row extract.Row, field Field) (string, string) {
	for _, header := range h.fields[field] {
		if v := strings.TrimSpace(row[header]); v != "" {
			return v, header
		}
	}
	return "", ""
}

func hasWordPrefix(s, prefix string) bool {
	if len(s) <= len(prefix) || !strings.HasPrefix(s, prefix) {
		return false
	}
	next := s[len(prefix)]
	return !(next >= 'a' && next <= 'z' || next >= '0' && next <= '9')
}
