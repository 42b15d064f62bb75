package edits

import (
	"fmt"
	"strings"
)

// Kind identifies one of the regulatory edit families published by CMS.
type Kind string

const (
	// KindPTP is the Procedure-to-Procedure edit family.
	KindPTP Kind = "ptp"

	// KindMUE is the Medically Unlikely Edit family.
	KindMUE Kind = "mue"

	// KindAOC is the Add-On Code edit family.
	KindAOC Kind = "aoc"
)

// AllKinds returns every edit kind in build order.
func AllKinds() []Kind {
	return []Kind{KindPTP, KindMUE, KindAOC}
}

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPTP:
		return KindPTP, nil
	case KindMUE:
		return KindMUE, nil
	case KindAOC:
		return KindAOC, nil
	}
	return "", fmt.Errorf("unknown edit kind %q (expected ptp, mue or aoc)", s)
}

// ParseKinds parses a list of kind names. An empty list yields AllKinds.
// Duplicates are removed while preserving build order.
func ParseKinds(names []string) ([]Kind, error) {
	if len(names) == 0 {
		return AllKinds(), nil
	}

	want := make(map[Kind]bool, len(names))
	for _, name := range names {
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			k, err := ParseKind(part)
			if err != nil {
				return nil, err
			}
			want[k] = true
		}
	}

	var kinds []Kind
	for _, k := range AllKinds() {
		if want[k] {
			kinds = append(kinds, k)
		}
	}
	if len(kinds) == 0 {
		return AllKinds(), nil
	}
	return kinds, nil
}

// Title returns a human-readable name for the kind.
func (k Kind) Title() string {
	switch k {
	case KindPTP:
		return "Procedure-to-Procedure"
	case KindMUE:
		return "Medically Unlikely Edits"
	case KindAOC:
		return "Add-On Code"
	}
	return string(k)
}

// ProviderType scopes edit rows to a billing context. The zero value means
// the row applies to every provider type.
type ProviderType string

const (
	ProviderUnscoped     ProviderType = ""
	ProviderPractitioner ProviderType = "practitioner"
	ProviderHospital     ProviderType = "hospital"
	ProviderDME          ProviderType = "dme"
)

// ParseProviderType maps free-form provider descriptions onto a ProviderType.
// Unknown values map to ProviderUnscoped.
func ParseProviderType(s string) ProviderType {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return ProviderUnscoped
	case strings.Contains(v, "practitioner"), strings.Contains(v, "physician"), v == "professional":
		return ProviderPractitioner
	case strings.Contains(v, "hospital"), strings.Contains(v, "facility"), strings.Contains(v, "outpatient"):
		return ProviderHospital
	case strings.Contains(v, "dme"), strings.Contains(v, "supplier"):
		return ProviderDME
	}
	return ProviderUnscoped
}

// PTPEdit is one directional Procedure-to-Procedure edit. Column1 is the
// primary (comprehensive) code and Column2 the secondary (component) code.
type PTPEdit struct {
	Column1           string       `json:"column1"`
	Column2           string       `json:"column2"`
	ModifierIndicator string       `json:"modifier_indicator"`
	EffectiveDate     string       `json:"effective_date,omitempty"`
	DeletionDate      string       `json:"deletion_date,omitempty"`
	ProviderType      ProviderType `json:"provider_type,omitempty"`
	Rationale         string       `json:"rationale,omitempty"`
	SourceFile        string       `json:"source_file,omitempty"`
}

// MUELimit is the maximum number of units of service payable for a code.
type MUELimit struct {
	Code                  string       `json:"code"`
	MaxUnits              int          `json:"max_units"`
	EffectiveDate         string       `json:"effective_date,omitempty"`
	ServiceType           ProviderType `json:"service_type,omitempty"`
	AdjudicationIndicator string       `json:"adjudication_indicator,omitempty"`
	Rationale             string       `json:"rationale,omitempty"`
	SourceFile            string       `json:"source_file,omitempty"`
}

// AOCEdit pairs an add-on code with one of its acceptable primary codes.
type AOCEdit struct {
	AddOnCode     string `json:"add_on_code"`
	PrimaryCode   string `json:"primary_code"`
	EffectiveDate string `json:"effective_date,omitempty"`
	DeletionDate  string `json:"deletion_date,omitempty"`
	EditType      string `json:"edit_type,omitempty"`
	SourceFile    string `json:"source_file,omitempty"`
}

// Snapshot holds the rows produced by one build. A nil slice means the kind
// was not part of the build and its persisted table must be left alone.
type Snapshot struct {
	PTP []PTPEdit
	MUE []MUELimit
	AOC []AOCEdit

	// Builds describes where each included kind came from.
	Builds []BuildRecord
}

// Includes reports whether the snapshot replaces the given kind.
func (s *Snapshot) Includes(k Kind) bool {
	switch k {
	case KindPTP:
		return s.PTP != nil
	case KindMUE:
		return s.MUE != nil
	case KindAOC:
		return s.AOC != nil
	}
	return false
}
