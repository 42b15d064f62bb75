package rules

import (
	"context"

	"claimforge/compliance/pkg/edits"
)

// Severity classifies a Finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityPass    Severity = "pass"
)

// FindingKind names the check that produced a Finding.
type FindingKind string

const (
	KindICD10Format FindingKind = "icd10_format"
	KindAddOnCode   FindingKind = "add_on_code"
	KindUnitLimit   FindingKind = "unit_limit"
	KindPTPBundling FindingKind = "ptp_bundling"
	KindPolicyCheck FindingKind = "policy_check"

	// KindDateOfService flags a claim date that could not be parsed. It is a
	// warning and counts toward RiskScore like any other.
	KindDateOfService FindingKind = "date_of_service"
)

// Claim is the candidate claim submitted for validation.
type Claim struct {
	// ID is used only for log correlation.
	ID string `json:"id,omitempty"`

	ProcedureCodes []string `json:"procedure_codes"`
	DiagnosisCodes []string `json:"diagnosis_codes"`
	Modifiers      []string `json:"modifiers"`
	PlaceOfService string   `json:"place_of_service,omitempty"`

	// ProviderType scopes PTP and MUE rows, e.g. "practitioner" or
	// "hospital". Empty matches every row.
	ProviderType string `json:"provider_type,omitempty"`

	// Units overrides the billed quantity per procedure code. Codes
	// without an entry count one unit per occurrence.
	Units map[string]int `json:"units,omitempty"`

	// DateOfService (YYYY-MM-DD) excludes rows not yet effective or
	// already deleted on that date. Empty disables date filtering.
	DateOfService string `json:"date_of_service,omitempty"`
}

// Finding is one categorized outcome of a check.
type Finding struct {
	Severity Severity       `json:"severity"`
	Kind     FindingKind    `json:"kind"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}

// Result is the outcome of validating one claim. All three buckets are
// always non-nil.
type Result struct {
	Errors    []Finding `json:"errors"`
	Warnings  []Finding `json:"warnings"`
	Passes    []Finding `json:"passes"`
	IsValid   bool      `json:"is_valid"`
	RiskScore int       `json:"risk_score"`
}

func newResult() *Result {
	return &Result{
		Errors:   []Finding{},
		Warnings: []Finding{},
		Passes:   []Finding{},
	}
}

func (r *Result) add(f Finding) {
	switch f.Severity {
	case SeverityError:
		r.Errors = append(r.Errors, f)
	case SeverityWarning:
		r.Warnings = append(r.Warnings, f)
	default:
		r.Passes = append(r.Passes, f)
	}
}

func (r *Result) finalize() {
	r.IsValid = len(r.Errors) == 0
	r.RiskScore = RiskScore(len(r.Errors), len(r.Warnings))
}

// Findings returns every finding in error, warning, pass order.
func (r *Result) Findings() []Finding {
	out := make([]Finding, 0, len(r.Errors)+len(r.Warnings)+len(r.Passes))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	return append(out, r.Passes...)
}

// RiskScore is min(100, 30 per error + 10 per warning).
func RiskScore(errors, warnings int) int {
	score := 30*max(errors, 0) + 10*max(warnings, 0)
	return min(score, 100)
}

// RuleSource serves the rule lookups a Validator needs. *store.Store and
// *store.CachedSource implement it.
type RuleSource interface {
	PTPEdits(ctx context.Context, codes []string, provider edits.ProviderType, asOf string) ([]edits.PTPEdit, error)
	MUELimits(ctx context.Context, codes []string, provider edits.ProviderType, asOf string) ([]edits.MUELimit, error)
	AOCEdits(ctx context.Context, codes []string, asOf string) ([]edits.AOCEdit, error)
	HasPTPRows(ctx context.Context) (bool, error)
}
