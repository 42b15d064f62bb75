package rules

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/telemetry/metrics"
	"claimforge/compliance/pkg/telemetry/tracing"
)

var (
	icd10Pattern        = regexp.MustCompile(`^[A-Z][0-9A-Z]{2}(\.[0-9A-Z]{1,4})?$`)
	icd10DecimalPattern = regexp.MustCompile(`^[A-Z][0-9A-Z]{2}\.[0-9A-Z]{1,4}$`)
)

// Options configures a Validator.
type Options struct {
	// BypassModifiers satisfy a bypass-required PTP edit. Empty uses
	// config.DefaultBypassModifiers.
	BypassModifiers []string

	// RequireDiagnosisDecimal rejects bare three-character categories.
	RequireDiagnosisDecimal bool

	// Metrics records outcomes. May be nil.
	Metrics *metrics.Collector
}

// OptionsFromConfig maps validation configuration onto Options.
func OptionsFromConfig(cfg config.ValidationConfig, collector *metrics.Collector) Options {
	return Options{
		BypassModifiers:         cfg.BypassModifiers,
		RequireDiagnosisDecimal: cfg.RequireDiagnosisDecimal,
		Metrics:                 collector,
	}
}

// Validator checks claims against the rule snapshot. It holds no mutable
// state and is safe for concurrent use.
type Validator struct {
	source  RuleSource
	bypass  []string
	icd     *regexp.Regexp
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewValidator creates a Validator over source.
func NewValidator(source RuleSource, opts Options) *Validator {
	mods := opts.BypassModifiers
	if len(mods) == 0 {
		mods = config.DefaultBypassModifiers()
	}
	bypass := make([]string, 0, len(mods))
	for _, m := range mods {
		if m = normalizeModifier(m); m != "" {
			bypass = append(bypass, m)
		}
	}

	icd := icd10Pattern
	if opts.RequireDiagnosisDecimal {
		icd = icd10DecimalPattern
	}

	return &Validator{
		source:  source,
		bypass:  bypass,
		icd:     icd,
		metrics: opts.Metrics,
		logger:  slog.Default().With("component", "rules.validator"),
	}
}

// BypassModifiers returns the normalized bypass modifier set.
func (v *Validator) BypassModifiers() []string {
	return append([]string(nil), v.bypass...)
}

// claimView is a claim with its codes cleaned up once for every check.
type claimView struct {
	procedures []string // occurrences, uppercased
	distinct   []string // sorted unique procedures
	diagnoses  []string // trimmed, as submitted
	modifiers  map[string]bool
	provider   edits.ProviderType
	asOf       string
	units      map[string]int
}

// Validate runs every check against the claim. Compliance problems are
// reported as findings; an error is returned only when the rule snapshot
// cannot be queried or has not been built, and it wraps
// edits.ErrRuleStoreUnavailable.
func (v *Validator) Validate(ctx context.Context, claim Claim) (*Result, error) {
	ctx, span := tracing.Start(ctx, "rules.validate",
		attribute.String(tracing.AttrClaimID, claim.ID),
		attribute.Int(tracing.AttrCodes, len(claim.ProcedureCodes)),
	)
	res, err := v.validate(ctx, claim)
	if res != nil {
		span.SetAttributes(
			attribute.Int(tracing.AttrRiskScore, res.RiskScore),
			attribute.Bool(tracing.AttrValid, res.IsValid),
		)
	}
	tracing.End(span, err)
	return res, err
}

func (v *Validator) validate(ctx context.Context, claim Claim) (*Result, error) {
	start := time.Now()

	ready, err := v.source.HasPTPRows(ctx)
	if err != nil {
		return nil, v.unavailable(start, err)
	}
	if !ready {
		return nil, v.unavailable(start, fmt.Errorf("%w: no PTP edits loaded; run a rebuild first", edits.ErrRuleStoreUnavailable))
	}

	res := newResult()
	view := v.view(claim, res)

	v.checkDiagnoses(view, res)
	if err := v.checkAddOns(ctx, view, res); err != nil {
		return nil, v.unavailable(start, err)
	}
	if err := v.checkUnits(ctx, view, res); err != nil {
		return nil, v.unavailable(start, err)
	}
	if err := v.checkBundling(ctx, view, res); err != nil {
		return nil, v.unavailable(start, err)
	}
	v.checkPolicy(view, res)

	res.finalize()
	v.record(start, res)

	v.logger.DebugContext(ctx, "claim validated",
		"claim_id", claim.ID,
		"procedures", len(view.procedures),
		"diagnoses", len(view.diagnoses),
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
		"risk_score", res.RiskScore,
		"duration", time.Since(start),
	)
	return res, nil
}

func (v *Validator) view(claim Claim, res *Result) claimView {
	cv := claimView{
		modifiers: make(map[string]bool, len(claim.Modifiers)),
		provider:  edits.ParseProviderType(claim.ProviderType),
		units:     make(map[string]int, len(claim.Units)),
	}

	seen := make(map[string]bool)
	for _, c := range claim.ProcedureCodes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		cv.procedures = append(cv.procedures, c)
		if !seen[c] {
			seen[c] = true
			cv.distinct = append(cv.distinct, c)
		}
	}
	sortStrings(cv.distinct)

	for _, d := range claim.DiagnosisCodes {
		if d = strings.TrimSpace(d); d != "" {
			cv.diagnoses = append(cv.diagnoses, d)
		}
	}
	for _, m := range claim.Modifiers {
		if m = normalizeModifier(m); m != "" {
			cv.modifiers[m] = true
		}
	}
	for code, n := range claim.Units {
		cv.units[strings.ToUpper(strings.TrimSpace(code))] = n
	}

	if dos := strings.TrimSpace(claim.DateOfService); dos != "" {
		if t, err := time.Parse(time.DateOnly, dos); err == nil {
			cv.asOf = t.Format(time.DateOnly)
		} else {
			res.add(Finding{
				Severity: SeverityWarning,
				Kind:     KindDateOfService,
				Message:  fmt.Sprintf("Date of service %q is not YYYY-MM-DD; edits were applied without date filtering", dos),
				Data:     map[string]any{"date_of_service": dos},
			})
		}
	}
	return cv
}

func (v *Validator) unavailable(start time.Time, err error) error {
	v.metrics.RecordValidation("unavailable", time.Since(start), 0)
	return fmt.Errorf("validating claim: %w", err)
}

func (v *Validator) record(start time.Time, res *Result) {
	outcome := "valid"
	if !res.IsValid {
		outcome = "invalid"
	}
	v.metrics.RecordValidation(outcome, time.Since(start), res.RiskScore)
	for _, f := range res.Findings() {
		v.metrics.RecordFinding(string(f.Kind), string(f.Severity))
	}
}

func normalizeModifier(m string) string {
	return strings.ToUpper(strings.Trim(strings.TrimSpace(m), "-"))
}
