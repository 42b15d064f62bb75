// Package rules validates claims against the NCCI rule snapshot.
//
// A Validator runs five checks on every claim: ICD-10-CM format, add-on
// code primaries, MUE unit limits, PTP bundling and a standing policy
// advisory. Findings are sorted into errors, warnings and passes, and the
// Result carries a risk score of min(100, 30 per error + 10 per warning).
//
//	src := store.NewCachedSource(s, cfg.Validation.CacheSize, cfg.Validation.CacheTTL, collector)
//	v := rules.NewValidator(src, rules.OptionsFromConfig(cfg.Validation, collector))
//	res, err := v.Validate(ctx, rules.Claim{
//		ProcedureCodes: []string{"99213", "99214"},
//		DiagnosisCodes: []string{"M54.5"},
//	})
//
// Validate returns an error only when the rule store cannot serve lookups;
// that error wraps edits.ErrRuleStoreUnavailable. Malformed claim input is
// reported as findings.
package rules
