package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"claimforge/compliance/pkg/edits"
)

// checkDiagnoses emits one error listing every malformed ICD-10-CM code
// verbatim, or one pass when all codes are well formed.
func (v *Validator) checkDiagnoses(cv claimView, res *Result) {
	var invalid []string
	for _, d := range cv.diagnoses {
		if !v.icd.MatchString(strings.ToUpper(d)) {
			invalid = append(invalid, d)
		}
	}

	if len(invalid) > 0 {
		res.add(Finding{
			Severity: SeverityError,
			Kind:     KindICD10Format,
			Message:  "Invalid ICD-10-CM code format: " + strings.Join(invalid, ", "),
			Data:     map[string]any{"invalid_codes": invalid},
		})
		return
	}
	res.add(Finding{
		Severity: SeverityPass,
		Kind:     KindICD10Format,
		Message:  "All diagnosis codes are valid ICD-10-CM format",
		Data:     map[string]any{"codes": cv.diagnoses},
	})
}

// checkAddOns requires every billed add-on code to be accompanied by at
// least one of its primaries.
func (v *Validator) checkAddOns(ctx context.Context, cv claimView, res *Result) error {
	rows, err := v.source.AOCEdits(ctx, cv.distinct, cv.asOf)
	if err != nil {
		return err
	}

	primaries := make(map[string]map[string]bool)
	for _, r := range rows {
		if primaries[r.AddOnCode] == nil {
			primaries[r.AddOnCode] = make(map[string]bool)
		}
		primaries[r.AddOnCode][r.PrimaryCode] = true
	}

	billed := make(map[string]bool, len(cv.distinct))
	for _, c := range cv.distinct {
		billed[c] = true
	}

	for _, addOn := range cv.distinct {
		accepted, ok := primaries[addOn]
		if !ok {
			continue
		}

		var present []string
		for p := range accepted {
			if billed[p] && p != addOn {
				present = append(present, p)
			}
		}
		sortStrings(present)

		if len(present) > 0 {
			res.add(Finding{
				Severity: SeverityPass,
				Kind:     KindAddOnCode,
				Message:  fmt.Sprintf("Add-on code %s is billed with primary code %s", addOn, strings.Join(present, ", ")),
				Data:     map[string]any{"add_on_code": addOn, "primary_codes": present},
			})
			continue
		}

		union := keys(accepted)
		res.add(Finding{
			Severity: SeverityError,
			Kind:     KindAddOnCode,
			Message: fmt.Sprintf("Add-on code %s requires a primary procedure code on the same claim (one of: %s)",
				addOn, strings.Join(union, ", ")),
			Data: map[string]any{"add_on_code": addOn, "acceptable_primaries": union},
		})
	}
	return nil
}

// checkUnits compares billed units against the smallest applicable MUE.
func (v *Validator) checkUnits(ctx context.Context, cv claimView, res *Result) error {
	rows, err := v.source.MUELimits(ctx, cv.distinct, cv.provider, cv.asOf)
	if err != nil {
		return err
	}

	limits := make(map[string]edits.MUELimit)
	for _, r := range rows {
		if cur, ok := limits[r.Code]; !ok || r.MaxUnits < cur.MaxUnits {
			limits[r.Code] = r
		}
	}

	occurrences := make(map[string]int, len(cv.distinct))
	for _, c := range cv.procedures {
		occurrences[c]++
	}

	for _, code := range cv.distinct {
		limit, ok := limits[code]
		if !ok {
			continue
		}
		units := occurrences[code]
		if n, ok := cv.units[code]; ok && n > 0 {
			units = n
		}

		data := map[string]any{
			"code":  code,
			"units": units,
			"limit": limit.MaxUnits,
		}
		if limit.AdjudicationIndicator != "" {
			data["adjudication_indicator"] = limit.AdjudicationIndicator
		}

		if units > limit.MaxUnits {
			res.add(Finding{
				Severity: SeverityError,
				Kind:     KindUnitLimit,
				Message: fmt.Sprintf("Code %s billed with %d units exceeds the MUE limit of %d",
					code, units, limit.MaxUnits),
				Data: data,
			})
			continue
		}
		res.add(Finding{
			Severity: SeverityPass,
			Kind:     KindUnitLimit,
			Message:  fmt.Sprintf("Code %s billed with %d units is within the MUE limit of %d", code, units, limit.MaxUnits),
			Data:     data,
		})
	}
	return nil
}

// checkBundling reports each unordered pair of billed codes at most once,
// using the most restrictive PTP row found in either direction.
func (v *Validator) checkBundling(ctx context.Context, cv claimView, res *Result) error {
	rows, err := v.source.PTPEdits(ctx, cv.distinct, cv.provider, cv.asOf)
	if err != nil {
		return err
	}

	type pairKey struct{ a, b string }
	worst := make(map[pairKey]edits.PTPEdit)
	for _, r := range rows {
		if r.Column1 == r.Column2 {
			continue
		}
		k := pairKey{r.Column1, r.Column2}
		if k.a > k.b {
			k.a, k.b = k.b, k.a
		}
		cur, ok := worst[k]
		if !ok || edits.ClassifyIndicator(r.ModifierIndicator) > edits.ClassifyIndicator(cur.ModifierIndicator) {
			worst[k] = r
		}
	}

	pairs := make([]pairKey, 0, len(worst))
	for k := range worst {
		pairs = append(pairs, k)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})

	for _, k := range pairs {
		r := worst[k]
		class := edits.ClassifyIndicator(r.ModifierIndicator)
		data := map[string]any{
			"column1":            r.Column1,
			"column2":            r.Column2,
			"modifier_indicator": r.ModifierIndicator,
			"classification":     class.String(),
		}
		if r.Rationale != "" {
			data["rationale"] = r.Rationale
		}

		switch class {
		case edits.IndicatorNeverTogether:
			res.add(Finding{
				Severity: SeverityError,
				Kind:     KindPTPBundling,
				Message: fmt.Sprintf("Codes %s and %s cannot be billed together on the same encounter, regardless of modifiers",
					r.Column1, r.Column2),
				Data: data,
			})

		case edits.IndicatorBypassRequired:
			used := v.presentBypass(cv)
			if len(used) > 0 {
				data["bypass_modifiers"] = used
				res.add(Finding{
					Severity: SeverityPass,
					Kind:     KindPTPBundling,
					Message: fmt.Sprintf("Codes %s and %s are billed together with bypass modifier %s",
						r.Column1, r.Column2, strings.Join(used, ", ")),
					Data: data,
				})
				continue
			}
			data["required_modifiers"] = v.BypassModifiers()
			res.add(Finding{
				Severity: SeverityError,
				Kind:     KindPTPBundling,
				Message: fmt.Sprintf("Codes %s and %s can be billed together only with one of the modifiers: %s",
					r.Column1, r.Column2, strings.Join(v.bypass, ", ")),
				Data: data,
			})

		default:
			res.add(Finding{
				Severity: SeverityWarning,
				Kind:     KindPTPBundling,
				Message: fmt.Sprintf("Codes %s and %s have a PTP edit with unrecognized modifier indicator %q; review before billing",
					r.Column1, r.Column2, r.ModifierIndicator),
				Data: data,
			})
		}
	}
	return nil
}

func (v *Validator) presentBypass(cv claimView) []string {
	var used []string
	for _, m := range v.bypass {
		if cv.modifiers[m] {
			used = append(used, m)
		}
	}
	return used
}

// checkPolicy emits the standing advisory that medical necessity and payer
// coverage are not evaluated.
func (v *Validator) checkPolicy(cv claimView, res *Result) {
	if len(cv.diagnoses) == 0 || len(cv.procedures) == 0 {
		return
	}
	res.add(Finding{
		Severity: SeverityWarning,
		Kind:     KindPolicyCheck,
		Message:  "Medical necessity and payer-specific coverage were not evaluated; confirm against the payer's policy before submission",
		Data: map[string]any{
			"procedure_codes": cv.distinct,
			"diagnosis_codes": cv.diagnoses,
		},
	})
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortStrings(out)
	return out
}

func sortStrings(s []string) {
	sort.Strings(s)
}
