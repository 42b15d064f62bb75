package edits

import "strings"

// IndicatorClass is the interpretation of a PTP modifier indicator.
type IndicatorClass int

const (
	// IndicatorAmbiguous covers values that are not confidently mapped,
	// including the publisher's "9 = not applicable".
	IndicatorAmbiguous IndicatorClass = iota

	// IndicatorBypassRequired means the pair may be billed together only
	// when a bypass modifier is present.
	IndicatorBypassRequired

	// IndicatorNeverTogether means the pair may not be billed together
	// regardless of modifiers.
	IndicatorNeverTogether
)

// String returns the canonical name of the class.
func (c IndicatorClass) String() string {
	switch c {
	case IndicatorNeverTogether:
		return "never-together"
	case IndicatorBypassRequired:
		return "bypass-required"
	}
	return "ambiguous"
}

// ClassifyIndicator maps a raw modifier indicator value onto its class.
func ClassifyIndicator(raw string) IndicatorClass {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.Join(strings.FieldsFunc(v, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "-")

	switch v {
	case "0", "never", "never-together", "not-allowed":
		return IndicatorNeverTogether
	case "1", "bypass", "bypass-required", "allowed":
		return IndicatorBypassRequired
	}
	return IndicatorAmbiguous
}
