package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	codePattern = regexp.MustCompile(`^(?:[0-9]{4}[0-9A-Z]|[A-Z][0-9]{4})$`)
	digitsOnly  = regexp.MustCompile(`^[0-9]{3,4}$`)

	slashDate = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})$`)
	dashDate  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{2}|\d{4})$`)
	isoDate   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ].*)?$`)
	compact   = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	serial    = regexp.MustCompile(`^\d{5}(?:\.\d+)?$`)
)

// excelEpoch is day zero of the 1900 date system as Excel counts it.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Code canonicalizes a CPT/HCPCS code. ok is false when the value is not a
// plausible five-character code, which filters footnotes and disclaimers.
// Numeric codes that lost leading zeros in a spreadsheet are padded.
func Code(raw string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(raw))
	if i := strings.IndexByte(c, '.'); i >= 0 && strings.Trim(c[i+1:], "0") == "" {
		c = c[:i]
	}
	if digitsOnly.MatchString(c) {
		c = strings.Repeat("0", 5-len(c)) + c
	}
	if !codePattern.MatchString(c) {
		return "", false
	}
	return c, true
}

// Units parses an MUE unit limit. The trimmed cell must be a whole
// non-negative integer; "1.5" and "2 (per day)" are rejected.
func Units(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Date normalizes a publisher date to YYYY-MM-DD. It accepts YYYYMMDD,
// M/D/YYYY, M-D-YY, ISO dates and Excel serial day numbers. Empty values
// and "*" (the publisher's "no date") yield "". Unrecognized values also
// yield "" and ok=false.
func Date(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || v == "*" {
		return "", true
	}

	var y, m, d int
	switch {
	case compact.MatchString(v):
		p := compact.FindStringSubmatch(v)
		y, m, d = atoi(p[1]), atoi(p[2]), atoi(p[3])
	case isoDate.MatchString(v):
		p := isoDate.FindStringSubmatch(v)
		y, m, d = atoi(p[1]), atoi(p[2]), atoi(p[3])
	case slashDate.MatchString(v):
		p := slashDate.FindStringSubmatch(v)
		m, d, y = atoi(p[1]), atoi(p[2]), fullYear(p[3])
	case dashDate.MatchString(v):
		p := dashDate.FindStringSubmatch(v)
		m, d, y = atoi(p[1]), atoi(p[2]), fullYear(p[3])
	case serial.MatchString(v):
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 1 {
			return "", false
		}
		return excelEpoch.AddDate(0, 0, int(f)).Format(time.DateOnly), true
	default:
		return "", false
	}

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func fullYear(s string) int {
	y := atoi(s)
	if len(s) == 2 {
		y += 2000
	}
	return y
}
