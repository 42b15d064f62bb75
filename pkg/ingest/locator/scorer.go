package locator

import (
	"regexp"
	"strconv"
	"time"
)

// Score tiers assigned by CascadeScorer.
const (
	ScoreNone      = 0
	ScoreYear      = 1
	ScoreQuarter   = 2
	ScoreISODate   = 3
	ScoreEffective = 4
)

// DateScorer infers how recent a link is from its href and text. Higher
// scores mean stronger evidence; the date breaks ties within a score.
type DateScorer interface {
	Score(s string) (score int, date time.Time)
}

// CascadeScorer tries date patterns from most to least specific and stops
// at the first tier that matches. Within a tier the latest date wins.
type CascadeScorer struct{}

var (
	effectiveRe = regexp.MustCompile(`(?i)effective\s*:?\s*(\d{1,2})/(\d{1,2})/(\d{4})`)
	isoDateRe   = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

	quarterWordRe  = regexp.MustCompile(`(?i)quarter\s*([1-4])\s*,?\s*(\d{4})`)
	quarterShortRe = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])q([1-4])[\s_-]*(\d{4})`)
	yearQuarterRe  = regexp.MustCompile(`(?i)(\d{4})[\s_-]*q([1-4])(?:[^0-9]|$)`)

	bareYearRe = regexp.MustCompile(`(?:^|[^0-9])(199\d|20\d\d)(?:[^0-9]|$)`)
)

// Score implements DateScorer.
func (CascadeScorer) Score(s string) (int, time.Time) {
	if d, ok := latest(effectiveRe, s, func(m []string) (time.Time, bool) {
		return makeDate(m[3], m[1], m[2])
	}); ok {
		return ScoreEffective, d
	}

	if d, ok := latest(isoDateRe, s, func(m []string) (time.Time, bool) {
		return makeDate(m[1], m[2], m[3])
	}); ok {
		return ScoreISODate, d
	}

	var best time.Time
	found := false
	for _, q := range []struct {
		re            *regexp.Regexp
		yearIdx, qIdx int
	}{
		{quarterWordRe, 2, 1},
		{quarterShortRe, 2, 1},
		{yearQuarterRe, 1, 2},
	} {
		if d, ok := latest(q.re, s, func(m []string) (time.Time, bool) {
			return quarterEnd(m[q.yearIdx], m[q.qIdx])
		}); ok && (!found || d.After(best)) {
			best, found = d, true
		}
	}
	if found {
		return ScoreQuarter, best
	}

	if d, ok := latest(bareYearRe, s, func(m []string) (time.Time, bool) {
		return makeDate(m[1], "12", "31")
	}); ok {
		return ScoreYear, d
	}

	return ScoreNone, time.Time{}
}

// latest returns the latest valid date produced by any match of re.
func latest(re *regexp.Regexp, s string, parse func([]string) (time.Time, bool)) (time.Time, bool) {
	var best time.Time
	found := false
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		d, ok := parse(m)
		if !ok {
			continue
		}
		if !found || d.After(best) {
			best, found = d, true
		}
	}
	return best, found
}

func makeDate(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if y < 1990 || y > 2099 || m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// Reject rollovers such as 02/31.
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// quarterEnd returns the last day of quarter q in year.
func quarterEnd(year, quarter string) (time.Time, bool) {
	y, err := strconv.Atoi(year)
	if err != nil || y < 1990 || y > 2099 {
		return time.Time{}, false
	}
	q, err := strconv.Atoi(quarter)
	if err != nil || q < 1 || q > 4 {
		return time.Time{}, false
	}
	// Day 0 of the month after the quarter is its last day.
	return time.Date(y, time.Month(q*3+1), 0, 0, 0, 0, 0, time.UTC), true
}
