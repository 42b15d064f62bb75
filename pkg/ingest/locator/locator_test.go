package locator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimforge/compliance/pkg/config"
	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest/fetch"
)

const ptpIndex = `<!DOCTYPE html>
<html><body>
<h2>Medicare NCCI Procedure to Procedure (PTP) Edits</h2>
<ul>
  <li><a href="/files/zip/medicare-ncci-2025q4-practitioner-ptp-edits.zip">Practitioner PTP Edits v314r0 Quarter 4 2025</a></li>
  <li><a href="/files/zip/medicare-ncci-2026q1-practitioner-ptp-edits-part-1.zip">Practitioner PTP Edits <b>Effective 01/01/2026</b> (part 1)</a></li>
  <li><a href="/files/zip/medicare-ncci-2026q1-practitioner-ptp-edits-part-2.zip">Practitioner PTP Edits Effective 01/01/2026 (part 2)</a></li>
  <li><a href="/files/zip/medicare-ncci-2026q1-mue.zip">MUE table 2026</a></li>
  <li><a href="/files/document/ptp-policy-manual.pdf">PTP policy manual</a></li>
  <li><a href="mailto:ncci@cms.hhs.gov">Contact NCCI edits</a></li>
  <li><a href="https://www.cms.gov/files/zip/medicare-ncci-add-on-code-edits-2026.zip">Add-on Code Edits 2026</a></li>
</ul>
</body></html>`

func newTestLocator(t *testing.T, srv *httptest.Server) *Locator {
	t.Helper()
	cfg := &config.SourcesConfig{
		Timeout:              5 * time.Second,
		MaxRetries:           1,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     time.Millisecond,
		RequestsPerSecond:    1000,
		Burst:                10,
	}
	var hc *http.Client
	if srv != nil {
		hc = srv.Client()
	}
	return New(fetch.NewClient(cfg, hc), nil)
}

func TestLocator_Parse_RanksEffectiveDateFirst(t *testing.T) {
	l := newTestLocator(t, nil)

	cands, err := l.Parse([]byte(ptpIndex), "https://www.cms.gov/medicare/ncci/ptp", edits.KindPTP)
	require.NoError(t, err)
	require.Len(t, cands, 3, "pdf, mailto, MUE and add-on links must be ignored")

	assert.Equal(t, "https://www.cms.gov/files/zip/medicare-ncci-2026q1-practitioner-ptp-edits-part-1.zip", cands[0].URL)
	assert.Equal(t, ScoreEffective, cands[0].Score)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), cands[0].Date)
	assert.Equal(t, "https://www.cms.gov/files/zip/medicare-ncci-2026q1-practitioner-ptp-edits-part-2.zip", cands[1].URL)
	assert.Equal(t, ScoreQuarter, cands[2].Score)
}

func TestLocator_Parse_OtherKinds(t *testing.T) {
	l := newTestLocator(t, nil)

	mue, err := l.Parse([]byte(ptpIndex), "https://www.cms.gov/medicare/ncci/ptp", edits.KindMUE)
	require.NoError(t, err)
	require.Len(t, mue, 1)
	assert.Contains(t, mue[0].URL, "2026q1-mue.zip")

	aoc, err := l.Parse([]byte(ptpIndex), "https://www.cms.gov/medicare/ncci/ptp", edits.KindAOC)
	require.NoError(t, err)
	require.Len(t, aoc, 1)
	assert.Equal(t, ScoreYear, aoc[0].Score)
}

func TestLocator_Parse_NoCandidates(t *testing.T) {
	l := newTestLocator(t, nil)

	_, err := l.Parse([]byte(`<html><a href="/a.pdf">PTP manual</a></html>`), "https://example.com/", edits.KindPTP)
	require.Error(t, err)
	assert.ErrorIs(t, err, edits.ErrSourceNotFound)
}

func TestLocator_LocateAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ptp":
			_, _ = w.Write([]byte(ptpIndex))
		default:
			_, _ = w.Write([]byte(`<html><body>nothing here</body></html>`))
		}
	}))
	defer srv.Close()

	l := newTestLocator(t, srv)

	best, err := l.Locate(context.Background(), srv.URL+"/ptp", edits.KindPTP)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/files/zip/medicare-ncci-2026q1-practitioner-ptp-edits-part-1.zip", best.URL)

	all, err := l.LocateAll(context.Background(), srv.URL+"/ptp", edits.KindPTP)
	require.NoError(t, err)
	assert.Len(t, Siblings(all), 2)

	_, err = l.Locate(context.Background(), srv.URL+"/empty", edits.KindAOC)
	require.Error(t, err)
	assert.ErrorIs(t, err, edits.ErrSourceNotFound)

	var buildErr *edits.BuildError
	require.True(t, errors.As(err, &buildErr))
	assert.Equal(t, edits.KindAOC, buildErr.Kind)
	assert.Equal(t, edits.StageLocate, buildErr.Stage)
}

func TestLocator_IndexUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestLocator(t, srv).Locate(context.Background(), srv.URL, edits.KindMUE)
	require.Error(t, err)
	assert.ErrorIs(t, err, edits.ErrDownloadFailed)
}

func TestRank_DocumentOrderBreaksTies(t *testing.T) {
	cands := []Candidate{
		{URL: "c", Score: 1, Order: 2},
		{URL: "a", Score: 1, Order: 0},
		{URL: "d", Score: 2, Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Order: 3},
		{URL: "b", Score: 2, Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Order: 1},
	}
	Rank(cands)

	var got []string
	for _, c := range cands {
		got = append(got, c.URL)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, got)
	assert.Nil(t, Siblings(nil))
}

func TestMatches(t *testing.T) {
	tests := []struct {
		kind edits.Kind
		s    string
		want bool
	}{
		{edits.KindPTP, "/files/zip/cci-pra-v320r0.zip", true},
		{edits.KindPTP, "Procedure-to-Procedure edits", true},
		{edits.KindPTP, "medicare_ncci_edits_2026.zip", true},
		{edits.KindPTP, "ncci-mue-edits.zip", false},
		{edits.KindMUE, "Medically Unlikely Edits DME", true},
		{edits.KindMUE, "practitioner%20mue%20table.zip", true},
		{edits.KindAOC, "addon-code-edits.zip", true},
		{edits.KindAOC, "AOC_V2026Q1.xlsx", true},
		{edits.KindAOC, "ptp.zip", false},
		{edits.Kind("x"), "ptp", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(tt.kind, tt.s), "%s %q", tt.kind, tt.s)
	}
}

func TestCascadeScorer(t *testing.T) {
	d := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name  string
		in    string
		score int
		date  time.Time
	}{
		{"effective", "PTP edits Effective 04/01/2026", ScoreEffective, d(2026, 4, 1)},
		{"effective beats iso", "2025-01-01 Effective: 7/1/2026", ScoreEffective, d(2026, 7, 1)},
		{"iso", "aoc-2026-01-15.zip", ScoreISODate, d(2026, 1, 15)},
		{"quarter words", "Quarter 2 2026", ScoreQuarter, d(2026, 6, 30)},
		{"q short", "mue Q3 2025 update", ScoreQuarter, d(2025, 9, 30)},
		{"year quarter", "medicare-ncci-2026q1-ptp.zip", ScoreQuarter, d(2026, 3, 31)},
		{"latest quarter wins", "2025q4 and 2026q1", ScoreQuarter, d(2026, 3, 31)},
		{"bare year", "add-on code edits 2024", ScoreYear, d(2024, 12, 31)},
		{"year out of range", "edits 1899 v3", ScoreNone, time.Time{}},
		{"invalid effective date falls through", "Effective 02/31/2026", ScoreYear, d(2026, 12, 31)},
		{"none", "ptp edits", ScoreNone, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, date := CascadeScorer{}.Score(tt.in)
			assert.Equal(t, tt.score, score)
			assert.True(t, tt.date.Equal(date), "expected %v, got %v", tt.date, date)
		})
	}
}
