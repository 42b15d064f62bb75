package edits

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyIndicator(t *testing.T) {
	tests := []struct {
		raw  string
		want IndicatorClass
	}{
		{"0", IndicatorNeverTogether},
		{" never together ", IndicatorNeverTogether},
		{"Not Allowed", IndicatorNeverTogether},
		{"1", IndicatorBypassRequired},
		{"bypass-required", IndicatorBypassRequired},
		{"BYPASS_REQUIRED", IndicatorBypassRequired},
		{"9", IndicatorAmbiguous},
		{"", IndicatorAmbiguous},
		{"maybe", IndicatorAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := ClassifyIndicator(tt.raw); got != tt.want {
				t.Errorf("ClassifyIndicator(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds([]string{"aoc,PTP", "aoc"})
	if err != nil {
		t.Fatalf("ParseKinds failed: %v", err)
	}
	if len(kinds) != 2 || kinds[0] != KindPTP || kinds[1] != KindAOC {
		t.Errorf("Expected [ptp aoc], got %v", kinds)
	}

	all, err := ParseKinds(nil)
	if err != nil {
		t.Fatalf("ParseKinds(nil) failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected all kinds, got %v", all)
	}

	if _, err := ParseKinds([]string{"ncci"}); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestParseProviderType(t *testing.T) {
	tests := map[string]ProviderType{
		"":                         ProviderUnscoped,
		"Practitioner":             ProviderPractitioner,
		"physician office":         ProviderPractitioner,
		"Outpatient Hospital":      ProviderHospital,
		"facility":                 ProviderHospital,
		"DME supplier":             ProviderDME,
		"ambulatory surgery thing": ProviderUnscoped,
	}
	for in, want := range tests {
		if got := ParseProviderType(in); got != want {
			t.Errorf("ParseProviderType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", NewBuildError(KindMUE, StageLocate, ErrSourceNotFound))

	if !errors.Is(err, ErrSourceNotFound) {
		t.Error("Expected errors.Is to find ErrSourceNotFound")
	}

	var buildErr *BuildError
	if !errors.As(err, &buildErr) {
		t.Fatal("Expected errors.As to find *BuildError")
	}
	if buildErr.Kind != KindMUE || buildErr.Stage != StageLocate {
		t.Errorf("Unexpected build error fields: %+v", buildErr)
	}
}

func TestDecodeErrorMatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("bad zip header")
	err := &DecodeError{Entry: "mue.xlsx", Cause: cause}

	if !errors.Is(err, ErrDecodeFailed) {
		t.Error("Expected DecodeError to match ErrDecodeFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected DecodeError to match its cause")
	}
}

func TestSnapshotIncludes(t *testing.T) {
	snap := &Snapshot{PTP: []PTPEdit{}, AOC: nil}
	if !snap.Includes(KindPTP) {
		t.Error("Expected empty non-nil PTP slice to be included")
	}
	if snap.Includes(KindAOC) || snap.Includes(KindMUE) {
		t.Error("Expected nil slices to be excluded")
	}
}

func TestSortPTP_Deterministic(t *testing.T) {
	a := []PTPEdit{
		{Column1: "99214", Column2: "99213", SourceFile: "b.txt"},
		{Column1: "99213", Column2: "99212"},
		{Column1: "99214", Column2: "99213", SourceFile: "a.txt"},
	}
	b := []PTPEdit{a[2], a[0], a[1]}

	ra, da := SortPTP(a)
	rb, db := SortPTP(b)
	if da != 1 || db != 1 {
		t.Fatalf("expected one duplicate removed, got %d and %d", da, db)
	}
	if DigestPTP(ra) != DigestPTP(rb) {
		t.Error("digests differ for the same rows in different input order")
	}
	if ra[1].SourceFile != "a.txt" {
		t.Errorf("expected the first source in sort order to be kept, got %q", ra[1].SourceFile)
	}
}

func TestDigests(t *testing.T) {
	mue := []MUELimit{{Code: "99213", MaxUnits: 1}}
	if DigestMUE(mue) == DigestMUE([]MUELimit{{Code: "99213", MaxUnits: 2}}) {
		t.Error("MUE digest ignores max units")
	}
	if DigestAOC(nil) != DigestPTP(nil) {
		t.Error("empty digests should be the sha256 of no input")
	}

	aoc, dups := SortAOC([]AOCEdit{
		{AddOnCode: "22614", PrimaryCode: "22630"},
		{AddOnCode: "22614", PrimaryCode: "22612"},
	})
	if dups != 0 || aoc[0].PrimaryCode != "22612" {
		t.Errorf("unexpected AOC order %+v", aoc)
	}
}
