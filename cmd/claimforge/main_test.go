package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"claimforge/compliance/pkg/cli"
	"claimforge/compliance/pkg/ingest"
	"claimforge/compliance/pkg/rules"
)

// execute runs the root command once. Flag values persist between runs in
// one process, so every test passes the flags it depends on.
func execute(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	code := run()
	rootCmd.SetArgs(nil)
	return out.String(), code
}

func TestVersionCommand(t *testing.T) {
	out, code := execute(t, "version", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--env-file", filepath.Join(t.TempDir(), ".env"))
	if code == cli.ExitOK {
		t.Fatalf("explicit missing config must fail, got exit %d", code)
	}

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "claimforge.yaml")
	if err := os.WriteFile(cfgPath, []byte("telemetry:\n  logging:\n    level: error\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, code = execute(t, "version", "--config", cfgPath, "--env-file", filepath.Join(dir, ".env"))
	if code != cli.ExitOK {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(out, "Claimforge "+Version) {
		t.Errorf("output missing version: %q", out)
	}
}

func TestParseUnits(t *testing.T) {
	units, err := parseUnits([]string{"97110=6", " j1885 = 8 "})
	if err != nil {
		t.Fatalf("parseUnits() error = %v", err)
	}
	if units["97110"] != 6 || units["J1885"] != 8 {
		t.Errorf("units = %v", units)
	}

	for _, bad := range []string{"97110", "=3", "97110=x", "97110=-1"} {
		if _, err := parseUnits([]string{bad}); err == nil {
			t.Errorf("parseUnits(%q) expected error", bad)
		}
	}

	units, err = parseUnits(nil)
	if err != nil || units != nil {
		t.Errorf("parseUnits(nil) = %v, %v", units, err)
	}
}

func TestParseClaims(t *testing.T) {
	one, err := parseClaims([]byte(` {"id":"c1","procedure_codes":["99213"],"units":{"99213":2}} `))
	if err != nil {
		t.Fatalf("single claim: %v", err)
	}
	if len(one) != 1 || one[0].ID != "c1" || one[0].Units["99213"] != 2 {
		t.Errorf("single claim = %+v", one)
	}

	many, err := parseClaims([]byte(`[{"id":"a","procedure_codes":["1"]},{"id":"b","procedure_codes":["2"]}]`))
	if err != nil {
		t.Fatalf("claim array: %v", err)
	}
	if len(many) != 2 || many[1].ID != "b" {
		t.Errorf("claim array = %+v", many)
	}

	for _, bad := range []string{"", "[]", "{", "[1]"} {
		if _, err := parseClaims([]byte(bad)); err == nil {
			t.Errorf("parseClaims(%q) expected error", bad)
		}
	}
}

func TestFindingTable(t *testing.T) {
	res := &rules.Result{
		Errors:    []rules.Finding{{Severity: rules.SeverityError, Kind: rules.KindPTPBundling, Message: "bundled"}},
		Warnings:  []rules.Finding{},
		Passes:    []rules.Finding{{Severity: rules.SeverityPass, Kind: rules.KindICD10Format, Message: "ok"}},
		RiskScore: 30,
	}
	rows := findingTable{{Result: res}}.Rows()
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
	if rows[0][0] != "#1" || rows[0][1] != "error" || rows[1][1] != "pass" {
		t.Errorf("unexpected rows %v", rows)
	}
	if rows[2][3] != "valid=false risk_score=30" {
		t.Errorf("summary = %q", rows[2][3])
	}
}

func TestBuildStatusValidate(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	ptp := write("practitioner-ptp.txt",
		"Column 1\tColumn 2\tEffective Date\tDeletion Date *=no data\tModifier 0=not allowed 1=allowed 9=not applicable\n"+
			"99214\t99213\t20260101\t*\t1\n"+
			"99215\t36415\t20260101\t*\t0\n")
	mue := write("practitioner-mue.csv",
		"HCPCS/CPT Code,Practitioner Services MUE Values,MUE Adjudication Indicator\n"+
			"99213,1,2 Date of Service Edit: Policy\n")
	aoc := write("aoc.csv",
		"Add-on Code,Primary Code,AOC Edit Type\n"+
			"22614,22612,1\n")

	cfgPath := write("claimforge.yaml", fmt.Sprintf(`store:
  driver: sqlite
  dsn: %s
sources:
  download_dir: %s
  ptp:
    local_path: %s
  mue:
    local_path: %s
  aoc:
    local_path: %s
telemetry:
  logging:
    level: error
  metrics:
    enabled: false
`, filepath.Join(dir, "rules.db"), filepath.Join(dir, "downloads"), ptp, mue, aoc))

	common := []string{"--config", cfgPath, "--env-file", filepath.Join(dir, ".env"), "-o", "json"}

	out, code := execute(t, append([]string{"build"}, common...)...)
	if code != cli.ExitOK {
		t.Fatalf("build exit = %d, output %s", code, out)
	}
	var report ingest.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decoding build report: %v\n%s", err, out)
	}
	if !report.Committed || report.Rows() != 4 {
		t.Errorf("report committed=%t rows=%d", report.Committed, report.Rows())
	}

	out, code = execute(t, append([]string{"status"}, common...)...)
	if code != cli.ExitOK {
		t.Fatalf("status exit = %d", code)
	}
	var st storeStatus
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decoding status: %v\n%s", err, out)
	}
	if !st.Ready || st.Counts.PTP != 2 || st.Counts.MUE != 1 || st.Counts.AOC != 1 || len(st.Builds) != 3 {
		t.Errorf("status = %+v", st)
	}

	out, code = execute(t, append([]string{"validate", "--cpt", "99214,99213", "--icd", "E11.9", "--dos", "2026-02-01"}, common...)...)
	if code != cli.ExitInvalid {
		t.Fatalf("validate exit = %d, want %d", code, cli.ExitInvalid)
	}
	var res rules.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decoding result: %v\n%s", err, out)
	}
	if res.IsValid || len(res.Errors) != 1 || res.Errors[0].Kind != rules.KindPTPBundling {
		t.Errorf("result = %+v", res)
	}
	if res.RiskScore != rules.RiskScore(len(res.Errors), len(res.Warnings)) {
		t.Errorf("risk score = %d", res.RiskScore)
	}
}
