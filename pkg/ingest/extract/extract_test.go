package extract

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"claimforge/compliance/pkg/edits"
)

var ptpHints = []string{"column 1", "column 2"}

func xlsxBytes(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			r := row
			require.NoError(t, f.SetSheetRow(name, cell, &r))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func zipBytes(t *testing.T, entries map[string][]byte, order ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if len(order) == 0 {
		for name := range entries {
			order = append(order, name)
		}
	}
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(entries[name])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestExtract_ZipWithWorkbookAndText(t *testing.T) {
	workbook := xlsxBytes(t, map[string][][]any{
		"PTP": {
			{"CMS NCCI Practitioner PTP Edits"},
			{"Column 1", "Column 2", "Modifier"},
			{"99214", "99213", "0"},
			{"", "", ""},
			{"99215", "99213", "1"},
		},
	})
	text := []byte("Column 1\tColumn 2\tModifier\n99215\t36415\t9\n")

	archive := zipBytes(t, map[string][]byte{
		"ptp_part1.xlsx":         workbook,
		"readme.pdf":             []byte("%PDF-1.4"),
		"ptp_part2.txt":          text,
		"__MACOSX/._ptp_part1.x": []byte("junk"),
		"docs/":                  nil,
	}, "ptp_part1.xlsx", "readme.pdf", "ptp_part2.txt", "__MACOSX/._ptp_part1.x", "docs/")

	ex, err := New(Options{}).Extract(context.Background(), edits.KindPTP, writeFile(t, "ptp.zip", archive), ptpHints)
	require.NoError(t, err)
	require.Empty(t, ex.Failures)
	assert.Equal(t, []string{"ptp_part1.xlsx", "ptp_part2.txt"}, ex.Entries)
	require.Len(t, ex.RowSets, 2)

	sheet := ex.RowSets[0]
	assert.Equal(t, "ptp_part1.xlsx#PTP", sheet.Name())
	assert.Equal(t, []string{"Column 1", "Column 2", "Modifier"}, sheet.Headers)
	require.Len(t, sheet.Rows, 2, "blank rows are dropped")
	assert.Equal(t, "99214", sheet.Rows[0]["Column 1"])
	assert.Equal(t, "1", sheet.Rows[1]["Modifier"])

	txt := ex.RowSets[1]
	assert.Equal(t, "ptp_part2.txt", txt.Name())
	require.Len(t, txt.Rows, 1)
	assert.Equal(t, "36415", txt.Rows[0]["Column 2"])
}

func TestExtract_BareFiles(t *testing.T) {
	csvData := []byte("\xEF\xBB\xBFHCPCS Code,Practitioner Services MUE Values,MUE Rationale\n99213,1,Clinical\n")
	ex, err := New(Options{}).Extract(context.Background(), edits.KindMUE, writeFile(t, "mue.csv", csvData), []string{"mue values"})
	require.NoError(t, err)
	require.Len(t, ex.RowSets, 1)
	assert.Equal(t, "HCPCS Code", ex.RowSets[0].Headers[0], "byte order mark is stripped")
	assert.Equal(t, "1", ex.RowSets[0].Rows[0]["Practitioner Services MUE Values"])

	workbook := xlsxBytes(t, map[string][][]any{
		"AOC": {{"Add-On Code", "Primary Code"}, {"22614", "22612"}},
	})
	ex, err = New(Options{}).Extract(context.Background(), edits.KindAOC, writeFile(t, "aoc.xlsx", workbook), []string{"add-on code"})
	require.NoError(t, err)
	require.Len(t, ex.RowSets, 1)
	assert.Equal(t, "22612", ex.RowSets[0].Rows[0]["Primary Code"])
}

func TestExtract_Windows1252(t *testing.T) {
	// 0x96 is an en dash in Windows-1252 and invalid as UTF-8.
	data := []byte("Column 1|Column 2|PTP Edit Rationale\n99214|99213|Misuse \x96 E/M\n")
	ex, err := New(Options{}).Extract(context.Background(), edits.KindPTP, writeFile(t, "ptp.txt", data), ptpHints)
	require.NoError(t, err)
	require.Len(t, ex.RowSets, 1)
	assert.Equal(t, "Misuse – E/M", ex.RowSets[0].Rows[0]["PTP Edit Rationale"])
}

func TestExtract_NestedArchive(t *testing.T) {
	inner := zipBytes(t, map[string][]byte{
		"hospital.csv": []byte("Column 1,Column 2,Modifier\n0001U,0002U,1\n"),
	})
	outer := zipBytes(t, map[string][]byte{
		"hospital.zip": inner,
		"practitioner.csv": []byte(
			"Column 1,Column 2,Modifier\n99214,99213,0\n"),
	}, "practitioner.csv", "hospital.zip")

	ex, err := New(Options{}).Extract(context.Background(), edits.KindPTP, writeFile(t, "ptp.zip", outer), ptpHints)
	require.NoError(t, err)
	assert.Equal(t, []string{"practitioner.csv", "hospital.zip/hospital.csv"}, ex.Entries)
	require.Len(t, ex.RowSets, 2)
	assert.Equal(t, "0001U", ex.RowSets[1].Rows[0]["Column 1"])
}

func TestExtract_DecodeFailuresAreSkipped(t *testing.T) {
	archive := zipBytes(t, map[string][]byte{
		"broken.xlsx": []byte("not a workbook"),
		"legacy.xls":  []byte{0xD0, 0xCF, 0x11, 0xE0},
		"good.csv":    []byte("Column 1,Column 2\n99214,99213\n"),
	}, "broken.xlsx", "legacy.xls", "good.csv")

	ex, err := New(Options{}).Extract(context.Background(), edits.KindPTP, writeFile(t, "ptp.zip", archive), ptpHints)
	require.NoError(t, err)
	require.Len(t, ex.RowSets, 1)
	require.Len(t, ex.Failures, 2)

	for _, f := range ex.Failures {
		assert.ErrorIs(t, f, edits.ErrDecodeFailed)
	}
	assert.Equal(t, "broken.xlsx", ex.Failures[0].Entry)
	assert.True(t, errors.Is(ex.Failures[1], errLegacyWorkbook))
}

func TestExtract_EntryTooLarge(t *testing.T) {
	archive := zipBytes(t, map[string][]byte{
		"big.csv": bytes.Repeat([]byte("Column 1,Column 2\n"), 100),
	})
	ex, err := New(Options{MaxEntryBytes: 64}).Extract(context.Background(), edits.KindPTP, writeFile(t, "ptp.zip", archive), ptpHints)
	require.NoError(t, err)
	assert.Empty(t, ex.RowSets)
	require.Len(t, ex.Failures, 1)
}

func TestExtract_FatalErrors(t *testing.T) {
	e := New(Options{})
	ctx := context.Background()

	_, err := e.Extract(ctx, edits.KindPTP, filepath.Join(t.TempDir(), "missing.zip"), nil)
	assert.Error(t, err)

	_, err = e.Extract(ctx, edits.KindPTP, writeFile(t, "corrupt.zip", []byte("PK\x03\x04garbage")), nil)
	assert.Error(t, err)

	_, err = e.Extract(ctx, edits.KindPTP, writeFile(t, "notes.pdf", []byte("%PDF")), nil)
	assert.Error(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	archive := zipBytes(t, map[string][]byte{"a.csv": []byte("a,b\n1,2\n")})
	_, err = e.Extract(canceled, edits.KindPTP, writeFile(t, "a.zip", archive), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_ZipDetectedByMagic(t *testing.T) {
	archive := zipBytes(t, map[string][]byte{"a.csv": []byte("Column 1,Column 2\n99214,99213\n")})
	ex, err := New(Options{}).Extract(context.Background(), edits.KindPTP, writeFile(t, "download", archive), ptpHints)
	require.NoError(t, err)
	require.Len(t, ex.RowSets, 1)
}

func TestFindHeader(t *testing.T) {
	raw := [][]string{
		{"Copyright 2026 American Medical Association"},
		{"", ""},
		{"HCPCS/CPT Code", "Practitioner Services MUE Values"},
		{"99213", "1"},
	}
	assert.Equal(t, 2, findHeader(raw, []string{"mue values"}))
	assert.Equal(t, 2, findHeader(raw, nil), "first row with two non-empty cells")
	assert.Equal(t, -1, findHeader([][]string{{"only"}, {""}}, nil))
}

func TestMakeHeaders(t *testing.T) {
	got := makeHeaders([]string{"Column 1", " ", "Modifier\n0=not allowed", "Column 1"})
	assert.Equal(t, []string{"Column 1", "_blank_2", "Modifier 0=not allowed", "Column 1 (2)"}, got)

	got = makeHeaders([]string{"", "Column 2", ""})
	assert.Equal(t, []string{"_blank_1", "Column 2", "_blank_3"}, got)
	for _, h := range got {
		assert.NotContains(t, NormalizeHeader(h), "column 1", "blank header %q reads as a PTP column", h)
	}
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, '\t', sniffDelimiter("a\tb\tc\n1\t2\t3\n", nil))
	assert.Equal(t, ',', sniffDelimiter("a,b,c\n1,2,3\n", nil))
	assert.Equal(t, '|', sniffDelimiter("a|b|c\n", nil))
	assert.Equal(t, '\t', sniffDelimiter("no delimiters", nil))
}

func TestSniffDelimiter_SkipsPreamble(t *testing.T) {
	text := "CPT codes, descriptions, and other data only are copyright 2025, American Medical Association, all rights reserved, applicable FARS/DFARS apply.\n" +
		"Column 1\tColumn 2\tModifier\n" +
		"99214\t99213\t1\n"

	assert.Equal(t, ',', sniffDelimiter(text, nil), "without hints the preamble is scored")
	assert.Equal(t, '\t', sniffDelimiter(text, ptpHints))

	sets, err := decodeDelimited("ptp.txt", []byte(text), ptpHints)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, []string{"Column 1", "Column 2", "Modifier"}, sets[0].Headers)
	require.Len(t, sets[0].Rows, 1)
	assert.Equal(t, "99213", sets[0].Rows[0]["Column 2"])
}
