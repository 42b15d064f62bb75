package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// errLegacyWorkbook is returned for BIFF .xls entries, which have no decoder.
var errLegacyWorkbook = errors.New("legacy .xls workbooks are not supported")

// decodeXLSX returns one RowSet per worksheet.
func decodeXLSX(name string, data []byte, hints []string) ([]RowSet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var sets []RowSet
	for _, sheet := range f.GetSheetList() {
		raw, err := readSheet(f, sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
		}
		if rs, ok := buildRowSet(name, sheet, raw, hints); ok {
			sets = append(sets, rs)
		}
	}
	return sets, nil
}

func readSheet(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var raw [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		raw = append(raw, cols)
	}
	return raw, rows.Error()
}

// decodeDelimited decodes CSV and fixed-delimiter text files into a single
// RowSet.
func decodeDelimited(name string, data []byte, hints []string) ([]RowSet, error) {
	text, err := toUTF8(data)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text, hints)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	var raw [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing delimited text: %w", err)
		}
		raw = append(raw, rec)
	}

	rs, ok := buildRowSet(name, "", raw, hints)
	if !ok {
		return nil, nil
	}
	return []RowSet{rs}, nil
}

// toUTF8 strips a UTF-8 byte order mark and decodes non-UTF-8 input as
// Windows-1252, which is what CMS text releases use.
func toUTF8(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding Windows-1252 text: %w", err)
	}
	return string(decoded), nil
}

// sniffDelimiter picks the most frequent of comma, tab and pipe across
// the first non-empty lines, starting at the header row when a line
// within the header scan window contains one of hints. Preamble text
// above the header is not scored. Tab wins ties since CMS text files are
// tab delimited.
func sniffDelimiter(text string, hints []string) rune {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	lines = lines[headerLine(lines, hints):]
	if len(lines) > 30 {
		lines = lines[:30]
	}

	counts := map[rune]int{'\t': 0, ',': 0, '|': 0}
	for _, line := range lines {
		for d := range counts {
			counts[d] += strings.Count(line, string(d))
		}
	}

	best := '\t'
	for _, d := range []rune{',', '|'} {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

// headerLine returns the index of the first line among the first
// HeaderScanRows containing one of hints, or 0.
func headerLine(lines, hints []string) int {
	limit := min(len(lines), HeaderScanRows)
	for i := 0; i < limit; i++ {
		l := NormalizeHeader(lines[i])
		for _, h := range hints {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" && strings.Contains(l, h) {
				return i
			}
		}
	}
	return 0
}
