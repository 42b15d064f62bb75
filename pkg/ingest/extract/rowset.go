package extract

import (
	"fmt"
	"strings"
)

// HeaderScanRows is how many leading rows are searched for a header row.
const HeaderScanRows = 25

// Row maps a header to its cell value. Absent keys are empty cells.
type Row map[string]string

// RowSet is one decoded table: a CSV/TXT file or one workbook sheet.
type RowSet struct {
	// Source is the archive entry (or file) name the table came from.
	Source string

	// Sheet is the worksheet name for workbooks, empty otherwise.
	Sheet string

	Headers []string
	Rows    []Row
}

// Name identifies the RowSet in logs and reports.
func (rs RowSet) Name() string {
	if rs.Sheet == "" {
		return rs.Source
	}
	return rs.Source + "#" + rs.Sheet
}

// buildRowSet locates the header row in raw and converts the following
// rows into Rows. The header is the first row among the first
// HeaderScanRows containing a cell that contains one of hints; failing
// that, the first row with at least two non-empty cells. ok is false when
// no header row exists.
func buildRowSet(source, sheet string, raw [][]string, hints []string) (RowSet, bool) {
	headerIdx := findHeader(raw, hints)
	if headerIdx < 0 {
		return RowSet{}, false
	}

	headers := makeHeaders(raw[headerIdx])
	rs := RowSet{Source: source, Sheet: sheet, Headers: headers}

	for _, cells := range raw[headerIdx+1:] {
		row := make(Row)
		for i, cell := range cells {
			if i >= len(headers) {
				break
			}
			if v := strings.TrimSpace(cell); v != "" {
				row[headers[i]] = v
			}
		}
		if len(row) > 0 {
			rs.Rows = append(rs.Rows, row)
		}
	}

	return rs, true
}

func findHeader(raw [][]string, hints []string) int {
	limit := len(raw)
	if limit > HeaderScanRows {
		limit = HeaderScanRows
	}

	lowered := make([]string, 0, len(hints))
	for _, h := range hints {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			lowered = append(lowered, h)
		}
	}

	if len(lowered) > 0 {
		for i := 0; i < limit; i++ {
			for _, cell := range raw[i] {
				c := NormalizeHeader(cell)
				for _, h := range lowered {
					if strings.Contains(c, h) {
						return i
					}
				}
			}
		}
	}

	for i := 0; i < limit; i++ {
		nonEmpty := 0
		for _, cell := range raw[i] {
			if strings.TrimSpace(cell) != "" {
				nonEmpty++
			}
		}
		if nonEmpty >= 2 {
			return i
		}
	}
	return -1
}

// makeHeaders cleans header cells. Blank headers become "_blank_N", which
// no header alias matches, and repeated headers get a " (n)" suffix so
// every key is unique.
func makeHeaders(cells []string) []string {
	headers := make([]string, len(cells))
	seen := make(map[string]int, len(cells))
	for i, cell := range cells {
		h := strings.Join(strings.Fields(cell), " ")
		if h == "" {
			h = fmt.Sprintf("_blank_%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s (%d)", h, n)
		}
		headers[i] = h
	}
	return headers
}

// NormalizeHeader lowercases a header and collapses whitespace, including
// embedded line breaks from wrapped spreadsheet cells.
func NormalizeHeader(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
