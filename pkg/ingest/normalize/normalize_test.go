package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest/extract"
)

func TestHeaderIndex(t *testing.T) {
	headers := []string{
		"Column 1",
		"Column 2",
		"*=no data",
		"Effective Date",
		"Deletion Date *=no data",
		"Modifier 0=not allowed 1=allowed 9=not applicable",
		"PTP Edit Rationale",
	}
	idx := NewHeaderIndex(headers, Aliases[edits.KindPTP])

	assert.Equal(t, []string{"Column 1"}, idx.Headers(FieldColumn1))
	assert.Equal(t, []string{"Deletion Date *=no data"}, idx.Headers(FieldDeletion))
	assert.Equal(t, []string{"Modifier 0=not allowed 1=allowed 9=not applicable"}, idx.Headers(FieldIndicator))
	assert.Equal(t, []string{"PTP Edit Rationale"}, idx.Headers(FieldRationale))
	assert.True(t, idx.Has(FieldEffective))
}

func TestHeaderIndex_PriorityAndFallback(t *testing.T) {
	headers := []string{"Secondary Code", "Column 2", "Column 10"}
	idx := NewHeaderIndex(headers, Aliases[edits.KindPTP])

	assert.Equal(t, []string{"Column 2", "Secondary Code"}, idx.Headers(FieldColumn2))
	assert.False(t, idx.Has(FieldColumn1), "column 10 is not a word-boundary match for column 1")

	row := extract.Row{"Secondary Code": "36415"}
	v, h := idx.Value(row, FieldColumn2)
	assert.Equal(t, "36415", v, "first non-empty value wins")
	assert.Equal(t, "Secondary Code", h)
}

func TestHeaderIndex_ExactHeadersNotReused(t *testing.T) {
	headers := []string{"Add-On Code", "Primary Code", "Add-On Code Effective Date", "AOC Edit Type"}
	idx := NewHeaderIndex(headers, Aliases[edits.KindAOC])

	assert.Equal(t, []string{"Add-On Code"}, idx.Headers(FieldAddOn))
	assert.Equal(t, []string{"Add-On Code Effective Date"}, idx.Headers(FieldEffective))
	assert.Equal(t, []string{"AOC Edit Type"}, idx.Headers(FieldEditType))
}

func TestCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"99213", "99213", true},
		{" j1885 ", "J1885", true},
		{"0001U", "0001U", true},
		{"0591T", "0591T", true},
		{"100", "00100", true},
		{"99213.0", "99213", true},
		{"", "", false},
		{"Footnote: CPT codes copyright AMA", "", false},
		{"992134", "", false},
		{"AB123", "", false},
	}
	for _, tt := range tests {
		got, ok := Code(tt.in)
		assert.Equal(t, tt.ok, ok, "%q", tt.in)
		assert.Equal(t, tt.want, got, "%q", tt.in)
	}
}

func TestUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"1", 1, true},
		{"3 ", 3, true},
		{" 12", 12, true},
		{"0", 0, true},
		{"2 (per day)", 0, false},
		{"1.5", 0, false},
		{"-1", 0, false},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := Units(tt.in)
		assert.Equal(t, tt.ok, ok, "%q", tt.in)
		assert.Equal(t, tt.want, got, "%q", tt.in)
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"20260101", "2026-01-01", true},
		{"1/1/2026", "2026-01-01", true},
		{"04/01/2025", "2025-04-01", true},
		{"01-01-26", "2026-01-01", true},
		{"2026-01-01", "2026-01-01", true},
		{"2026-01-01 00:00:00", "2026-01-01", true},
		{"46023", "2026-01-01", true},
		{"*", "", true},
		{"", "", true},
		{"2/30/2026", "", false},
		{"soon", "", false},
	}
	for _, tt := range tests {
		got, ok := Date(tt.in)
		assert.Equal(t, tt.ok, ok, "%q", tt.in)
		assert.Equal(t, tt.want, got, "%q", tt.in)
	}
}

func TestFilenameClassifier(t *testing.T) {
	c := FilenameClassifier{}
	tests := []struct {
		kind edits.Kind
		name string
		want edits.ProviderType
	}{
		{edits.KindPTP, "ccipra-v321r0-f1.txt", edits.ProviderPractitioner},
		{edits.KindPTP, "ccioph_v321r0_f2.xlsx", edits.ProviderHospital},
		{edits.KindPTP, "medicare-ncci-2026q1-practitioner-ptp-edits.zip", edits.ProviderPractitioner},
		{edits.KindMUE, "MCR_MUE_OutpatientHospitalServices_Eff_01-01-2026.xlsx", edits.ProviderHospital},
		{edits.KindMUE, "MCR_MUE_DMESupplierServices_Eff_01-01-2026.xlsx", edits.ProviderDME},
		{edits.KindMUE, "mue.csv Practitioner Services MUE Values", edits.ProviderPractitioner},
		{edits.KindMUE, "mue_2026.csv", edits.ProviderUnscoped},
		{edits.KindAOC, "practitioner-aoc.xlsx", edits.ProviderUnscoped},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Classify(tt.kind, tt.name), tt.name)
	}
}

func TestNormalize_PTP(t *testing.T) {
	sets := []extract.RowSet{
		{
			Source:  "ccipra-v321r0-f1.txt",
			Headers: []string{"Column 1", "Column 2", "Effective Date", "Deletion Date *=no data", "Modifier 0=not allowed 1=allowed 9=not applicable"},
			Rows: []extract.Row{
				{"Column 1": "99214", "Column 2": "99213", "Effective Date": "20260101", "Deletion Date *=no data": "*", "Modifier 0=not allowed 1=allowed 9=not applicable": "1"},
				{"Column 1": "99214", "Column 2": "99213", "Effective Date": "20260101", "Deletion Date *=no data": "*", "Modifier 0=not allowed 1=allowed 9=not applicable": "1"},
				{"Column 1": "0001A", "Column 2": "36415", "Modifier 0=not allowed 1=allowed 9=not applicable": "0"},
				{"Column 1": "CPT codes and descriptions only are copyright 2025 AMA"},
				{"Column 2": "99213"},
			},
		},
		{
			Source:  "notes.txt",
			Headers: []string{"Release", "Notes"},
			Rows:    []extract.Row{{"Release": "v321r0"}},
		},
	}

	res, err := New(nil).Normalize(edits.KindPTP, "medicare-ncci-ptp.zip", sets)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tables)
	assert.Equal(t, 5, res.RowsRead)
	assert.Equal(t, 2, res.Dropped)
	assert.Equal(t, 1, res.Duplicates)
	require.Len(t, res.PTP, 2)

	assert.Equal(t, "0001A", res.PTP[0].Column1, "rows are sorted")
	assert.Equal(t, edits.PTPEdit{
		Column1:           "99214",
		Column2:           "99213",
		ModifierIndicator: "1",
		EffectiveDate:     "2026-01-01",
		ProviderType:      edits.ProviderPractitioner,
		SourceFile:        "ccipra-v321r0-f1.txt",
	}, res.PTP[1])

	var snap edits.Snapshot
	res.Apply(&snap)
	assert.Len(t, snap.PTP, 2)
	assert.Nil(t, snap.MUE)
}

func TestNormalize_MUE(t *testing.T) {
	sets := []extract.RowSet{{
		Source:  "MCR_MUE_PractitionerServices.xlsx",
		Sheet:   "Sheet1",
		Headers: []string{"HCPCS/CPT Code", "Practitioner Services MUE Values", "MUE Adjudication Indicator", "MUE Rationale"},
		Rows: []extract.Row{
			{"HCPCS/CPT Code": "99213", "Practitioner Services MUE Values": "1", "MUE Adjudication Indicator": "2 Date of Service Edit: Policy", "MUE Rationale": "Code Descriptor / CPT Instruction"},
			{"HCPCS/CPT Code": "J1885", "Practitioner Services MUE Values": "8 "},
			{"HCPCS/CPT Code": "36415", "Practitioner Services MUE Values": "n/a"},
		},
	}}

	res, err := New(nil).Normalize(edits.KindMUE, "mue.zip", sets)
	require.NoError(t, err)
	require.Len(t, res.MUE, 2)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, "99213", res.MUE[0].Code)
	assert.Equal(t, 1, res.MUE[0].MaxUnits)
	assert.Equal(t, edits.ProviderPractitioner, res.MUE[0].ServiceType)
	assert.Equal(t, "2 Date of Service Edit: Policy", res.MUE[0].AdjudicationIndicator)
	assert.Equal(t, 8, res.MUE[1].MaxUnits)
}

func TestNormalize_AOC(t *testing.T) {
	sets := []extract.RowSet{{
		Source:  "aoc.csv",
		Headers: []string{"Add-on Code", "Primary Code", "AOC Edit Type", "Add-On Code Deletion Date"},
		Rows: []extract.Row{
			{"Add-on Code": "22614", "Primary Code": "22612", "AOC Edit Type": "1", "Add-On Code Deletion Date": "*"},
			{"Add-on Code": "22614", "Primary Code": "22630", "AOC Edit Type": "1"},
			{"Add-on Code": "22614"},
		},
	}}

	res, err := New(nil).Normalize(edits.KindAOC, "aoc.zip", sets)
	require.NoError(t, err)
	require.Len(t, res.AOC, 2)
	assert.Equal(t, "22612", res.AOC[0].PrimaryCode)
	assert.Equal(t, "1", res.AOC[0].EditType)
	assert.Equal(t, "", res.AOC[0].DeletionDate)
}

func TestNormalize_Empty(t *testing.T) {
	res, err := New(nil).Normalize(edits.KindAOC, "aoc.zip", []extract.RowSet{{
		Source:  "readme.csv",
		Headers: []string{"a", "b"},
		Rows:    []extract.Row{{"a": "1"}},
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, edits.ErrEmptyDataset))
	require.NotNil(t, res)
	assert.Zero(t, res.Count())

	_, err = New(nil).Normalize(edits.Kind("bogus"), "x", nil)
	assert.Error(t, err)
}

func TestNormalize_CustomClassifier(t *testing.T) {
	c := ClassifierFunc(func(edits.Kind, string) edits.ProviderType { return edits.ProviderHospital })
	res, err := New(c).Normalize(edits.KindPTP, "x.zip", []extract.RowSet{{
		Source:  "x.csv",
		Headers: []string{"Column 1", "Column 2"},
		Rows:    []extract.Row{{"Column 1": "99214", "Column 2": "99213"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, edits.ProviderHospital, res.PTP[0].ProviderType)
}

func TestMerge(t *testing.T) {
	part1 := &Result{
		Kind:     edits.KindPTP,
		PTP:      []edits.PTPEdit{{Column1: "99214", Column2: "99213", ModifierIndicator: "0", SourceFile: "part-1.txt"}},
		Tables:   1,
		RowsRead: 3,
		Dropped:  2,
	}
	part2 := &Result{
		Kind: edits.KindPTP,
		PTP: []edits.PTPEdit{
			{Column1: "99214", Column2: "99213", ModifierIndicator: "0", SourceFile: "part-2.txt"},
			{Column1: "11000", Column2: "11001", ModifierIndicator: "1", SourceFile: "part-2.txt"},
		},
		Tables:   1,
		RowsRead: 2,
	}

	merged := Merge(edits.KindPTP, part1, nil, part2)
	require.Len(t, merged.PTP, 2)
	assert.Equal(t, "11000", merged.PTP[0].Column1)
	assert.Equal(t, 2, merged.Tables)
	assert.Equal(t, 5, merged.RowsRead)
	assert.Equal(t, 2, merged.Dropped)
	assert.Equal(t, 1, merged.Duplicates)
}
