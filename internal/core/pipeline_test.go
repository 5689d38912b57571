package core

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// table builds a text table; "" cells are empty.
func table(columns []string, rows ...[]string) *Table {
	t := NewTable(columns...)
	for _, r := range rows {
		values := make([]Value, len(r))
		for i, s := range r {
			values[i] = Text(s)
		}
		t.AppendRow(values...)
	}
	return t
}

// column returns the string form of every cell in the named column.
func column(t *Table, name string) []string {
	out := make([]string, t.Len())
	for i := range t.Rows {
		out[i] = t.Cell(i, name).String()
	}
	return out
}

func TestNormalizeHeader(t *testing.T) {
	tests := map[string]string{
		"PDGM\u00a0Grouping":   "PDGM Grouping",
		"\u00a0MRN\u00a0":      "MRN",
		" Target\u00a0Date\t": "Target Date",
		"Name":                 "Name",
		"":                     "",
	}
	for in, want := range tests {
		if got := NormalizeHeader(in); got != want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", in, got, want)
		}
		if got := NormalizeHeader(NormalizeHeader(in)); got != want {
			t.Errorf("NormalizeHeader twice (%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeHeaders(t *testing.T) {
	in := table([]string{" MRN\u00a0", "Target\u00a0Date", "\u00a0Name ", "PDGM\u00a0Grouping"},
		[]string{"A", "2024-01-01", " Ann ", "WOUND"})

	once := NormalizeHeaders(in)
	assert.Equal(t, []string{"MRN", "Target Date", "Name", "PDGM Grouping"}, once.Columns)
	assert.Equal(t, " Ann ", once.Cell(0, "Name").String(), "row data must not change")
	assert.Equal(t, " MRN\u00a0", in.Columns[0], "input must not be modified")

	twice := NormalizeHeaders(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("normalization not idempotent (-once +twice):\n%s", diff)
	}
}

func TestUniqueHeaders(t *testing.T) {
	got := UniqueHeaders([]string{"Name", "Name", "Name.1", "Name", "MRN"})
	assert.Equal(t, []string{"Name", "Name.2", "Name.1", "Name.3", "MRN"}, got)
}

func TestResolveIdentifier(t *testing.T) {
	for _, name := range []string{"MRN", "Medical Record Number", "Record Number", "Chart #", "patient mrn"} {
		t.Run(name, func(t *testing.T) {
			in := table([]string{"Name", name}, []string{"Ann", "A"})
			out, err := ResolveIdentifier(in, SourceCensus)
			require.NoError(t, err)
			assert.Equal(t, []string{"Name", IdentifierColumn}, out.Columns)
			assert.Equal(t, name, in.Columns[1], "input must not be modified")
		})
	}
}

func TestResolveIdentifier_FirstMatchWins(t *testing.T) {
	in := table([]string{"Chart", "Medical Record", "MRN"})
	out, err := ResolveIdentifier(in, SourceRoster)
	require.NoError(t, err)
	assert.Equal(t, []string{"MRN", "Medical Record", "MRN.1"}, out.Columns)
}

func TestResolveIdentifier_DisplacedColumnGetsFreeSuffix(t *testing.T) {
	in := table([]string{"Chart", "MRN", "MRN.1"}, []string{"C1", "old", "older"})
	out, err := ResolveIdentifier(in, SourceCensus)
	require.NoError(t, err)
	assert.Equal(t, []string{"MRN", "MRN.2", "MRN.1"}, out.Columns)
	assert.Equal(t, "old", out.Cell(0, "MRN.2").String())
	assert.Equal(t, "older", out.Cell(0, "MRN.1").String())
}

func TestResolveIdentifier_Missing(t *testing.T) {
	_, err := ResolveIdentifier(table([]string{"Name", "Patient ID"}), SourceSchedule)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingIdentifierColumn)

	var colErr *ColumnError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, SourceSchedule, colErr.Table)
	assert.Equal(t, "VAL005", MapError(err).Code)
}

func woundInputs() (census, roster *Table) {
	census = table([]string{"MRN", "PDGM Grouping"},
		[]string{"A", "WOUND CARE"},
		[]string{"B", "CARDIAC"},
		[]string{"C", "wound"},
	)
	roster = table([]string{"MRN", "Patient Flags"},
		[]string{"B", "none"},
		[]string{"D", "WOUND CARE NEEDED"},
	)
	return census, roster
}

func TestExtractWoundFlags(t *testing.T) {
	census, roster := woundInputs()

	flags, err := ExtractWoundFlags(census, roster)
	require.NoError(t, err)
	// B is CARDIAC in the census and "none" in the roster, so it is not flagged.
	assert.Equal(t, []string{"A", "C", "D"}, flags.Sorted())
	assert.Equal(t, 3, flags.Len())
	assert.False(t, flags.Has("B"))
}

func TestExtractWoundFlags_RosterNeedsWoundCare(t *testing.T) {
	census := table([]string{"MRN", "PDGM Grouping"})
	roster := table([]string{"MRN", "Patient Flags"},
		[]string{"A", "wound"},
		[]string{"B", "Wound Care"},
		[]string{"", "WOUND CARE"},
	)

	flags, err := ExtractWoundFlags(census, roster)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, flags.Sorted(), "blank identifiers are never flagged")
}

func TestExtractWoundFlags_MissingColumn(t *testing.T) {
	census, _ := woundInputs()
	roster := table([]string{"MRN", "Flags"})

	_, err := ExtractWoundFlags(census, roster)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredColumn)
	assert.Contains(t, err.Error(), "Patient Flags")
	assert.Equal(t, "VAL004", MapError(err).Code)
}

func TestFilterSchedule(t *testing.T) {
	flags := FlagSet{}
	for _, id := range []string{"A", "C", "B", "D"} {
		flags.Add(id)
	}
	schedule := table([]string{"MRN", "Visit"},
		[]string{"A", "1"},
		[]string{"X", "2"},
		[]string{"D", "3"},
	)

	out, err := FilterSchedule(schedule, flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "D"}, column(out, "MRN"))
	assert.Equal(t, []string{"1", "3"}, column(out, "Visit"))
}

func TestFilterSchedule_NumericIdentifiers(t *testing.T) {
	flags := FlagSet{"1001": {}}
	schedule := NewTable("MRN")
	schedule.AppendRow(Number(1001))
	schedule.AppendRow(Number(1002))

	out, err := FilterSchedule(schedule, flags)
	require.NoError(t, err)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, Text("1001"), out.Rows[0][0], "identifier is coerced to text")
}

func TestFilterSchedule_QuotedIdentifiersStayDistinct(t *testing.T) {
	census := table([]string{"MRN", "PDGM Grouping"}, []string{"'A", "WOUND"})
	roster := table([]string{"MRN", "Patient Flags"})
	flags, err := ExtractWoundFlags(census, roster)
	require.NoError(t, err)
	assert.Equal(t, []string{"'A"}, flags.Sorted())

	schedule := table([]string{"MRN", "Visit"},
		[]string{"A", "1"},
		[]string{"'A", "2"},
		[]string{`="A"`, "3"},
		[]string{"=A", "4"},
	)
	out, err := FilterSchedule(schedule, flags)
	require.NoError(t, err)
	assert.Equal(t, []string{"'A"}, column(out, "MRN"), "identifier is written back unchanged")
	assert.Equal(t, []string{"2"}, column(out, "Visit"))
}

func TestMergeTables(t *testing.T) {
	schedule := table([]string{"MRN", "Name", "Target Date"},
		[]string{"A", "Ann", "2024-01-02"},
		[]string{"Z", "Zed", "2024-01-03"},
	)
	census := table([]string{"MRN", "Name", "PDGM Grouping"},
		[]string{"A", "Ann C.", "WOUND"},
		[]string{"A", "Ann Dup", "CARDIAC"},
	)
	roster := table([]string{"MRN", "Name", "Patient Flags"},
		[]string{"A", "Ann R.", "WOUND CARE"},
	)

	merged, stats := MergeTables(schedule, census, roster)

	assert.Equal(t, MergeStats{CensusDuplicates: 1}, stats)
	assert.Equal(t,
		[]string{"MRN", "Name", "Target Date", "Name_census", "PDGM Grouping", "Name_roster", "Patient Flags"},
		merged.Columns)
	require.Equal(t, 2, merged.Len(), "every schedule row is kept")

	assert.Equal(t, "Ann C.", merged.Cell(0, "Name_census").String(), "first duplicate wins")
	assert.Equal(t, "WOUND", merged.Cell(0, "PDGM Grouping").String())
	assert.Equal(t, "Ann R.", merged.Cell(0, "Name_roster").String())

	for _, c := range []string{"Name_census", "PDGM Grouping", "Name_roster", "Patient Flags"} {
		assert.True(t, merged.Cell(1, c).IsEmpty(), "unmatched %s should be empty", c)
	}
}

func TestLeftJoin_RepeatsSuffixUntilUnique(t *testing.T) {
	left := table([]string{"MRN", "Note", "Note_census"}, []string{"A", "l1", "l2"})
	right := table([]string{"MRN", "Note"}, []string{"A", "r"})

	out := LeftJoin(left, right, CensusSuffix)
	assert.Equal(t, []string{"MRN", "Note", "Note_census", "Note_census_census"}, out.Columns)
	assert.Equal(t, "r", out.Cell(0, "Note_census_census").String())
}

func TestLeftJoin_BlankKeysNeverMatch(t *testing.T) {
	left := table([]string{"MRN", "Visit"}, []string{"", "1"})
	right := table([]string{"MRN", "Flag"}, []string{"", "x"})

	out := LeftJoin(left, right, RosterSuffix)
	require.Equal(t, 1, out.Len())
	assert.True(t, out.Cell(0, "Flag").IsEmpty())
}

func TestSortRows_ByIdentifierAndDate(t *testing.T) {
	in := table([]string{"MRN", "Target Date", "Seq"},
		[]string{"B", "2024-02-01", "1"},
		[]string{"A", "", "2"},
		[]string{"A", "03/01/2024", "3"},
		[]string{"A", "2024-01-15", "4"},
		[]string{"B", "2024-01-01", "5"},
		[]string{"A", "2024-01-15", "6"},
		[]string{"A", "", "7"},
		[]string{"A", "01/15/2024", "8"},
	)

	out := SortRows(in)
	assert.Equal(t, []string{"A", "A", "A", "A", "A", "A", "B", "B"}, column(out, "MRN"))
	assert.Equal(t, []string{"4", "6", "8", "3", "2", "7", "5", "1"}, column(out, "Seq"),
		"dates ascend, empties last, equal keys keep input order")
	assert.Equal(t, "B", in.Cell(0, "MRN").String(), "input must not be modified")
}

func TestSortRows_StableWithoutDate(t *testing.T) {
	in := table([]string{"MRN", "Seq"},
		[]string{"B", "1"},
		[]string{"A", "2"},
		[]string{"B", "3"},
		[]string{"A", "4"},
	)

	out := SortRows(in)
	assert.Equal(t, []string{"A", "A", "B", "B"}, column(out, "MRN"))
	assert.Equal(t, []string{"2", "4", "1", "3"}, column(out, "Seq"))
}

func TestFinalize_ProjectsSelectionInMergedOrder(t *testing.T) {
	schedule := table([]string{"MRN", "Target Date", "Visit"})
	census := table([]string{"MRN", "PDGM Grouping"})
	roster := table([]string{"MRN", "Patient Flags", "Clinician"})
	merged := table([]string{"MRN", "Target Date", "Visit", "PDGM Grouping", "Patient Flags", "Clinician"},
		[]string{"B", "", "v2", "WOUND", "", "Kim"},
		[]string{"A", "", "v1", "WOUND", "", "Lee"},
	)

	sel := Selection{
		Schedule: []string{"Visit", "MRN"},
		Census:   []string{},
		Roster:   []string{"Clinician"},
	}
	out := Finalize(merged, sel, schedule, census, roster)

	assert.Equal(t, []string{"MRN", "Visit", "Clinician"}, out.Columns)
	assert.Equal(t, []string{"A", "B"}, column(out, "MRN"))
	assert.Equal(t, []string{"Lee", "Kim"}, column(out, "Clinician"))
}

func TestFinalize_NilSelectionKeepsEverything(t *testing.T) {
	schedule := table([]string{"MRN", "Visit"})
	census := table([]string{"MRN", "PDGM Grouping"})
	roster := table([]string{"MRN", "Patient Flags"})
	merged := table([]string{"MRN", "Visit", "PDGM Grouping", "Patient Flags"}, []string{"A", "1", "W", "F"})

	out := Finalize(merged, Selection{}, schedule, census, roster)
	assert.Equal(t, merged.Columns, out.Columns)
}

func endToEndInputs() Inputs {
	return Inputs{
		Schedule: table([]string{"Medical Record #", "Target Date", "Visit Type"},
			[]string{"C", "2024-03-02", "Wound check"},
			[]string{"B", "2024-03-01", "Cardiac"},
			[]string{"A", "2024-03-05", "Dressing"},
		),
		Census: table([]string{"MRN\u00a0", "PDGM Grouping", "Payer"},
			[]string{"A", "WOUND - SURGICAL", "Medicare"},
			[]string{"B", "CARDIAC", "Medicaid"},
		),
		Roster: table([]string{"Chart", "Patient Flags", "Clinician"},
			[]string{"C", "WOUND CARE", "Kim"},
			[]string{"B", "FALL RISK", "Lee"},
		),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	in := endToEndInputs()
	in.Selection = Selection{
		Schedule: []string{"MRN", "Target Date"},
		Census:   []string{"Payer"},
		Roster:   []string{"Clinician"},
	}

	res, err := Run(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.PatientCount)
	assert.Equal(t, []string{"MRN", "Target Date", "Payer", "Clinician"}, res.Table.Columns)
	assert.Equal(t, []string{"A", "C"}, column(res.Table, "MRN"))
	assert.Equal(t, []string{"Medicare", ""}, column(res.Table, "Payer"))
	assert.Equal(t, []string{"", "Kim"}, column(res.Table, "Clinician"))

	assert.Equal(t, 3, res.Stats.ScheduleRows)
	assert.Equal(t, 2, res.Stats.FilteredRows)
	assert.Equal(t, "Medical Record #", in.Schedule.Columns[0], "inputs must not be modified")
}

func TestRun_NoWoundPatientsIsNotAnError(t *testing.T) {
	in := endToEndInputs()
	in.Census = table([]string{"MRN", "PDGM Grouping"}, []string{"A", "CARDIAC"})
	in.Roster = table([]string{"MRN", "Patient Flags"})

	res, err := Run(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, res.PatientCount)
	assert.Zero(t, res.Table.Len())
	assert.Contains(t, res.Table.Columns, "MRN")
}

func TestRun_TerminalErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Inputs)
		wantErr error
		source  Source
	}{
		{
			name:    "schedule without identifier",
			mutate:  func(in *Inputs) { in.Schedule = table([]string{"Patient", "Target Date"}) },
			wantErr: ErrMissingIdentifierColumn,
			source:  SourceSchedule,
		},
		{
			name:    "census without PDGM Grouping",
			mutate:  func(in *Inputs) { in.Census = table([]string{"MRN", "Payer"}) },
			wantErr: ErrMissingRequiredColumn,
			source:  SourceCensus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := endToEndInputs()
			tt.mutate(&in)

			res, err := Run(context.Background(), in)
			assert.Nil(t, res)
			require.ErrorIs(t, err, tt.wantErr)

			var colErr *ColumnError
			require.ErrorAs(t, err, &colErr)
			assert.Equal(t, tt.source, colErr.Table)
		})
	}
}

func TestRun_MissingInput(t *testing.T) {
	in := endToEndInputs()
	in.Roster = nil

	_, err := Run(context.Background(), in)
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Equal(t, "FILE004", MapError(err).Code)
}

func TestService_ColumnsAndRun(t *testing.T) {
	svc := &Service{limiter: NewRunLimiter(1, 0)}
	in := endToEndInputs()

	cols, err := svc.Columns(in.Census, in.Roster, in.Schedule)
	require.NoError(t, err)
	assert.Equal(t, []string{"MRN", "PDGM Grouping", "Payer"}, cols[SourceCensus])
	assert.Equal(t, []string{"MRN", "Target Date", "Visit Type"}, cols[SourceSchedule])

	res, err := svc.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Table.Len())
	assert.Zero(t, svc.LimiterStatus().Active, "slot released after run")
}
