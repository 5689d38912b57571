package core

import (
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// IdentifierColumn is the canonical name of the patient identifier (MRN)
// column in every table after resolution.
const IdentifierColumn = "MRN"

// Well-known column names read by the pipeline.
const (
	ColumnPDGMGrouping = "PDGM Grouping"
	ColumnPatientFlags = "Patient Flags"
	ColumnTargetDate   = "Target Date"
)

// Source names a pipeline input table.
type Source string

const (
	SourceCensus   Source = "census"
	SourceRoster   Source = "roster"
	SourceSchedule Source = "schedule"
)

// Value is a single spreadsheet cell. At most one member is Valid;
// a Value with no valid member is empty.
type Value struct {
	Text   pgtype.Text
	Number pgtype.Float8
	Time   pgtype.Timestamp
	Bool   pgtype.Bool
}

// Text returns a text Value. Empty strings produce an empty Value.
func Text(s string) Value {
	return Value{Text: ToPgText(s)}
}

// Number returns a numeric Value.
func Number(f float64) Value {
	return Value{Number: pgtype.Float8{Float64: f, Valid: true}}
}

// Time returns a date-time Value. The zero time produces an empty Value.
func Time(t time.Time) Value {
	if t.IsZero() {
		return Value{}
	}
	return Value{Time: pgtype.Timestamp{Time: t, Valid: true}}
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{Bool: pgtype.Bool{Bool: b, Valid: true}}
}

// IsEmpty reports whether no member of v is set.
func (v Value) IsEmpty() bool {
	return !v.Text.Valid && !v.Number.Valid && !v.Time.Valid && !v.Bool.Valid
}

// String coerces v to its string form. Empty values become "".
// Whole numbers print without a fractional part so numeric MRNs
// compare equal to their text form.
func (v Value) String() string {
	switch {
	case v.Text.Valid:
		return v.Text.String
	case v.Number.Valid:
		return strconv.FormatFloat(v.Number.Float64, 'f', -1, 64)
	case v.Time.Valid:
		t := v.Time.Time
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.DateTime)
	case v.Bool.Valid:
		return strconv.FormatBool(v.Bool.Bool)
	default:
		return ""
	}
}

// Row is one table row, holding one Value per table column.
type Row []Value

// Table is an ordered set of named columns and rows.
// Every row has exactly len(Columns) values.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// AppendRow adds a row, padding or truncating it to the column count.
func (t *Table) AppendRow(values ...Value) {
	row := make(Row, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Cell returns the value at row i in the named column.
// Unknown columns yield an empty Value.
func (t *Table) Cell(i int, column string) Value {
	idx := t.ColumnIndex(column)
	if idx < 0 || i < 0 || i >= len(t.Rows) {
		return Value{}
	}
	return t.Rows[i][idx]
}

// Clone returns a deep copy of the table. Pipeline stages clone their
// inputs so a caller's tables are never modified.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: make([]string, len(t.Columns)),
		Rows:    make([]Row, len(t.Rows)),
	}
	copy(out.Columns, t.Columns)
	for i, row := range t.Rows {
		r := make(Row, len(row))
		copy(r, row)
		out.Rows[i] = r
	}
	return out
}

// Selection holds the output columns chosen per source table.
// A nil list selects every column of that table.
type Selection struct {
	Schedule []string
	Census   []string
	Roster   []string
}

// Inputs are the three decoded tables and the caller's column choice.
type Inputs struct {
	Census    *Table
	Roster    *Table
	Schedule  *Table
	Selection Selection
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID        string
	PatientCount int
	Table        *Table
	Stats        RunStats
}

// RunStats records intermediate counts for logging and reporting.
type RunStats struct {
	ScheduleRows     int
	FilteredRows     int
	CensusDuplicates int
	RosterDuplicates int
	Duration         time.Duration
}
