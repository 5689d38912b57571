package core

import (
	"cmp"
	"slices"
	"strings"
)

// SortRows returns a copy of t stably sorted ascending by identifier and,
// when the table has a Target Date column, by that date within an identifier.
func SortRows(t *Table) *Table {
	out := t.Clone()
	id := out.ColumnIndex(IdentifierColumn)
	if id < 0 {
		return out
	}
	date := out.ColumnIndex(ColumnTargetDate)

	slices.SortStableFunc(out.Rows, func(a, b Row) int {
		if c := strings.Compare(IdentifierKey(a[id]), IdentifierKey(b[id])); c != 0 {
			return c
		}
		if date < 0 {
			return 0
		}
		return compareDateCells(a[date], b[date])
	})
	return out
}

// compareDateCells orders cells chronologically. Cells that hold a date come
// first, then other non-empty cells by their text, then empty cells.
func compareDateCells(a, b Value) int {
	ra, rb := dateRank(a), dateRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 0:
		ta, _ := dateOf(a)
		tb, _ := dateOf(b)
		return ta.Compare(tb)
	case 1:
		return strings.Compare(a.String(), b.String())
	default:
		return 0
	}
}

func dateRank(v Value) int {
	if _, ok := dateOf(v); ok {
		return 0
	}
	if !v.IsEmpty() {
		return 1
	}
	return 2
}

// selectedColumns builds the union of the caller's per-table choices.
// A nil choice stands for every column of that table.
func selectedColumns(sel Selection, schedule, census, roster *Table) map[string]bool {
	chosen := make(map[string]bool)
	add := func(list []string, t *Table) {
		if list == nil {
			list = t.Columns
		}
		for _, c := range list {
			chosen[c] = true
		}
	}
	add(sel.Schedule, schedule)
	add(sel.Census, census)
	add(sel.Roster, roster)
	return chosen
}

// Project keeps the columns of t that are in chosen, in t's column order.
func Project(t *Table, chosen map[string]bool) *Table {
	var keep []int
	var columns []string
	for i, c := range t.Columns {
		if chosen[c] {
			keep = append(keep, i)
			columns = append(columns, c)
		}
	}

	out := NewTable(columns...)
	for _, row := range t.Rows {
		values := make([]Value, len(keep))
		for j, i := range keep {
			values[j] = row[i]
		}
		out.AppendRow(values...)
	}
	return out
}

// Finalize sorts the merged table and projects it onto the selection.
// schedule, census and roster are the prepared inputs the selection refers to.
func Finalize(merged *Table, sel Selection, schedule, census, roster *Table) *Table {
	return Project(SortRows(merged), selectedColumns(sel, schedule, census, roster))
}
