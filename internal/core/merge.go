package core

// merge.go joins census and roster attributes onto the filtered schedule.
//
// Both attribute tables are first reduced to one row per identifier (first
// row wins), then joined with left-join semantics: every schedule row is
// kept, and attribute cells without a match stay empty.

// Suffixes appended to attribute columns whose name already exists on the
// left side of a join.
const (
	CensusSuffix = "_census"
	RosterSuffix = "_roster"
)

// MergeStats reports how many duplicate identifier rows were discarded.
type MergeStats struct {
	CensusDuplicates int
	RosterDuplicates int
}

// DedupeByIdentifier keeps the first row for each identifier in source order
// and returns the number of rows dropped. Identifiers become text cells.
func DedupeByIdentifier(t *Table) (*Table, int) {
	id := t.ColumnIndex(IdentifierColumn)
	out := NewTable(t.Columns...)
	if id < 0 {
		for _, row := range t.Rows {
			out.AppendRow(row...)
		}
		return out, 0
	}

	seen := make(map[string]bool, len(t.Rows))
	dropped := 0
	for _, row := range t.Rows {
		key := IdentifierKey(row[id])
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		out.AppendRow(row...)
		out.Rows[len(out.Rows)-1][id] = Text(key)
	}
	return out, dropped
}

// LeftJoin joins right onto left by identifier. Every left row appears in the
// output; a left row matching several right rows is repeated once per match.
// Right columns that clash with existing names get suffix appended until the
// name is unique. Blank identifiers never match.
func LeftJoin(left, right *Table, suffix string) *Table {
	leftID := left.ColumnIndex(IdentifierColumn)
	rightID := right.ColumnIndex(IdentifierColumn)

	taken := make(map[string]bool, len(left.Columns)+len(right.Columns))
	for _, c := range left.Columns {
		taken[c] = true
	}

	columns := append([]string(nil), left.Columns...)
	var rightCols []int
	for i, c := range right.Columns {
		if i == rightID {
			continue
		}
		name := c
		for taken[name] {
			name += suffix
		}
		taken[name] = true
		columns = append(columns, name)
		rightCols = append(rightCols, i)
	}

	matches := make(map[string][]Row)
	if rightID >= 0 {
		for _, row := range right.Rows {
			key := IdentifierKey(row[rightID])
			if key == "" {
				continue
			}
			matches[key] = append(matches[key], row)
		}
	}

	out := NewTable(columns...)
	for _, row := range left.Rows {
		var found []Row
		if leftID >= 0 {
			if key := IdentifierKey(row[leftID]); key != "" {
				found = matches[key]
			}
		}
		if len(found) == 0 {
			out.AppendRow(row...)
			continue
		}
		for _, match := range found {
			values := make([]Value, 0, len(columns))
			values = append(values, row...)
			for _, i := range rightCols {
				values = append(values, match[i])
			}
			out.AppendRow(values...)
		}
	}
	return out
}

// MergeTables left-joins deduplicated census and then roster attributes onto
// the filtered schedule.
func MergeTables(schedule, census, roster *Table) (*Table, MergeStats) {
	var stats MergeStats
	census, stats.CensusDuplicates = DedupeByIdentifier(census)
	roster, stats.RosterDuplicates = DedupeByIdentifier(roster)

	merged := LeftJoin(schedule, census, CensusSuffix)
	merged = LeftJoin(merged, roster, RosterSuffix)
	return merged, stats
}
