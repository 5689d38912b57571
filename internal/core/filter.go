package core

import "github.com/samber/lo"

// FilterSchedule returns the schedule rows whose identifier is in flagged,
// in their original order. The schedule must have a resolved identifier;
// identifiers in the result are text cells.
func FilterSchedule(schedule *Table, flagged FlagSet) (*Table, error) {
	id := schedule.ColumnIndex(IdentifierColumn)
	if id < 0 {
		return nil, &ColumnError{Table: SourceSchedule, Err: ErrMissingIdentifierColumn}
	}

	out := NewTable(schedule.Columns...)
	kept := lo.Filter(schedule.Rows, func(row Row, _ int) bool {
		return flagged.Has(IdentifierKey(row[id]))
	})
	for _, row := range kept {
		out.AppendRow(row...)
		out.Rows[len(out.Rows)-1][id] = Text(IdentifierKey(row[id]))
	}
	return out, nil
}
