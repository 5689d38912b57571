package core

import (
	"fmt"
	"strings"
)

// identifierAliases are the lowercase substrings that mark a patient
// identifier column, in priority order.
var identifierAliases = []string{"mrn", "medical record", "record number", "chart"}

// FindIdentifierColumn returns the index of the first column whose lowercased
// name contains any identifier alias.
func FindIdentifierColumn(columns []string) (int, bool) {
	for i, col := range columns {
		lower := strings.ToLower(col)
		for _, alias := range identifierAliases {
			if strings.Contains(lower, alias) {
				return i, true
			}
		}
	}
	return -1, false
}

// ResolveIdentifier renames the identifier column of t to IdentifierColumn.
// The input is not modified. Fails with ErrMissingIdentifierColumn when no
// column matches.
func ResolveIdentifier(t *Table, source Source) (*Table, error) {
	idx, ok := FindIdentifierColumn(t.Columns)
	if !ok {
		return nil, &ColumnError{Table: source, Err: ErrMissingIdentifierColumn}
	}

	out := t.Clone()
	out.Columns[idx] = IdentifierColumn

	taken := make(map[string]bool, len(out.Columns))
	for _, c := range out.Columns {
		taken[c] = true
	}

	// A later column already called MRN moves to the first free MRN.N.
	for i, c := range out.Columns {
		if i == idx || c != IdentifierColumn {
			continue
		}
		for n := 1; ; n++ {
			candidate := fmt.Sprintf("%s.%d", IdentifierColumn, n)
			if !taken[candidate] {
				out.Columns[i] = candidate
				taken[candidate] = true
				break
			}
		}
	}
	out.Columns = UniqueHeaders(out.Columns)
	return out, nil
}

// PrepareTable normalizes headers and resolves the identifier column.
func PrepareTable(t *Table, source Source) (*Table, error) {
	return ResolveIdentifier(NormalizeHeaders(t), source)
}
