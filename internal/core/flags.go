package core

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Substrings that mark a wound-care patient, matched case-insensitively.
const (
	pdgmWoundMarker = "WOUND"
	flagWoundMarker = "WOUND CARE"
)

// FlagSet is a set of patient identifiers.
type FlagSet map[string]struct{}

// Add inserts an identifier. Blank identifiers are ignored.
func (s FlagSet) Add(id string) {
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

// Has reports whether id is in the set.
func (s FlagSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers.
func (s FlagSet) Len() int {
	return len(s)
}

// Sorted returns the identifiers in ascending order.
func (s FlagSet) Sorted() []string {
	ids := lo.Keys(map[string]struct{}(s))
	slices.Sort(ids)
	return ids
}

// Union returns a new set holding every identifier of s and other.
func (s FlagSet) Union(other FlagSet) FlagSet {
	out := make(FlagSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// ExtractWoundFlags returns the identifiers flagged as wound care: census rows
// whose PDGM Grouping contains "WOUND" plus roster rows whose Patient Flags
// contain "WOUND CARE". Both tables must already have a resolved identifier.
func ExtractWoundFlags(census, roster *Table) (FlagSet, error) {
	fromCensus, err := flaggedIdentifiers(census, SourceCensus, ColumnPDGMGrouping, pdgmWoundMarker)
	if err != nil {
		return nil, err
	}
	fromRoster, err := flaggedIdentifiers(roster, SourceRoster, ColumnPatientFlags, flagWoundMarker)
	if err != nil {
		return nil, err
	}
	return fromCensus.Union(fromRoster), nil
}

// flaggedIdentifiers collects identifiers of rows whose column text contains
// marker, ignoring case. Empty cells never match.
func flaggedIdentifiers(t *Table, source Source, column, marker string) (FlagSet, error) {
	col := t.ColumnIndex(column)
	if col < 0 {
		return nil, &ColumnError{Table: source, Column: column, Err: ErrMissingRequiredColumn}
	}
	id := t.ColumnIndex(IdentifierColumn)
	if id < 0 {
		return nil, &ColumnError{Table: source, Err: ErrMissingIdentifierColumn}
	}

	marker = strings.ToUpper(marker)
	set := make(FlagSet)
	for _, row := range t.Rows {
		if strings.Contains(strings.ToUpper(row[col].String()), marker) {
			set.Add(IdentifierKey(row[id]))
		}
	}
	return set, nil
}
