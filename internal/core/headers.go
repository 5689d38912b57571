package core

import (
	"fmt"
	"strings"
)

// NormalizeHeader replaces non-breaking spaces with regular spaces and
// trims surrounding whitespace.
func NormalizeHeader(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "\u00a0", " "))
}

// NormalizeHeaders returns a copy of t with every column name normalized.
// Rows are copied unchanged. Names that collapse onto an earlier column get
// a numeric suffix (".1", ".2", ...) so column names stay unique.
func NormalizeHeaders(t *Table) *Table {
	out := t.Clone()
	for i, c := range out.Columns {
		out.Columns[i] = NormalizeHeader(c)
	}
	out.Columns = UniqueHeaders(out.Columns)
	return out
}

// UniqueHeaders disambiguates repeated names by appending ".N" to later
// occurrences, skipping suffixes that are already taken.
func UniqueHeaders(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = false
	}

	counts := make(map[string]int, len(names))
	for i, n := range names {
		if !seen[n] {
			seen[n] = true
			out[i] = n
			continue
		}
		candidate := n
		for {
			counts[n]++
			candidate = fmt.Sprintf("%s.%d", n, counts[n])
			if _, taken := seen[candidate]; !taken {
				break
			}
		}
		seen[candidate] = true
		out[i] = candidate
	}
	return out
}
