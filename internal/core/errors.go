package core

import (
	"errors"
	"fmt"
)

// Terminal pipeline failures. Callers match them with errors.Is.
var (
	ErrMissingIdentifierColumn = errors.New("missing identifier column")
	ErrMissingRequiredColumn   = errors.New("missing required column")
)

// ColumnError reports which input table failed column detection.
type ColumnError struct {
	Table  Source
	Column string // Empty for identifier failures
	Err    error
}

func (e *ColumnError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %v (expected a column containing one of %q)", e.Table, e.Err, identifierAliases)
	}
	return fmt.Sprintf("%s: %v %q", e.Table, e.Err, e.Column)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}
