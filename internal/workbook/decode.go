// Package workbook converts between .xlsx files and core tables.
//
// Only the first sheet of an uploaded workbook is read and its first
// non-empty row is the header. Output workbooks hold a single sheet whose
// first row is the column names.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/woundcare/internal/core"
	"github.com/tealeg/xlsx/v3"
)

// ContentType is the MIME type of an .xlsx workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ErrEmptyWorkbook is returned when a workbook has no sheet or no header row.
var ErrEmptyWorkbook = errors.New("empty file: workbook has no header row")

// ContextCheckInterval is how often (in rows) decoding checks for cancellation.
var ContextCheckInterval = 500

// Decode reads a whole workbook from r and returns its first sheet as a table.
func Decode(ctx context.Context, r io.Reader) (*core.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	return DecodeBytes(ctx, data)
}

// DecodeBytes parses an in-memory workbook.
//
// Blank header cells are named "Unnamed: N" (N is the zero-based column),
// repeated header names get ".1", ".2" suffixes and rows with no values are
// skipped. Numeric, date and boolean cells keep their types.
func DecodeBytes(ctx context.Context, data []byte) (*core.Table, error) {
	if len(data) == 0 {
		return nil, ErrEmptyWorkbook
	}

	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	if len(file.Sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	sheet := file.Sheets[0]
	defer sheet.Close()

	var (
		header  []core.Value
		records [][]core.Value
		width   int
		seen    int
	)
	err = sheet.ForEachRow(func(row *xlsx.Row) error {
		seen++
		if seen%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		values, err := readRow(row, file.Date1904)
		if err != nil {
			return err
		}
		if isBlank(values) {
			return nil
		}
		if header == nil {
			header = values
		} else {
			records = append(records, values)
		}
		width = max(width, len(values))
		return nil
	}, xlsx.SkipEmptyRows)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("invalid spreadsheet: %w", err)
	}
	if header == nil {
		return nil, ErrEmptyWorkbook
	}

	table := core.NewTable(headerNames(header, width)...)
	for _, rec := range records {
		table.AppendRow(rec...)
	}
	return table, nil
}

// readRow returns the row's values indexed by column position.
func readRow(row *xlsx.Row, date1904 bool) ([]core.Value, error) {
	var values []core.Value
	err := row.ForEachCell(func(c *xlsx.Cell) error {
		col, _ := c.GetCoordinates()
		v := cellValue(c, date1904)
		if v.IsEmpty() {
			return nil
		}
		for len(values) <= col {
			values = append(values, core.Value{})
		}
		values[col] = v
		return nil
	}, xlsx.SkipEmptyCells)
	return values, err
}

// cellValue maps a cell onto a typed Value. Error cells (#N/A, #REF!) are empty.
func cellValue(c *xlsx.Cell, date1904 bool) core.Value {
	switch c.Type() {
	case xlsx.CellTypeBool:
		return core.Value{Bool: core.ToPgBool(c.Value)}

	case xlsx.CellTypeError:
		return core.Value{}

	case xlsx.CellTypeNumeric, xlsx.CellTypeDate:
		if c.IsTime() {
			if t, err := c.GetTime(date1904); err == nil {
				return core.Time(t)
			}
		}
		if n := core.ToPgFloat8(c.Value); n.Valid {
			return core.Value{Number: n}
		}
		return core.Text(sanitize(c.Value))

	default:
		return core.Text(sanitize(c.Value))
	}
}

func sanitize(s string) string {
	return strings.ToValidUTF8(s, "�")
}

func isBlank(values []core.Value) bool {
	for _, v := range values {
		if !v.IsEmpty() {
			return false
		}
	}
	return true
}

// headerNames builds width column names from the header row.
func headerNames(header []core.Value, width int) []string {
	names := make([]string, width)
	for i := range names {
		var name string
		if i < len(header) {
			name = header[i].String()
		}
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		names[i] = name
	}
	return core.UniqueHeaders(names)
}
