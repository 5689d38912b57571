package workbook

import (
	"bytes"
	"fmt"
	"io"

	"github.com/JonMunkholm/woundcare/internal/core"
	"github.com/tealeg/xlsx/v3"
)

// DefaultSheetName is used when Encode is given an empty sheet name.
const DefaultSheetName = "Sheet1"

// Build lays t out as a single-sheet workbook: a header row of column names
// followed by one row per table row, without an index column. Empty cells
// are written as blanks.
func Build(t *core.Table, sheetName string) (*xlsx.File, error) {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}

	file := xlsx.NewFile()
	sh, err := file.AddSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("add sheet %q: %w", sheetName, err)
	}

	header := sh.AddRow()
	for _, name := range t.Columns {
		header.AddCell().SetString(name)
	}

	for _, row := range t.Rows {
		r := sh.AddRow()
		for i := range t.Columns {
			var v core.Value
			if i < len(row) {
				v = row[i]
			}
			writeCell(r.AddCell(), v)
		}
	}

	for i := 1; i <= sh.MaxCol; i++ {
		_ = sh.SetColAutoWidth(i, xlsx.DefaultAutoWidth)
	}

	return file, nil
}

func writeCell(c *xlsx.Cell, v core.Value) {
	switch {
	case v.Text.Valid:
		c.SetString(v.Text.String)
	case v.Number.Valid:
		c.SetFloat(v.Number.Float64)
	case v.Time.Valid:
		t := v.Time.Time
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			c.SetDate(t)
		} else {
			c.SetDateTime(t)
		}
	case v.Bool.Valid:
		c.SetBool(v.Bool.Bool)
	}
}

// Encode writes t to w as an .xlsx workbook.
func Encode(w io.Writer, t *core.Table, sheetName string) error {
	file, err := Build(t, sheetName)
	if err != nil {
		return err
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// EncodeBytes returns t as .xlsx bytes.
func EncodeBytes(t *core.Table, sheetName string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, t, sheetName); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
