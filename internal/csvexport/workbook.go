package csvexport

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Results"

// RenderWorkbook encodes t as a single-sheet XLSX workbook. Numeric cells are
// stored as numbers; everything else is stored as text.
func RenderWorkbook(t *Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}

	for col, h := range t.Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStr(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("writing header %s: %w", cell, err)
		}
	}

	for r, row := range t.Rows {
		for col := range t.Header {
			if col >= len(row) {
				break
			}
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := setCell(f, cell, row[col]); err != nil {
				return nil, fmt.Errorf("writing cell %s: %w", cell, err)
			}
		}
	}

	if len(t.Header) > 0 {
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("creating header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Header), 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, "A1", last, style); err != nil {
			return nil, fmt.Errorf("styling header: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, cell string, c Cell) error {
	if c.Numeric {
		if n, err := strconv.ParseFloat(c.Text, 64); err == nil {
			return f.SetCellFloat(sheetName, cell, n, -1, 64)
		}
	}
	return f.SetCellStr(sheetName, cell, c.Text)
}
