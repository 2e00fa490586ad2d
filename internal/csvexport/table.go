package csvexport

import (
	"strconv"
	"strings"

	"labdigitizer/internal/domain"
)

// Mode is the layout a Table was built with.
type Mode string

const (
	ModePlaceholder Mode = "placeholder"
	ModePlate       Mode = "plate"
	ModeColumns     Mode = "columns"
	ModeCanonical   Mode = "canonical"
	ModeDynamic     Mode = "dynamic"
)

// Fixed cell texts.
const (
	NotExtracted        = "not extracted"
	ManualEntryRequired = "Manual entry required"
	CheckManually       = "Check manually"
	NotAssessed         = "Not assessed"
	UnknownAssay        = "Unknown"
)

const (
	plateRows    = "ABCDEFGH"
	plateColumns = 12
)

var (
	placeholderHeader = []string{"Sample", "Data", "Note"}
	placeholderRow    = []string{"No data", "extracted", "Please check image quality"}
)

// Cell is one exported value. Numeric cells carry the literal the oracle
// reported and are never sanitized.
type Cell struct {
	Text    string
	Numeric bool
}

// Table is a rendered capture, independent of the output encoding. Every row
// has exactly len(Header) cells and string cells are already sanitized.
type Table struct {
	Mode   Mode
	Header []string
	Rows   [][]Cell
}

// BuildTable lays out a canonical capture. Modes are chosen in order: plate,
// explicit columns, canonical nucleic-acid schema, dynamic key union. A
// non-plate capture without records yields a two-line placeholder.
func BuildTable(c *domain.Capture) *Table {
	if c == nil {
		c = &domain.Capture{}
	}
	var t *Table
	switch {
	case c.IsPlate():
		t = plateTable(c)
	case len(c.Records) == 0:
		t = &Table{Mode: ModePlaceholder, Header: placeholderHeader, Rows: [][]Cell{textCells(placeholderRow)}}
	case c.HasColumns():
		t = columnsTable(c)
	case allNucleicAcid(c.Records):
		t = canonicalTable(c)
	default:
		t = dynamicTable(c)
	}
	t.sanitize()
	return t
}

func plateTable(c *domain.Capture) *Table {
	assay := assayLabel(c)
	wells := map[string]domain.Value{}
	for _, r := range c.Records {
		w, ok := r.(*domain.PlateWell)
		if !ok {
			continue
		}
		name := strings.ToUpper(strings.TrimSpace(w.Well))
		if _, dup := wells[name]; !dup {
			wells[name] = w.Value
		}
	}

	t := &Table{
		Mode:   ModePlate,
		Header: []string{"Well", "Value", domain.ColumnQuality, domain.ColumnAssayType},
		Rows:   make([][]Cell, 0, len(plateRows)*plateColumns),
	}
	for _, row := range plateRows {
		for col := 1; col <= plateColumns; col++ {
			name := string(row) + strconv.Itoa(col)
			v, ok := wells[name]
			if !ok {
				t.Rows = append(t.Rows, textCells([]string{name, NotExtracted, ManualEntryRequired, assay}))
				continue
			}
			t.Rows = append(t.Rows, []Cell{{Text: name}, valueCell(v), {Text: CheckManually}, {Text: assay}})
		}
	}
	return t
}

func columnsTable(c *domain.Capture) *Table {
	header := withTrailingColumns(c.Columns)
	t := &Table{Mode: ModeColumns, Header: header, Rows: make([][]Cell, 0, len(c.Records))}
	for _, r := range c.Records {
		t.Rows = append(t.Rows, rowCells(r, header, assayLabel(c), CheckManually))
	}
	return t
}

func canonicalTable(c *domain.Capture) *Table {
	t := &Table{
		Mode: ModeCanonical,
		Header: []string{
			"Sample Number", "Concentration", "A260/A280", "A260/A230",
			domain.ColumnQuality, domain.ColumnAssayType,
		},
		Rows: make([][]Cell, 0, len(c.Records)),
	}
	assay := assayLabel(c)
	for _, r := range c.Records {
		f := domain.RowFields(r)
		quality, ok := domain.QualityOf(r)
		if !ok {
			quality = CheckManually
		}
		t.Rows = append(t.Rows, []Cell{
			lookupCell(f, domain.SampleNumberKeys),
			lookupCell(f, domain.ConcentrationKeys),
			lookupCell(f, domain.A260A280Keys),
			lookupCell(f, domain.A260A230Keys),
			{Text: quality},
			{Text: assay},
		})
	}
	return t
}

func dynamicTable(c *domain.Capture) *Table {
	var keys []string
	seen := map[string]bool{}
	for _, r := range c.Records {
		for _, k := range r.Keys() {
			if seen[k] || isQualityKey(k) {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	header := withTrailingColumns(keys)
	t := &Table{Mode: ModeDynamic, Header: header, Rows: make([][]Cell, 0, len(c.Records))}
	for _, r := range c.Records {
		t.Rows = append(t.Rows, rowCells(r, header, assayLabel(c), NotAssessed))
	}
	return t
}

// rowCells reads header columns from r by name. The quality and assay columns
// fall back to the record's annotation, the given default and the capture label.
func rowCells(r domain.Record, header []string, assay, qualityDefault string) []Cell {
	cells := make([]Cell, len(header))
	for i, col := range header {
		if v, ok := r.Get(col); ok && !(v.IsNull() && isTrailingColumn(col)) {
			cells[i] = valueCell(v)
			continue
		}
		switch col {
		case domain.ColumnQuality:
			q, ok := domain.QualityOf(r)
			if !ok {
				q = qualityDefault
			}
			cells[i] = Cell{Text: q}
		case domain.ColumnAssayType:
			cells[i] = Cell{Text: assay}
		}
	}
	return cells
}

func withTrailingColumns(cols []string) []string {
	header := append([]string(nil), cols...)
	for _, extra := range []string{domain.ColumnQuality, domain.ColumnAssayType} {
		if !contains(header, extra) {
			header = append(header, extra)
		}
	}
	return header
}

func allNucleicAcid(records []domain.Record) bool {
	for _, r := range records {
		if !domain.IsNucleicAcidRow(r) {
			return false
		}
	}
	return len(records) > 0
}

func assayLabel(c *domain.Capture) string {
	if s := strings.TrimSpace(c.Instrument); s != "" {
		return s
	}
	return UnknownAssay
}

func lookupCell(f *domain.Fields, aliases []string) Cell {
	v, ok := f.Lookup(aliases)
	if !ok {
		return Cell{}
	}
	return valueCell(v)
}

func valueCell(v domain.Value) Cell {
	return Cell{Text: v.String(), Numeric: v.IsNumber()}
}

func textCells(texts []string) []Cell {
	cells := make([]Cell, len(texts))
	for i, s := range texts {
		cells[i] = Cell{Text: s}
	}
	return cells
}

func isQualityKey(k string) bool { return contains(domain.QualityKeys, k) }

func isTrailingColumn(k string) bool {
	return k == domain.ColumnQuality || k == domain.ColumnAssayType
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
