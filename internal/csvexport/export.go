package csvexport

import "fmt"

// Supported export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Export is an encoded table ready to be attached or served.
type Export struct {
	Data        []byte
	ContentType string
	Extension   string
}

// Encode renders t in the named format. An empty format means CSV.
func Encode(t *Table, format string, includeBOM bool) (*Export, error) {
	switch format {
	case "", FormatCSV:
		data, err := Render(t, includeBOM)
		if err != nil {
			return nil, err
		}
		return &Export{Data: data, ContentType: "text/csv; charset=utf-8", Extension: FormatCSV}, nil
	case FormatXLSX:
		data, err := RenderWorkbook(t)
		if err != nil {
			return nil, err
		}
		return &Export{
			Data:        data,
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Extension:   FormatXLSX,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
