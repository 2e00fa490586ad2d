package csvexport

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer wraps csv.Writer for exporting tables as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteTable writes the header row followed by every data row.
func (w *Writer) WriteTable(t *Table) error {
	if err := w.csv.Write(t.Header); err != nil {
		return err
	}
	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = row[i].Text
			}
		}
		if err := w.csv.Write(record); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// Render encodes t as UTF-8 CSV, optionally prefixed with a byte order mark.
func Render(t *Table, includeBOM bool) ([]byte, error) {
	var buf bytes.Buffer
	if includeBOM {
		buf.Write(BOM)
	}
	w := NewWriter(&buf)
	if err := w.WriteTable(t); err != nil {
		return nil, fmt.Errorf("writing csv: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// formulaPrefixes start a cell a spreadsheet would evaluate once leading
// whitespace is skipped.
const formulaPrefixes = "=+-@"

// SanitizeCell neutralizes spreadsheet formula injection by prefixing a single
// quote to text that starts with a tab or carriage return, or whose first
// non-whitespace character starts a formula.
func SanitizeCell(s string) string {
	if strings.HasPrefix(s, "\t") || strings.HasPrefix(s, "\r") {
		return "'" + s
	}
	trimmed := strings.TrimLeftFunc(s, unicode.IsSpace)
	if trimmed != "" && strings.IndexByte(formulaPrefixes, trimmed[0]) >= 0 {
		return "'" + s
	}
	return s
}

func (t *Table) sanitize() {
	for i, h := range t.Header {
		t.Header[i] = SanitizeCell(h)
	}
	for _, row := range t.Rows {
		for i := range row {
			if !row[i].Numeric {
				row[i].Text = SanitizeCell(row[i].Text)
			}
		}
	}
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a label for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// Slug turns an instrument label into a lowercase filename fragment, falling
// back to "lab_data".
func Slug(label string) string {
	s := strings.NewReplacer("(", "", ")", "").Replace(label)
	s = strings.ToLower(SanitizeFilename(s))
	if s == "" {
		return "lab_data"
	}
	return s
}

// BuildFilename returns the attachment name for an export.
// Format: labdata_{slug}_{N}_samples.{ext}
func BuildFilename(label string, samples int, ext string) string {
	return fmt.Sprintf("labdata_%s_%d_samples.%s", Slug(label), samples, ext)
}
