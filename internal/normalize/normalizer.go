// Package normalize canonicalizes unit glyphs in captured column names, record
// keys and cell text so later comparisons do not depend on how the oracle
// encoded them.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"labdigitizer/internal/domain"
)

// glyphs maps unit symbols and a known mis-decoding of the micro sign to ASCII.
var glyphs = strings.NewReplacer(
	"µ", "u", // micro sign
	"μ", "u", // greek small letter mu
	"無", "u", // 無, seen when the micro sign is mis-decoded
	"°", "deg", // degree sign
)

// Text applies NFC composition and the glyph table. It is idempotent.
func Text(s string) string {
	if s == "" {
		return s
	}
	return glyphs.Replace(norm.NFC.String(s))
}

// Capture normalizes c in place: column names, record keys and record string
// values. Instrument and Commentary are free text and left as they are.
// A key that normalizes onto an existing key keeps the first-seen value.
func Capture(c *domain.Capture) {
	if c == nil {
		return
	}
	for i, col := range c.Columns {
		c.Columns[i] = Text(col)
	}
	for i, r := range c.Records {
		c.Records[i] = record(r)
	}
}

func record(r domain.Record) domain.Record {
	switch t := r.(type) {
	case *domain.PlateWell:
		t.Well = Text(t.Well)
		t.Value = value(t.Value)
		return t
	case *domain.TableRow:
		t.Fields = fields(&t.Fields)
		return t
	case *domain.DynamicRow:
		t.Fields = fields(&t.Fields)
		return t
	default:
		return r
	}
}

func fields(f *domain.Fields) domain.Fields {
	pairs := f.Pairs()
	for i := range pairs {
		pairs[i].Key = Text(pairs[i].Key)
		pairs[i].Value = value(pairs[i].Value)
	}
	return domain.NewFields(pairs...)
}

func value(v domain.Value) domain.Value {
	if v.Kind != domain.KindString {
		return v
	}
	return domain.String(Text(v.Text))
}
