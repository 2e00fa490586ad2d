// Package capture turns an oracle's structured payload into a typed
// domain.Capture. The record layout (plate wells or table rows) is decided here
// once and carried by the record types from then on.
package capture

import (
	"fmt"
	"strings"

	"labdigitizer/internal/domain"
	"labdigitizer/internal/normalize"
)

// Decode parses payload, classifies it and returns a normalized Capture.
// A payload that is not a JSON object wraps domain.ErrNoValidPayload; the
// oracle's explicit {"error": "no_data"} answer returns domain.ErrNoData.
func Decode(payload []byte) (*domain.Capture, error) {
	doc, err := ParseObject(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoValidPayload, err)
	}
	return FromObject(doc)
}

// FromObject builds a Capture from an already parsed document.
func FromObject(doc *Object) (*domain.Capture, error) {
	if raw, ok := doc.Get("error"); ok {
		if s, _ := raw.(string); s == "no_data" {
			return nil, domain.ErrNoData
		}
	}

	c := &domain.Capture{
		Instrument: stringField(doc, "instrument", "instrument_label", "assay_type"),
		Confidence: domain.ParseConfidence(stringField(doc, "confidence")),
		Format:     Classify(doc),
		Columns:    columnList(doc),
		Commentary: stringField(doc, "commentary", "notes"),
	}

	if c.IsPlate() {
		c.Columns = nil
		c.Records = plateRecords(doc)
	} else {
		c.Records = rowRecords(doc, len(c.Columns) > 0)
	}

	normalize.Capture(c)
	return c, nil
}

func stringField(doc *Object, keys ...string) string {
	raw, ok := doc.Lookup(keys...)
	if !ok || raw == nil {
		return ""
	}
	if s, isString := raw.(string); isString {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(raw)
}

// plateRecords collects wells from the long-form record list, then from a
// plate_data object ({"A1": 0.42, ...}) for wells the list did not mention.
func plateRecords(doc *Object) []domain.Record {
	var out []domain.Record
	seen := map[string]bool{}

	for _, raw := range recordList(doc) {
		obj, ok := raw.(*Object)
		if !ok {
			continue
		}
		wellRaw, ok := obj.Get(domain.KeyWell)
		if !ok || wellRaw == nil {
			for _, w := range wideRowWells(obj) {
				if !seen[w.Well] {
					out = append(out, w)
					seen[w.Well] = true
				}
			}
			continue
		}
		well := strings.ToUpper(strings.TrimSpace(fmt.Sprint(wellRaw)))
		if well == "" {
			continue
		}
		val := domain.Null()
		if v, ok := obj.Get(domain.KeyValue); ok {
			val = cellValue(v)
		}
		out = append(out, &domain.PlateWell{Well: well, Value: val})
		seen[well] = true
	}

	if raw, ok := doc.Get("plate_data"); ok {
		if grid, isObj := raw.(*Object); isObj {
			for _, k := range grid.Keys() {
				well := strings.ToUpper(strings.TrimSpace(k))
				if well == "" || seen[well] {
					continue
				}
				v, _ := grid.Get(k)
				out = append(out, &domain.PlateWell{Well: well, Value: cellValue(v)})
				seen[well] = true
			}
		}
	}
	return out
}

// wideRowWells expands a numbered-column plate row such as
// {"row": "B", "1": 0.41, "2": 0.39} into its wells.
func wideRowWells(obj *Object) []*domain.PlateWell {
	letter := ""
	for _, k := range obj.Keys() {
		if isDigits(k) {
			continue
		}
		v, _ := obj.Get(k)
		if s, ok := v.(string); ok {
			s = strings.ToUpper(strings.TrimSpace(s))
			if len(s) == 1 && s[0] >= 'A' && s[0] <= 'H' {
				letter = s
				break
			}
		}
	}
	if letter == "" {
		return nil
	}
	var out []*domain.PlateWell
	for _, k := range obj.Keys() {
		if !isDigits(k) {
			continue
		}
		v, _ := obj.Get(k)
		out = append(out, &domain.PlateWell{Well: letter + strings.TrimLeft(k, "0"), Value: cellValue(v)})
	}
	return out
}

func rowRecords(doc *Object, hasColumns bool) []domain.Record {
	var out []domain.Record
	for _, raw := range recordList(doc) {
		obj, ok := raw.(*Object)
		if !ok {
			continue
		}
		pairs := make([]domain.Field, 0, len(obj.Keys()))
		for _, k := range obj.Keys() {
			v, _ := obj.Get(k)
			pairs = append(pairs, domain.Field{Key: k, Value: cellValue(v)})
		}
		fields := domain.NewFields(pairs...)
		if hasColumns {
			out = append(out, &domain.TableRow{Fields: fields})
		} else {
			out = append(out, &domain.DynamicRow{Fields: fields})
		}
	}
	return out
}

func cellValue(raw any) domain.Value {
	switch raw.(type) {
	case *Object, []any:
		return domain.ValueFromJSON(plain(raw))
	default:
		return domain.ValueFromJSON(raw)
	}
}
