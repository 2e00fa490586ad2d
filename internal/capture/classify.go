package capture

import (
	"fmt"

	"labdigitizer/internal/domain"
)

// numericColumnProbe is how many leading columns must be numeric for the
// column-shape signal to declare a plate.
const numericColumnProbe = 5

// Classify decides whether a decoded capture is a plate grid or a flat table.
// First match wins: the oracle's explicit boolean is_plate_format; a first
// record carrying both well and value; leading columns that are all numeric.
// Anything else, including sparse or ambiguous captures, is tabular.
func Classify(doc *Object) domain.Format {
	if raw, ok := doc.Get("is_plate_format"); ok {
		if flag, isBool := raw.(bool); isBool {
			if flag {
				return domain.FormatPlate
			}
			return domain.FormatTabular
		}
	}

	if records := recordList(doc); len(records) > 0 {
		if first, ok := records[0].(*Object); ok {
			_, hasWell := first.Get(domain.KeyWell)
			_, hasValue := first.Get(domain.KeyValue)
			if hasWell && hasValue {
				return domain.FormatPlate
			}
		}
	}

	if columns := columnList(doc); len(columns) > 0 {
		probe := columns
		if len(probe) > numericColumnProbe {
			probe = probe[:numericColumnProbe]
		}
		allDigits := true
		for _, c := range probe {
			if !isDigits(c) {
				allDigits = false
				break
			}
		}
		if allDigits {
			return domain.FormatPlate
		}
	}

	return domain.FormatTabular
}

func recordList(doc *Object) []any {
	raw, ok := doc.Lookup("records", "samples")
	if !ok {
		return nil
	}
	list, _ := raw.([]any)
	return list
}

func columnList(doc *Object) []string {
	raw, ok := doc.Get("columns")
	if !ok {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, c := range list {
		switch t := c.(type) {
		case string:
			out = append(out, t)
		case nil:
			out = append(out, "")
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
