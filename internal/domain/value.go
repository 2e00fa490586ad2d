package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ValueKind is the scalar type of a record field.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
)

// Value is a scalar record field. Numbers keep the text the oracle emitted so
// exports reproduce it byte for byte.
type Value struct {
	Kind ValueKind
	Text string
}

// Null returns the missing value.
func Null() Value { return Value{Kind: KindNull} }

// String returns a text value.
func String(s string) Value { return Value{Kind: KindString, Text: s} }

// Number returns a numeric value from its literal text.
func Number(text string) Value { return Value{Kind: KindNumber, Text: text} }

// Float returns a numeric value from a float64.
func Float(f float64) Value { return Number(strconv.FormatFloat(f, 'f', -1, 64)) }

// IsNull reports whether the value is missing.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsNumber reports whether the value is numeric.
func (v Value) IsNumber() bool { return v.Kind == KindNumber }

// String renders the value as cell text; null renders empty.
func (v Value) String() string {
	if v.Kind == KindNull {
		return ""
	}
	return v.Text
}

// measurementCleaner strips units and comparison markers instruments print next to numbers.
var measurementCleaner = strings.NewReplacer(
	",", "",
	"ng/uL", "",
	"ng/u", "",
	">", "",
	"<", "",
)

// Measurement parses the value leniently as a float. Strings such as
// "1,234.5 ng/uL" or ">2.0" parse; null and non-numeric text do not.
func (v Value) Measurement() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		f, err := strconv.ParseFloat(v.Text, 64)
		return f, err == nil
	case KindString:
		cleaned := strings.TrimSpace(measurementCleaner.Replace(v.Text))
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// MarshalJSON emits numbers as raw literals, strings quoted and null as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		if !json.Valid([]byte(v.Text)) {
			return json.Marshal(v.Text)
		}
		return []byte(v.Text), nil
	case KindString:
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

// ValueFromJSON converts a decoded JSON token tree node to a Value.
// Booleans become "true"/"false"; objects and arrays become compact JSON text.
func ValueFromJSON(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case json.Number:
		return Number(t.String())
	case string:
		return String(t)
	case bool:
		return String(strconv.FormatBool(t))
	case float64:
		return Float(t)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return Null()
		}
		return String(strings.TrimSpace(buf.String()))
	}
}

// Field is one key/value pair of a row.
type Field struct {
	Key   string
	Value Value
}

// Fields is an insertion-ordered field list. Rows are small, so lookups are linear.
type Fields struct {
	items []Field
}

// NewFields builds Fields from pairs, keeping the first occurrence of a duplicate key.
func NewFields(pairs ...Field) Fields {
	var f Fields
	for _, p := range pairs {
		if _, ok := f.Get(p.Key); ok {
			continue
		}
		f.items = append(f.items, p)
	}
	return f
}

// Len returns the number of fields.
func (f *Fields) Len() int { return len(f.items) }

// Get returns the value stored under key.
func (f *Fields) Get(key string) (Value, bool) {
	for _, it := range f.items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether key is present.
func (f *Fields) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Lookup returns the first present key among aliases.
func (f *Fields) Lookup(aliases []string) (Value, bool) {
	for _, k := range aliases {
		if v, ok := f.Get(k); ok {
			return v, true
		}
	}
	return Value{}, false
}

// HasAny reports whether any alias is present.
func (f *Fields) HasAny(aliases []string) bool {
	_, ok := f.Lookup(aliases)
	return ok
}

// Set replaces the value of an existing key or appends a new one.
func (f *Fields) Set(key string, v Value) {
	for i := range f.items {
		if f.items[i].Key == key {
			f.items[i].Value = v
			return
		}
	}
	f.items = append(f.items, Field{Key: key, Value: v})
}

// Delete removes key if present.
func (f *Fields) Delete(key string) {
	for i := range f.items {
		if f.items[i].Key == key {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return
		}
	}
}

// Keys returns the keys in insertion order.
func (f *Fields) Keys() []string {
	keys := make([]string, len(f.items))
	for i, it := range f.items {
		keys[i] = it.Key
	}
	return keys
}

// Pairs returns a copy of the ordered pairs.
func (f *Fields) Pairs() []Field {
	out := make([]Field, len(f.items))
	copy(out, f.items)
	return out
}

// Clone returns an independent copy.
func (f *Fields) Clone() Fields {
	return Fields{items: f.Pairs()}
}

// MarshalJSON writes the fields as a JSON object in insertion order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, it := range f.items {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(it.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := it.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
