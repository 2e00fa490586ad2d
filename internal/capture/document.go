package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Object is a JSON object that remembers key order. Record layouts in exports
// follow the order the oracle emitted, which map decoding would lose.
type Object struct {
	keys   []string
	values map[string]any
}

// Get returns the raw value under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Keys returns keys in document order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

// Lookup returns the value of the first key present.
func (o *Object) Lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := o.Get(k); ok {
			return v, true
		}
	}
	return nil, false
}

// ParseObject decodes a JSON object preserving key order. Numbers decode as
// json.Number so their text survives unchanged, nested objects as *Object,
// arrays as []any. A repeated key keeps its first value.
func ParseObject(data []byte) (*Object, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("payload is not a JSON object")
	}
	return obj, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		return t, nil
	}
}

func decodeObject(dec *json.Decoder) (*Object, error) {
	obj := &Object{values: map[string]any{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string")
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		if _, dup := obj.values[key]; dup {
			continue // first occurrence wins
		}
		obj.keys = append(obj.keys, key)
		obj.values[key] = val
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	arr := []any{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	if _, err := dec.Token(); err != nil { // closing ']'
		return nil, err
	}
	return arr, nil
}

// plain converts an ordered tree back into plain Go values for compact
// re-encoding of nested cells.
func plain(v any) any {
	switch t := v.(type) {
	case *Object:
		m := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			m[k] = plain(t.values[k])
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	default:
		return v
	}
}
