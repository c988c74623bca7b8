// Package document models upstream JSON documents as generic objects with
// explicit, defaulted field access.
package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Document is a decoded JSON object. Numbers are kept as json.Number so they
// re-encode exactly as received.
type Document map[string]any

var ErrNotObject = errors.New("document is not a JSON object")

// Parse decodes data as a single JSON object.
func Parse(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("decode json: trailing data after document")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Document(obj), nil
}

// Field names a key together with the value used when the key is absent or
// null.
type Field struct {
	Key     string
	Default func() any
}

func EmptyList() any   { return []any{} }
func EmptyObject() any { return map[string]any{} }
func Null() any        { return nil }

func List(key string) Field   { return Field{Key: key, Default: EmptyList} }
func Object(key string) Field { return Field{Key: key, Default: EmptyObject} }
func Scalar(key string) Field { return Field{Key: key, Default: Null} }

// Lookup reports the raw value under key. Null counts as absent.
func (d Document) Lookup(key string) (any, bool) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Get returns the field's value or its default. The value is returned as-is
// when present, whatever its JSON type.
func (d Document) Get(f Field) any {
	if v, ok := d.Lookup(f.Key); ok {
		return v
	}
	if f.Default == nil {
		return nil
	}
	return f.Default()
}

// Child returns the sub-object under key. Absent, null, non-object and empty
// object values all report false.
func (d Document) Child(key string) (Document, bool) {
	v, ok := d.Lookup(key)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, false
	}
	return Document(obj), true
}

// Keys returns the top-level keys in no particular order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	return keys
}
