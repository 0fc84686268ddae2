package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Values is a string-keyed map that remembers insertion order.
//
// The zero value is an empty map ready to use. Values returned from
// accessors share no state with the receiver unless noted; use Clone before
// mutating a map owned by an immutable plan.
type Values struct {
	keys []string
	vals map[string]any
}

// NewValues builds a Values from alternating key/value arguments.
//
// Panics if a key is not a string or the argument count is odd. Intended for
// literals in code and tests:
//
//	NewValues("duration", 0.001, "message", "hello")
func NewValues(kv ...any) Values {
	if len(kv)%2 != 0 {
		panic("model.NewValues: odd number of arguments")
	}
	var v Values
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("model.NewValues: key %v is not a string", kv[i]))
		}
		v.Set(key, kv[i+1])
	}
	return v
}

// Set assigns value to key. A new key is appended; an existing key keeps its
// position.
func (v *Values) Set(key string, value any) {
	if v.vals == nil {
		v.vals = make(map[string]any)
	}
	if _, exists := v.vals[key]; !exists {
		v.keys = append(v.keys, key)
	}
	v.vals[key] = value
}

// Get returns the value stored under key.
func (v Values) Get(key string) (any, bool) {
	val, ok := v.vals[key]
	return val, ok
}

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	_, ok := v.vals[key]
	return ok
}

// Delete removes key, preserving the order of the remaining keys.
func (v *Values) Delete(key string) {
	if _, ok := v.vals[key]; !ok {
		return
	}
	delete(v.vals, key)
	for i, k := range v.keys {
		if k == key {
			v.keys = append(v.keys[:i:i], v.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (v Values) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)
	return out
}

// Len returns the number of keys.
func (v Values) Len() int {
	return len(v.keys)
}

// Each calls fn for every entry in insertion order.
func (v Values) Each(fn func(key string, value any)) {
	for _, k := range v.keys {
		fn(k, v.vals[k])
	}
}

// Clone returns a deep copy. Nested Values, maps and slices are copied so the
// result can be mutated without touching the receiver.
func (v Values) Clone() Values {
	out := Values{
		keys: make([]string, len(v.keys)),
		vals: make(map[string]any, len(v.vals)),
	}
	copy(out.keys, v.keys)
	for k, val := range v.vals {
		out.vals[k] = cloneValue(val)
	}
	return out
}

// Overlay returns a copy of v with every entry of other applied on top.
// Keys already present keep their position; new keys are appended.
func (v Values) Overlay(other Values) Values {
	out := v.Clone()
	for _, k := range other.keys {
		out.Set(k, cloneValue(other.vals[k]))
	}
	return out
}

// Map returns a plain map copy. Order is lost.
func (v Values) Map() map[string]any {
	out := make(map[string]any, len(v.vals))
	for k, val := range v.vals {
		out[k] = val
	}
	return out
}

// MarshalJSON encodes the map as a JSON object with keys in insertion order.
func (v Values) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range v.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(v.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order. Nested objects
// decode as Values, arrays as []any and numbers as float64. A JSON null
// leaves an empty map.
func (v *Values) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*v = Values{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("values: expected object, got %v", tok)
	}
	out, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func decodeObject(dec *json.Decoder) (Values, error) {
	var out Values
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Values{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Values{}, fmt.Errorf("values: unexpected key %v", tok)
		}
		val, err := decodeElement(dec)
		if err != nil {
			return Values{}, err
		}
		out.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return Values{}, err
	}
	return out, nil
}

func decodeElement(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		return decodeObject(dec)
	case '[':
		list := []any{}
		for dec.More() {
			item, err := decodeElement(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil
	default:
		return nil, fmt.Errorf("values: unexpected delimiter %v", d)
	}
}

func cloneValue(val any) any {
	switch t := val.(type) {
	case Values:
		return t.Clone()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return val
	}
}
