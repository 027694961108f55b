// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonval implements the filmReel "JSON Value" universal value type:
// null, boolean, number, string, an insertion-order-preserving object, and
// an array. encoding/json's default decode-into-interface{} loses object
// key order (it lands in a Go map), which the Cut Register and Take files
// need to round-trip faithfully, so this package decodes token-by-token
// instead.
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Object is an insertion-order-preserving string-keyed map, the filmReel
// "ordered object". It implements json.Marshaler/json.Unmarshaler so it can
// be embedded anywhere a regular map would appear.
type Object struct {
	keys []string
	vals map[string]any
}

// NewObject returns an empty Object.
func NewObject() *Object {
	return &Object{vals: make(map[string]any)}
}

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Set inserts or replaces key. New keys are appended to the end of Keys().
func (o *Object) Set(key string, val any) {
	if o.vals == nil {
		o.vals = make(map[string]any)
	}
	if _, exists := o.vals[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = val
}

// Delete removes key, if present.
func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, exists := o.vals[key]; !exists {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the object's keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of entries.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// MarshalJSON writes the object's entries in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(o.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (o *Object) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("jsonval: expected object, got %v", tok)
	}
	obj, err := decodeObjectBody(dec)
	if err != nil {
		return err
	}
	*o = *obj
	return nil
}

// Parse decodes arbitrary JSON bytes into the filmReel Value model: objects
// become *Object (order-preserving), arrays become []any, numbers become
// json.Number, everything else decodes as with encoding/json.
func Parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF && err != nil {
		return nil, err
	}
	return v, nil
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
			return decodeObjectBody(dec)
		case '[':
			return decodeArrayBody(dec)
		default:
			return nil, fmt.Errorf("jsonval: unexpected delimiter %v", t)
		}
	default:
		return tok, nil
	}
}

func decodeObjectBody(dec *json.Decoder) (*Object, error) {
	obj := NewObject()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("jsonval: object key must be a string, got %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArrayBody(dec *json.Decoder) ([]any, error) {
	arr := []any{}
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	// consume closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// Marshal encodes v (as produced by Parse) back to JSON bytes.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Equal reports whether two Values are structurally equal per the filmReel
// comparison rules: objects compare by key set and per-key value, arrays
// compare elementwise in order, scalars compare by value (numbers
// numerically).
func Equal(a, b any) bool {
	switch av := a.(type) {
	case *Object:
		bv, ok := b.(*Object)
		if !ok || av.Len() != bv.Len() {
			return false
		}
		for _, k := range av.keys {
			bval, exists := bv.Get(k)
			if !exists {
				return false
			}
			aval, _ := av.Get(k)
			if !Equal(aval, bval) {
				return false
			}
		}
		return true
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case json.Number:
		bv, ok := toNumber(b)
		if !ok {
			return false
		}
		af, _ := av.Float64()
		return af == bv
	case float64:
		bv, ok := toNumber(b)
		return ok && av == bv
	case nil:
		return b == nil
	default:
		return a == b
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// DeepCopy returns an independent copy of v, following the nested
// object/array structure produced by Parse.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case *Object:
		cp := NewObject()
		for _, k := range t.keys {
			val, _ := t.Get(k)
			cp.Set(k, DeepCopy(val))
		}
		return cp
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = DeepCopy(e)
		}
		return cp
	default:
		return v
	}
}
