// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package jsonval

import (
	"encoding/json"
	"testing"
)

func TestParsePreservesObjectOrder(t *testing.T) {
	v, err := Parse([]byte(`{"z":1,"a":2,"m":3}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj, ok := v.(*Object)
	if !ok {
		t.Fatalf("expected *Object, got %T", v)
	}
	want := []string{"z", "a", "m"}
	got := obj.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	v, err := Parse([]byte(`{"ok":true,"ip":"1.2.3.4","tags":["a","b"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := Marshal(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"ok":true,"ip":"1.2.3.4","tags":["a","b"]}`
	if string(out) != want {
		t.Errorf("Marshal() = %s, want %s", out, want)
	}
}

func TestEqualObjectsKeyOrderIndependent(t *testing.T) {
	a, _ := Parse([]byte(`{"a":1,"b":2}`))
	b, _ := Parse([]byte(`{"b":2,"a":1}`))
	if !Equal(a, b) {
		t.Errorf("expected objects with same keys in different order to be equal")
	}
}

func TestEqualArraysOrderSensitive(t *testing.T) {
	a, _ := Parse([]byte(`["a","b"]`))
	b, _ := Parse([]byte(`["b","a"]`))
	if Equal(a, b) {
		t.Errorf("expected arrays with different order to be unequal")
	}
}

func TestEqualNumericValue(t *testing.T) {
	a, _ := Parse([]byte(`1.0`))
	b, _ := Parse([]byte(`1`))
	if !Equal(a, b) {
		t.Errorf("expected numerically-equal numbers to compare equal")
	}
}

func TestDeepCopyIndependence(t *testing.T) {
	v, _ := Parse([]byte(`{"nested":{"x":1}}`))
	cp := DeepCopy(v)
	obj := v.(*Object)
	nested, _ := obj.Get("nested")
	nested.(*Object).Set("x", 2)

	cpObj := cp.(*Object)
	cpNested, _ := cpObj.Get("nested")
	x, _ := cpNested.(*Object).Get("x")
	if x.(json.Number).String() != "1" {
		t.Errorf("DeepCopy shared state with original: x = %v, want 1", x)
	}
}
