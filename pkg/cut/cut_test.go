// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package cut

import (
	"encoding/json"
	"testing"

	"github.com/mkatychev/darkroom/pkg/errs"
)

func TestMergeCuts(t *testing.T) {
	base, err := FromJSON([]byte(`{"A":"a","B":"b"}`))
	if err != nil {
		t.Fatalf("FromJSON(base): %v", err)
	}
	o1, err := FromJSON([]byte(`{"A":"a2"}`))
	if err != nil {
		t.Fatalf("FromJSON(o1): %v", err)
	}
	o2, err := FromJSON([]byte(`{"B":"b2","C":"c"}`))
	if err != nil {
		t.Fatalf("FromJSON(o2): %v", err)
	}

	r := Merge(base, o1, o2)

	for name, want := range map[string]string{"A": "a2", "B": "b2", "C": "c"} {
		got, err := r.Read(name)
		if err != nil {
			t.Fatalf("Read(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("Read(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestReadMissingIsReadError(t *testing.T) {
	r := New()
	if _, err := r.Read("MISSING"); !errs.Is(err, errs.Read) {
		t.Errorf("Read(missing) error = %v, want errs.Read", err)
	}
}

func TestPruneAfterFrameDiscardsLowercase(t *testing.T) {
	r := New()
	if err := r.Write("temp", "hot"); err != nil {
		t.Fatalf("Write(temp): %v", err)
	}
	if err := r.Write("KEEP", "cold"); err != nil {
		t.Fatalf("Write(KEEP): %v", err)
	}

	r.PruneAfterFrame()

	if r.Has("temp") {
		t.Error("Has(temp) = true after prune, want false")
	}
	if !r.Has("KEEP") {
		t.Error("Has(KEEP) = false after prune, want true")
	}
}

func TestRedactViewOmitsHidden(t *testing.T) {
	r := New()
	_ = r.Write("_SECRET", "shh")
	_ = r.Write("PUBLIC", "hi")

	view := r.RedactView()
	if _, ok := view.Get("_SECRET"); ok {
		t.Error("RedactView contains hidden key _SECRET")
	}
	if _, ok := view.Get("PUBLIC"); !ok {
		t.Error("RedactView missing PUBLIC key")
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"PUBLIC":"hi"}` {
		t.Errorf("Marshal(r) = %s, want {\"PUBLIC\":\"hi\"}", b)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	r := New()
	_ = r.Write("A", "1")
	cp := r.Clone()
	_ = cp.Write("A", "2")

	got, _ := r.Read("A")
	if got != "1" {
		t.Errorf("original Register mutated by clone write: Read(A) = %v", got)
	}
}

func TestFromJSONRejectsNonObject(t *testing.T) {
	if _, err := FromJSON([]byte(`[1,2,3]`)); !errs.Is(err, errs.RegisterParse) {
		t.Errorf("FromJSON(array) error = %v, want errs.RegisterParse", err)
	}
}
