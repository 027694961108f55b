// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/mkatychev/darkroom/pkg/source"
)

func TestStorePutListRead(t *testing.T) {
	s := New()
	s.Put("reels", "usr.01s.create.fr.json", []byte(`{"a":1}`))
	s.Put("reels", "usr.cut.json", []byte(`{}`))
	s.Put("other", "unrelated.fr.json", []byte(`{}`))

	names, err := s.List(context.Background(), "reels")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"usr.01s.create.fr.json", "usr.cut.json"}
	if len(names) != len(want) {
		t.Fatalf("List() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	data, err := s.ReadFile(context.Background(), "reels", "usr.01s.create.fr.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("ReadFile() = %s", data)
	}
}

func TestStoreReadFileNotFound(t *testing.T) {
	s := New()
	_, err := s.ReadFile(context.Background(), "reels", "missing.fr.json")
	if !errors.Is(err, source.ErrNotFound) {
		t.Errorf("err = %v, want source.ErrNotFound", err)
	}
}
