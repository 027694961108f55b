// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/mkatychev/darkroom/pkg/store"
)

func TestSaveAndListTakes(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close(context.Background())
	ctx := context.Background()

	take := &store.Take{
		ID: "1", Reel: "usr", Frame: "usr.01s.create.fr.json", Ordering: "(1,s,0)",
		Protocol: "HTTP", Request: []byte(`{"a":1}`), Response: []byte(`{"b":2}`),
		Status: 200, Passed: true, Attempts: 1, Timestamp: time.Unix(100, 0),
	}
	if err := s.SaveTake(ctx, take); err != nil {
		t.Fatalf("SaveTake: %v", err)
	}

	takes, err := s.ListTakes(ctx, "usr", 0)
	if err != nil {
		t.Fatalf("ListTakes: %v", err)
	}
	if len(takes) != 1 {
		t.Fatalf("len(takes) = %d, want 1", len(takes))
	}
	if !takes[0].Passed || takes[0].Status != 200 {
		t.Errorf("ListTakes()[0] = %+v", takes[0])
	}
}

func TestSaveTakeUpsert(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close(context.Background())
	ctx := context.Background()

	take := &store.Take{ID: "1", Reel: "usr", Passed: false, Timestamp: time.Unix(100, 0)}
	if err := s.SaveTake(ctx, take); err != nil {
		t.Fatalf("SaveTake: %v", err)
	}
	take.Passed = true
	if err := s.SaveTake(ctx, take); err != nil {
		t.Fatalf("SaveTake (update): %v", err)
	}

	takes, err := s.ListTakes(ctx, "usr", 0)
	if err != nil {
		t.Fatalf("ListTakes: %v", err)
	}
	if len(takes) != 1 || !takes[0].Passed {
		t.Errorf("expected one updated take with Passed=true, got %+v", takes)
	}
}
