// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package file implements store.TakeStore as one JSON file per Take under a
// base directory, the default backend and the closest match to spec.md §6's
// `-o` take file.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mkatychev/darkroom/pkg/store"
)

func init() {
	store.Providers.Register("file", func(_ context.Context, params map[string]string) (store.TakeStore, error) {
		return New(params["base_dir"])
	})
}

var _ store.TakeStore = (*Store)(nil)

// Store writes each Take to <baseDir>/<reel>/<id>.json.
type Store struct {
	baseDir string
}

// New creates a file-backed TakeStore, creating baseDir if needed.
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		baseDir = "./.darkroom/takes"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create take store dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// SaveTake writes t as <baseDir>/<reel>/<id>.json.
func (s *Store) SaveTake(_ context.Context, t *store.Take) error {
	dir := filepath.Join(s.baseDir, t.Reel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create reel dir: %w", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal take: %w", err)
	}
	path := filepath.Join(dir, t.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write take file: %w", err)
	}
	return nil
}

// ListTakes returns every Take recorded for reel, most recent first, up to
// limit (0 means unbounded).
func (s *Store) ListTakes(_ context.Context, reel string, limit int) ([]*store.Take, error) {
	dir := filepath.Join(s.baseDir, reel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reel dir: %w", err)
	}

	var takes []*store.Take
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var t store.Take
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		takes = append(takes, &t)
	}

	sort.Slice(takes, func(i, j int) bool {
		return takes[i].Timestamp.After(takes[j].Timestamp)
	})
	if limit > 0 && len(takes) > limit {
		takes = takes[:limit]
	}
	return takes, nil
}

// Close is a no-op for the file store.
func (s *Store) Close(_ context.Context) error { return nil }
