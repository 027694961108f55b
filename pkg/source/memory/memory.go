// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory implements source.ReelSource in process memory, used by
// tests to exercise the Reel Loader without touching the filesystem.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/mkatychev/darkroom/pkg/source"
)

func init() {
	source.Providers.Register("memory", func(_ context.Context, _ map[string]string) (source.ReelSource, error) {
		return New(), nil
	})
}

var _ source.ReelSource = (*Store)(nil)

// Store is an in-memory ReelSource keyed by dir/name.
type Store struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// New returns an empty in-memory ReelSource.
func New() *Store {
	return &Store{files: make(map[string][]byte)}
}

// Put seeds a file at dir/name, overwriting any existing content.
func (s *Store) Put(dir, name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path.Join(dir, name)] = content
}

// List returns the base names of every file seeded directly under dir.
func (s *Store) List(_ context.Context, dir string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for key := range s.files {
		if path.Dir(key) == dir {
			names = append(names, path.Base(key))
		}
	}
	sort.Strings(names)
	return names, nil
}

// ReadFile returns the content seeded at dir/name.
func (s *Store) ReadFile(_ context.Context, dir, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[path.Join(dir, name)]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", dir, name, source.ErrNotFound)
	}
	return data, nil
}
