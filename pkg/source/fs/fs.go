// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs implements source.ReelSource over the local filesystem,
// grounded on the teacher's pkg/filestore/filesystem backend.
package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkatychev/darkroom/pkg/source"
)

func init() {
	source.Providers.Register("fs", func(_ context.Context, _ map[string]string) (source.ReelSource, error) {
		return New(), nil
	})
}

var _ source.ReelSource = (*Store)(nil)

// Store reads Reel fixtures directly off the local filesystem.
type Store struct{}

// New returns a filesystem-backed ReelSource.
func New() *Store { return &Store{} }

// List returns the base names of every regular file directly under dir.
func (s *Store) List(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// ReadFile returns the contents of dir/name.
func (s *Store) ReadFile(_ context.Context, dir, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", dir, name, source.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s/%s: %w", dir, name, err)
	}
	return data, nil
}
