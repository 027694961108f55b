// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package source abstracts the byte store the Reel Loader reads Frame and
// Cut files from. "A directory on disk" is the default, but fixtures can
// just as well live in an S3 bucket or, for tests, in memory. Backends
// self-register into Providers via init(), the same database/sql-driver
// pattern the teacher uses for pluggable file and vector stores.
package source

import (
	"context"
	"errors"

	"github.com/mkatychev/darkroom/pkg/provider"
)

// ErrNotFound is returned when a requested file does not exist under dir.
var ErrNotFound = errors.New("source: file not found")

// Providers is the registry of ReelSource backend implementations. Import
// an implementation package with a blank import to register it:
//
//	import _ "github.com/mkatychev/darkroom/pkg/source/fs"
//	import _ "github.com/mkatychev/darkroom/pkg/source/s3"
//	import _ "github.com/mkatychev/darkroom/pkg/source/memory"
var Providers = provider.NewRegistry[ReelSource]("reel_source")

// ReelSource is the read-only byte store the Reel Loader enumerates and
// reads through. dir is backend-specific: a filesystem path for fs, an
// object-key prefix for s3, a namespace for memory.
type ReelSource interface {
	// List returns the names of every file directly under dir, in no
	// particular order; the Reel Loader is responsible for filtering and
	// sorting.
	List(ctx context.Context, dir string) ([]string, error)
	// ReadFile returns the contents of dir/name. Returns ErrNotFound if it
	// does not exist.
	ReadFile(ctx context.Context, dir, name string) ([]byte, error)
}
