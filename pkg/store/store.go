// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists completed Takes (spec.md §4.6 step 7, "Emit") for
// audit beyond the single `-o` take file. Writing to a TakeStore is
// best-effort: a failure here is logged by the caller, never propagated as
// a Reel failure, since spec.md names no persistence guarantee beyond
// --cut-out and -o. Backends self-register via init(), the provider
// registry pattern the teacher uses for file/vector stores.
package store

import (
	"context"
	"time"

	"github.com/mkatychev/darkroom/pkg/provider"
)

// Providers is the registry of TakeStore backend implementations.
//
//	import _ "github.com/mkatychev/darkroom/pkg/store/file"
//	import _ "github.com/mkatychev/darkroom/pkg/store/sqlite"
//	import _ "github.com/mkatychev/darkroom/pkg/store/postgres"
var Providers = provider.NewRegistry[TakeStore]("take_store")

// Take is the materialized record of one Frame Executor run: the request as
// sent, the response as received, and the outcome.
type Take struct {
	ID        string    `json:"id"`
	Reel      string    `json:"reel"`
	Frame     string    `json:"frame"`    // Frame filename
	Ordering  string    `json:"ordering"` // "(seq,type,sub)"
	Protocol  string    `json:"protocol"`
	Request   []byte    `json:"request"`  // materialized request, JSON
	Response  []byte    `json:"response"` // actual response body, JSON
	Status    int       `json:"status"`
	Passed    bool      `json:"passed"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// TakeStore is the pluggable sink Takes are recorded into.
type TakeStore interface {
	SaveTake(ctx context.Context, t *Take) error
	ListTakes(ctx context.Context, reel string, limit int) ([]*Take, error)
	Close(ctx context.Context) error
}
