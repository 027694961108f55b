// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the filmReel Protocol Adapter contract: the
// one interface the core execution engine depends on to dispatch a
// materialized Frame request and obtain a JSON body and status. Concrete
// adapters (pkg/transport/http, pkg/transport/grpc) are swapped in at
// construction time; the engine never imports them directly.
package transport

import (
	"context"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/frame"
)

// Response is what a successful dispatch returns: the response body as a
// filmReel JSON Value, and the protocol status (HTTP status code or gRPC
// numeric status code).
type Response struct {
	Body   any
	Status int
}

// Fallback carries cross-cutting dispatch configuration that does not
// belong on an individual Frame: default headers applied when a Frame
// doesn't set its own, TLS policy, and gRPC reflection/descriptor sources.
type Fallback struct {
	Headers     map[string]string
	InsecureTLS bool
	ProtoFiles  []string
	ProtoDirs   []string
	ReflectOnly bool
}

// Adapter is the Protocol Adapter contract. Implementations build a
// protocol-specific request from req and fallback and return the parsed
// response or a Transport error. The core is written only against this
// interface.
type Adapter interface {
	Send(ctx context.Context, protocol frame.Protocol, req frame.Request, fallback Fallback) (*Response, error)
}

// NonJSONError wraps err as a Transport error for a response body that
// failed to parse as JSON. A Frame's partial/unordered validation modes do
// not relax this.
func NonJSONError(op string, err error) error {
	return errs.New(errs.Transport, op, err)
}
