// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package take implements the filmReel Frame Executor: the single-Frame
// pipeline that resolves a Frame's request against the Cut Register,
// dispatches it through a transport.Adapter, validates the response with
// retries, extracts write-phase bindings back into the Register, and
// prunes lowercase-classified entries.
package take

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mkatychev/darkroom/pkg/cut"
	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/frame"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/mkatychev/darkroom/pkg/logging"
	"github.com/mkatychev/darkroom/pkg/match"
	"github.com/mkatychev/darkroom/pkg/selector"
	"github.com/mkatychev/darkroom/pkg/store"
	"github.com/mkatychev/darkroom/pkg/template"
	"github.com/mkatychev/darkroom/pkg/transport"
)

// DefaultTimeout is the dispatch timeout applied when Options.Timeout is
// nil, matching the Frame Executor's documented default.
const DefaultTimeout = 30 * time.Second

// Options configures a Take.
type Options struct {
	Adapter  transport.Adapter
	Fallback transport.Fallback
	// Timeout is the dispatch timeout. Nil means "use DefaultTimeout";
	// a non-nil pointer to 0 disables the timeout entirely.
	Timeout *time.Duration
	Logger  *logging.Logger
	Store   store.TakeStore // optional; failures to save are logged, not propagated
	Sleep   func(time.Duration)
	Now     func() time.Time
}

// Outcome is the result of executing one Frame: whether it passed, the
// names written into the register, the materialized request and the actual
// response body as JSON values for emission, and the final mismatch or
// error, if any.
type Outcome struct {
	Passed    bool
	Attempts  int
	Request   any
	Response  any
	Status    int
	Err       error
	WroteVars []string
}

// Execute runs the Frame Executor pipeline for f against reg, mutating reg
// in place with any writes and the post-Frame prune.
func Execute(ctx context.Context, f *frame.Frame, reg *cut.Register, opts Options) *Outcome {
	opts = withDefaults(opts)
	ordering := ""
	filename := ""
	reelName := ""
	if f.Filename != nil {
		ordering = f.Filename.String()
		filename = f.Filename.Raw
		reelName = f.Filename.Reel
	}

	times := 1
	delay := time.Duration(0)
	if f.Request.Attempts != nil {
		times = int(f.Request.Attempts.Times)
		delay = time.Duration(f.Request.Attempts.MS) * time.Millisecond
	}

	var outcome *Outcome
	for attempt := 1; attempt <= times; attempt++ {
		outcome = attemptOnce(ctx, f, reg, opts)
		outcome.Attempts = attempt
		if outcome.Err == nil {
			break
		}
		if attempt < times {
			opts.Logger.Debug("take retrying", "frame", filename, "ordering", ordering, "attempt", attempt, "err", outcome.Err)
			opts.Sleep(delay)
		}
	}

	if outcome.Err != nil {
		if e, ok := outcome.Err.(*errs.Error); ok {
			outcome.Err = e.WithFrame(filename, ordering)
		}
		return outcome
	}

	reg.PruneAfterFrame()

	if opts.Store != nil {
		t := &store.Take{
			ID: uuid.NewString(), Reel: reelName, Frame: filename, Ordering: ordering,
			Protocol: string(f.Protocol), Status: outcome.Status, Passed: true,
			Attempts: outcome.Attempts, Timestamp: opts.Now(),
		}
		if b, err := jsonval.Marshal(outcome.Request); err == nil {
			t.Request = b
		}
		if b, err := jsonval.Marshal(outcome.Response); err == nil {
			t.Response = b
		}
		if err := opts.Store.SaveTake(ctx, t); err != nil {
			opts.Logger.Warn("save take failed", "frame", filename, "err", err)
		}
	}

	return outcome
}

func attemptOnce(ctx context.Context, f *frame.Frame, reg *cut.Register, opts Options) *Outcome {
	materialized, err := resolveRequest(f.Request, reg)
	if err != nil {
		return &Outcome{Err: err}
	}

	dispatchCtx := ctx
	var cancel context.CancelFunc
	if *opts.Timeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, *opts.Timeout)
		defer cancel()
	}

	resp, err := opts.Adapter.Send(dispatchCtx, f.Protocol, *materialized, opts.Fallback)
	if err != nil {
		return &Outcome{Request: requestBody(materialized), Err: err}
	}

	modes := map[string]match.Mode{}
	for sel, m := range f.Response.Validation {
		modes[sel] = match.Mode{Partial: m.Partial, Unordered: m.Unordered}
	}

	result, mErr := match.Validate(f.Response.Status, resp.Status, f.Response.Body, resp.Body, modes)
	out := &Outcome{Request: requestBody(materialized), Response: resp.Body, Status: resp.Status}
	if mErr != nil {
		out.Err = mErr
		return out
	}

	wrote, err := writeBindings(f, reg, resp, result)
	if err != nil {
		out.Err = err
		return out
	}
	out.WroteVars = wrote
	out.Passed = true
	return out
}

func resolveRequest(req frame.Request, reg *cut.Register) (*frame.Request, error) {
	lookup := func(name string) (any, error) { return reg.Read(name) }

	out := req
	if req.URI != "" {
		v, err := templateResolveString(req.URI, lookup)
		if err != nil {
			return nil, err
		}
		out.URI = v
	}
	if req.Body != nil {
		v, err := template.Resolve(req.Body, lookup)
		if err != nil {
			return nil, err
		}
		out.Body = v
	}
	if req.Header != nil {
		v, err := template.Resolve(req.Header, lookup)
		if err != nil {
			return nil, err
		}
		out.Header, _ = v.(*jsonval.Object)
	}
	if req.Query != nil {
		v, err := template.Resolve(req.Query, lookup)
		if err != nil {
			return nil, err
		}
		out.Query, _ = v.(*jsonval.Object)
	}
	if req.Form != nil {
		v, err := template.Resolve(req.Form, lookup)
		if err != nil {
			return nil, err
		}
		out.Form, _ = v.(*jsonval.Object)
	}
	if req.Entrypoint != "" {
		v, err := templateResolveString(req.Entrypoint, lookup)
		if err != nil {
			return nil, err
		}
		out.Entrypoint = v
	}
	return &out, nil
}

// writeBindings writes every "${VAR}" placeholder captured by the matcher
// into reg, then evaluates each cut.to selector against the actual response
// and stores the extracted value into reg, overwriting any placeholder bound
// to the same name. Duplicate extraction of the same variable by cut.to is
// a Write error.
func writeBindings(f *frame.Frame, reg *cut.Register, resp *transport.Response, result *match.Result) ([]string, error) {
	var names []string
	for name, value := range result.Bindings {
		if err := reg.Write(name, value); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	if f.Cut == nil || len(f.Cut.To) == 0 {
		return names, nil
	}

	responseJSON, err := jsonval.Marshal(envelopeBody("response", resp.Body))
	if err != nil {
		return nil, errs.New(errs.Write, "marshal response for write phase", err)
	}

	written := map[string]bool{}
	for varName, spec := range f.Cut.To {
		if written[varName] {
			return nil, errs.New(errs.Write, fmt.Sprintf("extract %q", varName), fmt.Errorf("duplicate extraction for variable"))
		}
		value, err := selector.Extract(responseJSON, spec)
		if err != nil {
			return nil, err
		}
		if err := reg.Write(varName, value); err != nil {
			return nil, err
		}
		written[varName] = true
		names = append(names, varName)
	}
	return names, nil
}

func envelopeBody(key string, body any) *jsonval.Object {
	obj := jsonval.NewObject()
	inner := jsonval.NewObject()
	inner.Set("body", body)
	obj.Set(key, inner)
	return obj
}

func requestBody(req *frame.Request) any {
	if req == nil {
		return nil
	}
	obj := jsonval.NewObject()
	obj.Set("uri", req.URI)
	if req.Body != nil {
		obj.Set("body", req.Body)
	}
	return obj
}

func templateResolveString(s string, lookup func(name string) (any, error)) (string, error) {
	v, err := template.Resolve(s, lookup)
	if err != nil {
		return "", err
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	b, err := jsonval.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func withDefaults(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logging.Nop
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout == nil {
		d := DefaultTimeout
		opts.Timeout = &d
	}
	return opts
}
