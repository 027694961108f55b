// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package errs implements the filmReel error taxonomy: each Frame failure
// carries a Kind so a Reel Player can report the ordering key and a
// structured diff alongside the underlying cause.
package errs

import (
	"errors"
	"fmt"
)

// Kind identifies which stage of the filmReel pipeline produced an error.
type Kind string

const (
	RegisterParse  Kind = "RegisterParse"
	FrameParse     Kind = "FrameParse"
	ReelLoad       Kind = "ReelLoad"
	Read           Kind = "Read"
	Write          Kind = "Write"
	Transport      Kind = "Transport"
	FormMismatch   Kind = "FormMismatch"
	ValueMismatch  Kind = "ValueMismatch"
	StatusMismatch Kind = "StatusMismatch"
)

// Error is the concrete error type surfaced by the engine. Frame and
// Ordering identify which Frame failed; they are empty when the error
// occurs before a Frame is known (e.g. during Reel discovery).
type Error struct {
	Kind     Kind
	Frame    string // frame filename or command, when known
	Ordering string // "(seq,type,sub)", when known
	Op       string // short description of the failing operation
	Err      error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Frame != "" && e.Ordering != "":
		where = fmt.Sprintf(" [%s %s]", e.Frame, e.Ordering)
	case e.Frame != "":
		where = fmt.Sprintf(" [%s]", e.Frame)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s%s: %s: %v", e.Kind, where, e.Op, e.Err)
	}
	return fmt.Sprintf("%s%s: %s", e.Kind, where, e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithFrame returns a copy of e annotated with the failing Frame's
// filename and ordering key.
func (e *Error) WithFrame(frame, ordering string) *Error {
	cp := *e
	cp.Frame = frame
	cp.Ordering = ordering
	return &cp
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
