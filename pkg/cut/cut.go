// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package cut implements the filmReel Cut Register: the ordered mapping
// from Cut Variable to JSON value that carries data between Frames in a
// Reel. A Register is built by a left-to-right deep-overwrite merge of cut
// sources (the reel's sibling cut file, explicit --cut files, and inline
// merge objects), read and written by the Frame Executor, and pruned of
// lowercase-classified entries after each Frame completes.
package cut

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/jsonval"
)

var varNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether name is a well-formed Cut Variable identifier.
func ValidName(name string) bool {
	return varNamePattern.MatchString(name)
}

// Hidden reports whether name is hidden-classified: its output is redacted
// from a Register's serialized view.
func Hidden(name string) bool {
	return strings.HasPrefix(name, "_")
}

// Lowercase reports whether name is lowercase-classified: it contains no
// uppercase letter, and is discarded from the Register after the Frame
// that wrote it succeeds.
func Lowercase(name string) bool {
	return name == strings.ToLower(name)
}

// Register is the runtime Cut: an ordered, string-keyed map from Cut
// Variable to JSON value. The zero value is an empty, usable Register.
type Register struct {
	obj *jsonval.Object
}

// New returns an empty Register.
func New() *Register {
	return &Register{obj: jsonval.NewObject()}
}

// FromJSON parses data as a JSON object and returns it as a Register.
// A non-object top level, or a key mapping to syntactically invalid JSON,
// is a RegisterParse error.
func FromJSON(data []byte) (*Register, error) {
	v, err := jsonval.Parse(data)
	if err != nil {
		return nil, errs.New(errs.RegisterParse, "parse cut file", err)
	}
	obj, ok := v.(*jsonval.Object)
	if !ok {
		return nil, errs.New(errs.RegisterParse, "parse cut file", fmt.Errorf("top level must be a JSON object"))
	}
	return &Register{obj: obj}, nil
}

// Merge performs a left-to-right, top-level deep-overwrite merge of sources
// (each an already-parsed Register) into a new Register: later sources
// override earlier ones key by key, but a key's value is replaced whole,
// never recursively merged into the existing value at that key.
func Merge(sources ...*Register) *Register {
	r := New()
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, k := range src.obj.Keys() {
			v, _ := src.obj.Get(k)
			r.obj.Set(k, v)
		}
	}
	return r
}

// Read returns the value bound to name. An absent name is a Read error.
func (r *Register) Read(name string) (any, error) {
	v, ok := r.obj.Get(name)
	if !ok {
		return nil, errs.New(errs.Read, fmt.Sprintf("read %q", name), fmt.Errorf("variable not in register"))
	}
	return v, nil
}

// Has reports whether name is currently bound.
func (r *Register) Has(name string) bool {
	_, ok := r.obj.Get(name)
	return ok
}

// Write inserts or replaces the value bound to name. value must already be
// a filmReel JSON Value (as produced by jsonval.Parse or a Go literal
// accepted by encoding/json).
func (r *Register) Write(name string, value any) error {
	if !ValidName(name) {
		return errs.New(errs.Write, fmt.Sprintf("write %q", name), fmt.Errorf("not a valid cut variable name"))
	}
	r.obj.Set(name, value)
	return nil
}

// PruneAfterFrame removes every lowercase-classified entry from the
// Register, per the post-Frame discard rule.
func (r *Register) PruneAfterFrame() {
	for _, k := range r.obj.Keys() {
		if Lowercase(k) {
			r.obj.Delete(k)
		}
	}
}

// Keys returns the Register's bound variable names in insertion order.
func (r *Register) Keys() []string {
	return r.obj.Keys()
}

// Clone returns an independent deep copy of r.
func (r *Register) Clone() *Register {
	cp := New()
	for _, k := range r.obj.Keys() {
		v, _ := r.obj.Get(k)
		cp.obj.Set(k, jsonval.DeepCopy(v))
	}
	return cp
}

// RedactView returns the Register as an *jsonval.Object with hidden
// entries omitted, suitable for serialization to a --cut-out file or log
// line.
func (r *Register) RedactView() *jsonval.Object {
	out := jsonval.NewObject()
	for _, k := range r.obj.Keys() {
		if Hidden(k) {
			continue
		}
		v, _ := r.obj.Get(k)
		out.Set(k, v)
	}
	return out
}

// MarshalJSON serializes the Register's redacted view.
func (r *Register) MarshalJSON() ([]byte, error) {
	return r.RedactView().MarshalJSON()
}
