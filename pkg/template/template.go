// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package template implements the filmReel Template Engine: resolution of
// "${VAR}" references inside an arbitrary JSON subtree against a lookup
// function, with escape handling and the full-JSON substitution rule (a
// string whose entire content is one reference is replaced by the
// register entry's native value, not a stringified copy).
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/jsonval"
)

// fullRefPattern matches a string whose entire content is exactly one
// "${NAME}" reference, with nothing else.
var fullRefPattern = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// Lookup resolves a Cut Variable name to its JSON value. Implementations
// return a *errs.Error of kind errs.Read when name is unbound.
type Lookup func(name string) (any, error)

// FindRefs returns the set of distinct variable names referenced anywhere
// in v's strings, in first-occurrence order. An unterminated "${" is a
// FrameParse error.
func FindRefs(v any) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	if err := walkRefs(v, func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func walkRefs(v any, emit func(name string)) error {
	switch t := v.(type) {
	case string:
		_, _, err := scan(t, func(name string) (string, error) {
			emit(name)
			return "", nil
		})
		return err
	case *jsonval.Object:
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			if err := walkRefs(val, emit); err != nil {
				return err
			}
		}
	case []any:
		for _, e := range t {
			if err := walkRefs(e, emit); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resolve returns v with every "${NAME}" reference replaced by the value
// lookup(NAME) returns. If a string's entire content is exactly one
// reference, the resolved value replaces it natively (preserving
// objects/arrays/numbers/booleans); otherwise the resolved value is
// stringified and spliced in place. "\$" is an escape for a literal "$"
// and never opens a reference. An unbound reference surfaces lookup's
// error (normally errs.Read); an unterminated "${" is a FrameParse error.
func Resolve(v any, lookup Lookup) (any, error) {
	switch t := v.(type) {
	case string:
		if m := fullRefPattern.FindStringSubmatch(t); m != nil {
			return lookup(m[1])
		}
		resolved, found, err := scan(t, func(name string) (string, error) {
			val, err := lookup(name)
			if err != nil {
				return "", err
			}
			return stringify(val), nil
		})
		if err != nil {
			return nil, err
		}
		if !found {
			return t, nil
		}
		return resolved, nil
	case *jsonval.Object:
		out := jsonval.NewObject()
		for _, k := range t.Keys() {
			val, _ := t.Get(k)
			rv, err := Resolve(val, lookup)
			if err != nil {
				return nil, err
			}
			out.Set(k, rv)
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			rv, err := Resolve(e, lookup)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := jsonval.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// scan walks s left to right, handling "\$" escapes and "${NAME}"
// references. emit is called with each NAME found, in order, and returns
// the replacement text for that reference. scan reports whether any
// reference or escape was present at all (found), to let callers avoid
// reallocating unchanged strings.
func scan(s string, emit func(name string) (string, error)) (resolved string, found bool, err error) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] == '$':
			b.WriteByte('$')
			i += 2
			found = true
		case c == '$' && i+1 < len(s) && s[i+1] == '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return "", false, errs.New(errs.FrameParse, "scan reference", fmt.Errorf("unterminated ${ in %q", s))
			}
			name := s[i+2 : i+2+end]
			if !varNamePattern.MatchString(name) {
				return "", false, errs.New(errs.FrameParse, "scan reference", fmt.Errorf("invalid variable name %q", name))
			}
			rep, err := emit(name)
			if err != nil {
				return "", false, err
			}
			b.WriteString(rep)
			i += 2 + end + 1
			found = true
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), found, nil
}

var varNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
