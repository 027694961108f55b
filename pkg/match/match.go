// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package match implements the filmReel Response Matcher / Validator:
// structural and value comparison of an expected response tree against an
// actual one, with selector-scoped "partial" and "unordered" transforms
// applied before comparison, placeholder binding for "${VAR}" expected
// leaves, and a structured diff rendered with tidwall/pretty on mismatch.
package match

import (
	"fmt"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/mkatychev/darkroom/pkg/selector"
	"github.com/tidwall/pretty"
)

// Mode is the partial/unordered configuration applied at one selector
// scope before comparison.
type Mode struct {
	Partial   bool
	Unordered bool
}

// Result is the outcome of a successful match: the placeholder bindings
// captured from "${VAR}" leaves in the expected tree.
type Result struct {
	Bindings map[string]any
}

// Mismatch is a structured description of a comparison failure: the path
// at which expected and actual diverge, and the taxonomy kind.
type Mismatch struct {
	Kind     errs.Kind // FormMismatch, ValueMismatch, or StatusMismatch
	Path     string
	Expected any
	Actual   any
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("%s at %s: expected %s, got %s", m.Kind, m.Path, prettyJSON(m.Expected), prettyJSON(m.Actual))
}

func prettyJSON(v any) string {
	b, err := jsonval.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(pretty.Color(pretty.Pretty(b), nil))
}

// Validate compares actualStatus/actualBody against expectedStatus/
// expectedBody. validation maps a selector to the Mode applied at that
// scope before the recursive comparison runs. A status mismatch is
// checked first and short-circuits the body comparison, matching the
// Frame Executor's single-error-per-attempt contract.
func Validate(expectedStatus, actualStatus int, expectedBody, actualBody any, validation map[string]Mode) (*Result, error) {
	if expectedStatus != actualStatus {
		return nil, &Mismatch{
			Kind:     errs.StatusMismatch,
			Path:     "status",
			Expected: expectedStatus,
			Actual:   actualStatus,
		}
	}

	expected := jsonval.DeepCopy(expectedBody)
	actual := jsonval.DeepCopy(actualBody)

	for sel, mode := range validation {
		newActual, err := applyMode(expected, actual, sel, mode)
		if err != nil {
			return nil, err
		}
		actual = newActual
	}

	bindings := map[string]any{}
	if err := compare("$", expected, actual, bindings); err != nil {
		return nil, err
	}
	return &Result{Bindings: bindings}, nil
}

// applyMode locates sel in both expected and actual and rewrites the
// actual-side node according to mode, returning the (possibly unchanged)
// top-level actual tree. "$" selects the whole tree, since the selector
// grammar has no token for a node with no parent to navigate from.
func applyMode(expected, actual any, sel string, mode Mode) (any, error) {
	if !mode.Partial && !mode.Unordered {
		return actual, nil
	}

	if sel == "$" {
		return transform(expected, actual, mode), nil
	}

	expParent, expLast, expFound, err := selector.NavParent(expected, sel)
	if err != nil {
		return nil, fmt.Errorf("validation selector %q: %w", sel, err)
	}
	actParent, actLast, actFound, err := selector.NavParent(actual, sel)
	if err != nil {
		return nil, fmt.Errorf("validation selector %q: %w", sel, err)
	}
	if !expFound || !actFound {
		return actual, nil // the mismatch, if any, surfaces from the plain recursive comparison
	}
	expNode, expOK := nodeAt(expParent, expLast)
	actNode, actOK := nodeAt(actParent, actLast)
	if !expOK || !actOK {
		return actual, nil
	}

	setAt(actParent, actLast, transform(expNode, actNode, mode))
	return actual, nil
}

func transform(expNode, actNode any, mode Mode) any {
	if mode.Partial {
		actNode = applyPartial(expNode, actNode)
	}
	if mode.Unordered {
		actNode = applyUnordered(expNode, actNode)
	}
	return actNode
}

func nodeAt(parent any, seg selector.Segment) (any, bool) {
	switch t := parent.(type) {
	case *jsonval.Object:
		if seg.IsIndex {
			return nil, false
		}
		return t.Get(seg.Key)
	case []any:
		if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(t) {
			return nil, false
		}
		return t[seg.Index], true
	default:
		return nil, false
	}
}

func setAt(parent any, seg selector.Segment, value any) {
	switch t := parent.(type) {
	case *jsonval.Object:
		if !seg.IsIndex {
			t.Set(seg.Key, value)
		}
	case []any:
		if seg.IsIndex && seg.Index >= 0 && seg.Index < len(t) {
			t[seg.Index] = value
		}
	}
}

// applyPartial implements the partial transform, non-recursively at this
// selector scope: for an object, actual keys absent from expected are
// dropped; for an array, the expected sequence is searched for as a
// contiguous subsequence of actual, and actual is replaced by that
// expected-length window if found.
func applyPartial(expected, actual any) any {
	switch exp := expected.(type) {
	case *jsonval.Object:
		act, ok := actual.(*jsonval.Object)
		if !ok {
			return actual
		}
		out := jsonval.NewObject()
		for _, k := range act.Keys() {
			if _, wanted := exp.Get(k); wanted {
				v, _ := act.Get(k)
				out.Set(k, v)
			}
		}
		return out
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return actual
		}
		for start := 0; start+len(exp) <= len(act); start++ {
			if subsequenceEqual(exp, act[start:start+len(exp)]) {
				return act[start : start+len(exp)]
			}
		}
		return actual
	default:
		return actual
	}
}

func subsequenceEqual(expected, window []any) bool {
	for i := range expected {
		if !jsonval.Equal(expected[i], window[i]) {
			return false
		}
	}
	return true
}

// applyUnordered reorders an actual array: for each element of expected in
// order, the first equal unconsumed element of actual is moved to the
// head of the remaining tail; leftover actual elements follow in their
// original relative order.
func applyUnordered(expected, actual any) any {
	exp, ok := expected.([]any)
	if !ok {
		return actual
	}
	act, ok := actual.([]any)
	if !ok {
		return actual
	}
	used := make([]bool, len(act))
	out := make([]any, 0, len(act))
	for _, e := range exp {
		for i, a := range act {
			if used[i] {
				continue
			}
			if jsonval.Equal(e, a) {
				used[i] = true
				out = append(out, a)
				break
			}
		}
	}
	for i, a := range act {
		if !used[i] {
			out = append(out, a)
		}
	}
	return out
}

// compare recursively compares expected against actual, binding
// "${VAR}"-placeholder leaves of expected into bindings. A mismatch
// returns a *Mismatch describing where and how.
func compare(path string, expected, actual any, bindings map[string]any) error {
	if name, ok := placeholderName(expected); ok {
		if prior, seen := bindings[name]; seen {
			if !jsonval.Equal(prior, actual) {
				return &Mismatch{Kind: errs.ValueMismatch, Path: path, Expected: prior, Actual: actual}
			}
			return nil
		}
		bindings[name] = actual
		return nil
	}

	switch exp := expected.(type) {
	case *jsonval.Object:
		act, ok := actual.(*jsonval.Object)
		if !ok {
			return &Mismatch{Kind: errs.FormMismatch, Path: path, Expected: expected, Actual: actual}
		}
		for _, k := range exp.Keys() {
			av, present := act.Get(k)
			if !present {
				return &Mismatch{Kind: errs.FormMismatch, Path: path + "." + k, Expected: must(exp.Get(k)), Actual: nil}
			}
			ev, _ := exp.Get(k)
			if err := compare(path+"."+k, ev, av, bindings); err != nil {
				return err
			}
		}
		for _, k := range act.Keys() {
			if _, present := exp.Get(k); !present {
				return &Mismatch{Kind: errs.FormMismatch, Path: path + "." + k, Expected: nil, Actual: must(act.Get(k))}
			}
		}
		return nil
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return &Mismatch{Kind: errs.FormMismatch, Path: path, Expected: expected, Actual: actual}
		}
		if len(exp) != len(act) {
			return &Mismatch{Kind: errs.FormMismatch, Path: path, Expected: expected, Actual: actual}
		}
		for i := range exp {
			if err := compare(fmt.Sprintf("%s[%d]", path, i), exp[i], act[i], bindings); err != nil {
				return err
			}
		}
		return nil
	default:
		if !jsonval.Equal(expected, actual) {
			return &Mismatch{Kind: errs.ValueMismatch, Path: path, Expected: expected, Actual: actual}
		}
		return nil
	}
}

func must(v any, _ bool) any { return v }

// placeholderName reports whether v is a string that is exactly one
// "${VAR}" reference, and if so returns VAR.
func placeholderName(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if len(s) < 4 || s[:2] != "${" || s[len(s)-1] != '}' {
		return "", false
	}
	name := s[2 : len(s)-1]
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')) {
			return "", false
		}
	}
	if name == "" {
		return "", false
	}
	return name, true
}
