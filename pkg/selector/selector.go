// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package selector implements the filmReel selector language: a compact
// JSON-path subset of dotted, single-quoted segments and bare integer
// array indices, e.g. "'response'.'body'.'items'.0.'id'". It evaluates
// selectors against raw response bytes via tidwall/gjson (the Frame
// Executor's write phase) and against already-parsed jsonval trees (the
// Validator's partial/unordered transforms).
package selector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/tidwall/gjson"
)

// Segment is one step of a parsed selector: either a quoted object key or
// a bare array index.
type Segment struct {
	Key     string
	IsIndex bool
	Index   int
}

// Parse parses sel into its segments. Each segment is either a
// single-quoted key ('name') or a bare non-negative integer array index.
func Parse(sel string) ([]Segment, error) {
	var segs []Segment
	i := 0
	for i < len(sel) {
		switch {
		case sel[i] == '\'':
			end := strings.IndexByte(sel[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("selector %q: unterminated quoted segment", sel)
			}
			segs = append(segs, Segment{Key: sel[i+1 : i+1+end]})
			i += 1 + end + 1
		default:
			j := i
			for j < len(sel) && sel[j] != '.' {
				j++
			}
			idx, err := strconv.Atoi(sel[i:j])
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("selector %q: invalid segment %q", sel, sel[i:j])
			}
			segs = append(segs, Segment{IsIndex: true, Index: idx})
			i = j
		}
		if i < len(sel) {
			if sel[i] != '.' {
				return nil, fmt.Errorf("selector %q: expected '.' at position %d", sel, i)
			}
			i++
		}
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("selector %q: empty", sel)
	}
	return segs, nil
}

// gjsonSpecial are the characters gjson paths treat as syntax and which
// must be backslash-escaped when they appear inside a literal key.
const gjsonSpecial = `.*?|#@\`

func escapeGJSONKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if strings.ContainsRune(gjsonSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// toGJSONPath renders segs as a gjson path expression.
func toGJSONPath(segs []Segment) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		if s.IsIndex {
			parts[i] = strconv.Itoa(s.Index)
		} else {
			parts[i] = escapeGJSONKey(s.Key)
		}
	}
	return strings.Join(parts, ".")
}

// Extract evaluates sel against responseJSON and returns the matched
// subtree as a filmReel JSON Value (via jsonval.Parse, so object key
// order is preserved). A selector that matches nothing is a Write error.
func Extract(responseJSON []byte, sel string) (any, error) {
	segs, err := Parse(sel)
	if err != nil {
		return nil, errs.New(errs.Write, fmt.Sprintf("evaluate selector %q", sel), err)
	}
	res := gjson.GetBytes(responseJSON, toGJSONPath(segs))
	if !res.Exists() {
		return nil, errs.New(errs.Write, fmt.Sprintf("evaluate selector %q", sel), fmt.Errorf("selector matched nothing"))
	}
	v, err := jsonval.Parse([]byte(res.Raw))
	if err != nil {
		return nil, errs.New(errs.Write, fmt.Sprintf("evaluate selector %q", sel), err)
	}
	return v, nil
}

// ExtractPath evaluates gjsonPath directly as a gjson path expression,
// bypassing the compact quoted-segment grammar. This is the escape hatch
// named in the selector language design note: callers that need gjson's
// full syntax (wildcards, #-array queries) opt in explicitly by calling
// this instead of Extract.
func ExtractPath(responseJSON []byte, gjsonPath string) (any, bool, error) {
	res := gjson.GetBytes(responseJSON, gjsonPath)
	if !res.Exists() {
		return nil, false, nil
	}
	v, err := jsonval.Parse([]byte(res.Raw))
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// NavParent walks root (a jsonval tree: *jsonval.Object / []any / scalar)
// along sel's segments up to, but not including, the last segment, and
// returns that parent container together with the final segment. Callers
// use the parent/segment pair to read, overwrite, or delete the targeted
// node in place. found is false if any intermediate segment does not
// resolve (missing key, out-of-range index, or a segment applied to a
// scalar).
func NavParent(root any, sel string) (parent any, last Segment, found bool, err error) {
	segs, err := Parse(sel)
	if err != nil {
		return nil, Segment{}, false, err
	}
	cur := root
	for _, s := range segs[:len(segs)-1] {
		next, ok := step(cur, s)
		if !ok {
			return nil, Segment{}, false, nil
		}
		cur = next
	}
	return cur, segs[len(segs)-1], true, nil
}

// Get walks root along sel's full segment list and returns the node
// found there, if any.
func Get(root any, sel string) (value any, found bool, err error) {
	segs, err := Parse(sel)
	if err != nil {
		return nil, false, err
	}
	cur := root
	for _, s := range segs {
		next, ok := step(cur, s)
		if !ok {
			return nil, false, nil
		}
		cur = next
	}
	return cur, true, nil
}

func step(cur any, s Segment) (any, bool) {
	switch t := cur.(type) {
	case *jsonval.Object:
		if s.IsIndex {
			return nil, false
		}
		return t.Get(s.Key)
	case []any:
		if !s.IsIndex || s.Index < 0 || s.Index >= len(t) {
			return nil, false
		}
		return t[s.Index], true
	default:
		return nil, false
	}
}
