// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package selector

import (
	"testing"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/jsonval"
)

const sampleResponse = `{"ok":true,"body":{"ip":"1.2.3.4","items":["a","b","c"]}}`

func TestExtractScalar(t *testing.T) {
	v, err := Extract([]byte(sampleResponse), "'body'.'ip'")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v != "1.2.3.4" {
		t.Errorf("Extract = %v, want 1.2.3.4", v)
	}
}

func TestExtractArrayIndex(t *testing.T) {
	v, err := Extract([]byte(sampleResponse), "'body'.'items'.1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if v != "b" {
		t.Errorf("Extract = %v, want b", v)
	}
}

func TestExtractObjectPreservesOrder(t *testing.T) {
	v, err := Extract([]byte(sampleResponse), "'body'")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	obj, ok := v.(*jsonval.Object)
	if !ok {
		t.Fatalf("Extract = %T, want *jsonval.Object", v)
	}
	want := []string{"ip", "items"}
	got := obj.Keys()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestExtractMissingIsWriteError(t *testing.T) {
	if _, err := Extract([]byte(sampleResponse), "'body'.'nope'"); !errs.Is(err, errs.Write) {
		t.Errorf("Extract(missing) error = %v, want errs.Write", err)
	}
}

func TestParseRejectsUnterminatedQuote(t *testing.T) {
	if _, err := Parse("'body"); err == nil {
		t.Error("Parse(unterminated) succeeded, want error")
	}
}

func TestNavParentLocatesArrayForReplacement(t *testing.T) {
	tree, err := jsonval.Parse([]byte(sampleResponse))
	if err != nil {
		t.Fatalf("jsonval.Parse: %v", err)
	}
	parent, last, found, err := NavParent(tree, "'body'.'items'")
	if err != nil || !found {
		t.Fatalf("NavParent: found=%v err=%v", found, err)
	}
	obj, ok := parent.(*jsonval.Object)
	if !ok {
		t.Fatalf("parent = %T, want *jsonval.Object", parent)
	}
	obj.Set(last.Key, []any{"x"})

	got, _, _ := Get(tree, "'body'.'items'.0")
	if got != "x" {
		t.Errorf("after replace, Get = %v, want x", got)
	}
}

func TestGetTopLevelSelector(t *testing.T) {
	tree, _ := jsonval.Parse([]byte(sampleResponse))
	v, found, err := Get(tree, "'ok'")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if v != true {
		t.Errorf("Get('ok') = %v, want true", v)
	}
}
