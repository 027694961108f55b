// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package take

import (
	"context"
	"testing"
	"time"

	"github.com/mkatychev/darkroom/pkg/cut"
	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/frame"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/mkatychev/darkroom/pkg/transport"
)

type scriptedAdapter struct {
	responses []*transport.Response
	errs      []error
	calls     int
}

func (a *scriptedAdapter) Send(_ context.Context, _ frame.Protocol, _ frame.Request, _ transport.Fallback) (*transport.Response, error) {
	i := a.calls
	a.calls++
	if i < len(a.errs) && a.errs[i] != nil {
		return nil, a.errs[i]
	}
	return a.responses[i], nil
}

func noSleep(time.Duration) {}

func TestExecutePostRoundTrip(t *testing.T) {
	raw := `{
		"protocol": "HTTP",
		"request": {"uri": "POST ${URL}", "body": {"x": 1}},
		"response": {"status": 200, "body": {"ok": true, "ip": "${IP}"}},
		"cut": {"from": ["URL"]}
	}`
	f, err := frame.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("frame.Parse: %v", err)
	}

	reg := cut.New()
	_ = reg.Write("URL", "http://h/p")

	adapter := &scriptedAdapter{responses: []*transport.Response{
		{Status: 200, Body: mustParseBody(t, `{"ok":true,"ip":"1.2.3.4"}`)},
	}}

	out := Execute(context.Background(), f, reg, Options{Adapter: adapter, Sleep: noSleep})
	if out.Err != nil {
		t.Fatalf("Execute: %v", out.Err)
	}
	if !out.Passed {
		t.Fatal("Execute: want Passed")
	}
	ip, err := reg.Read("IP")
	if err != nil || ip != "1.2.3.4" {
		t.Errorf("reg.Read(IP) = %v, %v, want 1.2.3.4, nil", ip, err)
	}
}

func TestExecuteRetriesUpToAttemptsTimes(t *testing.T) {
	raw := `{
		"protocol": "HTTP",
		"request": {"uri": "GET /p", "attempts": {"times": 3, "ms": 1}},
		"response": {"status": 200, "body": {"ok": true}}
	}`
	f, err := frame.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("frame.Parse: %v", err)
	}
	reg := cut.New()

	adapter := &scriptedAdapter{
		errs: []error{errs.New(errs.Transport, "dispatch", nil), errs.New(errs.Transport, "dispatch", nil)},
		responses: []*transport.Response{
			nil, nil,
			{Status: 200, Body: mustParseBody(t, `{"ok":true}`)},
		},
	}

	out := Execute(context.Background(), f, reg, Options{Adapter: adapter, Sleep: noSleep})
	if out.Err != nil {
		t.Fatalf("Execute: %v, want success on 3rd attempt", out.Err)
	}
	if out.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", out.Attempts)
	}
	if adapter.calls != 3 {
		t.Errorf("adapter.calls = %d, want 3 (never exceed attempts.times)", adapter.calls)
	}
}

func TestExecuteMissingRegisterVarIsReadError(t *testing.T) {
	raw := `{
		"protocol": "HTTP",
		"request": {"uri": "GET ${MISSING}"},
		"response": {"status": 200}
	}`
	f, err := frame.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("frame.Parse: %v", err)
	}
	reg := cut.New()
	adapter := &scriptedAdapter{}

	out := Execute(context.Background(), f, reg, Options{Adapter: adapter, Sleep: noSleep})
	if !errs.Is(out.Err, errs.Read) {
		t.Errorf("Execute error = %v, want errs.Read", out.Err)
	}
}

func TestExecutePrunesLowercaseAfterSuccess(t *testing.T) {
	raw := `{
		"protocol": "HTTP",
		"request": {"uri": "GET /p"},
		"response": {"status": 200, "body": {"temp": "hot", "KEEP": "cold"}},
		"cut": {"to": {"temp": "'response'.'body'.'temp'", "KEEP": "'response'.'body'.'KEEP'"}}
	}`
	f, err := frame.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("frame.Parse: %v", err)
	}
	reg := cut.New()
	adapter := &scriptedAdapter{responses: []*transport.Response{
		{Status: 200, Body: mustParseBody(t, `{"temp":"hot","KEEP":"cold"}`)},
	}}

	out := Execute(context.Background(), f, reg, Options{Adapter: adapter, Sleep: noSleep})
	if out.Err != nil {
		t.Fatalf("Execute: %v", out.Err)
	}
	if reg.Has("temp") {
		t.Error("reg.Has(temp) = true after prune, want false")
	}
	if !reg.Has("KEEP") {
		t.Error("reg.Has(KEEP) = false after prune, want true")
	}
}

func mustParseBody(t *testing.T, s string) any {
	t.Helper()
	v, err := jsonval.Parse([]byte(s))
	if err != nil {
		t.Fatalf("parse body: %v", err)
	}
	return v
}
