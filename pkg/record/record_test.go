// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"context"
	"testing"
	"time"

	"github.com/mkatychev/darkroom/pkg/cut"
	"github.com/mkatychev/darkroom/pkg/frame"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/mkatychev/darkroom/pkg/reel"
	"github.com/mkatychev/darkroom/pkg/source/memory"
	"github.com/mkatychev/darkroom/pkg/take"
	"github.com/mkatychev/darkroom/pkg/transport"
)

const okFrame = `{"protocol":"HTTP","request":{"uri":"GET /p"},"response":{"status":200,"body":{"ok":true}}}`
const failFrame = `{"protocol":"HTTP","request":{"uri":"GET /p"},"response":{"status":200,"body":{"ok":false}}}`

type okAdapter struct{}

func (okAdapter) Send(context.Context, frame.Protocol, frame.Request, transport.Fallback) (*transport.Response, error) {
	return &transport.Response{Status: 200, Body: mustParse(`{"ok":true}`)}, nil
}

func mustParse(s string) any {
	v, err := jsonval.Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return v
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	src := memory.New()
	src.Put("dir", "usr.01s.a.fr.json", []byte(okFrame))
	src.Put("dir", "usr.02s.b.fr.json", []byte(failFrame))
	src.Put("dir", "usr.03s.c.fr.json", []byte(okFrame))

	r, err := reel.Load(context.Background(), src, "dir", "usr")
	if err != nil {
		t.Fatalf("reel.Load: %v", err)
	}

	rpt := Run(context.Background(), r, cut.New(), Options{
		Take: take.Options{Adapter: okAdapter{}, Sleep: func(time.Duration) {}},
	})

	if rpt.Passed {
		t.Fatal("Run.Passed = true, want false (frame 2 expects ok:false)")
	}
	if len(rpt.Ran) != 2 {
		t.Fatalf("len(Ran) = %d, want 2 (stop at frame 2)", len(rpt.Ran))
	}
}

func TestRunComponentPreludeRunsFirst(t *testing.T) {
	compSrc := memory.New()
	compSrc.Put("comp", "setup.01s.login.fr.json", []byte(okFrame))
	compSrc.Put("comp", "setup.01e.login.fr.json", []byte(okFrame))

	comp, err := reel.Load(context.Background(), compSrc, "comp", "setup")
	if err != nil {
		t.Fatalf("reel.Load(component): %v", err)
	}

	mainSrc := memory.New()
	mainSrc.Put("dir", "usr.01s.a.fr.json", []byte(okFrame))
	r, err := reel.Load(context.Background(), mainSrc, "dir", "usr")
	if err != nil {
		t.Fatalf("reel.Load: %v", err)
	}

	rpt := Run(context.Background(), r, cut.New(), Options{
		Take:       take.Options{Adapter: okAdapter{}, Sleep: func(time.Duration) {}},
		Components: []*reel.Reel{comp},
	})

	if !rpt.Passed {
		t.Fatalf("Run.Passed = false, err = %v", rpt.Err)
	}
	if len(rpt.Ran) != 2 {
		t.Fatalf("len(Ran) = %d, want 2 (1 component success frame + 1 main frame)", len(rpt.Ran))
	}
	if rpt.Ran[0].Filename.Reel != "setup" {
		t.Errorf("Ran[0] reel = %q, want component reel to run first", rpt.Ran[0].Filename.Reel)
	}
}

func TestRunRangeGateSkipsOutOfRangeFrames(t *testing.T) {
	src := memory.New()
	src.Put("dir", "usr.01s.a.fr.json", []byte(okFrame))
	src.Put("dir", "usr.02s.b.fr.json", []byte(okFrame))
	src.Put("dir", "usr.03s.c.fr.json", []byte(okFrame))

	r, err := reel.Load(context.Background(), src, "dir", "usr")
	if err != nil {
		t.Fatalf("reel.Load: %v", err)
	}

	rpt := Run(context.Background(), r, cut.New(), Options{
		Take:  take.Options{Adapter: okAdapter{}, Sleep: func(time.Duration) {}},
		Range: &Range{Lo: 2, Hi: 2},
	})

	if !rpt.Passed {
		t.Fatalf("Run.Passed = false, err = %v", rpt.Err)
	}
	if len(rpt.Ran) != 1 {
		t.Fatalf("len(Ran) = %d, want 1", len(rpt.Ran))
	}
	if len(rpt.Skipped) != 2 {
		t.Fatalf("len(Skipped) = %d, want 2", len(rpt.Skipped))
	}
}

func TestRunInteractiveAbort(t *testing.T) {
	src := memory.New()
	src.Put("dir", "usr.01s.a.fr.json", []byte(okFrame))

	r, err := reel.Load(context.Background(), src, "dir", "usr")
	if err != nil {
		t.Fatalf("reel.Load: %v", err)
	}

	rpt := Run(context.Background(), r, cut.New(), Options{
		Take:        take.Options{Adapter: okAdapter{}, Sleep: func(time.Duration) {}},
		Interactive: func(reel.Entry) Decision { return Abort },
	})

	if rpt.Passed {
		t.Fatal("Run.Passed = true, want false (aborted)")
	}
	if rpt.Err == nil {
		t.Fatal("Run.Err = nil, want abort error")
	}
}
