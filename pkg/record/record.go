// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package record implements the filmReel Reel Player: sequencing a loaded
// Reel's Frames through the Frame Executor in ordering-key order, with a
// component-reel prelude, range gating, and interactive step gating.
package record

import (
	"context"
	"fmt"

	"github.com/mkatychev/darkroom/pkg/cut"
	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/logging"
	"github.com/mkatychev/darkroom/pkg/reel"
	"github.com/mkatychev/darkroom/pkg/take"
)

// Decision is what an interactive gate returns for the Frame about to
// run.
type Decision int

const (
	Proceed Decision = iota
	Skip
	Abort
)

// Options configures a Player run.
type Options struct {
	Take        take.Options
	Range       *Range // nil means unbounded: every Frame in r runs
	Components  []*reel.Reel
	Interactive func(entry reel.Entry) Decision // nil means always Proceed
	Logger      *logging.Logger
}

// Range gates execution to Frames whose whole sequence number falls in
// [Lo, Hi]. Use NoBound for an unset end of the range.
type Range struct {
	Lo, Hi int
}

// NoBound disables one end of a Range.
const NoBound = -1

// Report is the outcome of a full Reel run.
type Report struct {
	Passed  bool
	Ran     []reel.Entry
	Skipped []reel.Entry
	Outcome map[string]*take.Outcome // keyed by ordering key string
	Err     error
	Cut     *cut.Register
}

// Run executes r's Frames (after prepending any component reels' success
// Frames) against reg in ordering-key order, stopping at the first
// failure. Frames outside opts.Range are skipped without mutating reg.
func Run(ctx context.Context, r *reel.Reel, reg *cut.Register, opts Options) *Report {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop
	}

	rpt := &Report{Outcome: map[string]*take.Outcome{}, Cut: reg}

	var plan []reel.Entry
	for _, comp := range opts.Components {
		plan = append(plan, comp.SuccessFrames()...)
	}

	lo, hi := NoBound, NoBound
	if opts.Range != nil {
		lo, hi = opts.Range.Lo, opts.Range.Hi
	}
	plan = append(plan, r.InRange(lo, hi)...)

	inRangeSet := map[string]bool{}
	for _, e := range plan {
		inRangeSet[e.Filename.String()] = true
	}
	for _, e := range r.Entries {
		if !inRangeSet[e.Filename.String()] {
			rpt.Skipped = append(rpt.Skipped, e)
		}
	}

	for _, entry := range plan {
		if opts.Interactive != nil {
			switch opts.Interactive(entry) {
			case Skip:
				rpt.Skipped = append(rpt.Skipped, entry)
				continue
			case Abort:
				rpt.Err = errs.New(errs.Transport, "interactive abort", fmt.Errorf("aborted before %s", entry.Filename.String()))
				return rpt
			}
		}

		logger.Info("take", "frame", entry.Filename.Raw, "ordering", entry.Filename.String())
		outcome := take.Execute(ctx, entry.Frame, reg, opts.Take)
		rpt.Outcome[entry.Filename.String()] = outcome
		rpt.Ran = append(rpt.Ran, entry)

		if outcome.Err != nil {
			rpt.Err = outcome.Err
			return rpt
		}
	}

	rpt.Passed = true
	return rpt
}
