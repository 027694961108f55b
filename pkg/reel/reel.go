// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package reel implements the filmReel Reel Loader: enumerating a
// directory (via a pluggable pkg/source.ReelSource) for the ".fr.json"
// files belonging to a named reel, parsing and sorting them by ordering
// key, detecting duplicate Frames, and loading the sibling
// "<reel>.cut.json" base Cut if present.
package reel

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mkatychev/darkroom/pkg/cut"
	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/frame"
	"github.com/mkatychev/darkroom/pkg/source"
	"github.com/tidwall/match"
)

// Entry pairs a parsed Frame with the filename metadata it was loaded
// from.
type Entry struct {
	Filename *frame.Filename
	Frame    *frame.Frame
}

// Reel is the ordered list of Frames sharing reel_name within a directory,
// plus its base Cut (from the "<reel>.cut.json" sibling, if any).
type Reel struct {
	Name    string
	Dir     string
	Entries []Entry
	BaseCut *cut.Register // nil if no sibling cut file exists
}

// Load enumerates dir (via src) for files matching "<name>.*.fr.json",
// parses and sorts them by ordering key, and loads "<name>.cut.json" as
// the base Cut if present. Duplicate (seq,type,sub) triples are a
// ReelLoad error.
func Load(ctx context.Context, src source.ReelSource, dir, name string) (*Reel, error) {
	names, err := src.List(ctx, dir)
	if err != nil {
		return nil, errs.New(errs.ReelLoad, fmt.Sprintf("list reel %q in %q", name, dir), err)
	}

	pattern := name + ".*.fr.json"
	var entries []Entry
	for _, fname := range names {
		if !match.Match(fname, pattern) {
			continue
		}
		fn, err := frame.ParseFilename(fname)
		if err != nil {
			return nil, err
		}
		if fn.Reel != name {
			continue
		}
		data, err := src.ReadFile(ctx, dir, fname)
		if err != nil {
			return nil, errs.New(errs.ReelLoad, fmt.Sprintf("read frame %q", fname), err)
		}
		f, err := frame.Parse(data)
		if err != nil {
			return nil, err
		}
		f.Filename = fn
		entries = append(entries, Entry{Filename: fn, Frame: f})
	}

	if err := checkDuplicates(entries); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return frame.Less(entries[i].Filename, entries[j].Filename)
	})

	r := &Reel{Name: name, Dir: dir, Entries: entries}

	cutName := name + ".cut.json"
	for _, fname := range names {
		if fname == cutName {
			data, err := src.ReadFile(ctx, dir, fname)
			if err != nil {
				return nil, errs.New(errs.ReelLoad, fmt.Sprintf("read base cut %q", fname), err)
			}
			reg, err := cut.FromJSON(data)
			if err != nil {
				return nil, err
			}
			r.BaseCut = reg
			break
		}
	}

	return r, nil
}

func checkDuplicates(entries []Entry) error {
	seen := map[string]string{} // ordering key -> first filename seen
	for _, e := range entries {
		key := e.Filename.String()
		if prior, exists := seen[key]; exists {
			return errs.New(errs.ReelLoad, fmt.Sprintf("duplicate ordering %s", key),
				fmt.Errorf("%q and %q both claim ordering %s", prior, e.Filename.Raw, key))
		}
		seen[key] = e.Filename.Raw
	}
	return nil
}

// SuccessFrames returns only the s-type Entries of r, in order — the set
// a component reel contributes to another Reel's prelude.
func (r *Reel) SuccessFrames() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Filename.Type == frame.TypeSuccess {
			out = append(out, e)
		}
	}
	return out
}

// InRange returns the subset of r.Entries whose whole sequence number
// falls within [lo, hi] inclusive. lo<0 or hi<0 disables that bound.
func (r *Reel) InRange(lo, hi int) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if lo >= 0 && e.Filename.Seq < lo {
			continue
		}
		if hi >= 0 && e.Filename.Seq > hi {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ParseComponentSpec parses a "--component" argument of the form
// "<dir>&<reel>" into its directory and reel name.
func ParseComponentSpec(spec string) (dir, name string, err error) {
	parts := strings.SplitN(spec, "&", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("component spec %q must be \"<dir>&<reel>\"", spec)
	}
	return parts[0], parts[1], nil
}
