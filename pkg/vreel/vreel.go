// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package vreel implements the filmReel VirtualReel: a synthetic Reel
// assembled from Frame files drawn from arbitrary paths — possibly several
// different reels — in a declared order, with an inline Cut that overrides
// the standard register build for that run only.
package vreel

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/mkatychev/darkroom/pkg/cut"
	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/frame"
	"github.com/mkatychev/darkroom/pkg/jsonval"
	"github.com/mkatychev/darkroom/pkg/reel"
	"github.com/mkatychev/darkroom/pkg/source"
)

// FrameRef is one entry of a descriptor's "frames" list: a bare path
// string, or an object pairing a display name with a path.
type FrameRef struct {
	Name string // optional display name; empty for a bare path string entry
	Path string
}

// Descriptor is the parsed contents of a "*.vr.json" file.
type Descriptor struct {
	Name   string
	Frames []FrameRef
	Cut    *cut.Register // nil if the descriptor carries no inline cut
}

// ParseDescriptor decodes a VirtualReel descriptor. Each frames entry may
// be a bare path string or {"name":..., "path":...} object.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var raw struct {
		Name   string            `json:"name"`
		Frames []json.RawMessage `json:"frames"`
		Cut    *jsonval.Object   `json:"cut"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.New(errs.ReelLoad, "parse virtual reel descriptor", err)
	}
	if raw.Name == "" {
		return nil, errs.New(errs.ReelLoad, "parse virtual reel descriptor", fmt.Errorf("missing \"name\""))
	}

	d := &Descriptor{Name: raw.Name}
	for i, rawFrame := range raw.Frames {
		ref, err := parseFrameRef(rawFrame)
		if err != nil {
			return nil, errs.New(errs.ReelLoad, fmt.Sprintf("parse virtual reel descriptor frames[%d]", i), err)
		}
		d.Frames = append(d.Frames, ref)
	}
	if len(d.Frames) == 0 {
		return nil, errs.New(errs.ReelLoad, "parse virtual reel descriptor", fmt.Errorf("\"frames\" must be non-empty"))
	}

	if raw.Cut != nil {
		reg := cut.New()
		for _, k := range raw.Cut.Keys() {
			v, _ := raw.Cut.Get(k)
			if err := reg.Write(k, v); err != nil {
				return nil, err
			}
		}
		d.Cut = reg
	}

	return d, nil
}

func parseFrameRef(raw json.RawMessage) (FrameRef, error) {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return FrameRef{Path: asString}, nil
	}

	var asObject struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return FrameRef{}, fmt.Errorf("frame entry must be a path string or {name,path} object: %w", err)
	}
	if asObject.Path == "" {
		return FrameRef{}, fmt.Errorf("frame entry object missing \"path\"")
	}
	return FrameRef{Name: asObject.Name, Path: asObject.Path}, nil
}

// VirtualReel is a synthetic Reel: Entries run in descriptor declaration
// order, never re-sorted by ordering key, since its Frames may be drawn
// from several unrelated reels.
type VirtualReel struct {
	Name    string
	Entries []reel.Entry
	Cut     *cut.Register // nil if the descriptor carried no inline cut
}

// Load reads the descriptor at dir/name from src, then reads and parses
// every referenced Frame file, preserving declared order. A path with a
// directory part is read from that directory of src; a bare filename is
// read from the descriptor's own dir.
func Load(ctx context.Context, src source.ReelSource, dir, name string) (*VirtualReel, error) {
	data, err := src.ReadFile(ctx, dir, name)
	if err != nil {
		return nil, errs.New(errs.ReelLoad, fmt.Sprintf("read virtual reel descriptor %q", name), err)
	}
	desc, err := ParseDescriptor(data)
	if err != nil {
		return nil, err
	}

	vr := &VirtualReel{Name: desc.Name, Cut: desc.Cut}
	for _, ref := range desc.Frames {
		frameDir, frameName := splitPath(ref.Path)
		if frameDir == "" {
			frameDir = dir
		}
		frameData, err := src.ReadFile(ctx, frameDir, frameName)
		if err != nil {
			return nil, errs.New(errs.ReelLoad, fmt.Sprintf("read virtual reel frame %q", ref.Path), err)
		}
		fn, err := frame.ParseFilename(frameName)
		if err != nil {
			return nil, err
		}
		f, err := frame.Parse(frameData)
		if err != nil {
			return nil, err
		}
		f.Filename = fn
		vr.Entries = append(vr.Entries, reel.Entry{Filename: fn, Frame: f})
	}

	return vr, nil
}

// splitPath divides a descriptor path into the directory and filename a
// source.ReelSource expects, tolerating both "dir/name" and a bare "name"
// resolved against the descriptor's own directory.
func splitPath(p string) (dir, name string) {
	dir, name = path.Split(p)
	return strings.TrimSuffix(dir, "/"), name
}

// AsReel exposes vr as a reel.Reel so it can be fed to the Reel Player
// unmodified, with no range and no component prelude.
func (vr *VirtualReel) AsReel() *reel.Reel {
	return &reel.Reel{Name: vr.Name, Entries: vr.Entries}
}
