// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/mkatychev/darkroom/pkg/errs"
)

// Type is the Frame-type component of a Frame Filename: success, error, or
// post-success-error.
type Type string

const (
	TypeError            Type = "e"
	TypeSuccess          Type = "s"
	TypePostSuccessError Type = "se"
)

// rank orders Types for the ordering key: errors precede the success they
// guard, and post-success-errors trail it.
func (t Type) rank() int {
	switch t {
	case TypeError:
		return 0
	case TypeSuccess:
		return 1
	case TypePostSuccessError:
		return 2
	default:
		return -1
	}
}

var filenamePattern = regexp.MustCompile(`^(.+)\.(\d+)(se|s|e)(?:_(\d+))?\.([^.]+)\.fr\.json$`)

// Filename is the parsed metadata carried by a Frame Filename:
// "<reel>.<seq><type>[_<sub>].<command>.fr.json".
type Filename struct {
	Raw     string
	Reel    string
	Seq     int
	Type    Type
	Sub     int
	Command string
}

// ParseFilename parses name (the base name, not a full path) into its
// reel, ordering, and command components. A name that does not match the
// Frame Filename grammar is a ReelLoad error.
func ParseFilename(name string) (*Filename, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, errs.New(errs.ReelLoad, fmt.Sprintf("parse filename %q", name), fmt.Errorf("does not match <reel>.<seq><type>[_<sub>].<command>.fr.json"))
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, errs.New(errs.ReelLoad, fmt.Sprintf("parse filename %q", name), fmt.Errorf("invalid sequence number: %w", err))
	}
	sub := 0
	if m[4] != "" {
		sub, err = strconv.Atoi(m[4])
		if err != nil {
			return nil, errs.New(errs.ReelLoad, fmt.Sprintf("parse filename %q", name), fmt.Errorf("invalid sub index: %w", err))
		}
	}
	return &Filename{
		Raw:     name,
		Reel:    m[1],
		Seq:     seq,
		Type:    Type(m[3]),
		Sub:     sub,
		Command: m[5],
	}, nil
}

// OrderingKey returns the (seq, type_rank, sub) tuple used to sort Frames
// within a Reel and as the identity used for duplicate detection.
func (f *Filename) OrderingKey() (seq, typeRank, sub int) {
	return f.Seq, f.Type.rank(), f.Sub
}

// String renders the ordering key in the "(seq,type,sub)" form used in
// diagnostics.
func (f *Filename) String() string {
	return fmt.Sprintf("(%d,%s,%d)", f.Seq, f.Type, f.Sub)
}

// Less reports whether f sorts before g under the ordering key.
func Less(f, g *Filename) bool {
	fSeq, fRank, fSub := f.OrderingKey()
	gSeq, gRank, gSub := g.OrderingKey()
	if fSeq != gSeq {
		return fSeq < gSeq
	}
	if fRank != gRank {
		return fRank < gRank
	}
	return fSub < gSub
}

// SameOrdering reports whether f and g share the same (seq,type,sub)
// triple, the condition that makes two Frames in one Reel a duplicate.
func SameOrdering(f, g *Filename) bool {
	fSeq, fRank, fSub := f.OrderingKey()
	gSeq, gRank, gSub := g.OrderingKey()
	return fSeq == gSeq && fRank == gRank && fSub == gSub
}
