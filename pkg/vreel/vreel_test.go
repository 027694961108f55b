// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package vreel

import (
	"context"
	"testing"

	"github.com/mkatychev/darkroom/pkg/errs"
	"github.com/mkatychev/darkroom/pkg/source/memory"
)

const vreelMinimalFrame = `{"protocol":"HTTP","request":{"uri":"GET /p"},"response":{"status":200}}`

func TestParseDescriptorMixedFrameEntries(t *testing.T) {
	data := []byte(`{
		"name": "onboarding",
		"frames": [
			"usr.01s.create.fr.json",
			{"name": "org", "path": "fixtures/org.01s.create.fr.json"}
		],
		"cut": {"ENV": "staging"}
	}`)

	d, err := ParseDescriptor(data)
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Name != "onboarding" {
		t.Errorf("Name = %q", d.Name)
	}
	if len(d.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(d.Frames))
	}
	if d.Frames[0].Path != "usr.01s.create.fr.json" || d.Frames[0].Name != "" {
		t.Errorf("Frames[0] = %+v", d.Frames[0])
	}
	if d.Frames[1].Path != "fixtures/org.01s.create.fr.json" || d.Frames[1].Name != "org" {
		t.Errorf("Frames[1] = %+v", d.Frames[1])
	}
	if d.Cut == nil {
		t.Fatal("Cut = nil, want parsed inline cut")
	}
	v, err := d.Cut.Read("ENV")
	if err != nil || v != "staging" {
		t.Errorf("Cut.Read(ENV) = %v, %v, want staging, nil", v, err)
	}
}

func TestParseDescriptorRequiresNonEmptyFrames(t *testing.T) {
	_, err := ParseDescriptor([]byte(`{"name": "x", "frames": []}`))
	if !errs.Is(err, errs.ReelLoad) {
		t.Errorf("err = %v, want errs.ReelLoad", err)
	}
}

func TestParseDescriptorRejectsBadFrameEntry(t *testing.T) {
	_, err := ParseDescriptor([]byte(`{"name": "x", "frames": [42]}`))
	if !errs.Is(err, errs.ReelLoad) {
		t.Errorf("err = %v, want errs.ReelLoad", err)
	}
}

func TestLoadPreservesDeclaredOrderAcrossReels(t *testing.T) {
	src := memory.New()
	src.Put("fixtures", "org.02s.create.fr.json", []byte(vreelMinimalFrame))
	src.Put("fixtures", "usr.01s.create.fr.json", []byte(vreelMinimalFrame))
	src.Put("fixtures", "onboarding.vr.json", []byte(`{
		"name": "onboarding",
		"frames": ["org.02s.create.fr.json", "usr.01s.create.fr.json"]
	}`))

	vr, err := Load(context.Background(), src, "fixtures", "onboarding.vr.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(vr.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(vr.Entries))
	}
	// Declared order (org first, despite its higher whole-sequence number)
	// must survive, unlike reel.Load's ordering-key sort.
	if vr.Entries[0].Filename.Reel != "org" || vr.Entries[1].Filename.Reel != "usr" {
		t.Errorf("Entries order = [%s, %s], want [org, usr]",
			vr.Entries[0].Filename.Reel, vr.Entries[1].Filename.Reel)
	}
}

func TestLoadResolvesBarePathsAgainstDescriptorDir(t *testing.T) {
	src := memory.New()
	src.Put("fixtures", "usr.01s.create.fr.json", []byte(vreelMinimalFrame))
	src.Put("fixtures", "onboarding.vr.json", []byte(`{
		"name": "onboarding",
		"frames": ["usr.01s.create.fr.json"]
	}`))

	vr, err := Load(context.Background(), src, "fixtures", "onboarding.vr.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(vr.Entries) != 1 {
		t.Fatalf("len(Entries) = %d, want 1", len(vr.Entries))
	}
}

func TestAsReelExposesUnsortedEntries(t *testing.T) {
	src := memory.New()
	src.Put("fixtures", "org.02s.create.fr.json", []byte(vreelMinimalFrame))
	src.Put("fixtures", "usr.01s.create.fr.json", []byte(vreelMinimalFrame))
	src.Put("fixtures", "onboarding.vr.json", []byte(`{
		"name": "onboarding",
		"frames": ["org.02s.create.fr.json", "usr.01s.create.fr.json"]
	}`))

	vr, err := Load(context.Background(), src, "fixtures", "onboarding.vr.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := vr.AsReel()
	if r.Name != "onboarding" || len(r.Entries) != 2 {
		t.Fatalf("AsReel() = %+v", r)
	}
}
