// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "darkroom.yaml")
	if err := os.WriteFile(path, []byte("transport:\n  insecure_tls: true\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Transport.InsecureTLS {
		t.Errorf("InsecureTLS = false, want true")
	}
	if cfg.Transport.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v, want 30s", cfg.Transport.DefaultTimeout)
	}
	if cfg.Source.Backend != "fs" {
		t.Errorf("Source.Backend = %q, want fs", cfg.Source.Backend)
	}
	if cfg.TakeStore.Backend != "file" {
		t.Errorf("TakeStore.Backend = %q, want file", cfg.TakeStore.Backend)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/darkroom.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Transport.DefaultTimeout != 30*time.Second {
		t.Errorf("DefaultTimeout = %v, want 30s", cfg.Transport.DefaultTimeout)
	}
}
