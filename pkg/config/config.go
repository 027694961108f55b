// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads darkroom.yaml, the global run defaults the CLI
// (out of scope for this module) overlays flags onto: transport timeouts
// and TLS/header fallback, which reel-source backend to read fixtures
// through, and which take-store backend records completed Takes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level darkroom.yaml document.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Source    SourceConfig    `yaml:"source"`
	TakeStore TakeStoreConfig `yaml:"take_store"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TransportConfig configures the Protocol Adapter fallback (spec.md §4.9).
type TransportConfig struct {
	DefaultTimeout time.Duration     `yaml:"default_timeout"`
	InsecureTLS    bool              `yaml:"insecure_tls"`
	HeaderFallback map[string]string `yaml:"header_fallback"`
	ProtoFiles     []string          `yaml:"proto_files"`
	ProtoDirs      []string          `yaml:"proto_dirs"`
}

// SourceConfig selects the Reel Source backend (SPEC_FULL.md §3.1).
type SourceConfig struct {
	Backend  string `yaml:"backend"` // "fs" (default), "s3", "memory"
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
}

// TakeStoreConfig selects the Take Store backend (SPEC_FULL.md §3.2).
type TakeStoreConfig struct {
	Backend string `yaml:"backend"` // "file" (default), "sqlite", "postgres"
	DSN     string `yaml:"dsn"`
}

// LoggingConfig configures the ambient logger (pkg/logging).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses a darkroom.yaml file at path, applying defaults to
// anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if v := os.Getenv("DARKROOM_TAKE_STORE_DSN"); v != "" {
		cfg.TakeStore.DSN = v
	}
	if v := os.Getenv("DARKROOM_SOURCE_S3_BUCKET"); v != "" {
		cfg.Source.S3Bucket = v
		if cfg.Source.Backend == "" {
			cfg.Source.Backend = "s3"
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no darkroom.yaml is present:
// a 30s transport timeout (spec.md §4.6 step 2), filesystem reel source,
// and file-backed take store (spec.md §6 "-o" semantics).
func Default() *Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Transport.DefaultTimeout == 0 {
		cfg.Transport.DefaultTimeout = 30 * time.Second
	}
	if cfg.Source.Backend == "" {
		cfg.Source.Backend = "fs"
	}
	if cfg.TakeStore.Backend == "" {
		cfg.TakeStore.Backend = "file"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
