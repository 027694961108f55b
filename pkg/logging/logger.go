// Copyright Darkroom Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging provides the ambient logger used across every darkroom
// package that can fail mid-Reel: Frame dispatch, retries, and Reel
// completion all log through this wrapper rather than fmt.Println.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Config configures the ambient logger.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
	Output io.Writer
}

// Logger wraps slog.Logger so call sites depend on this package, not
// log/slog directly, keeping the handler construction in one place.
type Logger struct {
	*slog.Logger
}

// Nop is a Logger that discards everything, used where tests or library
// callers don't want to wire a real sink.
var Nop = New(Config{Output: io.Discard})

// New builds a Logger from cfg. An empty Level defaults to "info"; an empty
// Format defaults to text.
func New(cfg Config) *Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithFrame returns a child logger annotated with the Frame identifier and
// ordering key, used by the Take executor and Reel player so every log line
// in a run can be traced back to the Frame that produced it.
func (l *Logger) WithFrame(filename, ordering string) *Logger {
	return &Logger{Logger: l.Logger.With("frame", filename, "ordering", ordering)}
}
