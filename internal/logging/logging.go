// Copyright (c) 2024 Contributors to the Eclipse Foundation
//
// See the NOTICE file(s) distributed with this work for additional
// information regarding copyright ownership.
//
// This program and the accompanying materials are made available under the
// terms of the Apache Software License 2.0 which is available at
// https://www.apache.org/licenses/LICENSE-2.0, or the MIT license
// which is available at https://opensource.org/licenses/MIT.
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package logging provides the process-wide slog singleton used across the
// service core. There are no per-component loggers: every package logs
// through Default().
package logging

import (
	"log/slog"
	"os"
	"sync"
)

// Level mirrors the IOX2_LOG_LEVEL environment variable's vocabulary.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarning
	LevelError
	LevelFatal
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelTrace, LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// ParseLevel parses IOX2_LOG_LEVEL. Unrecognized values are reported via
// ok=false; the caller must ignore them rather than fail.
func ParseLevel(s string) (level Level, ok bool) {
	switch s {
	case "Trace":
		return LevelTrace, true
	case "Debug":
		return LevelDebug, true
	case "Info":
		return LevelInfo, true
	case "Warning":
		return LevelWarning, true
	case "Error":
		return LevelError, true
	case "Fatal":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

var (
	mu      sync.RWMutex
	def     *slog.Logger
	didInit bool
)

// Default returns the process-wide logger, initializing it with first-writer-wins
// semantics on first use.
func Default() *slog.Logger {
	mu.RLock()
	if didInit {
		defer mu.RUnlock()
		return def
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if !didInit {
		def = newDefault()
		didInit = true
	}
	return def
}

func newDefault() *slog.Logger {
	level := LevelInfo
	if raw, set := os.LookupEnv("IOX2_LOG_LEVEL"); set {
		if parsed, ok := ParseLevel(raw); ok {
			level = parsed
		}
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level.slogLevel()})
	return slog.New(handler)
}

// SetDefault overrides the default logger. Used by tests and by SetLevel.
func SetDefault(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	def = l
	didInit = true
}

// SetLevel rebuilds the process-wide logger at the given level, the
// programmatic counterpart to IOX2_LOG_LEVEL.
func SetLevel(level Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level.slogLevel()})
	SetDefault(slog.New(handler))
}

// ResetForTest clears the init-once state so the next Default() call
// re-reads IOX2_LOG_LEVEL. Tests must call this after mutating the
// environment; production code never calls it.
func ResetForTest() {
	mu.Lock()
	defer mu.Unlock()
	def = nil
	didInit = false
}
