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

package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"Trace", LevelTrace, true},
		{"Debug", LevelDebug, true},
		{"Info", LevelInfo, true},
		{"Warning", LevelWarning, true},
		{"Error", LevelError, true},
		{"Fatal", LevelFatal, true},
		{"warning", LevelInfo, false},
		{"nonsense", LevelInfo, false},
		{"", LevelInfo, false},
	}
	for _, tc := range cases {
		level, ok := ParseLevel(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, level, "input %q", tc.in)
	}
}

func TestDefaultRespectsEnvLevel(t *testing.T) {
	t.Setenv("IOX2_LOG_LEVEL", "Error")
	ResetForTest()
	defer ResetForTest()

	logger := Default()
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(nil, slog.LevelInfo))
	assert.True(t, logger.Enabled(nil, slog.LevelError))
}

func TestUnrecognizedEnvLevelIsIgnored(t *testing.T) {
	t.Setenv("IOX2_LOG_LEVEL", "Shouting")
	ResetForTest()
	defer ResetForTest()

	logger := Default()
	assert.True(t, logger.Enabled(nil, slog.LevelInfo))
}

func TestFirstWriterWins(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	first := Default()
	second := Default()
	assert.Same(t, first, second)
}

func TestSetDefaultOverrides(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, nil))
	SetDefault(custom)

	Default().Info("routed through custom handler")
	assert.Contains(t, buf.String(), "routed through custom handler")
}

func TestSetLevelRebuilds(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	SetLevel(LevelError)
	assert.False(t, Default().Enabled(nil, slog.LevelWarn))
	SetLevel(LevelDebug)
	assert.True(t, Default().Enabled(nil, slog.LevelDebug))
}
