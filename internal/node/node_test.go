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

package node

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iox2go/iceoryx2/internal/config"
	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	base := t.TempDir()
	cfg.ServiceDir = filepath.Join(base, "services")
	cfg.NodeDir = filepath.Join(base, "nodes")
	cfg.DataSegmentDir = filepath.Join(base, "segments")
	return cfg
}

func TestNodeCreateAndClose(t *testing.T) {
	cfg := testConfig(t)

	n, err := New(cfg, "worker")
	require.NoError(t, err)
	assert.Equal(t, "worker", n.Name)
	assert.NotZero(t, n.ID.Pid)

	witness := filepath.Join(cfg.NodeDir, fmt.Sprintf("iox2_%s.node", n.ID.String()))
	_, statErr := os.Stat(witness)
	require.NoError(t, statErr)

	require.NoError(t, n.Close())
	_, statErr = os.Stat(witness)
	assert.True(t, os.IsNotExist(statErr), "witness removed on clean shutdown")
}

func TestListReportsOwnNodeAlive(t *testing.T) {
	cfg := testConfig(t)

	n, err := New(cfg, "alive-one")
	require.NoError(t, err)
	defer n.Close()

	entries, err := List(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StateAlive, entries[0].State)
	assert.Equal(t, "alive-one", entries[0].Name)
	assert.Equal(t, n.ID, entries[0].ID)
}

func TestListReportsUnlockedWitnessAsDead(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.NodeDir, 0o755))

	// A witness file nobody holds a lock on is what a crashed process
	// leaves behind.
	dead := uniqueid.NewNodeId()
	path := filepath.Join(cfg.NodeDir, fmt.Sprintf("iox2_%s.node", dead.String()))
	require.NoError(t, os.WriteFile(path, []byte("crashed"), 0o644))

	entries, err := List(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StateDead, entries[0].State)
	assert.Equal(t, dead, entries[0].ID)
}

func TestRemoveStaleOnlyRemovesDeadNodes(t *testing.T) {
	cfg := testConfig(t)

	live, err := New(cfg, "live")
	require.NoError(t, err)
	defer live.Close()

	dead := uniqueid.NewNodeId()
	deadPath := filepath.Join(cfg.NodeDir, fmt.Sprintf("iox2_%s.node", dead.String()))
	require.NoError(t, os.WriteFile(deadPath, []byte("gone"), 0o644))

	entries, err := List(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, entry := range entries {
		removed, err := RemoveStale(entry)
		require.NoError(t, err)
		assert.Equal(t, entry.State == StateDead, removed)
	}

	// Only the live witness remains.
	entries, err = List(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StateAlive, entries[0].State)
}

func TestRemoveStaleIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.NodeDir, 0o755))

	dead := uniqueid.NewNodeId()
	path := filepath.Join(cfg.NodeDir, fmt.Sprintf("iox2_%s.node", dead.String()))
	require.NoError(t, os.WriteFile(path, []byte("gone"), 0o644))

	entry := Entry{ID: dead, State: StateDead, Path: path}
	removed, err := RemoveStale(entry)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = RemoveStale(entry)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestListOnMissingDirectoryIsEmpty(t *testing.T) {
	cfg := testConfig(t)
	entries, err := List(cfg)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
