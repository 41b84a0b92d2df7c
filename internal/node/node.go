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

// Package node implements node liveness tracking: each live Node
// holds an advisory exclusive flock on a witness file it creates under
// the configured node directory; other processes probe that lock to tell
// an alive node from a dead one without a heartbeat protocol.
package node

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/iox2go/iceoryx2/internal/config"
	"github.com/iox2go/iceoryx2/internal/logging"
	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

// State classifies a witness file found during enumeration.
type State int

const (
	// StateAlive means the owning process still holds the lock.
	StateAlive State = iota
	// StateDead means the lock is free: the owner exited without
	// cleaning up, and its resources are eligible for removal.
	StateDead
	// StateInaccessible means the witness file could not be probed
	// (e.g. permissions), so its liveness cannot be determined.
	StateInaccessible
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "Alive"
	case StateDead:
		return "Dead"
	default:
		return "Inaccessible"
	}
}

// ErrClosed is returned by operations on a Node after Close.
var ErrClosed = errors.New("node: already closed")

// Node is a live participant witness: a held flock lease on a file named
// after this process's NodeId.
type Node struct {
	ID   uniqueid.NodeId
	Name string

	cfg  *config.Config
	path string
	file *os.File
}

// New creates and locks this process's witness file. The file remains
// locked for the Node's lifetime; Close unlocks and removes it.
func New(cfg *config.Config, name string) (*Node, error) {
	if err := os.MkdirAll(cfg.NodeDir, 0o755); err != nil {
		return nil, err
	}
	id := uniqueid.NewNodeId()
	path := filepath.Join(cfg.NodeDir, fmt.Sprintf("iox2_%s.node", id.String()))

	mode := os.FileMode(0o644)
	if cfg.DevPermissions {
		mode = 0o666
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, mode)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("node: acquire witness lock: %w", err)
	}
	if _, err := f.WriteString(name); err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		os.Remove(path)
		return nil, err
	}

	logging.Default().Debug("node created", "id", id.String(), "name", name)
	return &Node{ID: id, Name: name, cfg: cfg, path: path, file: f}, nil
}

// Close releases the witness lock and removes the witness file.
func (n *Node) Close() error {
	if n.file == nil {
		return nil
	}
	unix.Flock(int(n.file.Fd()), unix.LOCK_UN)
	err := n.file.Close()
	n.file = nil
	if rerr := os.Remove(n.path); rerr != nil && !os.IsNotExist(rerr) && err == nil {
		err = rerr
	}
	return err
}

// Entry describes one witness file found by List.
type Entry struct {
	ID    uniqueid.NodeId
	Name  string
	State State
	Path  string
}

// List enumerates every node witness file under cfg.NodeDir and probes
// each one's liveness by attempting a non-blocking exclusive flock: if
// the probe succeeds the owner is gone (StateDead), if it fails with
// EWOULDBLOCK the owner still holds the lock (StateAlive).
func List(cfg *config.Config) ([]Entry, error) {
	entries, err := os.ReadDir(cfg.NodeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Entry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(cfg.NodeDir, e.Name())
		entry, err := probe(path)
		if err != nil {
			logging.Default().Warn("node witness inaccessible", "path", path, "error", err)
			out = append(out, Entry{Path: path, State: StateInaccessible})
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func probe(path string) (Entry, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	name, _ := os.ReadFile(path)

	state := StateAlive
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err == nil {
		state = StateDead
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
	} else if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN) {
		return Entry{}, err
	}

	id, _ := idFromWitnessPath(path)
	return Entry{ID: id, Name: string(name), State: state, Path: path}, nil
}

// idFromWitnessPath recovers the NodeId encoded in a witness file name
// of the form iox2_<hex>.node.
func idFromWitnessPath(path string) (uniqueid.NodeId, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "iox2_") || !strings.HasSuffix(base, ".node") {
		return uniqueid.NodeId{}, false
	}
	raw, err := hex.DecodeString(base[len("iox2_") : len(base)-len(".node")])
	if err != nil || len(raw) != 20 {
		return uniqueid.NodeId{}, false
	}
	var buf [20]byte
	copy(buf[:], raw)
	return uniqueid.DecodeNodeId(buf), true
}

// RemoveStale deletes the witness file for a node found to be StateDead.
// It re-probes the witness immediately before removing it and leaves it
// in place unless the re-probe still reports StateDead, which closes the
// race where the lock is taken again between List and RemoveStale; this
// matches the best-effort cleanup contract.
func RemoveStale(entry Entry) (bool, error) {
	reprobed, err := probe(entry.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if reprobed.State != StateDead {
		return false, nil
	}
	if err := os.Remove(entry.Path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
