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

// Package uniqueid derives the identifiers used throughout the service
// core: deterministic service UUIDs, per-process
// NodeIds, and per-port unique ids.
package uniqueid

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/google/uuid"
)

// ServiceUUID derives the UUID that names both the static config file and
// the dynamic config segment for (name, pattern, configRoot). Collisions
// across unrelated processes are impossible by construction: the hash
// input fully determines the output and two processes naming the same
// (name, pattern, configRoot) tuple are, by definition, describing the
// same service.
func ServiceUUID(name, pattern, configRoot string) string {
	h := xxhash.New64()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(pattern))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(configRoot))
	return fmt.Sprintf("%016x", h.Sum64())
}

// NodeId is the process-wide participant identity: (unique_system_id, pid,
// creation_time).
type NodeId struct {
	UniqueSystemId uint64
	Pid            int32
	CreationTime   int64 // UnixNano
}

// NewNodeId derives a fresh NodeId for the current process. UniqueSystemId
// is randomized via google/uuid rather than derived from any host
// identifier, so that two nodes on the same host never collide even if
// started within the same nanosecond.
func NewNodeId() NodeId {
	u := uuid.New()
	return NodeId{
		UniqueSystemId: binary.BigEndian.Uint64(u[:8]),
		Pid:            int32(os.Getpid()),
		CreationTime:   time.Now().UnixNano(),
	}
}

// Encode serializes the NodeId into the fixed-width form used for the
// on-disk node-witness filename and the dynamic-config participant record.
func (n NodeId) Encode() [20]byte {
	var buf [20]byte
	binary.BigEndian.PutUint64(buf[0:8], n.UniqueSystemId)
	binary.BigEndian.PutUint32(buf[8:12], uint32(n.Pid))
	binary.BigEndian.PutUint64(buf[12:20], uint64(n.CreationTime))
	return buf
}

// DecodeNodeId is the inverse of Encode.
func DecodeNodeId(buf [20]byte) NodeId {
	return NodeId{
		UniqueSystemId: binary.BigEndian.Uint64(buf[0:8]),
		Pid:            int32(binary.BigEndian.Uint32(buf[8:12])),
		CreationTime:   int64(binary.BigEndian.Uint64(buf[12:20])),
	}
}

// String renders the NodeId as the hex string used in file names
// (`iox2_<node_id>.node`).
func (n NodeId) String() string {
	buf := n.Encode()
	return fmt.Sprintf("%x", buf)
}

// portCounter hands out the low bits of port ids so that ids created by
// the same process in the same nanosecond still differ.
var portCounter atomic.Uint64

// PortId is a system-wide unique identifier for a publisher, subscriber,
// notifier, or listener.
type PortId uint64

// NewPortId derives a fresh port id, unique within this NodeId's lifetime
// and, combined with the owning NodeId, unique system-wide.
func NewPortId(owner NodeId) PortId {
	seq := portCounter.Add(1)
	mixed := xxhash.Checksum64(append(ownerBytes(owner), encodeUint64(seq)...))
	return PortId(mixed)
}

func ownerBytes(n NodeId) []byte {
	buf := n.Encode()
	return buf[:]
}

func encodeUint64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
