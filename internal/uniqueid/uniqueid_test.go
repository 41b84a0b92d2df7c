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

package uniqueid

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceUUIDIsDeterministic(t *testing.T) {
	a := ServiceUUID("my/service", "PublishSubscribe", "/tmp/root")
	b := ServiceUUID("my/service", "PublishSubscribe", "/tmp/root")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestServiceUUIDSeparatesComponents(t *testing.T) {
	base := ServiceUUID("my/service", "PublishSubscribe", "/tmp/root")
	assert.NotEqual(t, base, ServiceUUID("my/service2", "PublishSubscribe", "/tmp/root"))
	assert.NotEqual(t, base, ServiceUUID("my/service", "Event", "/tmp/root"))
	assert.NotEqual(t, base, ServiceUUID("my/service", "PublishSubscribe", "/tmp/other"))

	// The separator prevents ambiguous concatenations from colliding.
	assert.NotEqual(t,
		ServiceUUID("ab", "c", "/root"),
		ServiceUUID("a", "bc", "/root"))
}

func TestNodeIdEncodeDecodeRoundTrip(t *testing.T) {
	id := NewNodeId()
	assert.EqualValues(t, os.Getpid(), id.Pid)

	decoded := DecodeNodeId(id.Encode())
	assert.Equal(t, id, decoded)
}

func TestNodeIdsAreUnique(t *testing.T) {
	seen := map[NodeId]struct{}{}
	for i := 0; i < 100; i++ {
		id := NewNodeId()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestNodeIdStringIsStableHex(t *testing.T) {
	id := NewNodeId()
	s := id.String()
	assert.Len(t, s, 40)
	assert.Equal(t, s, id.String())
}

func TestPortIdsAreUnique(t *testing.T) {
	owner := NewNodeId()
	seen := map[PortId]struct{}{}
	for i := 0; i < 1000; i++ {
		id := NewPortId(owner)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
