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

package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

func testShared(t *testing.T, caps Capacities) *SharedDynamic {
	t.Helper()
	d, err := NewSharedDynamic(make([]byte, SharedDynamicSize(caps)), caps)
	require.NoError(t, err)
	return d
}

func defaultCaps() Capacities {
	return Capacities{Nodes: 4, Publishers: 4, Subscribers: 4, Notifiers: 2, Listeners: 2}
}

func TestSharedDynamicRejectsUndersizedBuffer(t *testing.T) {
	caps := defaultCaps()
	_, err := NewSharedDynamic(make([]byte, SharedDynamicSize(caps)-1), caps)
	require.Error(t, err)
}

func TestSharedNodeRefCounting(t *testing.T) {
	d := testShared(t, defaultCaps())
	id := uniqueid.NewNodeId()

	require.NoError(t, d.AddNode(id))
	require.NoError(t, d.AddNode(id))
	assert.Equal(t, 1, d.NodeCount(), "same node registers once")

	d.RemoveNode(id)
	assert.Equal(t, 1, d.NodeCount())
	d.RemoveNode(id)
	assert.Equal(t, 0, d.NodeCount())

	// Removing an unknown node is a no-op.
	d.RemoveNode(uniqueid.NewNodeId())
	assert.Equal(t, 0, d.NodeCount())
}

func TestSharedNodeCapacity(t *testing.T) {
	d := testShared(t, Capacities{Nodes: 2, Publishers: 1, Subscribers: 1, Notifiers: 1, Listeners: 1})
	require.NoError(t, d.AddNode(uniqueid.NewNodeId()))
	require.NoError(t, d.AddNode(uniqueid.NewNodeId()))
	require.ErrorIs(t, d.AddNode(uniqueid.NewNodeId()), ErrDynamicConfigFull)
}

func TestSharedPortRecordsRoundTrip(t *testing.T) {
	d := testShared(t, defaultCaps())
	owner := uniqueid.NewNodeId()
	pub := uniqueid.NewPortId(owner)
	sub := uniqueid.NewPortId(owner)

	gen := d.Generation()
	require.NoError(t, d.AddPort(PortKindPublisher, SharedPortRecord{PortID: pub, NodeID: owner, Param: 16}))
	require.NoError(t, d.AddPort(PortKindSubscriber, SharedPortRecord{PortID: sub, NodeID: owner, Param: 8}))
	assert.Greater(t, d.Generation(), gen)

	pubs := d.Ports(PortKindPublisher)
	require.Len(t, pubs, 1)
	assert.Equal(t, pub, pubs[0].PortID)
	assert.Equal(t, owner, pubs[0].NodeID)
	assert.EqualValues(t, 16, pubs[0].Param)

	subs := d.Ports(PortKindSubscriber)
	require.Len(t, subs, 1)
	assert.EqualValues(t, 8, subs[0].Param)
	assert.Equal(t, 1, d.CountPorts(PortKindSubscriber))

	d.RemovePort(PortKindPublisher, pub)
	assert.Empty(t, d.Ports(PortKindPublisher))
	// Idempotent.
	d.RemovePort(PortKindPublisher, pub)
	assert.Equal(t, 0, d.CountPorts(PortKindPublisher))
}

func TestSharedPortCapacity(t *testing.T) {
	d := testShared(t, Capacities{Nodes: 1, Publishers: 2, Subscribers: 1, Notifiers: 1, Listeners: 1})
	owner := uniqueid.NewNodeId()

	require.NoError(t, d.AddPort(PortKindPublisher, SharedPortRecord{PortID: uniqueid.NewPortId(owner), NodeID: owner}))
	require.NoError(t, d.AddPort(PortKindPublisher, SharedPortRecord{PortID: uniqueid.NewPortId(owner), NodeID: owner}))
	require.ErrorIs(t,
		d.AddPort(PortKindPublisher, SharedPortRecord{PortID: uniqueid.NewPortId(owner), NodeID: owner}),
		ErrDynamicConfigFull)

	// A freed slot becomes claimable again.
	pubs := d.Ports(PortKindPublisher)
	d.RemovePort(PortKindPublisher, pubs[0].PortID)
	require.NoError(t, d.AddPort(PortKindPublisher, SharedPortRecord{PortID: uniqueid.NewPortId(owner), NodeID: owner}))
}

func TestSharedConcurrentRegistration(t *testing.T) {
	const workers = 8
	d := testShared(t, Capacities{Nodes: workers, Publishers: workers, Subscribers: 1, Notifiers: 1, Listeners: 1})

	var wg sync.WaitGroup
	ids := make([]uniqueid.PortId, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := uniqueid.NewNodeId()
			ids[i] = uniqueid.NewPortId(owner)
			assert.NoError(t, d.AddPort(PortKindPublisher, SharedPortRecord{PortID: ids[i], NodeID: owner}))
		}(i)
	}
	wg.Wait()

	recs := d.Ports(PortKindPublisher)
	require.Len(t, recs, workers)
	seen := map[uniqueid.PortId]bool{}
	for _, rec := range recs {
		seen[rec.PortID] = true
	}
	for _, id := range ids {
		assert.True(t, seen[id], "record for %x lost in concurrent registration", uint64(id))
	}
}

func TestSharedRemoveNodePorts(t *testing.T) {
	d := testShared(t, defaultCaps())
	dead := uniqueid.NewNodeId()
	alive := uniqueid.NewNodeId()

	deadPub := uniqueid.NewPortId(dead)
	require.NoError(t, d.AddPort(PortKindPublisher, SharedPortRecord{PortID: deadPub, NodeID: dead}))
	require.NoError(t, d.AddPort(PortKindListener, SharedPortRecord{PortID: uniqueid.NewPortId(dead), NodeID: dead}))
	alivePub := uniqueid.NewPortId(alive)
	require.NoError(t, d.AddPort(PortKindPublisher, SharedPortRecord{PortID: alivePub, NodeID: alive}))

	removed := d.RemoveNodePorts(dead)
	require.Len(t, removed[PortKindPublisher], 1)
	assert.Equal(t, deadPub, removed[PortKindPublisher][0].PortID)
	require.Len(t, removed[PortKindListener], 1)

	// The live node's record survives.
	pubs := d.Ports(PortKindPublisher)
	require.Len(t, pubs, 1)
	assert.Equal(t, alivePub, pubs[0].PortID)

	// Idempotent.
	assert.Empty(t, d.RemoveNodePorts(dead))
}

func TestSharedIsUnused(t *testing.T) {
	d := testShared(t, defaultCaps())
	assert.True(t, d.IsUnused())

	node := uniqueid.NewNodeId()
	require.NoError(t, d.AddNode(node))
	assert.False(t, d.IsUnused())
	d.RemoveNode(node)
	assert.True(t, d.IsUnused())

	pub := uniqueid.NewPortId(node)
	require.NoError(t, d.AddPort(PortKindPublisher, SharedPortRecord{PortID: pub, NodeID: node}))
	assert.False(t, d.IsUnused())
	d.RemovePort(PortKindPublisher, pub)
	assert.True(t, d.IsUnused())
}

func TestSharedViewsObserveEachOther(t *testing.T) {
	// Two views over the same bytes model two processes mapping the same
	// dynamic segment.
	caps := defaultCaps()
	buf := make([]byte, SharedDynamicSize(caps))
	a, err := NewSharedDynamic(buf, caps)
	require.NoError(t, err)
	b, err := NewSharedDynamic(buf, caps)
	require.NoError(t, err)

	owner := uniqueid.NewNodeId()
	pub := uniqueid.NewPortId(owner)
	gen := b.Generation()
	require.NoError(t, a.AddPort(PortKindPublisher, SharedPortRecord{PortID: pub, NodeID: owner, Param: 4}))

	recs := b.Ports(PortKindPublisher)
	require.Len(t, recs, 1)
	assert.Equal(t, pub, recs[0].PortID)
	assert.Greater(t, b.Generation(), gen)
}
