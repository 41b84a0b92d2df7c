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
	"sync/atomic"

	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

// PortRecord is one live port's membership in a service's dynamic
// config: the participant set every port-factory operation consults to
// decide when a node's resources need cleaning up.
type PortRecord struct {
	PortID uniqueid.PortId
	NodeID uniqueid.NodeId
}

// DynamicConfig tracks the live participants and ports this process has
// registered for a service. It is held process-locally and guarded by a
// mutex, since mutation only ever happens through this Registry's
// in-process API. The cross-process membership of an inter-process
// service lives in its shared iox2_<uuid>.dynamic segment instead (see
// SharedDynamic).
type DynamicConfig struct {
	UUID string

	mu          sync.Mutex
	generation  uint64
	publishers  []PortRecord
	subscribers []PortRecord
	notifiers   []PortRecord
	listeners   []PortRecord
	nodes       map[uniqueid.NodeId]struct{}

	activePorts atomic.Int64
}

func newDynamicConfig(uuid string) *DynamicConfig {
	return &DynamicConfig{
		UUID:  uuid,
		nodes: make(map[uniqueid.NodeId]struct{}),
	}
}

// Dynamic returns (creating if absent) the in-process dynamic config for
// a service UUID. Cross-process discovery of the live participant set
// goes through the service's SharedDynamic segment, not this map.
func (r *Registry) Dynamic(uuid string) *DynamicConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.dyns[uuid]
	if !ok {
		d = newDynamicConfig(uuid)
		r.dyns[uuid] = d
	}
	return d
}

// Generation returns the current structural-change counter, bumped on
// every register/unregister so waiters can detect membership changes
// without holding the lock continuously.
func (d *DynamicConfig) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// RegisterNode adds a node to the live participant set.
func (d *DynamicConfig) RegisterNode(id uniqueid.NodeId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[id] = struct{}{}
	d.generation++
}

// UnregisterNode removes a node and all port records it owns.
func (d *DynamicConfig) UnregisterNode(id uniqueid.NodeId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.nodes, id)
	removed := 0
	d.publishers, removed = removeOwnedBy(d.publishers, id, removed)
	d.subscribers, removed = removeOwnedBy(d.subscribers, id, removed)
	d.notifiers, removed = removeOwnedBy(d.notifiers, id, removed)
	d.listeners, removed = removeOwnedBy(d.listeners, id, removed)
	d.activePorts.Add(int64(-removed))
	d.generation++
}

func removeOwnedBy(records []PortRecord, owner uniqueid.NodeId, removed int) ([]PortRecord, int) {
	out := records[:0]
	for _, r := range records {
		if r.NodeID != owner {
			out = append(out, r)
		} else {
			removed++
		}
	}
	return out, removed
}

// PortKind selects which port list to mutate.
type PortKind int

const (
	PortKindPublisher PortKind = iota
	PortKindSubscriber
	PortKindNotifier
	PortKindListener
)

// RegisterPort adds a port record of the given kind.
func (d *DynamicConfig) RegisterPort(kind PortKind, rec PortRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch kind {
	case PortKindPublisher:
		d.publishers = append(d.publishers, rec)
	case PortKindSubscriber:
		d.subscribers = append(d.subscribers, rec)
	case PortKindNotifier:
		d.notifiers = append(d.notifiers, rec)
	case PortKindListener:
		d.listeners = append(d.listeners, rec)
	}
	d.generation++
	d.activePorts.Add(1)
}

// UnregisterPort removes a single port record of the given kind.
func (d *DynamicConfig) UnregisterPort(kind PortKind, portID uniqueid.PortId) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch kind {
	case PortKindPublisher:
		d.publishers = removePort(d.publishers, portID)
	case PortKindSubscriber:
		d.subscribers = removePort(d.subscribers, portID)
	case PortKindNotifier:
		d.notifiers = removePort(d.notifiers, portID)
	case PortKindListener:
		d.listeners = removePort(d.listeners, portID)
	}
	d.generation++
	d.activePorts.Add(-1)
}

func removePort(records []PortRecord, id uniqueid.PortId) []PortRecord {
	out := records[:0]
	for _, r := range records {
		if r.PortID != id {
			out = append(out, r)
		}
	}
	return out
}

// Publishers, Subscribers, Notifiers, and Listeners return snapshots of
// each port list, in registration order; round-robin subscriber drains
// rely on this order being stable.
func (d *DynamicConfig) Publishers() []PortRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PortRecord(nil), d.publishers...)
}

func (d *DynamicConfig) Subscribers() []PortRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PortRecord(nil), d.subscribers...)
}

func (d *DynamicConfig) Notifiers() []PortRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PortRecord(nil), d.notifiers...)
}

func (d *DynamicConfig) Listeners() []PortRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]PortRecord(nil), d.listeners...)
}

// NodeCount reports how many nodes currently hold this service open.
func (d *DynamicConfig) NodeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.nodes)
}

// IsUnused reports whether no node currently references this service, the
// condition remove_stale_resources uses to reap its static config.
func (d *DynamicConfig) IsUnused() bool {
	return d.NodeCount() == 0 && d.activePorts.Load() == 0
}
