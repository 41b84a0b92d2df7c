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
	"errors"
	"sync/atomic"
	"unsafe"

	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

// ErrDynamicConfigFull is returned when a record section has no free slot
// left; capacities are fixed at service creation from the static config.
var ErrDynamicConfigFull = errors.New("registry: dynamic config capacity exhausted")

// SharedDynamic is the cross-process half of a service's dynamic config:
// fixed-capacity record arrays for participants and ports plus a
// monotonically increasing generation counter, laid out over the mmap'd
// iox2_<uuid>.dynamic segment so every process observes the same
// membership. Mutations are lock-free: a writer claims a free slot with
// CAS, fills the payload words, publishes the slot with a release store
// of the valid state, and bumps the generation last. Readers never block
// writers.
//
// Slot layout, one 64-bit word each:
//
//	node record:  state | unique_system_id | pid | creation_time | refs
//	port record:  state | port_id | unique_system_id | pid | creation_time | param
//
// param carries the record's one piece of wiring data: a subscriber's
// ring capacity, a publisher's slice capacity.
type SharedDynamic struct {
	buf      []byte
	caps     Capacities
	nodesOff uint64
	portOff  [4]uint64
	portCap  [4]uint64
}

// Capacities pins each record section's slot count, derived from the
// service's QoS so the segment is sized exactly once, at creation.
type Capacities struct {
	Nodes       uint64
	Publishers  uint64
	Subscribers uint64
	Notifiers   uint64
	Listeners   uint64
}

// CapacitiesOf derives the dynamic config capacities from a published
// static config.
func CapacitiesOf(sc *StaticConfig) Capacities {
	caps := Capacities{
		Nodes:       sc.MaxNodes,
		Publishers:  sc.MaxPublishers,
		Subscribers: sc.MaxSubscribers,
		Notifiers:   sc.MaxNotifiers,
		Listeners:   sc.MaxListeners,
	}
	if caps.Nodes == 0 {
		caps.Nodes = 1
	}
	return caps
}

const (
	sharedHeaderBytes = 64
	nodeSlotWords     = 5
	portSlotWords     = 6

	slotFree  = 0
	slotBusy  = 1
	slotValid = 2
)

// SharedDynamicSize reports the segment size the given capacities need.
func SharedDynamicSize(c Capacities) uint64 {
	ports := (c.Publishers + c.Subscribers + c.Notifiers + c.Listeners) * portSlotWords * 8
	return sharedHeaderBytes + c.Nodes*nodeSlotWords*8 + ports
}

// SharedPortRecord is one published port membership.
type SharedPortRecord struct {
	PortID uniqueid.PortId
	NodeID uniqueid.NodeId
	Param  uint64
}

// NewSharedDynamic lays the record sections out over buf. buf must be at
// least SharedDynamicSize(caps) long; a freshly created segment is
// all-zero and therefore empty.
func NewSharedDynamic(buf []byte, caps Capacities) (*SharedDynamic, error) {
	if uint64(len(buf)) < SharedDynamicSize(caps) {
		return nil, errors.New("registry: dynamic config segment too small")
	}
	d := &SharedDynamic{buf: buf, caps: caps, nodesOff: sharedHeaderBytes}
	off := uint64(sharedHeaderBytes) + caps.Nodes*nodeSlotWords*8
	for kind, c := range []uint64{caps.Publishers, caps.Subscribers, caps.Notifiers, caps.Listeners} {
		d.portOff[kind] = off
		d.portCap[kind] = c
		off += c * portSlotWords * 8
	}
	return d, nil
}

func (d *SharedDynamic) word(off uint64) *uint64 {
	return (*uint64)(unsafe.Pointer(&d.buf[off]))
}

// Generation returns the structural-change counter, bumped after every
// published mutation.
func (d *SharedDynamic) Generation() uint64 {
	return atomic.LoadUint64(d.word(0))
}

func (d *SharedDynamic) bump() {
	atomic.AddUint64(d.word(0), 1)
}

func (d *SharedDynamic) nodeSlot(i uint64) uint64 {
	return d.nodesOff + i*nodeSlotWords*8
}

func (d *SharedDynamic) nodeMatches(s uint64, id uniqueid.NodeId) bool {
	return atomic.LoadUint64(d.word(s+8)) == id.UniqueSystemId &&
		atomic.LoadUint64(d.word(s+16)) == uint64(uint32(id.Pid)) &&
		atomic.LoadUint64(d.word(s+24)) == uint64(id.CreationTime)
}

// AddNode registers a participant, reference-counting repeat
// registrations of the same node.
func (d *SharedDynamic) AddNode(id uniqueid.NodeId) error {
	for i := uint64(0); i < d.caps.Nodes; i++ {
		s := d.nodeSlot(i)
		if atomic.LoadUint64(d.word(s)) == slotValid && d.nodeMatches(s, id) {
			atomic.AddUint64(d.word(s+32), 1)
			d.bump()
			return nil
		}
	}
	for i := uint64(0); i < d.caps.Nodes; i++ {
		s := d.nodeSlot(i)
		if atomic.CompareAndSwapUint64(d.word(s), slotFree, slotBusy) {
			atomic.StoreUint64(d.word(s+8), id.UniqueSystemId)
			atomic.StoreUint64(d.word(s+16), uint64(uint32(id.Pid)))
			atomic.StoreUint64(d.word(s+24), uint64(id.CreationTime))
			atomic.StoreUint64(d.word(s+32), 1)
			atomic.StoreUint64(d.word(s), slotValid)
			d.bump()
			return nil
		}
	}
	return ErrDynamicConfigFull
}

// RemoveNode drops one reference on a participant record, freeing the
// slot when the last reference is gone. Unknown ids are a no-op, which
// keeps dead-node cleanup idempotent.
func (d *SharedDynamic) RemoveNode(id uniqueid.NodeId) {
	for i := uint64(0); i < d.caps.Nodes; i++ {
		s := d.nodeSlot(i)
		if atomic.LoadUint64(d.word(s)) != slotValid || !d.nodeMatches(s, id) {
			continue
		}
		if atomic.AddUint64(d.word(s+32), ^uint64(0)) == 0 {
			atomic.StoreUint64(d.word(s), slotFree)
		}
		d.bump()
		return
	}
}

// NodeCount reports how many distinct participants are registered.
func (d *SharedDynamic) NodeCount() int {
	n := 0
	for i := uint64(0); i < d.caps.Nodes; i++ {
		if atomic.LoadUint64(d.word(d.nodeSlot(i))) == slotValid {
			n++
		}
	}
	return n
}

func (d *SharedDynamic) portSlot(kind PortKind, i uint64) uint64 {
	return d.portOff[kind] + i*portSlotWords*8
}

// AddPort publishes a port record with a CAS-claimed slot.
func (d *SharedDynamic) AddPort(kind PortKind, rec SharedPortRecord) error {
	for i := uint64(0); i < d.portCap[kind]; i++ {
		s := d.portSlot(kind, i)
		if atomic.CompareAndSwapUint64(d.word(s), slotFree, slotBusy) {
			atomic.StoreUint64(d.word(s+8), uint64(rec.PortID))
			atomic.StoreUint64(d.word(s+16), rec.NodeID.UniqueSystemId)
			atomic.StoreUint64(d.word(s+24), uint64(uint32(rec.NodeID.Pid)))
			atomic.StoreUint64(d.word(s+32), uint64(rec.NodeID.CreationTime))
			atomic.StoreUint64(d.word(s+40), rec.Param)
			atomic.StoreUint64(d.word(s), slotValid)
			d.bump()
			return nil
		}
	}
	return ErrDynamicConfigFull
}

// RemovePort retires a port record. Unknown ids are a no-op.
func (d *SharedDynamic) RemovePort(kind PortKind, id uniqueid.PortId) {
	for i := uint64(0); i < d.portCap[kind]; i++ {
		s := d.portSlot(kind, i)
		if atomic.LoadUint64(d.word(s)) != slotValid {
			continue
		}
		if atomic.LoadUint64(d.word(s+8)) != uint64(id) {
			continue
		}
		if atomic.CompareAndSwapUint64(d.word(s), slotValid, slotBusy) {
			atomic.StoreUint64(d.word(s+8), 0)
			atomic.StoreUint64(d.word(s), slotFree)
			d.bump()
		}
		return
	}
}

func (d *SharedDynamic) readPort(s uint64) (SharedPortRecord, bool) {
	rec := SharedPortRecord{
		PortID: uniqueid.PortId(atomic.LoadUint64(d.word(s + 8))),
		NodeID: uniqueid.NodeId{
			UniqueSystemId: atomic.LoadUint64(d.word(s + 16)),
			Pid:            int32(uint32(atomic.LoadUint64(d.word(s + 24)))),
			CreationTime:   int64(atomic.LoadUint64(d.word(s + 32))),
		},
		Param: atomic.LoadUint64(d.word(s + 40)),
	}
	// Re-check after reading: a concurrent removal between the state load
	// and the field loads would hand back a half-retired record.
	if atomic.LoadUint64(d.word(s)) != slotValid ||
		atomic.LoadUint64(d.word(s+8)) != uint64(rec.PortID) {
		return SharedPortRecord{}, false
	}
	return rec, true
}

// Ports snapshots every valid record of one kind, in slot order.
func (d *SharedDynamic) Ports(kind PortKind) []SharedPortRecord {
	var out []SharedPortRecord
	for i := uint64(0); i < d.portCap[kind]; i++ {
		s := d.portSlot(kind, i)
		if atomic.LoadUint64(d.word(s)) != slotValid {
			continue
		}
		if rec, ok := d.readPort(s); ok {
			out = append(out, rec)
		}
	}
	return out
}

// CountPorts reports how many records of one kind are published.
func (d *SharedDynamic) CountPorts(kind PortKind) int {
	n := 0
	for i := uint64(0); i < d.portCap[kind]; i++ {
		if atomic.LoadUint64(d.word(d.portSlot(kind, i))) == slotValid {
			n++
		}
	}
	return n
}

// RemoveNodePorts retires every port record owned by a node, returning
// what was removed so the caller can unlink the backing artifacts.
// Idempotent, the dead-node cleanup entry point.
func (d *SharedDynamic) RemoveNodePorts(owner uniqueid.NodeId) map[PortKind][]SharedPortRecord {
	removed := map[PortKind][]SharedPortRecord{}
	for _, kind := range []PortKind{PortKindPublisher, PortKindSubscriber, PortKindNotifier, PortKindListener} {
		for _, rec := range d.Ports(kind) {
			if rec.NodeID != owner {
				continue
			}
			d.RemovePort(kind, rec.PortID)
			removed[kind] = append(removed[kind], rec)
		}
	}
	return removed
}

// IsUnused reports whether no participant and no port references the
// service anymore.
func (d *SharedDynamic) IsUnused() bool {
	if d.NodeCount() > 0 {
		return false
	}
	for _, kind := range []PortKind{PortKindPublisher, PortKindSubscriber, PortKindNotifier, PortKindListener} {
		if d.CountPorts(kind) > 0 {
			return false
		}
	}
	return true
}
