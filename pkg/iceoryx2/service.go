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

package iceoryx2

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/iox2go/iceoryx2/internal/config"
	"github.com/iox2go/iceoryx2/internal/event"
	"github.com/iox2go/iceoryx2/internal/logging"
	"github.com/iox2go/iceoryx2/internal/pubsub"
	"github.com/iox2go/iceoryx2/internal/registry"
	"github.com/iox2go/iceoryx2/internal/ring"
	"github.com/iox2go/iceoryx2/internal/shm"
	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

// serviceRuntime is the per-process side of one opened service: the port
// objects this process owns, plus its view onto the service's shared
// membership. For inter-process services the membership itself lives in
// the mmap'd iox2_<uuid>.dynamic segment (registry.SharedDynamic), so a
// publisher here discovers subscribers registered by any process and
// vice versa; process-local services keep membership in the in-process
// dynamic config only.
type serviceRuntime struct {
	uuid        string
	serviceType ServiceType
	static      *registry.StaticConfig
	reg         *registry.Registry
	cfg         *config.Config
	dyn         *registry.DynamicConfig
	dynSeg      *shm.Segment
	shared      *registry.SharedDynamic

	mu          sync.Mutex
	refs        int
	nodeRefs    map[uniqueid.NodeId]int
	publishers  map[uniqueid.PortId]*publisherEntry
	subscribers map[uniqueid.PortId]*subscriberEntry
	remotePubs  map[uniqueid.PortId]*remotePublisher
	listeners   map[uniqueid.PortId]*listenerEntry
}

type publisherEntry struct {
	id       uniqueid.PortId
	nodeID   uniqueid.NodeId
	port     *pubsub.Publisher
	strategy UnableToDeliverStrategy
	maxSlice uint64

	segsMu   sync.Mutex
	segs     []*shm.Segment // nil for process-local segments
	segBytes uint64         // size of the most recently acquired segment

	rings  []*shm.Segment // connection rings this publisher created
	conns  map[uniqueid.PortId]*pubsub.Connection
	closed bool
}

type subscriberEntry struct {
	id         uniqueid.PortId
	nodeID     uniqueid.NodeId
	port       *pubsub.Subscriber
	bufferSize uint64
	rings      []*shm.Segment // connection rings this subscriber created
	conns      map[uniqueid.PortId]*pubsub.Connection
	closed     bool
}

// remotePublisher is this process's read-side view of a publisher that
// lives in another process: its data segments mapped for resolving and
// releasing samples, discovered through the shared dynamic config.
type remotePublisher struct {
	id     uniqueid.PortId
	chunks *pubsub.RemoteChunks
	segs   []*shm.Segment
}

type listenerEntry struct {
	id     uniqueid.PortId
	nodeID uniqueid.NodeId
	ch     event.Channel
	sock   *event.SocketChannel // non-nil for inter-process listeners
}

var (
	runtimesMu sync.Mutex
	runtimes   = map[string]*serviceRuntime{}
)

func runtimeKey(cfg *config.Config, uuid string, serviceType ServiceType) string {
	return cfg.ServiceDir + "\x00" + uuid + "\x00" + serviceType.String()
}

// acquireRuntime resolves (creating on first use) the runtime for a
// service and registers the opening node as a participant. For
// inter-process services this creates or maps the shared dynamic-config
// segment, sized from the service's QoS.
func acquireRuntime(n *Node, sc *registry.StaticConfig) (*serviceRuntime, error) {
	cfg := n.cfg.inner
	key := runtimeKey(cfg, sc.UUID, n.serviceType)

	runtimesMu.Lock()
	defer runtimesMu.Unlock()

	rt, ok := runtimes[key]
	if !ok {
		rt = &serviceRuntime{
			uuid:        sc.UUID,
			serviceType: n.serviceType,
			static:      sc,
			reg:         n.registry,
			cfg:         cfg,
			dyn:         n.registry.Dynamic(sc.UUID),
			nodeRefs:    map[uniqueid.NodeId]int{},
			publishers:  map[uniqueid.PortId]*publisherEntry{},
			subscribers: map[uniqueid.PortId]*subscriberEntry{},
			remotePubs:  map[uniqueid.PortId]*remotePublisher{},
			listeners:   map[uniqueid.PortId]*listenerEntry{},
		}
		if n.serviceType == ServiceTypeIpc {
			caps := registry.CapacitiesOf(sc)
			name := fmt.Sprintf("iox2_%s.dynamic", sc.UUID)
			seg, err := shm.Create(cfg.DataSegmentDir, name, registry.SharedDynamicSize(caps), cfg.DevPermissions)
			if err == shm.ErrAlreadyExists {
				seg, err = shm.Open(cfg.DataSegmentDir, name)
			}
			if err != nil {
				return nil, err
			}
			shared, err := registry.NewSharedDynamic(seg.Data, caps)
			if err != nil {
				seg.Close()
				return nil, err
			}
			rt.dynSeg = seg
			rt.shared = shared
		}
		runtimes[key] = rt
	}
	rt.mu.Lock()
	rt.refs++
	rt.nodeRefs[n.n.ID]++
	first := rt.nodeRefs[n.n.ID] == 1
	rt.mu.Unlock()
	if first {
		rt.dyn.RegisterNode(n.n.ID)
		if rt.shared != nil {
			if err := rt.shared.AddNode(n.n.ID); err != nil {
				logging.Default().Warn("node registration in dynamic config failed",
					"uuid", rt.uuid, "error", err)
			}
		}
	}
	return rt, nil
}

// release drops one factory's reference. The last reference tears the
// local runtime down; when no participant in any process holds the
// service open anymore and persistence is off, the static config and
// the dynamic segment are removed as well.
func (rt *serviceRuntime) release(n *Node) {
	rt.mu.Lock()
	rt.nodeRefs[n.n.ID]--
	last := rt.nodeRefs[n.n.ID] <= 0
	if last {
		delete(rt.nodeRefs, n.n.ID)
	}
	rt.mu.Unlock()
	if last {
		rt.dyn.UnregisterNode(n.n.ID)
		if rt.shared != nil {
			rt.shared.RemoveNode(n.n.ID)
		}
	}

	runtimesMu.Lock()
	defer runtimesMu.Unlock()

	rt.mu.Lock()
	rt.refs--
	done := rt.refs == 0
	rt.mu.Unlock()
	if !done {
		return
	}

	delete(runtimes, runtimeKey(rt.cfg, rt.uuid, rt.serviceType))

	// Subscribers drain (and release) before publishers unmap, and the
	// port mutations run outside rt.mu because draining re-enters the
	// runtime through the release hook.
	rt.mu.Lock()
	pubs := make([]*publisherEntry, 0, len(rt.publishers))
	subs := make([]*subscriberEntry, 0, len(rt.subscribers))
	remotes := make([]*remotePublisher, 0, len(rt.remotePubs))
	for _, pe := range rt.publishers {
		pubs = append(pubs, pe)
	}
	for _, se := range rt.subscribers {
		subs = append(subs, se)
	}
	for _, rp := range rt.remotePubs {
		remotes = append(remotes, rp)
	}
	rt.mu.Unlock()

	for _, se := range subs {
		se.port.Close()
		for _, seg := range se.rings {
			seg.Close()
			seg.Unlink()
		}
		se.rings = nil
	}
	for _, pe := range pubs {
		pe.port.Close()
		for _, seg := range pe.rings {
			seg.Close()
			seg.Unlink()
		}
		pe.rings = nil
		pe.segsMu.Lock()
		for _, seg := range pe.segs {
			seg.Close()
			seg.Unlink()
		}
		pe.segs = nil
		pe.segsMu.Unlock()
	}
	for _, rp := range remotes {
		for _, seg := range rp.segs {
			seg.Close()
		}
		rp.segs = nil
	}

	unused := rt.dyn.IsUnused()
	if rt.shared != nil {
		unused = rt.shared.IsUnused()
	}
	if unused {
		if rt.dynSeg != nil {
			rt.dynSeg.Close()
			rt.dynSeg.Unlink()
		}
		if err := rt.reg.Remove(rt.uuid); err != nil {
			logging.Default().Warn("removing static config failed", "uuid", rt.uuid, "error", err)
		}
	}
	// When participants in other processes remain, the segment stays
	// mapped: a port handle closed after its factory must still reach
	// the shared records rather than fault on unmapped bytes.
}

// generation returns the structural-change counter every send and
// receive path compares against: the shared segment's for inter-process
// services, the in-process one otherwise.
func (rt *serviceRuntime) generation() uint64 {
	if rt.shared != nil {
		return rt.shared.Generation()
	}
	return rt.dyn.Generation()
}

// countPorts reports live port membership, cross-process aware.
func (rt *serviceRuntime) countPorts(kind registry.PortKind) uint64 {
	if rt.shared != nil {
		return uint64(rt.shared.CountPorts(kind))
	}
	switch kind {
	case registry.PortKindPublisher:
		return uint64(len(rt.dyn.Publishers()))
	case registry.PortKindSubscriber:
		return uint64(len(rt.dyn.Subscribers()))
	case registry.PortKindNotifier:
		return uint64(len(rt.dyn.Notifiers()))
	default:
		return uint64(len(rt.dyn.Listeners()))
	}
}

// --- chunk layout ------------------------------------------------------

func roundUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// chunkAlign is the alignment every chunk start and payload start honors:
// at least the sample header's own atomics, widened by the service's
// declared payload alignment.
func (rt *serviceRuntime) chunkAlign() uint64 {
	align := uint64(8)
	if rt.static.PayloadAlignment > align {
		align = rt.static.PayloadAlignment
	}
	if rt.static.Payload != nil && rt.static.Payload.Alignment > align {
		align = rt.static.Payload.Alignment
	}
	return align
}

func (rt *serviceRuntime) userHeaderSize() uint64 {
	if rt.static.UserHeader == nil {
		return 0
	}
	return rt.static.UserHeader.Size
}

func (rt *serviceRuntime) elementSize() uint64 {
	if rt.static.Payload == nil {
		return 1
	}
	return rt.static.Payload.Size
}

// payloadPrefix is the distance from a chunk's start to its payload
// bytes: sample header, then user header, padded up to the alignment.
func (rt *serviceRuntime) payloadPrefix() uint64 {
	return roundUp(pubsub.HeaderSize()+rt.userHeaderSize(), rt.chunkAlign())
}

// loanSize converts an element count into the byte size requested from
// the data-segment allocator, keeping every subsequent chunk aligned.
func (rt *serviceRuntime) loanSize(elements uint64) uint64 {
	total := roundUp(rt.payloadPrefix()+rt.elementSize()*elements, rt.chunkAlign())
	return total - pubsub.HeaderSize()
}

// chunkSize is the fixed chunk footprint for the static strategy, sized
// for the largest loan the publisher may take.
func (rt *serviceRuntime) chunkSize(maxSlice uint64) uint64 {
	return roundUp(rt.payloadPrefix()+rt.elementSize()*maxSlice, rt.chunkAlign())
}

// worstCaseChunks is the chunk count a publisher's first segment must
// serve so that loans never fault at runtime: every subscriber ring and
// borrow fully occupied, every loan outstanding, plus retained history.
func (rt *serviceRuntime) worstCaseChunks() uint64 {
	s := rt.static
	return s.MaxSubscribers*(s.SubscriberMaxBufferSize+s.SubscriberMaxBorrowedSamples) +
		s.MaxLoanedSamples + s.HistorySize + 1
}

// --- port wiring -------------------------------------------------------

func portIdHex(id uniqueid.PortId) string {
	return fmt.Sprintf("%016x", uint64(id))
}

func (rt *serviceRuntime) dataSegmentName(pubID uniqueid.PortId, index int) string {
	if index == 0 {
		return fmt.Sprintf("iox2_%s.data", portIdHex(pubID))
	}
	return fmt.Sprintf("iox2_%s.data.%d", portIdHex(pubID), index)
}

func connRingName(pubID, subID uniqueid.PortId) string {
	return fmt.Sprintf("iox2_%s_%s.conn", portIdHex(pubID), portIdHex(subID))
}

func listenerSockName(id uniqueid.PortId) string {
	return fmt.Sprintf("iox2_%s.sock", portIdHex(id))
}

func (rt *serviceRuntime) newAllocator(strategy AllocationStrategy, arena uint64, maxSlice uint64) shm.Allocator {
	switch strategy {
	case AllocationStrategyPowerOfTwo:
		return shm.NewPowerOfTwoAllocator(arena, rt.chunkAlign())
	case AllocationStrategyBestFit:
		return shm.NewBestFitAllocator(arena)
	default:
		chunk := rt.chunkSize(maxSlice)
		return shm.NewStaticAllocator(chunk, arena/chunk)
	}
}

// connStrategy resolves the per-connection delivery strategy: safe
// overflow always discards the oldest sample; without it the
// publisher's own setting decides between dropping the new sample and
// suspending until the subscriber consumes.
func (rt *serviceRuntime) connStrategy(pubStrategy UnableToDeliverStrategy) pubsub.UnableToDeliverStrategy {
	if rt.static.EnableSafeOverflow {
		return pubsub.UnableToDeliverStrategyDiscardOldest
	}
	if pubStrategy == UnableToDeliverStrategyDiscardSample {
		return pubsub.UnableToDeliverStrategyDiscard
	}
	return pubsub.UnableToDeliverStrategyBlock
}

// addPublisher reserves the publisher's data segment, registers the port
// and connects it to every live subscriber.
func (rt *serviceRuntime) addPublisher(n *Node, strategy UnableToDeliverStrategy, maxSlice uint64, alloc AllocationStrategy) (*publisherEntry, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.countPorts(registry.PortKindPublisher) >= rt.static.MaxPublishers {
		return nil, PublisherCreateErrorExceedsMaxSupportedPublishers
	}

	if maxSlice == 0 {
		maxSlice = 1
	}
	id := uniqueid.NewPortId(n.n.ID)
	arena := rt.chunkSize(maxSlice) * rt.worstCaseChunks()

	pe := &publisherEntry{
		id:       id,
		nodeID:   n.n.ID,
		strategy: strategy,
		maxSlice: maxSlice,
		segBytes: arena,
		conns:    map[uniqueid.PortId]*pubsub.Connection{},
	}

	var data []byte
	if rt.serviceType == ServiceTypeIpc {
		seg, err := shm.Create(rt.cfg.DataSegmentDir, rt.dataSegmentName(id, 0), arena, rt.cfg.DevPermissions)
		if err != nil {
			return nil, PublisherCreateErrorUnableToCreateDataSegment
		}
		pe.segs = append(pe.segs, seg)
		data = seg.Data
	} else {
		data = make([]byte, arena)
	}

	pe.port = pubsub.NewPublisher(id, rt.newAllocator(alloc, arena, maxSlice), data, rt.static.HistorySize)
	pe.port.SetInterruptFn(TerminationRequested)
	if alloc != AllocationStrategyStatic {
		pe.port.SetGrowFn(rt.growFn(pe, alloc))
	}

	rt.publishers[id] = pe
	rt.dyn.RegisterPort(registry.PortKindPublisher, registry.PortRecord{PortID: id, NodeID: n.n.ID})
	if rt.shared != nil {
		rec := registry.SharedPortRecord{PortID: id, NodeID: n.n.ID, Param: maxSlice}
		if err := rt.shared.AddPort(registry.PortKindPublisher, rec); err != nil {
			rt.dyn.UnregisterPort(registry.PortKindPublisher, id)
			delete(rt.publishers, id)
			return nil, PublisherCreateErrorExceedsMaxSupportedPublishers
		}
	}
	if err := rt.reconcileLocked(); err != nil {
		return nil, PublisherCreateErrorUnableToCreateDataSegment
	}
	return pe, nil
}

// growFn acquires an additional data segment once a slice loan outgrows
// the current one. Already mapped segments are left untouched, so
// descriptors in flight stay valid; a subscriber that never observes the
// new segment before the publisher dies loses the samples placed there.
func (rt *serviceRuntime) growFn(pe *publisherEntry, alloc AllocationStrategy) pubsub.GrowFn {
	return func(minBytes uint64) (shm.Allocator, []byte, error) {
		pe.segsMu.Lock()
		defer pe.segsMu.Unlock()

		arena := pe.segBytes * 2
		for arena < minBytes*2 {
			arena *= 2
		}
		pe.segBytes = arena

		var data []byte
		if rt.serviceType == ServiceTypeIpc {
			index := len(pe.segs)
			seg, err := shm.Create(rt.cfg.DataSegmentDir, rt.dataSegmentName(pe.id, index), arena, rt.cfg.DevPermissions)
			if err != nil {
				return nil, nil, err
			}
			pe.segs = append(pe.segs, seg)
			data = seg.Data
		} else {
			data = make([]byte, arena)
		}
		logging.Default().Debug("data segment grown", "publisher", portIdHex(pe.id), "bytes", arena)
		return rt.newAllocator(alloc, arena, pe.maxSlice), data, nil
	}
}

func (rt *serviceRuntime) removePublisher(pe *publisherEntry) {
	type detachment struct {
		se   *subscriberEntry
		conn *pubsub.Connection
	}

	rt.mu.Lock()
	if pe.closed {
		rt.mu.Unlock()
		return
	}
	pe.closed = true
	var detach []detachment
	for subID, conn := range pe.conns {
		conn.MarkDetached()
		if se, ok := rt.subscribers[subID]; ok {
			detach = append(detach, detachment{se: se, conn: conn})
			delete(se.conns, pe.id)
		}
	}
	pe.conns = map[uniqueid.PortId]*pubsub.Connection{}
	rt.mu.Unlock()

	// Detaching drains the subscriber's ring, which re-enters the
	// runtime through the release hook; rt.mu must not be held here.
	for _, d := range detach {
		d.se.port.Detach(d.conn)
	}
	pe.port.Close()
	rt.dyn.UnregisterPort(registry.PortKindPublisher, pe.id)
	if rt.shared != nil {
		rt.shared.RemovePort(registry.PortKindPublisher, pe.id)
	}
}

// addSubscriber registers the port and installs a ring from every live
// publisher, which also replays each publisher's retained history.
func (rt *serviceRuntime) addSubscriber(n *Node, bufferSize uint64) (*subscriberEntry, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.countPorts(registry.PortKindSubscriber) >= rt.static.MaxSubscribers {
		return nil, SubscriberCreateErrorExceedsMaxSupportedSubscribers
	}
	if bufferSize == 0 {
		bufferSize = rt.static.SubscriberMaxBufferSize
	}
	if bufferSize > rt.static.SubscriberMaxBufferSize {
		return nil, SubscriberCreateErrorBufferSizeExceedsMaxSupportedBufferSize
	}

	id := uniqueid.NewPortId(n.n.ID)
	se := &subscriberEntry{
		id:         id,
		nodeID:     n.n.ID,
		bufferSize: bufferSize,
		conns:      map[uniqueid.PortId]*pubsub.Connection{},
	}
	se.port = pubsub.NewSubscriber(id, func(conn *pubsub.Connection, desc pubsub.Descriptor) {
		rt.releaseSample(conn.PublisherID, desc)
	})

	rt.subscribers[id] = se
	rt.dyn.RegisterPort(registry.PortKindSubscriber, registry.PortRecord{PortID: id, NodeID: n.n.ID})
	if rt.shared != nil {
		rec := registry.SharedPortRecord{PortID: id, NodeID: n.n.ID, Param: bufferSize}
		if err := rt.shared.AddPort(registry.PortKindSubscriber, rec); err != nil {
			rt.dyn.UnregisterPort(registry.PortKindSubscriber, id)
			delete(rt.subscribers, id)
			return nil, SubscriberCreateErrorExceedsMaxSupportedSubscribers
		}
	}
	if err := rt.reconcileLocked(); err != nil {
		return nil, WrapError("SubscriberBuilder.Create", err)
	}
	return se, nil
}

func (rt *serviceRuntime) removeSubscriber(se *subscriberEntry) {
	rt.mu.Lock()
	if se.closed {
		rt.mu.Unlock()
		return
	}
	se.closed = true
	var pubs []*publisherEntry
	for pubID, conn := range se.conns {
		conn.MarkDetached()
		if pe, ok := rt.publishers[pubID]; ok {
			pubs = append(pubs, pe)
			delete(pe.conns, se.id)
		}
	}
	se.conns = map[uniqueid.PortId]*pubsub.Connection{}
	rings := se.rings
	se.rings = nil
	rt.mu.Unlock()

	for _, pe := range pubs {
		pe.port.Disconnect(se.id)
	}
	// Closing drains the remaining ring entries, re-entering the runtime
	// through the release hook; rt.mu must not be held here.
	se.port.Close()
	for _, seg := range rings {
		seg.Close()
		seg.Unlink()
	}
	rt.dyn.UnregisterPort(registry.PortKindSubscriber, se.id)
	if rt.shared != nil {
		rt.shared.RemovePort(registry.PortKindSubscriber, se.id)
	}
}

// releaseSample credits one reference back to the publisher owning desc.
// For a publisher in this process the chunk returns to its allocator
// once the count reaches zero; for a remote publisher only the shared
// count is decremented and the owner reclaims the chunk on its next
// sweep.
func (rt *serviceRuntime) releaseSample(pubID uniqueid.PortId, desc pubsub.Descriptor) {
	rt.mu.Lock()
	pe := rt.publishers[pubID]
	rp := rt.remotePubs[pubID]
	rt.mu.Unlock()
	if pe != nil {
		pe.port.Release(desc)
		return
	}
	if rp != nil {
		rp.chunks.Release(desc)
	}
}

func (rt *serviceRuntime) resolveSample(pubID uniqueid.PortId, desc pubsub.Descriptor) (*pubsub.SampleHeader, []byte) {
	rt.mu.Lock()
	pe := rt.publishers[pubID]
	rp := rt.remotePubs[pubID]
	rt.mu.Unlock()
	if pe != nil {
		return pe.port.Resolve(desc)
	}
	if rp == nil {
		return nil, nil
	}
	hdr, payload := rp.chunks.Resolve(desc)
	if hdr == nil {
		rt.mapRemoteSegments(rp, pubsub.SegmentIndex(desc))
		hdr, payload = rp.chunks.Resolve(desc)
	}
	return hdr, payload
}

// mapRemoteSegments lazily maps data segments the remote publisher
// acquired after this process first saw it.
func (rt *serviceRuntime) mapRemoteSegments(rp *remotePublisher, needed int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for rp.chunks.SegmentCount() <= needed {
		index := rp.chunks.SegmentCount()
		seg, err := shm.Open(rt.cfg.DataSegmentDir, rt.dataSegmentName(rp.id, index))
		if err != nil {
			return
		}
		rp.chunks.AddSegment(seg.Data)
		rp.segs = append(rp.segs, seg)
	}
}

// reconcile re-reads the membership and (re)establishes any missing
// publisher-subscriber connection, pruning connections whose peer
// record disappeared. Idempotent between structural changes; every send
// and receive path runs it when the generation moved, since the library
// owns no background thread that could.
func (rt *serviceRuntime) reconcile() error {
	type detachment struct {
		se   *subscriberEntry
		conn *pubsub.Connection
	}

	rt.mu.Lock()
	err := rt.reconcileLocked()
	var stale []detachment
	if rt.shared != nil {
		known := map[uniqueid.PortId]struct{}{}
		for _, rec := range rt.shared.Ports(registry.PortKindPublisher) {
			known[rec.PortID] = struct{}{}
		}
		for _, se := range rt.subscribers {
			if se.closed {
				continue
			}
			for pubID, conn := range se.conns {
				if _, ok := rt.publishers[pubID]; ok {
					continue
				}
				if _, ok := known[pubID]; ok {
					continue
				}
				conn.MarkDetached()
				delete(se.conns, pubID)
				stale = append(stale, detachment{se: se, conn: conn})
			}
		}
	}
	rt.mu.Unlock()

	// Draining a detached ring re-enters the runtime through the release
	// hook; rt.mu must not be held here.
	for _, d := range stale {
		d.se.port.Detach(d.conn)
	}
	return err
}

func (rt *serviceRuntime) reconcileLocked() error {
	if rt.shared != nil {
		return rt.reconcileSharedLocked()
	}

	for _, pe := range rt.publishers {
		if pe.closed {
			continue
		}
		for _, se := range rt.subscribers {
			if se.closed {
				continue
			}
			if _, ok := pe.conns[se.id]; ok {
				continue
			}
			conn := pubsub.NewConnection(
				ring.NewLocalRing(int(se.bufferSize)),
				pe.id, se.id, rt.connStrategy(pe.strategy))
			conn.EnableBlockingWakeup()
			pe.conns[se.id] = conn
			se.conns[pe.id] = conn
			pe.port.Connect(conn)
			se.port.Attach(conn)
		}
	}
	return nil
}

// reconcileSharedLocked pairs ports through the shared membership
// records: local publishers wire a ring to every subscriber record
// (local or remote), local subscribers install a ring from every remote
// publisher record. Ring segments are created by whichever side gets
// there first and opened by the other; a missing counterpart is retried
// on the next call.
func (rt *serviceRuntime) reconcileSharedLocked() error {
	subRecs := rt.shared.Ports(registry.PortKindSubscriber)
	pubRecs := rt.shared.Ports(registry.PortKindPublisher)

	subKnown := map[uniqueid.PortId]struct{}{}
	for _, sr := range subRecs {
		subKnown[sr.PortID] = struct{}{}
	}

	for _, pe := range rt.publishers {
		if pe.closed {
			continue
		}
		for _, sr := range subRecs {
			if _, ok := pe.conns[sr.PortID]; ok {
				continue
			}
			capacity := sr.Param
			if capacity == 0 {
				capacity = rt.static.SubscriberMaxBufferSize
			}
			rg, seg, err := rt.ipcConnRing(pe.id, sr.PortID, int(capacity))
			if err != nil {
				continue
			}
			conn := pubsub.NewConnection(rg, pe.id, sr.PortID, rt.connStrategy(pe.strategy))
			pe.conns[sr.PortID] = conn
			pe.rings = append(pe.rings, seg)
			pe.port.Connect(conn)
			if se, ok := rt.subscribers[sr.PortID]; ok && !se.closed {
				conn.EnableBlockingWakeup()
				se.conns[pe.id] = conn
				se.port.Attach(conn)
			}
		}
		// A subscriber whose record vanished (closed in another process,
		// or reaped after a crash) stops receiving deliveries; a sender
		// parked on its full ring is woken and gives up.
		for subID, conn := range pe.conns {
			if _, ok := subKnown[subID]; ok {
				continue
			}
			conn.MarkDetached()
			pe.port.Disconnect(subID)
			delete(pe.conns, subID)
		}
	}

	for _, se := range rt.subscribers {
		if se.closed {
			continue
		}
		for _, pr := range pubRecs {
			if _, ok := se.conns[pr.PortID]; ok {
				continue
			}
			if _, local := rt.publishers[pr.PortID]; local {
				continue
			}
			if rt.remotePublisherLocked(pr.PortID) == nil {
				continue
			}
			rg, seg, err := rt.ipcConnRing(pr.PortID, se.id, int(se.bufferSize))
			if err != nil {
				continue
			}
			conn := pubsub.NewConnection(rg, pr.PortID, se.id, pubsub.UnableToDeliverStrategyDiscardOldest)
			se.conns[pr.PortID] = conn
			se.rings = append(se.rings, seg)
			se.port.Attach(conn)
		}
	}
	return nil
}

// ipcConnRing creates or maps the shared ring segment between one
// publisher and one subscriber; both sides derive the same name and
// capacity, so whichever reconciles first creates it.
func (rt *serviceRuntime) ipcConnRing(pubID, subID uniqueid.PortId, capacity int) (ring.Ring, *shm.Segment, error) {
	name := connRingName(pubID, subID)
	seg, err := shm.Create(rt.cfg.DataSegmentDir, name, uint64(ring.IpcRingBytes(capacity)), rt.cfg.DevPermissions)
	if err == shm.ErrAlreadyExists {
		seg, err = shm.Open(rt.cfg.DataSegmentDir, name)
	}
	if err != nil {
		return nil, nil, err
	}
	rg, err := ring.NewIpcRing(seg.Data, capacity)
	if err != nil {
		seg.Close()
		return nil, nil, err
	}
	return rg, seg, nil
}

// remotePublisherLocked resolves (mapping on first use) the read-side
// view of a publisher registered by another process.
func (rt *serviceRuntime) remotePublisherLocked(id uniqueid.PortId) *remotePublisher {
	if rp, ok := rt.remotePubs[id]; ok {
		return rp
	}
	seg, err := shm.Open(rt.cfg.DataSegmentDir, rt.dataSegmentName(id, 0))
	if err != nil {
		return nil
	}
	rp := &remotePublisher{id: id, chunks: pubsub.NewRemoteChunks()}
	rp.chunks.AddSegment(seg.Data)
	rp.segs = append(rp.segs, seg)
	rt.remotePubs[id] = rp
	return rp
}

// --- event plane -------------------------------------------------------

// fanoutChannel multiplies one notifier's signal onto every connected
// listener. Process-local listeners are notified through their own
// channel; inter-process listeners through the datagram socket each
// listener record names.
type fanoutChannel struct {
	rt *serviceRuntime
}

func (f *fanoutChannel) Notify(id event.EventId) {
	rt := f.rt
	if rt.shared != nil {
		for _, rec := range rt.shared.Ports(registry.PortKindListener) {
			path := rt.listenerSockPath(rec.PortID)
			if err := event.NotifySocket(path, id); err != nil {
				logging.Default().Debug("listener notification failed",
					"listener", portIdHex(rec.PortID), "error", err)
			}
		}
		return
	}

	rt.mu.Lock()
	entries := make([]*listenerEntry, 0, len(rt.listeners))
	for _, le := range rt.listeners {
		entries = append(entries, le)
	}
	rt.mu.Unlock()
	for _, le := range entries {
		le.ch.Notify(id)
	}
}

func (f *fanoutChannel) TryWaitOne() (event.EventId, bool) { return 0, false }
func (f *fanoutChannel) TryWaitAll() []event.EventId       { return nil }
func (f *fanoutChannel) HasPending() bool                  { return false }
func (f *fanoutChannel) Wake()                             {}

func (rt *serviceRuntime) listenerSockPath(id uniqueid.PortId) string {
	return filepath.Join(rt.cfg.DataSegmentDir, listenerSockName(id))
}

func (rt *serviceRuntime) listenerCount() uint64 {
	if rt.shared != nil {
		return uint64(rt.shared.CountPorts(registry.PortKindListener))
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return uint64(len(rt.listeners))
}

func (rt *serviceRuntime) addListener(n *Node) (*listenerEntry, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.countPorts(registry.PortKindListener) >= rt.static.MaxListeners {
		return nil, ListenerCreateErrorExceedsMaxSupportedListeners
	}
	id := uniqueid.NewPortId(n.n.ID)
	le := &listenerEntry{id: id, nodeID: n.n.ID}

	if rt.serviceType == ServiceTypeIpc {
		sock, err := event.NewSocketChannel(rt.listenerSockPath(id))
		if err != nil {
			return nil, ListenerCreateErrorResourceCreationFailed
		}
		le.ch = sock
		le.sock = sock
	} else {
		le.ch = event.NewBitsetChannel(event.EventId(rt.static.EventIdMaxValue))
	}

	rt.listeners[id] = le
	rt.dyn.RegisterPort(registry.PortKindListener, registry.PortRecord{PortID: id, NodeID: n.n.ID})
	if rt.shared != nil {
		rec := registry.SharedPortRecord{PortID: id, NodeID: n.n.ID}
		if err := rt.shared.AddPort(registry.PortKindListener, rec); err != nil {
			if le.sock != nil {
				le.sock.Close()
			}
			delete(rt.listeners, id)
			rt.dyn.UnregisterPort(registry.PortKindListener, id)
			return nil, ListenerCreateErrorExceedsMaxSupportedListeners
		}
	}
	return le, nil
}

func (rt *serviceRuntime) removeListener(le *listenerEntry) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, ok := rt.listeners[le.id]; !ok {
		return
	}
	delete(rt.listeners, le.id)
	if le.sock != nil {
		le.sock.Close()
	}
	rt.dyn.UnregisterPort(registry.PortKindListener, le.id)
	if rt.shared != nil {
		rt.shared.RemovePort(registry.PortKindListener, le.id)
	}
}

func (rt *serviceRuntime) addNotifier(n *Node) (uniqueid.PortId, error) {
	if rt.countPorts(registry.PortKindNotifier) >= rt.static.MaxNotifiers {
		return 0, NotifierCreateErrorExceedsMaxSupportedNotifiers
	}
	id := uniqueid.NewPortId(n.n.ID)
	rt.dyn.RegisterPort(registry.PortKindNotifier, registry.PortRecord{PortID: id, NodeID: n.n.ID})
	if rt.shared != nil {
		rec := registry.SharedPortRecord{PortID: id, NodeID: n.n.ID}
		if err := rt.shared.AddPort(registry.PortKindNotifier, rec); err != nil {
			rt.dyn.UnregisterPort(registry.PortKindNotifier, id)
			return 0, NotifierCreateErrorExceedsMaxSupportedNotifiers
		}
	}
	return id, nil
}

func (rt *serviceRuntime) removeNotifier(id uniqueid.PortId) {
	rt.dyn.UnregisterPort(registry.PortKindNotifier, id)
	if rt.shared != nil {
		rt.shared.RemovePort(registry.PortKindNotifier, id)
	}
}

// --- dead-node cleanup -------------------------------------------------

// cleanupNode unlinks every resource a (dead) node contributed to this
// runtime: its port records, its connections and its data segments.
func (rt *serviceRuntime) cleanupNode(nodeID uniqueid.NodeId) {
	rt.mu.Lock()
	var pubs []*publisherEntry
	var subs []*subscriberEntry
	var listeners []*listenerEntry
	for _, pe := range rt.publishers {
		if pe.nodeID == nodeID {
			pubs = append(pubs, pe)
		}
	}
	for _, se := range rt.subscribers {
		if se.nodeID == nodeID {
			subs = append(subs, se)
		}
	}
	for _, le := range rt.listeners {
		if le.nodeID == nodeID {
			listeners = append(listeners, le)
		}
	}
	rt.mu.Unlock()

	for _, pe := range pubs {
		rt.removePublisher(pe)
		pe.segsMu.Lock()
		for _, seg := range pe.segs {
			seg.Close()
			seg.Unlink()
		}
		pe.segs = nil
		pe.segsMu.Unlock()
		rt.mu.Lock()
		delete(rt.publishers, pe.id)
		rt.mu.Unlock()
	}
	for _, se := range subs {
		rt.removeSubscriber(se)
		rt.mu.Lock()
		delete(rt.subscribers, se.id)
		rt.mu.Unlock()
	}
	for _, le := range listeners {
		rt.removeListener(le)
	}
	rt.dyn.UnregisterNode(nodeID)
	if rt.shared != nil {
		removed := rt.shared.RemoveNodePorts(nodeID)
		rt.shared.RemoveNode(nodeID)
		unlinkPortArtifacts(rt.cfg, removed)
	}
}

// cleanupDeadNodeEverywhere walks every live runtime and removes the
// given node's contributions, the in-process half of stale-resource
// removal.
func cleanupDeadNodeEverywhere(nodeID uniqueid.NodeId) {
	runtimesMu.Lock()
	all := make([]*serviceRuntime, 0, len(runtimes))
	for _, rt := range runtimes {
		all = append(all, rt)
	}
	runtimesMu.Unlock()
	for _, rt := range all {
		rt.cleanupNode(nodeID)
	}
}
