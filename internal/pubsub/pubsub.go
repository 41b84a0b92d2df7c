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

// Package pubsub implements the publish-subscribe port pair: publishers
// loan chunks from a data segment (internal/shm) and hand a descriptor to
// every connected subscriber's ring (internal/ring); subscribers drain
// their rings in round-robin order across publishers. A sample's
// reference count, not a copy, is what a subscriber actually receives -
// the payload is read directly out of the owning segment.
//
// A descriptor is a single 64-bit word combining a segment index with a
// byte offset into that segment, so a publisher that grows by acquiring
// an additional segment keeps all previously issued descriptors valid.
package pubsub

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iox2go/iceoryx2/internal/ring"
	"github.com/iox2go/iceoryx2/internal/shm"
	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

var (
	// ErrClosed is returned by operations on a closed Publisher or Subscriber.
	ErrClosed = errors.New("pubsub: port is closed")
	// ErrNoSample is returned by Receive when no sample is currently available.
	ErrNoSample = errors.New("pubsub: no sample available")
	// ErrUnableToDeliver is returned by Send under
	// UnableToDeliverStrategyDiscard when a subscriber's ring is full.
	ErrUnableToDeliver = errors.New("pubsub: unable to deliver to subscriber")
	// ErrInterrupted is returned by a blocking Send that observed the
	// interrupt token while suspended on a full ring.
	ErrInterrupted = errors.New("pubsub: blocking send interrupted")
)

// UnableToDeliverStrategy selects what a publisher does when a
// subscriber's ring has no free slot.
type UnableToDeliverStrategy int

const (
	// UnableToDeliverStrategyDiscardOldest drops the oldest unread sample
	// in the full ring to make room for the new one; the displaced
	// sample's reference is released immediately. This is the safe
	// overflow path.
	UnableToDeliverStrategyDiscardOldest UnableToDeliverStrategy = iota
	// UnableToDeliverStrategyDiscard drops the new sample and reports
	// ErrUnableToDeliver to the caller.
	UnableToDeliverStrategyDiscard
	// UnableToDeliverStrategyBlock suspends Send until the subscriber
	// consumes a slot, the connection is detached, or the interrupt
	// token fires. Process-local connections park on a condition
	// variable woken by the consumer; connections over mapped rings
	// re-probe the cursors on a short interval.
	UnableToDeliverStrategyBlock
)

// Descriptor packs (segment index, byte offset) into one ring slot word.
type Descriptor = uint64

const (
	descSegmentShift = 48
	descOffsetMask   = (uint64(1) << descSegmentShift) - 1
)

func makeDescriptor(segIndex int, offset uint64) Descriptor {
	return uint64(segIndex)<<descSegmentShift | offset
}

func splitDescriptor(d Descriptor) (segIndex int, offset uint64) {
	return int(d >> descSegmentShift), d & descOffsetMask
}

// SegmentIndex reports which of the owning publisher's data segments a
// descriptor refers to, so a reader can map segments it has not seen.
func SegmentIndex(d Descriptor) int {
	i, _ := splitDescriptor(d)
	return i
}

// SampleHeader is the control block every loaned chunk carries ahead of
// its payload bytes: a reference count so a chunk is only returned to the
// allocator once every holder of it has released it.
type SampleHeader struct {
	refCount    atomic.Int64
	PublisherID uniqueid.PortId
	PayloadSize uint64
	Elements    uint64
	SequenceNr  uint64
}

// Chunk is a loaned region of a data segment plus its header.
type Chunk struct {
	Header  *SampleHeader
	Desc    Descriptor
	Payload []byte
}

// Connection is the zero-copy channel between one publisher and one
// subscriber: a ring of descriptors into the publisher's data segments.
type Connection struct {
	Ring         ring.Ring
	PublisherID  uniqueid.PortId
	SubscriberID uniqueid.PortId
	strategy     UnableToDeliverStrategy

	consumed *sync.Cond
	detached atomic.Bool
}

// NewConnection pairs a ring with the delivery strategy a publisher
// applies when that ring is full.
func NewConnection(r ring.Ring, publisherID, subscriberID uniqueid.PortId, strategy UnableToDeliverStrategy) *Connection {
	return &Connection{Ring: r, PublisherID: publisherID, SubscriberID: subscriberID, strategy: strategy}
}

// EnableBlockingWakeup installs the condition variable a blocking sender
// parks on; only meaningful when producer and consumer share a process.
func (c *Connection) EnableBlockingWakeup() {
	c.consumed = sync.NewCond(&sync.Mutex{})
}

// MarkDetached tells a sender parked on this connection that the
// subscriber is gone; the pending delivery is abandoned.
func (c *Connection) MarkDetached() {
	c.detached.Store(true)
	c.signalConsumed()
}

func (c *Connection) signalConsumed() {
	if c.consumed != nil {
		c.consumed.Broadcast()
	}
}

// segment is one allocator plus the mapped bytes it carves chunks from.
type segment struct {
	alloc shm.Allocator
	data  []byte
}

// GrowFn supplies an additional (allocator, backing bytes) pair when a
// slice loan no longer fits the current segments. Publishers configured
// with a fixed-size allocation strategy have no GrowFn; their Loan returns
// the allocator's error instead (shm.ErrExceedsChunkSize for a request
// larger than a chunk, shm.ErrNotEnoughMemory once every chunk is loaned).
type GrowFn func(minBytes uint64) (shm.Allocator, []byte, error)

// Publisher loans chunks from its data segments and fans them out to
// every connected subscriber.
type Publisher struct {
	ID       uniqueid.PortId
	historyN int

	mu          sync.Mutex
	seq         uint64
	segs        []*segment
	grow        GrowFn
	interrupt   func() bool
	history     []*Chunk
	inFlight    map[Descriptor]struct{}
	connections []*Connection
	closed      bool
}

// NewPublisher builds a Publisher over a pre-sized first data segment,
// backed by the allocation strategy the service's static config selected.
func NewPublisher(id uniqueid.PortId, alloc shm.Allocator, data []byte, historySize uint64) *Publisher {
	return &Publisher{
		ID:       id,
		historyN: int(historySize),
		segs:     []*segment{{alloc: alloc, data: data}},
		inFlight: map[Descriptor]struct{}{},
	}
}

// SetInterruptFn installs the token a blocking Send consults so it can
// return ErrInterrupted instead of sleeping through a shutdown.
func (p *Publisher) SetInterruptFn(fn func() bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interrupt = fn
}

// SetGrowFn installs the segment-growth hook for variable slice payloads.
func (p *Publisher) SetGrowFn(fn GrowFn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grow = fn
}

// SegmentCount reports how many data segments the publisher has acquired.
func (p *Publisher) SegmentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.segs)
}

// Connect registers a subscriber's ring so future sends reach it, and
// replays this publisher's retained history to the new subscriber so a
// late joiner observes the bounded backlog.
func (p *Publisher) Connect(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.connections {
		if existing.SubscriberID == c.SubscriberID {
			return
		}
	}
	p.connections = append(p.connections, c)
	for _, h := range p.history {
		h.Header.refCount.Add(1)
		if err := c.Ring.Push(h.Desc); err != nil {
			h.Header.refCount.Add(-1)
		}
	}
}

// Disconnect removes a subscriber's connection, e.g. on subscriber close
// or dead-node cleanup.
func (p *Publisher) Disconnect(subscriberID uniqueid.PortId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.connections[:0]
	for _, c := range p.connections {
		if c.SubscriberID != subscriberID {
			out = append(out, c)
		}
	}
	p.connections = out
}

// Loan reserves a chunk of at least `size` payload bytes. When every
// segment is exhausted and a GrowFn is installed, an additional segment
// is acquired; the existing segments are never resized, so descriptors
// already in flight stay valid.
func (p *Publisher) Loan(size uint64) (*Chunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	headerSize := sampleHeaderSize()
	need := size + headerSize

	segIdx := len(p.segs) - 1
	offset, err := p.segs[segIdx].alloc.Loan(need)
	if err != nil {
		if p.grow == nil {
			return nil, err
		}
		alloc, data, gerr := p.grow(need)
		if gerr != nil {
			return nil, gerr
		}
		p.segs = append(p.segs, &segment{alloc: alloc, data: data})
		segIdx = len(p.segs) - 1
		offset, err = p.segs[segIdx].alloc.Loan(need)
		if err != nil {
			return nil, err
		}
	}

	seg := p.segs[segIdx]
	hdr := (*SampleHeader)(asPointer(seg.data, offset))
	hdr.PublisherID = p.ID
	hdr.PayloadSize = size
	hdr.Elements = 0
	hdr.SequenceNr = 0
	hdr.refCount.Store(1)

	payload := seg.data[offset+headerSize : offset+headerSize+size]
	return &Chunk{Header: hdr, Desc: makeDescriptor(segIdx, offset), Payload: payload}, nil
}

// Send publishes a loaned chunk to every connected subscriber. A full
// ring is handled per the connection's strategy: discard-oldest evicts
// the oldest unread sample, discard drops the new one and reports
// ErrUnableToDeliver, block suspends until the subscriber consumes a
// slot (ErrInterrupted if the interrupt token fires first). Either way
// the chunk enters the history buffer and the loan reference is
// dropped, so the caller must not touch the chunk afterwards.
func (p *Publisher) Send(c *Chunk) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.seq++
	c.Header.SequenceNr = p.seq
	conns := append([]*Connection(nil), p.connections...)
	interrupt := p.interrupt
	p.mu.Unlock()

	// The fan-out runs without the publisher lock so a suspended
	// blocking delivery never stalls connection updates or sample
	// releases on other goroutines.
	var lastErr error
	for _, conn := range conns {
		c.Header.refCount.Add(1)
		if err := conn.Ring.Push(c.Desc); err == nil {
			continue
		}
		switch conn.strategy {
		case UnableToDeliverStrategyDiscard:
			c.Header.refCount.Add(-1)
			lastErr = ErrUnableToDeliver
		case UnableToDeliverStrategyBlock:
			if err := blockUntilPushed(conn, c.Desc, interrupt); err != nil {
				c.Header.refCount.Add(-1)
				lastErr = err
			}
		default:
			if old, oerr := conn.Ring.Pop(); oerr == nil {
				p.Release(old)
				if err := conn.Ring.Push(c.Desc); err != nil {
					c.Header.refCount.Add(-1)
					lastErr = err
				}
			} else {
				c.Header.refCount.Add(-1)
				lastErr = oerr
			}
		}
	}

	p.mu.Lock()
	p.inFlight[c.Desc] = struct{}{}
	p.retain(c)
	p.releaseLocked(c.Desc)
	p.reclaimLocked(reclaimBudget)
	p.mu.Unlock()
	return lastErr
}

// blockWakeInterval bounds how long a blocked sender sleeps before
// re-probing the ring; it covers both the mapped-ring cursor poll and
// the missed-wakeup window of the condition variable, and is where a
// freshly fired interrupt token is observed at the latest.
const blockWakeInterval = time.Millisecond

// blockUntilPushed parks until the descriptor fits the ring. Spurious
// wakes simply retry the push.
func blockUntilPushed(conn *Connection, desc Descriptor, interrupt func() bool) error {
	for {
		if conn.detached.Load() {
			return ErrUnableToDeliver
		}
		if interrupt != nil && interrupt() {
			return ErrInterrupted
		}
		if err := conn.Ring.Push(desc); err == nil {
			return nil
		}
		if conn.consumed != nil {
			conn.consumed.L.Lock()
			timer := time.AfterFunc(blockWakeInterval, conn.consumed.Broadcast)
			conn.consumed.Wait()
			timer.Stop()
			conn.consumed.L.Unlock()
		} else {
			time.Sleep(blockWakeInterval)
		}
	}
}

// reclaimBudget caps how many in-flight descriptors one Send inspects
// for remote releases, keeping the per-call cleanup cost constant.
const reclaimBudget = 8

// reclaimLocked returns chunks whose last reference was dropped by a
// reader in another process: such a reader can only decrement the
// shared reference count, never touch this process's allocator, so the
// owner sweeps a bounded number of outstanding descriptors per call.
func (p *Publisher) reclaimLocked(budget int) {
	for desc := range p.inFlight {
		if budget == 0 {
			return
		}
		budget--
		segIdx, offset := splitDescriptor(desc)
		if segIdx >= len(p.segs) {
			delete(p.inFlight, desc)
			continue
		}
		seg := p.segs[segIdx]
		hdr := (*SampleHeader)(asPointer(seg.data, offset))
		if hdr.refCount.Load() == 0 {
			seg.alloc.Return(offset, sampleHeaderSize()+hdr.PayloadSize)
			delete(p.inFlight, desc)
		}
	}
}

// ReclaimDead sweeps up to limit outstanding descriptors for remotely
// released chunks, the explicit counterpart to Send's implicit sweep.
func (p *Publisher) ReclaimDead(limit int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reclaimLocked(limit)
}

// retain appends c to the bounded history buffer, evicting the oldest
// entry once the configured history size is exceeded.
func (p *Publisher) retain(c *Chunk) {
	if p.historyN == 0 {
		return
	}
	c.Header.refCount.Add(1)
	p.history = append(p.history, c)
	if len(p.history) > p.historyN {
		evicted := p.history[0]
		p.history = p.history[1:]
		p.releaseLocked(evicted.Desc)
	}
}

// Release drops one reference on the chunk named by desc, returning it
// to its segment's allocator once the count reaches zero. Safe to call
// from a subscriber's goroutine.
func (p *Publisher) Release(desc Descriptor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releaseLocked(desc)
}

func (p *Publisher) releaseLocked(desc Descriptor) {
	segIdx, offset := splitDescriptor(desc)
	if segIdx >= len(p.segs) {
		return
	}
	seg := p.segs[segIdx]
	hdr := (*SampleHeader)(asPointer(seg.data, offset))
	if hdr.refCount.Add(-1) == 0 {
		seg.alloc.Return(offset, sampleHeaderSize()+hdr.PayloadSize)
		delete(p.inFlight, desc)
	}
}

// Resolve maps a received descriptor back onto the publisher's mapped
// memory, returning the chunk's header and payload bytes.
func (p *Publisher) Resolve(desc Descriptor) (*SampleHeader, []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	segIdx, offset := splitDescriptor(desc)
	if segIdx >= len(p.segs) {
		return nil, nil
	}
	seg := p.segs[segIdx]
	hdr := (*SampleHeader)(asPointer(seg.data, offset))
	headerSize := sampleHeaderSize()
	return hdr, seg.data[offset+headerSize : offset+headerSize+hdr.PayloadSize]
}

// Close disconnects every subscriber and releases the retained history.
// Samples a subscriber still borrows stay valid until it drops them.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.connections = nil
	for _, h := range p.history {
		p.releaseLocked(h.Desc)
	}
	p.history = nil
	return nil
}

// Subscriber drains connected publishers' rings one sample at a time, in
// round-robin order by connection registration.
type Subscriber struct {
	ID uniqueid.PortId

	mu          sync.Mutex
	connections []*Connection
	releaseFn   func(conn *Connection, desc Descriptor)
	cursor      int
	closed      bool
}

// NewSubscriber builds a Subscriber. releaseFn is called once a received
// chunk is released by the caller, to return it to its owning publisher's
// allocator; this package has no direct handle on a foreign publisher's
// segments, so the owning port factory supplies the hook.
func NewSubscriber(id uniqueid.PortId, releaseFn func(conn *Connection, desc Descriptor)) *Subscriber {
	return &Subscriber{ID: id, releaseFn: releaseFn}
}

// Attach registers a publisher's connection as a source.
func (s *Subscriber) Attach(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.connections {
		if existing.PublisherID == c.PublisherID {
			return
		}
	}
	s.connections = append(s.connections, c)
}

// Detach removes a connection, e.g. when its publisher closes. Entries
// still queued in the ring are drained and released so their chunks
// return to the free list. The drain runs outside the subscriber's lock
// because the release hook may call back into the owning factory.
func (s *Subscriber) Detach(c *Connection) {
	s.mu.Lock()
	out := s.connections[:0]
	found := false
	for _, existing := range s.connections {
		if existing != c {
			out = append(out, existing)
			continue
		}
		found = true
	}
	s.connections = out
	s.mu.Unlock()

	if !found {
		return
	}
	for {
		desc, err := c.Ring.Pop()
		if err != nil {
			break
		}
		if s.releaseFn != nil {
			s.releaseFn(c, desc)
		}
	}
}

// Received is one delivered descriptor plus the connection it arrived
// over, needed so ReleaseSample can credit the right publisher.
type Received struct {
	Conn *Connection
	Desc Descriptor
}

// Receive pops the next available descriptor, scanning connections in
// round-robin order starting just after the last connection that yielded
// a sample, so no single fast publisher starves the others.
func (s *Subscriber) Receive() (*Received, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	n := len(s.connections)
	for i := 0; i < n; i++ {
		idx := (s.cursor + i) % n
		conn := s.connections[idx]
		desc, err := conn.Ring.Pop()
		if err == nil {
			s.cursor = (idx + 1) % n
			conn.signalConsumed()
			return &Received{Conn: conn, Desc: desc}, nil
		}
	}
	return nil, ErrNoSample
}

// ReleaseSample returns a received chunk's reference, allowing the
// owning publisher to reclaim the backing memory once every holder has
// released it.
func (s *Subscriber) ReleaseSample(r *Received) {
	if s.releaseFn != nil {
		s.releaseFn(r.Conn, r.Desc)
	}
}

// Close drains and detaches every connection.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	conns := s.connections
	s.connections = nil
	s.closed = true
	s.mu.Unlock()
	for _, c := range conns {
		for {
			desc, err := c.Ring.Pop()
			if err != nil {
				break
			}
			if s.releaseFn != nil {
				s.releaseFn(c, desc)
			}
		}
	}
	return nil
}
