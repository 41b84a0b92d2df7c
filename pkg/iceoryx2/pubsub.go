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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/iox2go/iceoryx2/internal/pubsub"
	"github.com/iox2go/iceoryx2/internal/registry"
)

// PortFactoryPubSub represents an opened publish-subscribe service.
// It is used to create publishers and subscribers.
type PortFactoryPubSub struct {
	rt          *serviceRuntime
	node        *Node
	serviceType ServiceType
	closed      bool
}

// Close releases the resources associated with the PortFactoryPubSub.
// Implements io.Closer.
func (p *PortFactoryPubSub) Close() error {
	if p.rt != nil && !p.closed {
		p.closed = true
		p.rt.release(p.node)
	}
	return nil
}

// PublisherBuilder returns a builder for creating a new Publisher.
func (p *PortFactoryPubSub) PublisherBuilder() *PublisherBuilder {
	if p == nil || p.closed {
		return nil
	}
	return &PublisherBuilder{
		factory:     p,
		serviceType: p.serviceType,
		strategy:    UnableToDeliverStrategyBlock,
		allocation:  AllocationStrategy(p.rt.cfg.DefaultAllocationStrategy),
		maxSlice:    1,
	}
}

// SubscriberBuilder returns a builder for creating a new Subscriber.
func (p *PortFactoryPubSub) SubscriberBuilder() *SubscriberBuilder {
	if p == nil || p.closed {
		return nil
	}
	return &SubscriberBuilder{factory: p, serviceType: p.serviceType}
}

// Attributes returns the service's attribute set.
func (p *PortFactoryPubSub) Attributes() *AttributeSet {
	if p == nil || p.closed {
		return nil
	}
	return newAttributeSet(p.rt.static.Attributes)
}

// StaticConfig returns the static configuration of the service.
func (p *PortFactoryPubSub) StaticConfig() *StaticConfigPubSub {
	if p == nil || p.closed {
		return nil
	}
	sc := p.rt.static
	out := &StaticConfigPubSub{
		MaxSubscribers:               sc.MaxSubscribers,
		MaxPublishers:                sc.MaxPublishers,
		MaxNodes:                     sc.MaxNodes,
		HistorySize:                  sc.HistorySize,
		SubscriberMaxBufferSize:      sc.SubscriberMaxBufferSize,
		SubscriberMaxBorrowedSamples: sc.SubscriberMaxBorrowedSamples,
		EnableSafeOverflow:           sc.EnableSafeOverflow,
	}
	if sc.Payload != nil {
		out.MessageTypeDetails.PayloadTypeName = sc.Payload.TypeName
		out.MessageTypeDetails.PayloadSize = sc.Payload.Size
		out.MessageTypeDetails.PayloadAlignment = sc.Payload.Alignment
	}
	if sc.UserHeader != nil {
		out.MessageTypeDetails.UserHeaderTypeName = sc.UserHeader.TypeName
		out.MessageTypeDetails.UserHeaderSize = sc.UserHeader.Size
		out.MessageTypeDetails.UserHeaderAlignment = sc.UserHeader.Alignment
	}
	return out
}

// NumberOfPublishers returns the number of currently connected publishers.
func (p *PortFactoryPubSub) NumberOfPublishers() uint64 {
	if p == nil || p.closed {
		return 0
	}
	return p.rt.countPorts(registry.PortKindPublisher)
}

// NumberOfSubscribers returns the number of currently connected subscribers.
func (p *PortFactoryPubSub) NumberOfSubscribers() uint64 {
	if p == nil || p.closed {
		return 0
	}
	return p.rt.countPorts(registry.PortKindSubscriber)
}

// ServiceName returns the name of the service.
func (p *PortFactoryPubSub) ServiceName() string {
	if p == nil || p.closed {
		return ""
	}
	return p.rt.static.Name
}

// ServiceID returns the unique identifier of the service.
func (p *PortFactoryPubSub) ServiceID() string {
	if p == nil || p.closed {
		return ""
	}
	return p.rt.static.UUID
}

// PublisherBuilder is used to configure and create a Publisher.
type PublisherBuilder struct {
	factory     *PortFactoryPubSub
	serviceType ServiceType
	strategy    UnableToDeliverStrategy
	allocation  AllocationStrategy
	maxSlice    uint64
	maxLoans    *uint64
	consumed    bool
}

// MaxSliceLen sets the maximum slice length for loans (for dynamic-sized payloads).
func (b *PublisherBuilder) MaxSliceLen(n uint64) *PublisherBuilder {
	if b != nil {
		b.maxSlice = n
	}
	return b
}

// MaxLoanedSamples caps how many samples this publisher may have loaned
// at once, within the service's published limit.
func (b *PublisherBuilder) MaxLoanedSamples(n uint64) *PublisherBuilder {
	if b != nil {
		b.maxLoans = &n
	}
	return b
}

// UnableToDeliverStrategy sets the strategy when subscriber buffer is full.
func (b *PublisherBuilder) UnableToDeliverStrategy(strategy UnableToDeliverStrategy) *PublisherBuilder {
	if b != nil {
		b.strategy = strategy
	}
	return b
}

// AllocationStrategy selects how the publisher's data segment grows when
// slice loans outgrow it.
func (b *PublisherBuilder) AllocationStrategy(strategy AllocationStrategy) *PublisherBuilder {
	if b != nil {
		b.allocation = strategy
	}
	return b
}

// Create creates the Publisher.
func (b *PublisherBuilder) Create() (*Publisher, error) {
	if b == nil || b.factory == nil {
		return nil, ErrNilHandle
	}
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	rt := b.factory.rt
	maxLoans := rt.static.MaxLoanedSamples
	if b.maxLoans != nil && *b.maxLoans < maxLoans {
		maxLoans = *b.maxLoans
	}

	entry, err := rt.addPublisher(b.factory.node, b.strategy, b.maxSlice, b.allocation)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		rt:          rt,
		entry:       entry,
		serviceType: b.serviceType,
		strategy:    b.strategy,
		maxSlice:    b.maxSlice,
		maxLoans:    maxLoans,
		lastGen:     rt.generation(),
	}, nil
}

// Publisher sends samples to subscribers.
type Publisher struct {
	rt          *serviceRuntime
	entry       *publisherEntry
	serviceType ServiceType
	strategy    UnableToDeliverStrategy
	maxSlice    uint64
	maxLoans    uint64
	loans       atomic.Int64
	lastGen     uint64
	closed      atomic.Bool
}

// Close releases the resources associated with the Publisher.
// Implements io.Closer.
func (p *Publisher) Close() error {
	if p != nil && p.closed.CompareAndSwap(false, true) {
		p.rt.removePublisher(p.entry)
	}
	return nil
}

// ID returns the unique identifier of this publisher.
func (p *Publisher) ID() (*UniquePublisherId, error) {
	if p == nil || p.closed.Load() {
		return nil, ErrPublisherClosed
	}
	return &UniquePublisherId{id: p.entry.id}, nil
}

// UpdateConnections re-reads the service's membership and (re)establishes
// connections to any new subscribers. Send performs this implicitly, but
// a publisher that is idle between sends can call it to pick up late
// joiners eagerly, since no background thread does. The call also sweeps
// for chunks whose last reference was dropped by a reader in another
// process.
func (p *Publisher) UpdateConnections() error {
	if p == nil || p.closed.Load() {
		return ErrPublisherClosed
	}
	if err := p.rt.reconcile(); err != nil {
		return ConnectionFailureFailedToEstablish
	}
	p.entry.port.ReclaimDead(32)
	p.lastGen = p.rt.generation()
	return nil
}

// UnableToDeliverStrategy returns the strategy the publisher follows when a sample
// cannot be delivered because the subscriber's buffer is full.
func (p *Publisher) UnableToDeliverStrategy() UnableToDeliverStrategy {
	if p == nil || p.closed.Load() {
		return UnableToDeliverStrategyBlock
	}
	return p.strategy
}

// InitialMaxSliceLen returns the maximum slice length that can be loaned in one sample.
func (p *Publisher) InitialMaxSliceLen() uint64 {
	if p == nil || p.closed.Load() {
		return 0
	}
	return p.maxSlice
}

// LoanUninit loans an uninitialized sample for writing.
// The caller must write to the payload before sending.
func (p *Publisher) LoanUninit() (*SampleMut, error) {
	return p.LoanSliceUninit(1)
}

// LoanSliceUninit loans an uninitialized sample with the given number of
// elements. Exceeding the loan cap fails immediately and never blocks.
func (p *Publisher) LoanSliceUninit(len uint64) (*SampleMut, error) {
	if p == nil || p.closed.Load() {
		return nil, ErrPublisherClosed
	}
	if uint64(p.loans.Load()) >= p.maxLoans {
		return nil, LoanErrorExceedsMaxLoanedSamples
	}

	chunk, err := p.entry.port.Loan(p.rt.loanSize(len))
	if err != nil {
		if errors.Is(err, pubsub.ErrClosed) {
			return nil, ErrPublisherClosed
		}
		return nil, LoanErrorOutOfMemory
	}
	chunk.Header.Elements = len
	p.loans.Add(1)

	return &SampleMut{
		pub:      p,
		chunk:    chunk,
		elements: len,
	}, nil
}

// Send sends the given data directly (copy-based send).
// For zero-copy, use LoanUninit, write to the payload, and call Send on the SampleMut.
func (p *Publisher) Send(data []byte) error {
	elemSize := p.rt.elementSize()
	elements := (uint64(len(data)) + elemSize - 1) / elemSize
	if elements == 0 {
		elements = 1
	}
	sample, err := p.LoanSliceUninit(elements)
	if err != nil {
		return err
	}
	copy(sample.PayloadMut(), data)
	return sample.Send()
}

// sendSample finalizes a loaned sample: updates connections if the
// membership changed since the last send, then fans the chunk out.
func (p *Publisher) sendSample(s *SampleMut) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	if gen := p.rt.generation(); gen != p.lastGen {
		if err := p.rt.reconcile(); err != nil {
			return SendErrorConnectionError
		}
		p.lastGen = gen
	}
	err := p.entry.port.Send(s.chunk)
	p.loans.Add(-1)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pubsub.ErrUnableToDeliver):
		return SendErrorUnableToDeliver
	case errors.Is(err, pubsub.ErrInterrupted):
		return SendErrorInterrupted
	case errors.Is(err, pubsub.ErrClosed):
		return ErrPublisherClosed
	default:
		return SendErrorConnectionError
	}
}

// SampleMut represents a loaned sample that can be written to and sent.
type SampleMut struct {
	pub      *Publisher
	chunk    *pubsub.Chunk
	elements uint64
	done     bool
}

// Close releases the sample without sending it, returning the chunk to
// the publisher's data segment.
// Implements io.Closer.
func (s *SampleMut) Close() error {
	if s == nil || s.done {
		return nil
	}
	s.done = true
	s.pub.entry.port.Release(s.chunk.Desc)
	s.pub.loans.Add(-1)
	return nil
}

// Header returns the publish-subscribe header for this sample.
func (s *SampleMut) Header() (*PublishSubscribeHeader, error) {
	if s == nil || s.done {
		return nil, ErrSampleClosed
	}
	return &PublishSubscribeHeader{
		publisherID:      s.pub.entry.id,
		numberOfElements: s.elements,
	}, nil
}

// UserHeader returns access to the user-defined header data.
// Returns nil if no user header was configured.
func (s *SampleMut) UserHeader() *UserHeaderMut {
	if s == nil || s.done {
		return nil
	}
	size := s.pub.rt.userHeaderSize()
	if size == 0 {
		return nil
	}
	return &UserHeaderMut{ptr: unsafe.Pointer(&s.chunk.Payload[0]), size: uintptr(size)}
}

// PayloadMut returns a mutable slice to the payload data.
// The returned slice is valid until Send or Close is called.
func (s *SampleMut) PayloadMut() []byte {
	if s == nil || s.done {
		return nil
	}
	rt := s.pub.rt
	start := rt.payloadPrefix() - pubsub.HeaderSize()
	return s.chunk.Payload[start : start+rt.elementSize()*s.elements]
}

// Write writes the given data to the sample payload.
// This is a convenience method that copies data to the payload.
func (s *SampleMut) Write(data []byte) {
	if payload := s.PayloadMut(); payload != nil {
		copy(payload, data)
	}
}

// WriteAt writes data to the sample payload at the given offset.
func (s *SampleMut) WriteAt(data []byte, offset int) {
	if payload := s.PayloadMut(); payload != nil && offset < len(payload) {
		copy(payload[offset:], data)
	}
}

// Send sends the sample to all subscribers.
// After calling Send, the SampleMut should not be used.
func (s *SampleMut) Send() error {
	if s == nil || s.done {
		return ErrSampleClosed
	}
	s.done = true
	return s.pub.sendSample(s)
}

// SubscriberBuilder is used to configure and create a Subscriber.
type SubscriberBuilder struct {
	factory     *PortFactoryPubSub
	serviceType ServiceType
	bufferSize  uint64
	maxBorrows  *uint64
	consumed    bool
}

// BufferSize sets the buffer size for the subscriber.
func (b *SubscriberBuilder) BufferSize(n uint64) *SubscriberBuilder {
	if b != nil {
		b.bufferSize = n
	}
	return b
}

// MaxBorrowedSamples caps how many received samples this subscriber may
// hold at once, within the service's published limit.
func (b *SubscriberBuilder) MaxBorrowedSamples(n uint64) *SubscriberBuilder {
	if b != nil {
		b.maxBorrows = &n
	}
	return b
}

// Create creates the Subscriber.
func (b *SubscriberBuilder) Create() (*Subscriber, error) {
	if b == nil || b.factory == nil {
		return nil, ErrNilHandle
	}
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	rt := b.factory.rt
	maxBorrows := rt.static.SubscriberMaxBorrowedSamples
	if b.maxBorrows != nil && *b.maxBorrows < maxBorrows {
		maxBorrows = *b.maxBorrows
	}

	entry, err := rt.addSubscriber(b.factory.node, b.bufferSize)
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		rt:          rt,
		entry:       entry,
		serviceType: b.serviceType,
		maxBorrows:  maxBorrows,
	}
	sub.lastGen.Store(rt.generation())
	return sub, nil
}

// Subscriber receives samples from publishers. Safe for concurrent use;
// Close waits for in-flight receive calls to complete.
type Subscriber struct {
	rt          *serviceRuntime
	entry       *subscriberEntry
	serviceType ServiceType
	maxBorrows  uint64
	borrows     atomic.Int64
	lastGen     atomic.Uint64
	mu          sync.RWMutex
	closed      bool
}

// Close releases the resources associated with the Subscriber.
// Implements io.Closer.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.rt.removeSubscriber(s.entry)
	}
	return nil
}

// ID returns the unique identifier of this subscriber.
func (s *Subscriber) ID() (*UniqueSubscriberId, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrSubscriberClosed
	}
	return &UniqueSubscriberId{id: s.entry.id}, nil
}

// BufferSize returns the buffer size of this subscriber.
func (s *Subscriber) BufferSize() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return s.entry.bufferSize
}

// UpdateConnections installs rings from any publishers that joined since
// the subscriber was created. Receive performs this implicitly.
func (s *Subscriber) UpdateConnections() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSubscriberClosed
	}
	if err := s.rt.reconcile(); err != nil {
		return ConnectionFailureFailedToEstablish
	}
	return nil
}

// Receive receives a sample from the subscriber's buffer, installing
// rings from publishers that joined since the last call first.
// Returns ErrNoData if no sample is available.
func (s *Subscriber) Receive() (*Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrSubscriberClosed
	}
	if uint64(s.borrows.Load()) >= s.maxBorrows {
		return nil, ReceiveErrorExceedsMaxBorrows
	}
	if gen := s.rt.generation(); gen != s.lastGen.Load() {
		if err := s.rt.reconcile(); err == nil {
			s.lastGen.Store(gen)
		}
	}

	rec, err := s.entry.port.Receive()
	if err != nil {
		if errors.Is(err, pubsub.ErrNoSample) {
			return nil, ErrNoData
		}
		return nil, ReceiveErrorFailedToEstablishConnection
	}

	hdr, payload := s.rt.resolveSample(rec.Conn.PublisherID, rec.Desc)
	if hdr == nil {
		// The owning publisher vanished between delivery and resolution.
		return nil, ReceiveErrorUnableToMapSendersDataSegment
	}
	s.borrows.Add(1)

	return &Sample{
		sub:         s,
		rec:         rec,
		hdr:         hdr,
		raw:         payload,
		serviceType: s.serviceType,
	}, nil
}

// ReceiveWithContext waits for a sample with context cancellation support.
// The pollInterval parameter controls how often the context is checked (default 10ms if 0).
func (s *Subscriber) ReceiveWithContext(ctx context.Context, pollInterval time.Duration) (*Sample, error) {
	const op = "Subscriber.ReceiveWithContext"

	if pollInterval == 0 {
		pollInterval = 10 * time.Millisecond
	}

	// Try once immediately before paying the cost of allocating a ticker.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sample, err := s.Receive()
	if !errors.Is(err, ErrNoData) {
		if err != nil {
			return nil, WrapError(op, err)
		}
		return sample, nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			sample, err := s.Receive()
			if errors.Is(err, ErrNoData) {
				continue
			}
			if err != nil {
				return nil, WrapError(op, err)
			}
			return sample, nil
		}
	}
}

// ReceiveChannel returns a channel that yields samples as they arrive.
// The channel is closed when the context is cancelled or an error occurs.
func (s *Subscriber) ReceiveChannel(ctx context.Context) <-chan *Sample {
	ch := make(chan *Sample)
	go func() {
		defer close(ch)
		for {
			sample, err := s.ReceiveWithContext(ctx, 10*time.Millisecond)
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				sample.Close()
				return
			case ch <- sample:
			}
		}
	}()
	return ch
}

// Sample represents a received sample from a publisher.
type Sample struct {
	sub         *Subscriber
	rec         *pubsub.Received
	hdr         *pubsub.SampleHeader
	raw         []byte
	serviceType ServiceType
	closed      bool
}

// Close releases the sample, dropping the subscriber's reference on the
// underlying chunk.
// Implements io.Closer.
func (s *Sample) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	s.sub.entry.port.ReleaseSample(s.rec)
	s.sub.borrows.Add(-1)
	return nil
}

// Header returns the publish-subscribe header for this sample.
func (s *Sample) Header() (*PublishSubscribeHeader, error) {
	if s == nil || s.closed {
		return nil, ErrSampleClosed
	}
	return &PublishSubscribeHeader{
		publisherID:      s.hdr.PublisherID,
		numberOfElements: s.hdr.Elements,
	}, nil
}

// UserHeader returns access to the user-defined header data.
// Returns nil if no user header was configured.
func (s *Sample) UserHeader() *UserHeader {
	if s == nil || s.closed {
		return nil
	}
	size := s.sub.rt.userHeaderSize()
	if size == 0 {
		return nil
	}
	return &UserHeader{ptr: unsafe.Pointer(&s.raw[0]), size: uintptr(size)}
}

// Payload returns the payload data as a byte slice.
// The returned slice is valid until Close is called.
func (s *Sample) Payload() []byte {
	if s == nil || s.closed {
		return nil
	}
	rt := s.sub.rt
	start := rt.payloadPrefix() - pubsub.HeaderSize()
	return s.raw[start : start+rt.elementSize()*s.hdr.Elements]
}

// PayloadAs interprets the payload as a value of type T.
// T must match the actual payload type used on the publisher side.
func PayloadAs[T any](s *Sample) *T {
	return (*T)(s.PayloadPtr())
}

// PayloadPtr returns a raw pointer to the payload data.
// Prefer using PayloadAs[T] for type-safe access.
func (s *Sample) PayloadPtr() unsafe.Pointer {
	payload := s.Payload()
	if len(payload) == 0 {
		return nil
	}
	return unsafe.Pointer(&payload[0])
}

// WritePayloadAs is a helper for writing a value of type T to a SampleMut.
// T must match the payload type configured for the service.
func WritePayloadAs[T any](s *SampleMut, value *T) {
	s.WritePayloadPtr(unsafe.Pointer(value), unsafe.Sizeof(*value))
}

// WritePayloadPtr copies size bytes from src into the sample payload.
func (s *SampleMut) WritePayloadPtr(src unsafe.Pointer, size uintptr) {
	payload := s.PayloadMut()
	if payload == nil || src == nil {
		return
	}
	if size > uintptr(len(payload)) {
		size = uintptr(len(payload))
	}
	copy(payload, unsafe.Slice((*byte)(src), size))
}

// PayloadMutAs returns a pointer to the payload as type T.
func PayloadMutAs[T any](s *SampleMut) *T {
	return (*T)(s.PayloadMutPtr())
}

// PayloadMutPtr returns a raw mutable pointer to the payload data.
// Prefer using PayloadMutAs[T] for type-safe access.
func (s *SampleMut) PayloadMutPtr() unsafe.Pointer {
	payload := s.PayloadMut()
	if len(payload) == 0 {
		return nil
	}
	return unsafe.Pointer(&payload[0])
}
