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
	"time"

	"github.com/iox2go/iceoryx2/internal/event"
	"github.com/iox2go/iceoryx2/internal/registry"
	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

// PortFactoryEvent represents an opened event service.
// It is used to create notifiers and listeners.
type PortFactoryEvent struct {
	rt          *serviceRuntime
	node        *Node
	serviceType ServiceType
	closed      bool
}

// Close releases the resources associated with the PortFactoryEvent.
// Implements io.Closer.
func (p *PortFactoryEvent) Close() error {
	if p.rt != nil && !p.closed {
		p.closed = true
		p.rt.release(p.node)
	}
	return nil
}

// NotifierBuilder returns a builder for creating a new Notifier.
func (p *PortFactoryEvent) NotifierBuilder() *NotifierBuilder {
	if p == nil || p.closed {
		return nil
	}
	return &NotifierBuilder{factory: p, serviceType: p.serviceType}
}

// ListenerBuilder returns a builder for creating a new Listener.
func (p *PortFactoryEvent) ListenerBuilder() *ListenerBuilder {
	if p == nil || p.closed {
		return nil
	}
	return &ListenerBuilder{factory: p, serviceType: p.serviceType}
}

// Attributes returns the service's attribute set.
func (p *PortFactoryEvent) Attributes() *AttributeSet {
	if p == nil || p.closed {
		return nil
	}
	return newAttributeSet(p.rt.static.Attributes)
}

// StaticConfig returns the static configuration of the event service.
func (p *PortFactoryEvent) StaticConfig() *StaticConfigEvent {
	if p == nil || p.closed {
		return nil
	}
	sc := p.rt.static
	return &StaticConfigEvent{
		MaxListeners:    sc.MaxListeners,
		MaxNotifiers:    sc.MaxNotifiers,
		MaxNodes:        sc.MaxNodes,
		EventIdMaxValue: sc.EventIdMaxValue,
	}
}

// NumberOfNotifiers returns the number of currently connected notifiers.
func (p *PortFactoryEvent) NumberOfNotifiers() uint64 {
	if p == nil || p.closed {
		return 0
	}
	return p.rt.countPorts(registry.PortKindNotifier)
}

// NumberOfListeners returns the number of currently connected listeners.
func (p *PortFactoryEvent) NumberOfListeners() uint64 {
	if p == nil || p.closed {
		return 0
	}
	return p.rt.countPorts(registry.PortKindListener)
}

// ServiceName returns the name of this event service.
func (p *PortFactoryEvent) ServiceName() string {
	if p == nil || p.closed {
		return ""
	}
	return p.rt.static.Name
}

// ServiceID returns the unique identifier of this event service.
func (p *PortFactoryEvent) ServiceID() string {
	if p == nil || p.closed {
		return ""
	}
	return p.rt.static.UUID
}

// notifyLifecycleEvent fans a configured lifecycle event id out to every
// listener, e.g. when a notifier is created or dropped.
func (p *PortFactoryEvent) notifyLifecycleEvent(id *uint64) {
	if id == nil {
		return
	}
	fan := &fanoutChannel{rt: p.rt}
	fan.Notify(event.EventId(*id))
}

// NotifierBuilder is used to configure and create a Notifier.
type NotifierBuilder struct {
	factory     *PortFactoryEvent
	serviceType ServiceType
	defaultID   uint64
	consumed    bool
}

// DefaultEventId sets the default event ID for notifications.
func (b *NotifierBuilder) DefaultEventId(id uint64) *NotifierBuilder {
	if b != nil {
		b.defaultID = id
	}
	return b
}

// Create creates the Notifier.
func (b *NotifierBuilder) Create() (*Notifier, error) {
	if b == nil || b.factory == nil {
		return nil, ErrNilHandle
	}
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	rt := b.factory.rt
	if b.defaultID > rt.static.EventIdMaxValue {
		return nil, NotifierNotifyErrorEventIdOutOfBounds
	}

	id, err := rt.addNotifier(b.factory.node)
	if err != nil {
		return nil, err
	}

	inner := event.NewNotifier(&fanoutChannel{rt: rt}, event.EventId(b.defaultID), rt.listenerCount)
	n := &Notifier{
		factory:     b.factory,
		rt:          rt,
		inner:       inner,
		id:          id,
		serviceType: b.serviceType,
	}
	b.factory.notifyLifecycleEvent(rt.static.NotifierCreatedEvent)
	return n, nil
}

// Notifier sends event notifications to listeners.
type Notifier struct {
	factory     *PortFactoryEvent
	rt          *serviceRuntime
	inner       *event.Notifier
	id          uniqueid.PortId
	serviceType ServiceType
	mu          sync.Mutex
	closed      bool
}

// Close releases the resources associated with the Notifier.
// Implements io.Closer.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	n.inner.Close()
	n.rt.removeNotifier(n.id)
	n.factory.notifyLifecycleEvent(n.rt.static.NotifierDroppedEvent)
	return nil
}

// ID returns the unique identifier of this notifier.
func (n *Notifier) ID() (*UniqueNotifierId, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrNotifierClosed
	}
	return &UniqueNotifierId{id: n.id}, nil
}

// Deadline returns the deadline duration for this notifier, if configured.
// Returns nil if no deadline is set.
func (n *Notifier) Deadline() *time.Duration {
	if n.rt.static.DeadlineNanos == 0 {
		return nil
	}
	d := time.Duration(n.rt.static.DeadlineNanos)
	return &d
}

// Notify sends a notification with the default event ID.
// Returns the number of listeners that were notified.
func (n *Notifier) Notify() (uint64, error) {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return 0, ErrNotifierClosed
	}
	count, err := n.inner.Notify()
	if err != nil {
		return 0, ErrNotifierClosed
	}
	return count, nil
}

// NotifyWithEventId sends a notification with a specific event ID.
// Returns the number of listeners that were notified.
func (n *Notifier) NotifyWithEventId(eventId uint64) (uint64, error) {
	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return 0, ErrNotifierClosed
	}
	if eventId > n.rt.static.EventIdMaxValue {
		return 0, NotifierNotifyErrorEventIdOutOfBounds
	}
	count, err := n.inner.NotifyWithID(event.EventId(eventId))
	if err != nil {
		return 0, ErrNotifierClosed
	}
	return count, nil
}

// ListenerBuilder is used to configure and create a Listener.
type ListenerBuilder struct {
	factory     *PortFactoryEvent
	serviceType ServiceType
	consumed    bool
}

// Create creates the Listener.
func (b *ListenerBuilder) Create() (*Listener, error) {
	if b == nil || b.factory == nil {
		return nil, ErrNilHandle
	}
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	rt := b.factory.rt
	entry, err := rt.addListener(b.factory.node)
	if err != nil {
		return nil, err
	}

	return &Listener{
		rt:          rt,
		entry:       entry,
		inner:       event.NewListener(entry.ch),
		serviceType: b.serviceType,
	}, nil
}

// Listener receives event notifications from notifiers. Safe for
// concurrent use; Close waits for in-flight TryWaitOne and TryWaitAll
// calls to complete. The blocking waits (WaitOne, TimedWaitOne, WaitAll,
// TimedWaitAll) release the lock before they block, so Close does not
// wait for them.
type Listener struct {
	rt          *serviceRuntime
	entry       *listenerEntry
	inner       *event.Listener
	serviceType ServiceType
	mu          sync.RWMutex
	closed      bool
}

// Close releases the resources associated with the Listener.
// Implements io.Closer.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.inner.Close()
	l.rt.removeListener(l.entry)
	return nil
}

// ID returns the unique identifier of this listener.
func (l *Listener) ID() (*UniqueListenerId, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrListenerClosed
	}
	return &UniqueListenerId{id: l.entry.id}, nil
}

// Deadline returns the deadline duration for this listener, if configured.
// Returns nil if no deadline is set.
func (l *Listener) Deadline() *time.Duration {
	if l.rt.static.DeadlineNanos == 0 {
		return nil
	}
	d := time.Duration(l.rt.static.DeadlineNanos)
	return &d
}

// TryWaitOne attempts to receive a single event without blocking.
// Returns ErrNoData if no event is available.
func (l *Listener) TryWaitOne() (*EventId, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrListenerClosed
	}

	id, err := l.inner.TryWaitOne()
	if err != nil {
		if errors.Is(err, event.ErrNoEvent) {
			return nil, ErrNoData
		}
		return nil, ErrListenerClosed
	}
	out := EventId(id)
	return &out, nil
}

// WaitOne waits for a single event with context support.
func (l *Listener) WaitOne(ctx context.Context) (*EventId, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, ErrListenerClosed
	}
	inner := l.inner
	l.mu.RUnlock()

	id, err := inner.WaitOne(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ErrListenerClosed
	}
	out := EventId(id)
	return &out, nil
}

// TimedWaitOne waits for a single event, up to the given timeout.
// Returns ErrNoData if the timeout elapses without an event.
func (l *Listener) TimedWaitOne(timeout time.Duration) (*EventId, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, ErrListenerClosed
	}
	inner := l.inner
	l.mu.RUnlock()

	id, err := inner.TimedWaitOne(timeout)
	if err != nil {
		if errors.Is(err, event.ErrTimeout) {
			return nil, ErrNoData
		}
		return nil, ErrListenerClosed
	}
	out := EventId(id)
	return &out, nil
}

// TryWaitAll receives all pending events and returns them as a slice.
// Returns an empty slice if no events are available.
func (l *Listener) TryWaitAll() ([]EventId, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrListenerClosed
	}

	ids, err := l.inner.TryWaitAll()
	if err != nil {
		return nil, ErrListenerClosed
	}
	out := make([]EventId, 0, len(ids))
	for _, id := range ids {
		out = append(out, EventId(id))
	}
	return out, nil
}

// WaitAll waits for at least one event and returns all pending events with context support.
func (l *Listener) WaitAll(ctx context.Context) ([]EventId, error) {
	first, err := l.WaitOne(ctx)
	if err != nil {
		return nil, err
	}

	events := []EventId{*first}
	rest, err := l.TryWaitAll()
	if err != nil {
		return events, err
	}
	return append(events, rest...), nil
}

// TimedWaitAll waits for at least one event with a timeout and returns all pending events.
func (l *Listener) TimedWaitAll(timeout time.Duration) ([]EventId, error) {
	first, err := l.TimedWaitOne(timeout)
	if err != nil {
		return nil, err
	}

	events := []EventId{*first}
	rest, err := l.TryWaitAll()
	if err != nil {
		return events, err
	}
	return append(events, rest...), nil
}

// EventChannel returns a channel that yields events as they arrive.
// The channel is closed when the context is cancelled or an error occurs.
func (l *Listener) EventChannel(ctx context.Context) <-chan EventId {
	ch := make(chan EventId)
	go func() {
		defer close(ch)
		for {
			ev, err := l.WaitOne(ctx)
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			case ch <- *ev:
			}
		}
	}()
	return ch
}
