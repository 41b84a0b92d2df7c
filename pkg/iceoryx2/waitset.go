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

	"github.com/iox2go/iceoryx2/internal/waitset"
)

// WaitSetRunResult represents the result of a WaitSet run operation.
type WaitSetRunResult int

const (
	// WaitSetRunResultTerminationRequest indicates a termination was requested.
	WaitSetRunResultTerminationRequest WaitSetRunResult = iota
	// WaitSetRunResultInterrupt indicates the wait was interrupted.
	WaitSetRunResultInterrupt
	// WaitSetRunResultStopRequest indicates a stop was requested.
	WaitSetRunResultStopRequest
	// WaitSetRunResultAllEventsHandled indicates all events were handled.
	WaitSetRunResultAllEventsHandled
)

// String implements fmt.Stringer for WaitSetRunResult.
func (r WaitSetRunResult) String() string {
	switch r {
	case WaitSetRunResultTerminationRequest:
		return "TerminationRequest"
	case WaitSetRunResultInterrupt:
		return "Interrupt"
	case WaitSetRunResultStopRequest:
		return "StopRequest"
	case WaitSetRunResultAllEventsHandled:
		return "AllEventsHandled"
	default:
		return "Unknown"
	}
}

// waitSetCapacity bounds the number of attachments one WaitSet accepts.
const waitSetCapacity = 128

// WaitSetBuilder is used to configure and create a WaitSet.
type WaitSetBuilder struct {
	signalMode SignalHandlingMode
	consumed   bool
}

// NewWaitSetBuilder creates a new WaitSetBuilder.
func NewWaitSetBuilder() *WaitSetBuilder {
	return &WaitSetBuilder{signalMode: SignalHandlingModeHandleTerminationRequests}
}

// SignalHandlingMode sets how signals are handled by the WaitSet.
func (b *WaitSetBuilder) SignalHandlingMode(mode SignalHandlingMode) *WaitSetBuilder {
	if b != nil {
		b.signalMode = mode
	}
	return b
}

// Create creates a new WaitSet.
func (b *WaitSetBuilder) Create(serviceType ServiceType) (*WaitSet, error) {
	if b == nil || b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true
	if b.signalMode == SignalHandlingModeHandleTerminationRequests {
		installTerminationHandler()
	}
	return &WaitSet{
		inner:       waitset.New(),
		serviceType: serviceType,
		signalMode:  b.signalMode,
	}, nil
}

// Close releases the builder resources without creating a WaitSet.
// Implements io.Closer.
func (b *WaitSetBuilder) Close() error {
	if b != nil {
		b.consumed = true
	}
	return nil
}

// WaitSet provides event-driven waiting for multiple sources. Its wait
// calls must not run concurrently from two goroutines of the same
// WaitSet.
type WaitSet struct {
	inner       *waitset.WaitSet
	serviceType ServiceType
	signalMode  SignalHandlingMode

	mu     sync.Mutex
	guards []*WaitSetGuard
	closed bool
}

// listenerSource adapts a listener's channel to the waitset's polling
// contract: the source reports pending activity without consuming it, so
// the user callback can still drain the listener itself.
type listenerSource struct {
	l *Listener
}

func (s listenerSource) TryConsume() bool {
	return s.l.entry.ch.HasPending()
}

// AttachNotification attaches a listener to the WaitSet for notification events.
func (w *WaitSet) AttachNotification(listener *Listener) (*WaitSetGuard, error) {
	if listener == nil {
		return nil, ErrNilHandle
	}
	return w.attach(func() (waitset.Handle, error) {
		return w.inner.AttachNotification(listenerSource{l: listener})
	})
}

// AttachDeadline attaches a listener with a deadline to the WaitSet. If
// the listener stays silent past the deadline, the wait reports a missed
// deadline for this attachment instead.
func (w *WaitSet) AttachDeadline(listener *Listener, deadline time.Duration) (*WaitSetGuard, error) {
	if listener == nil {
		return nil, ErrNilHandle
	}
	return w.attach(func() (waitset.Handle, error) {
		return w.inner.AttachDeadline(listenerSource{l: listener}, deadline)
	})
}

// AttachInterval attaches an interval timer to the WaitSet.
func (w *WaitSet) AttachInterval(interval time.Duration) (*WaitSetGuard, error) {
	return w.attach(func() (waitset.Handle, error) {
		return w.inner.AttachInterval(interval)
	})
}

func (w *WaitSet) attach(do func() (waitset.Handle, error)) (*WaitSetGuard, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWaitSetClosed
	}
	if w.inner.Len() >= waitSetCapacity {
		return nil, WaitSetAttachmentErrorInsufficientCapacity
	}
	handle, err := do()
	if err != nil {
		return nil, WaitSetAttachmentErrorInternalError
	}
	guard := &WaitSetGuard{ws: w, handle: handle}
	w.guards = append(w.guards, guard)
	return guard, nil
}

// WaitSetCallback is the callback function type for WaitSet processing.
// The callback receives a WaitSetAttachmentId that identifies which
// attachment triggered the event.
type WaitSetCallback func(*WaitSetAttachmentId) CallbackProgression

func (w *WaitSet) checkReady() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWaitSetClosed
	}
	if w.inner.Len() == 0 {
		return WaitSetRunErrorNoAttachments
	}
	return nil
}

func toCallback(callback WaitSetCallback) waitset.Callback {
	return func(id waitset.AttachmentId) waitset.Progression {
		if callback == nil {
			return waitset.ProgressionContinue
		}
		if callback(&WaitSetAttachmentId{id: id}) == CallbackProgressionStop {
			return waitset.ProgressionStop
		}
		return waitset.ProgressionContinue
	}
}

func mapRunResult(result waitset.RunResult, err error) (WaitSetRunResult, error) {
	if err != nil {
		if errors.Is(err, waitset.ErrClosed) {
			return 0, ErrWaitSetClosed
		}
		return 0, err
	}
	switch result {
	case waitset.RunResultStopRequested:
		return WaitSetRunResultStopRequest, nil
	case waitset.RunResultInterrupted:
		return WaitSetRunResultInterrupt, nil
	default:
		return WaitSetRunResultAllEventsHandled, nil
	}
}

// WaitAndProcessOnce waits for events and processes them once.
func (w *WaitSet) WaitAndProcessOnce() (WaitSetRunResult, error) {
	return w.WaitAndProcessOnceWithCallback(nil)
}

// WaitAndProcessOnceWithTimeout waits for events with a timeout and processes them.
func (w *WaitSet) WaitAndProcessOnceWithTimeout(timeout time.Duration) (WaitSetRunResult, error) {
	return w.WaitAndProcessOnceWithTimeoutAndCallback(timeout, nil)
}

// WaitAndProcessOnceWithContext waits for events with context cancellation support.
// The pollInterval parameter is kept for API compatibility and is not
// used; the context is checked on every internal poll.
func (w *WaitSet) WaitAndProcessOnceWithContext(ctx context.Context, pollInterval time.Duration) (WaitSetRunResult, error) {
	if err := w.checkReady(); err != nil {
		return 0, err
	}
	if err := terminationError(w.signalMode); err != nil {
		return WaitSetRunResultTerminationRequest, err
	}
	result, err := w.inner.WaitAndProcessOnce(ctx, toCallback(nil))
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return WaitSetRunResultInterrupt, err
	}
	return mapRunResult(result, err)
}

// WaitAndProcessOnceWithCallback waits for events and processes them once
// with a custom callback. The callback is invoked for each attachment
// that triggered; returning CallbackProgressionStop skips the rest.
func (w *WaitSet) WaitAndProcessOnceWithCallback(callback WaitSetCallback) (WaitSetRunResult, error) {
	if err := w.checkReady(); err != nil {
		return 0, err
	}
	if err := terminationError(w.signalMode); err != nil {
		return WaitSetRunResultTerminationRequest, err
	}
	return mapRunResult(w.inner.WaitAndProcessOnce(context.Background(), toCallback(callback)))
}

// WaitAndProcessOnceWithTimeoutAndCallback waits for events with a
// timeout and processes them with a custom callback.
func (w *WaitSet) WaitAndProcessOnceWithTimeoutAndCallback(timeout time.Duration, callback WaitSetCallback) (WaitSetRunResult, error) {
	if err := w.checkReady(); err != nil {
		return 0, err
	}
	if err := terminationError(w.signalMode); err != nil {
		return WaitSetRunResultTerminationRequest, err
	}
	result, err := w.inner.WaitAndProcessOnceWithTimeout(timeout, toCallback(callback))
	if err == nil && result == waitset.RunResultTimeout {
		return WaitSetRunResultAllEventsHandled, nil
	}
	return mapRunResult(result, err)
}

// Run blocks, waiting for events and invoking the callback for each one,
// until the callback requests a stop or a termination signal arrives.
func (w *WaitSet) Run(callback WaitSetCallback) (WaitSetRunResult, error) {
	for {
		result, err := w.WaitAndProcessOnceWithTimeoutAndCallback(100*time.Millisecond, callback)
		if err != nil {
			return result, err
		}
		if result == WaitSetRunResultStopRequest || result == WaitSetRunResultTerminationRequest {
			return result, nil
		}
	}
}

// RunWithContext runs the WaitSet with context cancellation support.
// The pollInterval parameter controls the internal timeout for context checking (default 100ms if 0).
func (w *WaitSet) RunWithContext(ctx context.Context, callback WaitSetCallback, pollInterval time.Duration) (WaitSetRunResult, error) {
	if pollInterval == 0 {
		pollInterval = 100 * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			return WaitSetRunResultInterrupt, ctx.Err()
		default:
			result, err := w.WaitAndProcessOnceWithTimeoutAndCallback(pollInterval, callback)
			if err != nil {
				return result, err
			}
			if result == WaitSetRunResultStopRequest || result == WaitSetRunResultTerminationRequest {
				return result, nil
			}
		}
	}
}

// Close releases the WaitSet resources.
// Implements io.Closer.
func (w *WaitSet) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		w.inner.Close()
		w.guards = nil
	}
	return nil
}

// NumberOfAttachments returns the number of attachments in the WaitSet.
func (w *WaitSet) NumberOfAttachments() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return 0
	}
	return uint64(w.inner.Len())
}

// Capacity returns the maximum number of attachments the WaitSet can hold.
func (w *WaitSet) Capacity() uint64 {
	return waitSetCapacity
}

// IsEmpty returns true if no attachments are present.
func (w *WaitSet) IsEmpty() bool {
	return w.NumberOfAttachments() == 0
}

// SignalHandlingMode returns the signal handling mode the WaitSet was
// created with.
func (w *WaitSet) SignalHandlingMode() SignalHandlingMode {
	return w.signalMode
}

// WaitSetGuard represents an attachment guard in the WaitSet.
type WaitSetGuard struct {
	ws     *WaitSet
	handle waitset.Handle
	closed bool
}

// Close releases the guard and detaches from the WaitSet.
// Implements io.Closer.
func (g *WaitSetGuard) Close() error {
	if g == nil || g.closed {
		return nil
	}
	g.closed = true
	if g.ws != nil {
		g.ws.inner.Detach(g.handle)
	}
	return nil
}

// WaitSetAttachmentId identifies which attachment triggered an event.
type WaitSetAttachmentId struct {
	id waitset.AttachmentId
}

// HasEventFrom checks if the attachment id corresponds to the given guard.
func (a *WaitSetAttachmentId) HasEventFrom(guard *WaitSetGuard) bool {
	if a == nil || guard == nil || guard.closed {
		return false
	}
	return a.id.Is(guard.handle) && !a.id.HasMissedDeadline()
}

// HasMissedDeadline checks if the given guard's deadline was missed.
func (a *WaitSetAttachmentId) HasMissedDeadline(guard *WaitSetGuard) bool {
	if a == nil || guard == nil || guard.closed {
		return false
	}
	return a.id.Is(guard.handle) && a.id.HasMissedDeadline()
}

// Close releases the attachment id.
// Implements io.Closer.
func (a *WaitSetAttachmentId) Close() error {
	return nil
}
