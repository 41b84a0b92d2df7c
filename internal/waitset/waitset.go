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

// Package waitset implements the WaitSet multiplexer: a single
// thread attaches several event sources (listeners, fixed intervals,
// deadlines on a listener) and waits for whichever fires first, without
// spinning a goroutine per source. The contract is
// single-threaded: only the goroutine that owns a WaitSet may call
// WaitAndProcessOnce on it.
package waitset

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a closed WaitSet.
var ErrClosed = errors.New("waitset: already closed")

// RunResult classifies why a wait/process cycle returned.
type RunResult int

const (
	RunResultAttachmentEvent RunResult = iota
	RunResultTimeout
	RunResultStopRequested
	RunResultInterrupted
)

func (r RunResult) String() string {
	switch r {
	case RunResultAttachmentEvent:
		return "AttachmentEvent"
	case RunResultTimeout:
		return "Timeout"
	case RunResultStopRequested:
		return "StopRequested"
	case RunResultInterrupted:
		return "Interrupted"
	default:
		return "Unknown"
	}
}

// Progression tells WaitSet whether to keep dispatching or stop early,
// the same vocabulary CallbackProgression uses elsewhere.
type Progression int

const (
	ProgressionContinue Progression = iota
	ProgressionStop
)

// Source is anything a WaitSet can multiplex over: a listener's pending
// event, or a plain timer. TryConsume reports whether the source fired
// and, if so, consumes that firing (so a level-triggered source like a
// bitset listener is not reported twice for the same notification).
type Source interface {
	TryConsume() bool
}

// AttachmentId identifies which attachment fired during one dispatch.
type AttachmentId struct {
	index          int
	missedDeadline bool
}

// Is reports whether this attachment id refers to the guard returned by
// the Attach* call that produced h.
func (a AttachmentId) Is(h Handle) bool { return a.index == h.index }

// HasMissedDeadline reports whether this firing was a deadline timeout
// rather than the listener's own notification.
func (a AttachmentId) HasMissedDeadline() bool { return a.missedDeadline }

// Handle identifies one attachment for later Detach calls.
type Handle struct {
	index int
}

type attachment struct {
	source   Source
	interval time.Duration
	nextFire time.Time
	isTimer  bool
}

// WaitSet multiplexes over attached sources from a single owning thread.
type WaitSet struct {
	mu          sync.Mutex
	attachments []*attachment
	closed      bool
}

// New builds an empty WaitSet.
func New() *WaitSet {
	return &WaitSet{}
}

// AttachNotification attaches a Source whose TryConsume reports listener
// activity; it fires whenever the source has something pending.
func (w *WaitSet) AttachNotification(s Source) (Handle, error) {
	return w.attach(&attachment{source: s})
}

// AttachDeadline attaches a Source with an accompanying deadline: if the
// source doesn't fire within `deadline` of the previous firing (or of
// attachment), the wait set reports a missed deadline instead.
func (w *WaitSet) AttachDeadline(s Source, deadline time.Duration) (Handle, error) {
	return w.attach(&attachment{source: s, interval: deadline, nextFire: time.Now().Add(deadline)})
}

// AttachInterval attaches a pure timer source with no listener, firing
// every `interval` regardless of any other activity.
func (w *WaitSet) AttachInterval(interval time.Duration) (Handle, error) {
	return w.attach(&attachment{interval: interval, nextFire: time.Now().Add(interval), isTimer: true})
}

func (w *WaitSet) attach(a *attachment) (Handle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return Handle{}, ErrClosed
	}
	w.attachments = append(w.attachments, a)
	return Handle{index: len(w.attachments) - 1}, nil
}

// Detach removes an attachment so it is no longer polled.
func (w *WaitSet) Detach(h Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if h.index >= 0 && h.index < len(w.attachments) {
		w.attachments[h.index] = nil
	}
}

// Callback is invoked once per fired attachment during a dispatch cycle.
type Callback func(AttachmentId) Progression

// pollInterval is how often WaitAndProcessOnce re-scans attachments
// while waiting; there is no portable cross-source
// cancellable wait primitive, so the implementation polls.
const pollInterval = time.Millisecond

// WaitAndProcessOnce blocks until at least one attachment fires (or ctx
// is done), then invokes callback for every attachment that fired,
// in attachment order.
func (w *WaitSet) WaitAndProcessOnce(ctx context.Context, callback Callback) (RunResult, error) {
	for {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return RunResultStopRequested, ErrClosed
		}
		now := time.Now()
		fired := false
		for i, a := range w.attachments {
			if a == nil {
				continue
			}
			id := AttachmentId{index: i}
			switch {
			case a.isTimer:
				if !now.Before(a.nextFire) {
					a.nextFire = now.Add(a.interval)
					fired = true
					if callback(id) == ProgressionStop {
						w.mu.Unlock()
						return RunResultStopRequested, nil
					}
				}
			case a.source != nil && a.source.TryConsume():
				fired = true
				if a.interval > 0 {
					a.nextFire = now.Add(a.interval)
				}
				if callback(id) == ProgressionStop {
					w.mu.Unlock()
					return RunResultStopRequested, nil
				}
			case a.interval > 0 && !now.Before(a.nextFire):
				id.missedDeadline = true
				a.nextFire = now.Add(a.interval)
				fired = true
				if callback(id) == ProgressionStop {
					w.mu.Unlock()
					return RunResultStopRequested, nil
				}
			}
		}
		w.mu.Unlock()

		if fired {
			return RunResultAttachmentEvent, nil
		}

		select {
		case <-ctx.Done():
			return RunResultInterrupted, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// WaitAndProcessOnceWithTimeout is WaitAndProcessOnce bounded by timeout,
// returning RunResultTimeout if nothing fires in time.
func (w *WaitSet) WaitAndProcessOnceWithTimeout(timeout time.Duration, callback Callback) (RunResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	result, err := w.WaitAndProcessOnce(ctx, callback)
	if errors.Is(err, context.DeadlineExceeded) {
		return RunResultTimeout, nil
	}
	return result, err
}

// Run repeatedly calls WaitAndProcessOnce until the callback requests a
// stop, ctx is cancelled, or an error occurs.
func (w *WaitSet) Run(ctx context.Context, callback Callback) (RunResult, error) {
	for {
		result, err := w.WaitAndProcessOnce(ctx, callback)
		if err != nil {
			return result, err
		}
		if result == RunResultStopRequested {
			return result, nil
		}
	}
}

// Len returns the number of live (non-detached) attachments.
func (w *WaitSet) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, a := range w.attachments {
		if a != nil {
			n++
		}
	}
	return n
}

// Close marks the wait set unusable. Attached sources are not closed.
func (w *WaitSet) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.attachments = nil
	return nil
}
