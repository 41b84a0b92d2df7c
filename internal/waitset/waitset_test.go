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

package waitset

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flagSource fires once per Set.
type flagSource struct {
	pending atomic.Bool
}

func (f *flagSource) Set() { f.pending.Store(true) }

func (f *flagSource) TryConsume() bool {
	return f.pending.Swap(false)
}

func TestNotificationAttachmentFires(t *testing.T) {
	w := New()
	defer w.Close()

	src := &flagSource{}
	handle, err := w.AttachNotification(src)
	require.NoError(t, err)

	src.Set()
	var fired AttachmentId
	result, err := w.WaitAndProcessOnce(context.Background(), func(id AttachmentId) Progression {
		fired = id
		return ProgressionContinue
	})
	require.NoError(t, err)
	assert.Equal(t, RunResultAttachmentEvent, result)
	assert.True(t, fired.Is(handle))
	assert.False(t, fired.HasMissedDeadline())
}

func TestTimeoutWithoutEvents(t *testing.T) {
	w := New()
	defer w.Close()

	_, err := w.AttachNotification(&flagSource{})
	require.NoError(t, err)

	start := time.Now()
	result, err := w.WaitAndProcessOnceWithTimeout(30*time.Millisecond, func(AttachmentId) Progression {
		return ProgressionContinue
	})
	require.NoError(t, err)
	assert.Equal(t, RunResultTimeout, result)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestIntervalAttachmentTicks(t *testing.T) {
	w := New()
	defer w.Close()

	handle, err := w.AttachInterval(10 * time.Millisecond)
	require.NoError(t, err)

	ticks := 0
	for i := 0; i < 3; i++ {
		result, err := w.WaitAndProcessOnceWithTimeout(time.Second, func(id AttachmentId) Progression {
			if id.Is(handle) {
				ticks++
			}
			return ProgressionContinue
		})
		require.NoError(t, err)
		require.Equal(t, RunResultAttachmentEvent, result)
	}
	assert.Equal(t, 3, ticks)
}

func TestDeadlineReportsMissWhenSourceStaysSilent(t *testing.T) {
	w := New()
	defer w.Close()

	handle, err := w.AttachDeadline(&flagSource{}, 20*time.Millisecond)
	require.NoError(t, err)

	missed := false
	_, err = w.WaitAndProcessOnceWithTimeout(time.Second, func(id AttachmentId) Progression {
		if id.Is(handle) && id.HasMissedDeadline() {
			missed = true
		}
		return ProgressionContinue
	})
	require.NoError(t, err)
	assert.True(t, missed)
}

func TestDeadlineNotMissedWhenSourceFires(t *testing.T) {
	w := New()
	defer w.Close()

	src := &flagSource{}
	handle, err := w.AttachDeadline(src, time.Minute)
	require.NoError(t, err)

	src.Set()
	missed, fired := false, false
	_, err = w.WaitAndProcessOnceWithTimeout(time.Second, func(id AttachmentId) Progression {
		if id.Is(handle) {
			fired = true
			missed = id.HasMissedDeadline()
		}
		return ProgressionContinue
	})
	require.NoError(t, err)
	assert.True(t, fired)
	assert.False(t, missed)
}

func TestCallbackStopShortCircuits(t *testing.T) {
	w := New()
	defer w.Close()

	a := &flagSource{}
	b := &flagSource{}
	_, err := w.AttachNotification(a)
	require.NoError(t, err)
	_, err = w.AttachNotification(b)
	require.NoError(t, err)

	a.Set()
	b.Set()

	calls := 0
	result, err := w.WaitAndProcessOnce(context.Background(), func(AttachmentId) Progression {
		calls++
		return ProgressionStop
	})
	require.NoError(t, err)
	assert.Equal(t, RunResultStopRequested, result)
	assert.Equal(t, 1, calls)
}

func TestDetachStopsPolling(t *testing.T) {
	w := New()
	defer w.Close()

	src := &flagSource{}
	handle, err := w.AttachNotification(src)
	require.NoError(t, err)
	require.Equal(t, 1, w.Len())

	w.Detach(handle)
	require.Equal(t, 0, w.Len())

	src.Set()
	result, err := w.WaitAndProcessOnceWithTimeout(30*time.Millisecond, func(AttachmentId) Progression {
		t.Fatal("detached source must not fire")
		return ProgressionContinue
	})
	require.NoError(t, err)
	assert.Equal(t, RunResultTimeout, result)
}

func TestContextCancellationInterrupts(t *testing.T) {
	w := New()
	defer w.Close()

	_, err := w.AttachNotification(&flagSource{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := w.WaitAndProcessOnce(ctx, func(AttachmentId) Progression {
		return ProgressionContinue
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, RunResultInterrupted, result)
}

func TestClosedWaitSetFails(t *testing.T) {
	w := New()
	require.NoError(t, w.Close())

	_, err := w.AttachNotification(&flagSource{})
	require.ErrorIs(t, err, ErrClosed)

	_, err = w.WaitAndProcessOnce(context.Background(), func(AttachmentId) Progression {
		return ProgressionContinue
	})
	require.ErrorIs(t, err, ErrClosed)
}
