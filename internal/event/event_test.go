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

package event

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitsetChannelCoalescesRepeatedIds(t *testing.T) {
	ch := NewBitsetChannel(255)

	for i := 0; i < 5; i++ {
		ch.Notify(42)
	}
	require.True(t, ch.HasPending())

	id, ok := ch.TryWaitOne()
	require.True(t, ok)
	assert.Equal(t, EventId(42), id)

	// Five notifies, one report.
	_, ok = ch.TryWaitOne()
	assert.False(t, ok)
	assert.False(t, ch.HasPending())
}

func TestBitsetChannelDrainsAllPendingIds(t *testing.T) {
	ch := NewBitsetChannel(255)
	ch.Notify(1)
	ch.Notify(2)
	ch.Notify(3)
	ch.Notify(2)

	ids := ch.TryWaitAll()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	assert.Equal(t, []EventId{1, 2, 3}, ids)
	assert.Nil(t, ch.TryWaitAll())
}

func TestSocketChannelDeliversDatagrams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listener.sock")
	ch, err := NewSocketChannel(path)
	require.NoError(t, err)
	defer ch.Close()
	assert.Equal(t, path, ch.Path())

	// A foreign notifier only knows the socket path.
	require.NoError(t, NotifySocket(path, 9))
	ch.Notify(7)
	require.True(t, ch.HasPending())

	ids := ch.TryWaitAll()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	assert.Equal(t, []EventId{7, 9}, ids)
	assert.False(t, ch.HasPending())
}

func TestSocketChannelCoalescesRepeatedIds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listener.sock")
	ch, err := NewSocketChannel(path)
	require.NoError(t, err)
	defer ch.Close()

	for i := 0; i < 5; i++ {
		ch.Notify(42)
	}
	id, ok := ch.TryWaitOne()
	require.True(t, ok)
	assert.Equal(t, EventId(42), id)
	_, ok = ch.TryWaitOne()
	assert.False(t, ok)
}

func TestSocketChannelCloseUnlinksPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "listener.sock")
	ch, err := NewSocketChannel(path)
	require.NoError(t, err)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
	require.NoError(t, ch.Close())
	_, statErr = os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// A stale path from a crashed listener is replaced on rebind.
	again, err := NewSocketChannel(path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestListenerTryWaitOneOnEmptyChannel(t *testing.T) {
	l := NewListener(NewBitsetChannel(255))
	_, err := l.TryWaitOne()
	require.ErrorIs(t, err, ErrNoEvent)
}

func TestListenerTimedWaitTimesOut(t *testing.T) {
	l := NewListener(NewBitsetChannel(255))

	start := time.Now()
	_, err := l.TimedWaitOne(30 * time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestListenerWakesOnNotify(t *testing.T) {
	ch := NewBitsetChannel(255)
	notifier := NewNotifier(ch, 5, func() uint64 { return 1 })
	listener := NewListener(ch)

	go func() {
		time.Sleep(10 * time.Millisecond)
		notifier.Notify()
	}()

	id, err := listener.TimedWaitOne(time.Second)
	require.NoError(t, err)
	assert.Equal(t, EventId(5), id)
}

func TestListenerWaitOneHonorsContext(t *testing.T) {
	l := NewListener(NewBitsetChannel(255))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := l.WaitOne(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotifierReportsListenerCount(t *testing.T) {
	ch := NewBitsetChannel(255)
	n := NewNotifier(ch, 0, func() uint64 { return 3 })

	count, err := n.NotifyWithID(17)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestClosedPortsFail(t *testing.T) {
	ch := NewBitsetChannel(255)
	n := NewNotifier(ch, 0, nil)
	l := NewListener(ch)

	require.NoError(t, n.Close())
	_, err := n.Notify()
	require.ErrorIs(t, err, ErrClosed)

	require.NoError(t, l.Close())
	_, err = l.TryWaitOne()
	require.ErrorIs(t, err, ErrClosed)
}
