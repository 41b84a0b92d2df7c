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
	"encoding/binary"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// SocketChannel is the datagram-backed signaling variant: the listener
// binds a named unix datagram socket, and every notification is one
// 8-byte datagram sent to that name, so a notifier in any process can
// signal a listener it knows only by socket path. Received ids are
// drained into a coalescing pending set before each wait, preserving
// the contract that repeated notifies of one id before a listen yield
// one reported id.
type SocketChannel struct {
	mu      sync.Mutex
	fd      int
	path    string
	pending map[EventId]struct{}
	closed  bool
}

// NewSocketChannel binds a fresh listener socket at path, replacing any
// stale socket file a crashed listener left behind.
func NewSocketChannel(path string) (*SocketChannel, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	os.Remove(path)
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	// Widen the receive buffer so notification bursts between two waits
	// are not dropped by the kernel.
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, 1<<20)
	return &SocketChannel{fd: fd, path: path, pending: map[EventId]struct{}{}}, nil
}

// Path returns the bound socket name other processes notify through.
func (c *SocketChannel) Path() string { return c.path }

// One connectionless sending socket serves every notifier in the
// process; sendto is atomic per datagram.
var (
	senderOnce sync.Once
	senderFd   int
	senderErr  error
)

// NotifySocket sends one notification datagram to the listener socket
// bound at path.
func NotifySocket(path string, id EventId) error {
	senderOnce.Do(func() {
		senderFd, senderErr = unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	})
	if senderErr != nil {
		return senderErr
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	return unix.Sendto(senderFd, buf[:], 0, &unix.SockaddrUnix{Name: path})
}

func (c *SocketChannel) Notify(id EventId) {
	_ = NotifySocket(c.path, id)
}

// drainLocked moves every queued datagram into the coalescing set.
func (c *SocketChannel) drainLocked() {
	if c.closed {
		return
	}
	var buf [8]byte
	for {
		n, _, err := unix.Recvfrom(c.fd, buf[:], unix.MSG_DONTWAIT)
		if err != nil || n < len(buf) {
			return
		}
		c.pending[EventId(binary.LittleEndian.Uint64(buf[:]))] = struct{}{}
	}
}

func (c *SocketChannel) TryWaitOne() (EventId, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	for id := range c.pending {
		delete(c.pending, id)
		return id, true
	}
	return 0, false
}

func (c *SocketChannel) TryWaitAll() []EventId {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	if len(c.pending) == 0 {
		return nil
	}
	out := make([]EventId, 0, len(c.pending))
	for id := range c.pending {
		out = append(out, id)
	}
	c.pending = make(map[EventId]struct{})
	return out
}

func (c *SocketChannel) HasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drainLocked()
	return len(c.pending) > 0
}

func (c *SocketChannel) Wake() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Close releases the socket and unlinks its path.
func (c *SocketChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed && c.fd < 0 {
		return nil
	}
	c.closed = true
	if c.fd >= 0 {
		unix.Close(c.fd)
		c.fd = -1
	}
	err := os.Remove(c.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
