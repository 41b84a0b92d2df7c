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

// Package ring implements the zero-copy connection: a bounded SPSC
// channel of data-segment offsets between one publisher and one
// subscriber. Samples themselves never cross this channel, only their
// relative offset into the shared data segment, which is what
// makes delivery zero-copy.
//
// Two implementations back the same Ring interface. ServiceTypeLocal
// connections run entirely within one process, so they use
// code.hybscloud.com/lfq's SPSCIndirect directly over its own
// process-private Go slice. ServiceTypeIpc connections must be readable
// by an unrelated process mapping the same shared-memory segment,
// which an ordinary Go slice cannot be: Go slices live in one runtime's
// private heap and a foreign process has no way to reconstruct their
// header. For that case ring.go implements the same Lamport ring-buffer
// algorithm lfq uses, but directly over a byte range handed in by the
// caller (ordinarily a mapped shm.Segment), so every cursor and slot
// lives in memory both processes can see.
package ring

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

// ErrFull is returned by Push when the ring has no free slot.
var ErrFull = errors.New("ring: full")

// ErrEmpty is returned by Pop when the ring has no available element.
var ErrEmpty = errors.New("ring: empty")

// Ring is a bounded single-producer single-consumer channel of
// data-segment offsets.
type Ring interface {
	Push(offset uint64) error
	Pop() (uint64, error)
	Cap() int
}

// cacheLine is used to pad cursors so producer and consumer cachelines
// don't false-share, matching the layout lfq.SPSC uses.
const cacheLine = 64

// IpcRing is a Lamport ring buffer with cached-index optimization, laid
// out directly over a caller-provided byte slice so unrelated processes
// mapping the same shared-memory segment observe the same state.
//
// Layout (little-endian, cache-line padded):
//
//	[0:8)    head  (consumer cursor)
//	[64:72)  tail  (producer cursor)
//	[128:)   slots, 8 bytes each, capacity rounded up to a power of two
type IpcRing struct {
	buf      []byte
	mask     uint64
	capacity uint64

	cachedHead uint64 // producer's private cache, not shared
	cachedTail uint64 // consumer's private cache, not shared
}

const ipcRingHeaderSize = 2 * cacheLine

// NewIpcRing wraps buf as a ring with room for `capacity` slots (rounded
// up to a power of two). buf must be at least IpcRingBytes(capacity)
// long and freshly zeroed (a new segment, or one whose previous owner
// unlinked it) for an empty starting state.
func NewIpcRing(buf []byte, capacity int) (*IpcRing, error) {
	n := roundToPow2(capacity)
	need := IpcRingBytes(capacity)
	if len(buf) < need {
		return nil, errors.New("ring: backing buffer too small")
	}
	return &IpcRing{buf: buf, mask: uint64(n - 1), capacity: uint64(n)}, nil
}

// IpcRingBytes returns the number of bytes NewIpcRing requires to back a
// ring of the given capacity, for sizing the owning data segment.
func IpcRingBytes(capacity int) int {
	return ipcRingHeaderSize + roundToPow2(capacity)*8
}

func (r *IpcRing) headPtr() *uint64 { return (*uint64)(ptrAt(r.buf, 0)) }
func (r *IpcRing) tailPtr() *uint64 { return (*uint64)(ptrAt(r.buf, cacheLine)) }

func (r *IpcRing) slot(i uint64) *uint64 {
	off := ipcRingHeaderSize + int(i&r.mask)*8
	return (*uint64)(ptrAt(r.buf, off))
}

// Push enqueues a data-segment offset (producer only).
func (r *IpcRing) Push(offset uint64) error {
	tail := atomic.LoadUint64(r.tailPtr())
	if tail-r.cachedHead > r.mask {
		r.cachedHead = atomic.LoadUint64(r.headPtr())
		if tail-r.cachedHead > r.mask {
			return ErrFull
		}
	}
	atomic.StoreUint64(r.slot(tail), offset)
	atomic.StoreUint64(r.tailPtr(), tail+1)
	return nil
}

// Pop dequeues the oldest offset (consumer only).
func (r *IpcRing) Pop() (uint64, error) {
	head := atomic.LoadUint64(r.headPtr())
	if head >= r.cachedTail {
		r.cachedTail = atomic.LoadUint64(r.tailPtr())
		if head >= r.cachedTail {
			return 0, ErrEmpty
		}
	}
	val := atomic.LoadUint64(r.slot(head))
	atomic.StoreUint64(r.headPtr(), head+1)
	return val, nil
}

// Cap returns the ring's usable capacity.
func (r *IpcRing) Cap() int { return int(r.capacity) }

func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// ptrAt returns a pointer to the 8-byte-aligned word at byte offset off
// within buf. Callers are responsible for ensuring buf is large enough
// and 8-byte aligned, which mmap-backed segments always are.
func ptrAt(buf []byte, off int) unsafe.Pointer {
	return unsafe.Pointer(&buf[off])
}
