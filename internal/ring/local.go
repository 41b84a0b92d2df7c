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

package ring

import (
	"errors"

	lfq "code.hybscloud.com/lfq"
)

// LocalRing backs ServiceTypeLocal connections, where publisher and
// subscriber live in the same process and can safely share an ordinary
// Go-runtime data structure. It is a thin adapter from Ring's uint64
// offset vocabulary onto lfq.SPSCIndirect's uintptr vocabulary.
type LocalRing struct {
	q *lfq.SPSCIndirect
}

// NewLocalRing builds a process-local ring of the given capacity
// (rounded up to a power of two by lfq, minimum 2).
func NewLocalRing(capacity int) *LocalRing {
	if capacity < 2 {
		capacity = 2
	}
	return &LocalRing{q: lfq.NewSPSCIndirect(capacity)}
}

// Push enqueues a data-segment offset (producer only).
func (r *LocalRing) Push(offset uint64) error {
	if err := r.q.Enqueue(uintptr(offset)); err != nil {
		if errors.Is(err, lfq.ErrWouldBlock) {
			return ErrFull
		}
		return err
	}
	return nil
}

// Pop dequeues the oldest offset (consumer only).
func (r *LocalRing) Pop() (uint64, error) {
	v, err := r.q.Dequeue()
	if err != nil {
		if errors.Is(err, lfq.ErrWouldBlock) {
			return 0, ErrEmpty
		}
		return 0, err
	}
	return uint64(v), nil
}

// Cap returns the ring's usable capacity.
func (r *LocalRing) Cap() int { return r.q.Cap() }
