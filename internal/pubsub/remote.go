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

package pubsub

import "sync"

// RemoteChunks is a reader-side view onto a foreign publisher's mapped
// data segments. A reader resolves descriptors to sample bytes and
// drops references by decrementing the shared count in place; returning
// a zero-reference chunk to the free list is the owning process's job
// (see Publisher.ReclaimDead), since the allocator state is private to
// the owner.
type RemoteChunks struct {
	mu   sync.Mutex
	segs [][]byte
}

// NewRemoteChunks builds an empty view; segments are added as the
// reader maps them.
func NewRemoteChunks() *RemoteChunks {
	return &RemoteChunks{}
}

// AddSegment appends the next mapped data segment. Segments must be
// added in the publisher's growth order, since descriptors carry the
// segment index.
func (r *RemoteChunks) AddSegment(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segs = append(r.segs, data)
}

// SegmentCount reports how many of the publisher's segments are mapped.
func (r *RemoteChunks) SegmentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.segs)
}

// Resolve maps a descriptor onto the sample's header and payload bytes,
// or nil if the descriptor's segment is not mapped yet.
func (r *RemoteChunks) Resolve(desc Descriptor) (*SampleHeader, []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	segIdx, offset := splitDescriptor(desc)
	if segIdx >= len(r.segs) {
		return nil, nil
	}
	data := r.segs[segIdx]
	hdr := (*SampleHeader)(asPointer(data, offset))
	hs := sampleHeaderSize()
	return hdr, data[offset+hs : offset+hs+hdr.PayloadSize]
}

// Release drops one reference on the chunk named by desc. The count
// lives in the mapped segment, so the owning publisher observes the
// drop and reclaims the chunk on its next sweep.
func (r *RemoteChunks) Release(desc Descriptor) {
	hdr, _ := r.Resolve(desc)
	if hdr != nil {
		hdr.refCount.Add(-1)
	}
}
