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

import "unsafe"

// sampleHeaderSize is the fixed overhead every loaned chunk reserves
// ahead of its payload bytes for the SampleHeader control block.
func sampleHeaderSize() uint64 {
	return uint64(unsafe.Sizeof(SampleHeader{}))
}

// HeaderSize reports the per-chunk overhead, so data-segment sizing can
// account for it.
func HeaderSize() uint64 { return sampleHeaderSize() }

// asPointer returns a pointer to the byte at offset within data, typed
// for placement-new of a SampleHeader. Callers guarantee offset leaves
// room for sampleHeaderSize() bytes, since the allocator was asked to
// reserve exactly that much.
func asPointer(data []byte, offset uint64) unsafe.Pointer {
	return unsafe.Pointer(&data[offset])
}
