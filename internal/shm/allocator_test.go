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

package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAllocatorLoanReturnCycle(t *testing.T) {
	a := NewStaticAllocator(64, 4)
	require.EqualValues(t, 256, a.Capacity())

	var offsets []uint64
	for i := 0; i < 4; i++ {
		off, err := a.Loan(64)
		require.NoError(t, err)
		assert.Zero(t, off%64)
		offsets = append(offsets, off)
	}

	_, err := a.Loan(64)
	require.ErrorIs(t, err, ErrNotEnoughMemory)

	a.Return(offsets[0], 64)
	off, err := a.Loan(64)
	require.NoError(t, err)
	assert.Equal(t, offsets[0], off)
}

func TestStaticAllocatorRejectsOversizedRequest(t *testing.T) {
	a := NewStaticAllocator(64, 4)
	_, err := a.Loan(65)
	require.ErrorIs(t, err, ErrExceedsChunkSize)
}

func TestPowerOfTwoAllocatorSplitsAndMerges(t *testing.T) {
	a := NewPowerOfTwoAllocator(1024, 64)
	require.EqualValues(t, 1024, a.Capacity())

	// Splitting the arena down to the smallest class.
	off1, err := a.Loan(64)
	require.NoError(t, err)
	off2, err := a.Loan(64)
	require.NoError(t, err)
	assert.NotEqual(t, off1, off2)

	big, err := a.Loan(512)
	require.NoError(t, err)
	assert.Zero(t, big%512)

	// Exhaustion on a request larger than what remains.
	_, err = a.Loan(1024)
	require.ErrorIs(t, err, ErrNotEnoughMemory)

	// Returning everything coalesces buddies back into the full arena.
	a.Return(off1, 64)
	a.Return(off2, 64)
	a.Return(big, 512)
	full, err := a.Loan(1024)
	require.NoError(t, err)
	assert.Zero(t, full)
}

func TestPowerOfTwoAllocatorRoundsRequestsUp(t *testing.T) {
	a := NewPowerOfTwoAllocator(256, 16)
	off1, err := a.Loan(17) // served from the 32-byte class
	require.NoError(t, err)
	off2, err := a.Loan(17)
	require.NoError(t, err)
	assert.NotEqual(t, off1, off2)
	assert.Zero(t, off1%32)
	assert.Zero(t, off2%32)
}

func TestBestFitAllocatorPicksSmallestFit(t *testing.T) {
	a := NewBestFitAllocator(1024)

	off1, err := a.Loan(128)
	require.NoError(t, err)
	off2, err := a.Loan(256)
	require.NoError(t, err)
	off3, err := a.Loan(64)
	require.NoError(t, err)
	// Keep the 64-byte hole from merging with the free tail.
	_, err = a.Loan(64)
	require.NoError(t, err)

	// Free the 128 and 64 holes; a 60-byte request must come from the
	// 64-byte hole, not the 128-byte one.
	a.Return(off1, 128)
	a.Return(off3, 64)
	off, err := a.Loan(60)
	require.NoError(t, err)
	assert.Equal(t, off3, off)

	a.Return(off, 60)
	a.Return(off2, 256)
}

func TestBestFitAllocatorCoalescesNeighbours(t *testing.T) {
	a := NewBestFitAllocator(512)

	off1, err := a.Loan(128)
	require.NoError(t, err)
	off2, err := a.Loan(128)
	require.NoError(t, err)
	off3, err := a.Loan(256)
	require.NoError(t, err)

	_, err = a.Loan(1)
	require.ErrorIs(t, err, ErrNotEnoughMemory)

	// Returning adjacent blocks out of order still merges them into one
	// span that can serve a request none of them could alone.
	a.Return(off1, 128)
	a.Return(off3, 256)
	a.Return(off2, 128)

	off, err := a.Loan(512)
	require.NoError(t, err)
	assert.Zero(t, off)
}

func TestSegmentCreateOpenUnlink(t *testing.T) {
	root := t.TempDir()

	seg, err := Create(root, "iox2_test.data", 4096, false)
	require.NoError(t, err)
	require.Len(t, seg.Data, 4096)

	seg.Data[123] = 0xAB

	_, err = Create(root, "iox2_test.data", 4096, false)
	require.ErrorIs(t, err, ErrAlreadyExists)

	other, err := Open(root, "iox2_test.data")
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), other.Data[123], "both mappings must observe the same bytes")

	assert.True(t, Exists(root, "iox2_test.data"))
	require.NoError(t, other.Close())
	require.NoError(t, seg.Close())
	require.NoError(t, seg.Unlink())
	assert.False(t, Exists(root, "iox2_test.data"))

	_, err = Open(root, "iox2_test.data")
	require.ErrorIs(t, err, ErrNotExist)

	// Unlinking twice is not an error.
	require.NoError(t, UnlinkByName(root, "iox2_test.data"))
}

func TestSegmentNameFlattening(t *testing.T) {
	root := t.TempDir()

	seg, err := Create(root, "nested/name.data", 128, false)
	require.NoError(t, err)
	defer seg.Close()
	defer seg.Unlink()

	assert.True(t, Exists(root, "nested/name.data"))
}
