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

// Package shm implements the zero-copy data segment: a
// pre-allocated, named, shared-memory region addressed by relative offset
// rather than by pointer, so that every subscriber sees the same chunk
// regardless of where the segment happens to be mapped in its own address
// space.
//
// Segments are backed by ordinary files under a shared-memory root (by
// convention a tmpfs mount such as /dev/shm) and mapped with mmap, the
// same technique go-ublk uses for its io_uring rings: a named, persistent
// file standing in for POSIX shared memory, so unrelated processes can
// open the same bytes by name.
package shm

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	// ErrAlreadyExists is returned by Create when the segment's backing
	// file already exists (exclusive-creation race, mirrors the marker
	// file semantics of the service registry).
	ErrAlreadyExists = errors.New("shm: segment already exists")
	// ErrNotExist is returned by Open when the backing file is absent.
	ErrNotExist = errors.New("shm: segment does not exist")
)

// Segment is a mapped shared-memory region.
type Segment struct {
	Name string
	Path string
	Size uint64
	Data []byte

	file *os.File
}

// sanitize flattens a name into a filesystem-safe form when the shm root
// doesn't support subfolders.
func sanitize(root, name string) string {
	if !strings.ContainsRune(name, os.PathSeparator) {
		return filepath.Join(root, name)
	}
	flat := strings.ReplaceAll(name, string(os.PathSeparator), "_")
	return filepath.Join(root, flat)
}

// Create exclusively creates and maps a new segment of the given size.
// Returns ErrAlreadyExists if the name is taken.
func Create(root, name string, size uint64, devPermissions bool) (*Segment, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := sanitize(root, name)
	mode := os.FileMode(0o644)
	if devPermissions {
		mode = 0o666
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	data, err := mmap(f, size)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	return &Segment{Name: name, Path: path, Size: size, Data: data, file: f}, nil
}

// Open maps an existing segment by name.
func Open(root, name string) (*Segment, error) {
	path := sanitize(root, name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := uint64(fi.Size())

	data, err := mmap(f, size)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Segment{Name: name, Path: path, Size: size, Data: data, file: f}, nil
}

// Exists reports whether a segment with the given name exists, without
// mapping it.
func Exists(root, name string) bool {
	_, err := os.Stat(sanitize(root, name))
	return err == nil
}

func mmap(f *os.File, size uint64) ([]byte, error) {
	if size == 0 {
		// mmap of zero length is undefined; callers never request this in
		// practice (QoS-derived sizes are always > 0), but guard anyway.
		return nil, nil
	}
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Close unmaps the segment and closes the underlying file descriptor. It
// does not remove the backing file; see Unlink.
func (s *Segment) Close() error {
	var err error
	if s.Data != nil {
		err = unix.Munmap(s.Data)
		s.Data = nil
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
		s.file = nil
	}
	return err
}

// Unlink removes the backing file. Idempotent: removing an already-gone
// file is not an error, matching remove_stale_resources' idempotence
// requirement.
func (s *Segment) Unlink() error {
	err := os.Remove(s.Path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// UnlinkByName removes a segment's backing file without requiring it to
// be mapped first, used by dead-node cleanup.
func UnlinkByName(root, name string) error {
	err := os.Remove(sanitize(root, name))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
