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

// Package config loads the process-wide iceoryx2 configuration: path
// roots, default QoS, and development switches. The full configuration
// file format lives in external tooling; this package supplies the
// minimal reader needed to exercise the contract plus the built-in
// defaults every other package depends on.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AllocationStrategy selects the data-segment growth policy.
type AllocationStrategy int

const (
	AllocationStrategyStatic AllocationStrategy = iota
	AllocationStrategyPowerOfTwo
	AllocationStrategyBestFit
)

func (a AllocationStrategy) String() string {
	switch a {
	case AllocationStrategyStatic:
		return "Static"
	case AllocationStrategyPowerOfTwo:
		return "PowerOfTwo"
	case AllocationStrategyBestFit:
		return "BestFit"
	default:
		return "Unknown"
	}
}

// Config is the process-wide configuration, loaded once per process.
type Config struct {
	// ServiceDir is the root under which static config files live.
	ServiceDir string
	// NodeDir is the root under which node witness files live.
	NodeDir string
	// DataSegmentDir is the root under which data-segment shared-memory
	// objects are named (mirrors <config.service_dir>/iox2_*.data naming).
	DataSegmentDir string

	// Default QoS, applied by the ServiceBuilder when the caller does not
	// override a field.
	DefaultMaxPublishers                uint64
	DefaultMaxSubscribers               uint64
	DefaultMaxNotifiers                 uint64
	DefaultMaxListeners                 uint64
	DefaultMaxNodes                     uint64
	DefaultHistorySize                  uint64
	DefaultSubscriberMaxBufferSize      uint64
	DefaultSubscriberMaxBorrowedSamples uint64
	DefaultMaxLoanedSamples             uint64
	DefaultPayloadAlignment             uint64
	DefaultEnableSafeOverflow           bool

	// DefaultAllocationStrategy is used by publishers that don't override it.
	DefaultAllocationStrategy AllocationStrategy

	// DevPermissions globally relaxes access modes on created files and
	// segments. Development only.
	DevPermissions bool
}

// Default returns the built-in configuration used when no file is loaded.
func Default() *Config {
	base := filepath.Join(os.TempDir(), "iceoryx2")
	return &Config{
		ServiceDir:                          filepath.Join(base, "services"),
		NodeDir:                             filepath.Join(base, "nodes"),
		DataSegmentDir:                      filepath.Join(base, "segments"),
		DefaultMaxPublishers:                8,
		DefaultMaxSubscribers:               8,
		DefaultMaxNotifiers:                 8,
		DefaultMaxListeners:                 8,
		DefaultMaxNodes:                     16,
		DefaultHistorySize:                  0,
		DefaultSubscriberMaxBufferSize:      8,
		DefaultSubscriberMaxBorrowedSamples: 4,
		DefaultMaxLoanedSamples:             4,
		DefaultPayloadAlignment:             8,
		DefaultEnableSafeOverflow:           true,
		DefaultAllocationStrategy:           AllocationStrategyStatic,
		DevPermissions:                      false,
	}
}

// Load reads a simple "key = value" file, one setting per line, blank
// lines and '#' comments ignored, and overlays it onto Default(). Unknown
// keys are ignored rather than treated as fatal.
func Load(path string) (*Config, error) {
	c := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		c.apply(key, value)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) apply(key, value string) {
	switch key {
	case "service_dir":
		c.ServiceDir = value
	case "node_dir":
		c.NodeDir = value
	case "data_segment_dir":
		c.DataSegmentDir = value
	case "dev_permissions":
		c.DevPermissions = value == "true" || value == "1"
	case "default_allocation_strategy":
		switch value {
		case "PowerOfTwo":
			c.DefaultAllocationStrategy = AllocationStrategyPowerOfTwo
		case "BestFit":
			c.DefaultAllocationStrategy = AllocationStrategyBestFit
		default:
			c.DefaultAllocationStrategy = AllocationStrategyStatic
		}
	case "default_enable_safe_overflow":
		c.DefaultEnableSafeOverflow = value == "true" || value == "1"
	default:
		if n, err := strconv.ParseUint(value, 10, 64); err == nil {
			applyUintDefault(c, key, n)
		}
	}
}

func applyUintDefault(c *Config, key string, n uint64) {
	switch key {
	case "default_max_publishers":
		c.DefaultMaxPublishers = n
	case "default_max_subscribers":
		c.DefaultMaxSubscribers = n
	case "default_max_notifiers":
		c.DefaultMaxNotifiers = n
	case "default_max_listeners":
		c.DefaultMaxListeners = n
	case "default_max_nodes":
		c.DefaultMaxNodes = n
	case "default_history_size":
		c.DefaultHistorySize = n
	case "default_subscriber_max_buffer_size":
		c.DefaultSubscriberMaxBufferSize = n
	case "default_subscriber_max_borrowed_samples":
		c.DefaultSubscriberMaxBorrowedSamples = n
	case "default_max_loaned_samples":
		c.DefaultMaxLoanedSamples = n
	case "default_payload_alignment":
		c.DefaultPayloadAlignment = n
	}
}

// EnsureDirs creates the directories this Config names, if absent.
func (c *Config) EnsureDirs() error {
	mode := os.FileMode(0o755)
	if c.DevPermissions {
		mode = 0o777
	}
	for _, dir := range []string{c.ServiceDir, c.NodeDir, c.DataSegmentDir} {
		if err := os.MkdirAll(dir, mode); err != nil {
			return err
		}
	}
	return nil
}
