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

// Package registry implements the service registry and lifecycle:
// deterministic naming, a static config file describing a service's
// immutable properties, and a dynamic config tracking its live
// participants. Concurrent open-or-create calls for the same name are
// coalesced with singleflight so that only one caller actually creates
// the backing files; the rest observe the winner's result.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/singleflight"

	"github.com/iox2go/iceoryx2/internal/config"
	"github.com/iox2go/iceoryx2/internal/logging"
	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

var fastJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// MessagingPattern identifies a service's communication pattern.
type MessagingPattern int

const (
	MessagingPatternPublishSubscribe MessagingPattern = iota
	MessagingPatternEvent
	MessagingPatternRequestResponse
)

func (p MessagingPattern) String() string {
	switch p {
	case MessagingPatternPublishSubscribe:
		return "PublishSubscribe"
	case MessagingPatternEvent:
		return "Event"
	case MessagingPatternRequestResponse:
		return "RequestResponse"
	default:
		return "Unknown"
	}
}

var (
	// ErrAlreadyExists is returned by Create when a service of the same
	// name, pattern and type already has a static config on disk.
	ErrAlreadyExists = errors.New("registry: service already exists")
	// ErrDoesNotExist is returned by Open when no static config is found.
	ErrDoesNotExist = errors.New("registry: service does not exist")
	// ErrCorrupted is returned when a static config file exists but
	// fails to parse, or a creation marker was left behind by a crashed
	// creator. The registry does not auto-reap either state.
	ErrCorrupted = errors.New("registry: service is in a corrupted state")

	// ErrIncompatibleTypes is returned when an opener's payload,
	// user-header, request or response type detail differs from the
	// published one. Type mismatches dominate capacity mismatches when
	// both are present.
	ErrIncompatibleTypes = errors.New("registry: incompatible type details")
	// ErrIncompatibleOverflow is returned when the opener's safe-overflow
	// setting differs from the published one.
	ErrIncompatibleOverflow = errors.New("registry: incompatible overflow behavior")
	// ErrIncompatibleAlignment is returned on a payload-alignment mismatch.
	ErrIncompatibleAlignment = errors.New("registry: incompatible payload alignment")

	ErrUnsupportedPublishers      = errors.New("registry: does not support requested amount of publishers")
	ErrUnsupportedSubscribers     = errors.New("registry: does not support requested amount of subscribers")
	ErrUnsupportedNotifiers       = errors.New("registry: does not support requested amount of notifiers")
	ErrUnsupportedListeners       = errors.New("registry: does not support requested amount of listeners")
	ErrUnsupportedNodes           = errors.New("registry: does not support requested amount of nodes")
	ErrUnsupportedClients         = errors.New("registry: does not support requested amount of clients")
	ErrUnsupportedServers         = errors.New("registry: does not support requested amount of servers")
	ErrUnsupportedBufferSize      = errors.New("registry: does not support requested subscriber buffer size")
	ErrUnsupportedHistorySize     = errors.New("registry: does not support requested history size")
	ErrUnsupportedBorrowedSamples = errors.New("registry: does not support requested amount of borrowed samples")
	ErrUnsupportedLoanedSamples   = errors.New("registry: does not support requested amount of loaned samples")
	ErrUnsupportedEventIdMaxValue = errors.New("registry: does not support requested event id max value")
)

// TypeDetail pins a payload or user-header type across processes: two
// openers agree on a type iff name, size, alignment and variant all match.
type TypeDetail struct {
	TypeName  string `json:"type_name"`
	Size      uint64 `json:"size"`
	Alignment uint64 `json:"alignment"`
	Variant   string `json:"variant"` // FixedSize | Dynamic
}

func (t *TypeDetail) equals(other *TypeDetail) bool {
	return t.TypeName == other.TypeName &&
		t.Size == other.Size &&
		t.Alignment == other.Alignment &&
		t.Variant == other.Variant
}

// StaticConfig is the immutable, published description of a service: the
// properties every opener must agree on.
type StaticConfig struct {
	UUID             string           `json:"uuid"`
	Name             string           `json:"name"`
	MessagingPattern MessagingPattern `json:"messaging_pattern"`

	MaxPublishers  uint64 `json:"max_publishers,omitempty"`
	MaxSubscribers uint64 `json:"max_subscribers,omitempty"`
	MaxNotifiers   uint64 `json:"max_notifiers,omitempty"`
	MaxListeners   uint64 `json:"max_listeners,omitempty"`
	MaxNodes       uint64 `json:"max_nodes"`

	MaxClients                 uint64 `json:"max_clients,omitempty"`
	MaxServers                 uint64 `json:"max_servers,omitempty"`
	MaxActiveRequestsPerClient uint64 `json:"max_active_requests_per_client,omitempty"`
	MaxResponseBufferSize      uint64 `json:"max_response_buffer_size,omitempty"`
	FireAndForgetRequests      bool   `json:"fire_and_forget_requests,omitempty"`

	HistorySize                  uint64 `json:"history_size,omitempty"`
	SubscriberMaxBufferSize      uint64 `json:"subscriber_max_buffer_size,omitempty"`
	SubscriberMaxBorrowedSamples uint64 `json:"subscriber_max_borrowed_samples,omitempty"`
	MaxLoanedSamples             uint64 `json:"max_loaned_samples,omitempty"`
	EnableSafeOverflow           bool   `json:"enable_safe_overflow,omitempty"`
	PayloadAlignment             uint64 `json:"payload_alignment,omitempty"`

	Payload         *TypeDetail `json:"payload,omitempty"`
	UserHeader      *TypeDetail `json:"user_header,omitempty"`
	RequestPayload  *TypeDetail `json:"request_payload,omitempty"`
	ResponsePayload *TypeDetail `json:"response_payload,omitempty"`

	EventIdMaxValue      uint64  `json:"event_id_max_value,omitempty"`
	DeadlineNanos        uint64  `json:"deadline_nanos,omitempty"`
	NotifierDeadEvent    *uint64 `json:"notifier_dead_event,omitempty"`
	NotifierCreatedEvent *uint64 `json:"notifier_created_event,omitempty"`
	NotifierDroppedEvent *uint64 `json:"notifier_dropped_event,omitempty"`

	Attributes map[string]string `json:"attributes,omitempty"`
}

// CompatibleWith checks the published config against an opener's
// requirements: capacity fields must be large enough, identity and type
// fields must match exactly. The first mismatch found is reported, with
// type mismatches checked before (and therefore dominating) capacity
// mismatches.
func (s *StaticConfig) CompatibleWith(req *StaticConfig) error {
	if s.MessagingPattern != req.MessagingPattern {
		return ErrIncompatibleTypes
	}
	if req.Payload != nil && (s.Payload == nil || !s.Payload.equals(req.Payload)) {
		return ErrIncompatibleTypes
	}
	if req.UserHeader != nil && (s.UserHeader == nil || !s.UserHeader.equals(req.UserHeader)) {
		return ErrIncompatibleTypes
	}
	if req.RequestPayload != nil && (s.RequestPayload == nil || !s.RequestPayload.equals(req.RequestPayload)) {
		return ErrIncompatibleTypes
	}
	if req.ResponsePayload != nil && (s.ResponsePayload == nil || !s.ResponsePayload.equals(req.ResponsePayload)) {
		return ErrIncompatibleTypes
	}
	if req.PayloadAlignment != 0 && s.PayloadAlignment != req.PayloadAlignment {
		return ErrIncompatibleAlignment
	}
	if s.EnableSafeOverflow != req.EnableSafeOverflow {
		return ErrIncompatibleOverflow
	}

	switch {
	case s.MaxPublishers < req.MaxPublishers:
		return ErrUnsupportedPublishers
	case s.MaxSubscribers < req.MaxSubscribers:
		return ErrUnsupportedSubscribers
	case s.MaxNotifiers < req.MaxNotifiers:
		return ErrUnsupportedNotifiers
	case s.MaxListeners < req.MaxListeners:
		return ErrUnsupportedListeners
	case s.MaxNodes < req.MaxNodes:
		return ErrUnsupportedNodes
	case s.MaxClients < req.MaxClients:
		return ErrUnsupportedClients
	case s.MaxServers < req.MaxServers:
		return ErrUnsupportedServers
	case s.SubscriberMaxBufferSize < req.SubscriberMaxBufferSize:
		return ErrUnsupportedBufferSize
	case s.HistorySize < req.HistorySize:
		return ErrUnsupportedHistorySize
	case s.SubscriberMaxBorrowedSamples < req.SubscriberMaxBorrowedSamples:
		return ErrUnsupportedBorrowedSamples
	case s.MaxLoanedSamples < req.MaxLoanedSamples:
		return ErrUnsupportedLoanedSamples
	case s.EventIdMaxValue < req.EventIdMaxValue:
		return ErrUnsupportedEventIdMaxValue
	}
	return nil
}

// Registry wraps one config.Config's on-disk service directory.
type Registry struct {
	cfg   *config.Config
	group singleflight.Group

	mu   sync.Mutex
	dyns map[string]*DynamicConfig // uuid -> live dynamic config, this process only
}

// New builds a Registry rooted at cfg.ServiceDir.
func New(cfg *config.Config) *Registry {
	return &Registry{cfg: cfg, dyns: make(map[string]*DynamicConfig)}
}

// Config returns the configuration the registry was built against.
func (r *Registry) Config() *config.Config { return r.cfg }

func (r *Registry) staticConfigPath(uuid string) string {
	return filepath.Join(r.cfg.ServiceDir, fmt.Sprintf("iox2_%s.service", uuid))
}

// marker path used during exclusive creation: the config is written to
// the marker first and renamed into place, so openers either see a
// complete static config or none at all.
func (r *Registry) markerPath(uuid string) string {
	return filepath.Join(r.cfg.ServiceDir, fmt.Sprintf(".iox2_%s.tmp", uuid))
}

// Create exclusively creates a new service's static config, deriving the
// UUID from (name, pattern, ServiceDir). Returns ErrAlreadyExists if the
// name is taken for this pattern, ErrCorrupted if a previous creator died
// mid-creation and left its marker behind.
func (r *Registry) Create(name string, pattern MessagingPattern, sc *StaticConfig) (*StaticConfig, error) {
	if err := os.MkdirAll(r.cfg.ServiceDir, 0o755); err != nil {
		return nil, err
	}
	uuid := uniqueid.ServiceUUID(name, pattern.String(), r.cfg.ServiceDir)
	path := r.staticConfigPath(uuid)

	if _, err := os.Stat(path); err == nil {
		return nil, ErrAlreadyExists
	}

	sc.UUID = uuid
	sc.Name = name
	sc.MessagingPattern = pattern

	data, err := fastJSON.MarshalIndent(sc, "", "  ")
	if err != nil {
		return nil, err
	}

	marker := r.markerPath(uuid)
	f, err := os.OpenFile(marker, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			// A concurrent creator holds the marker right now, or a dead
			// one left it behind. The live-race case resolves by falling
			// back to open; a stale marker means the service never
			// finished materializing.
			if _, serr := os.Stat(path); serr == nil {
				return nil, ErrAlreadyExists
			}
			return nil, ErrCorrupted
		}
		return nil, err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(marker)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(marker)
		return nil, err
	}
	if err := os.Rename(marker, path); err != nil {
		os.Remove(marker)
		if os.IsExist(err) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	logging.Default().Debug("service created", "name", name, "uuid", uuid, "pattern", pattern.String())
	return sc, nil
}

// Open reads an existing static config by (name, pattern) and checks it
// against the requester's minimum requirements.
func (r *Registry) Open(name string, pattern MessagingPattern, req *StaticConfig) (*StaticConfig, error) {
	uuid := uniqueid.ServiceUUID(name, pattern.String(), r.cfg.ServiceDir)
	sc, err := r.readStatic(uuid)
	if err != nil {
		return nil, err
	}
	if req != nil {
		req.MessagingPattern = pattern
		if cerr := sc.CompatibleWith(req); cerr != nil {
			return nil, cerr
		}
	}
	return sc, nil
}

func (r *Registry) readStatic(uuid string) (*StaticConfig, error) {
	path := r.staticConfigPath(uuid)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDoesNotExist
		}
		return nil, err
	}
	var sc StaticConfig
	if err := fastJSON.Unmarshal(data, &sc); err != nil {
		logging.Default().Warn("static config corrupted", "uuid", uuid, "error", err)
		return nil, ErrCorrupted
	}
	return &sc, nil
}

// OpenOrCreate opens a compatible service if one exists and creates it
// otherwise. Concurrent calls for the same (name, pattern) within this
// process are coalesced so only one creates the on-disk files.
func (r *Registry) OpenOrCreate(name string, pattern MessagingPattern, req *StaticConfig) (*StaticConfig, error) {
	key := name + "\x00" + pattern.String()
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		sc, err := r.Open(name, pattern, req)
		if err == nil {
			return sc, nil
		}
		if !errors.Is(err, ErrDoesNotExist) {
			return nil, err
		}
		created, cerr := r.Create(name, pattern, req)
		if cerr != nil {
			if errors.Is(cerr, ErrAlreadyExists) {
				// Lost a creation race with another process; the file now
				// exists, fall back to opening it.
				return r.Open(name, pattern, req)
			}
			return nil, cerr
		}
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*StaticConfig), nil
}

// DoesExist reports whether a service with this (name, pattern) has a
// published static config, without validating compatibility.
func (r *Registry) DoesExist(name string, pattern MessagingPattern) bool {
	uuid := uniqueid.ServiceUUID(name, pattern.String(), r.cfg.ServiceDir)
	_, err := os.Stat(r.staticConfigPath(uuid))
	return err == nil
}

// Details reads a service's full static config without compatibility
// requirements.
func (r *Registry) Details(name string, pattern MessagingPattern) (*StaticConfig, error) {
	uuid := uniqueid.ServiceUUID(name, pattern.String(), r.cfg.ServiceDir)
	return r.readStatic(uuid)
}

// ServiceInfo is a discovered service's public identity.
type ServiceInfo struct {
	UUID             string
	Name             string
	MessagingPattern MessagingPattern
}

// List enumerates every service whose static config currently exists
// under the service directory.
func (r *Registry) List() ([]ServiceInfo, error) {
	entries, err := os.ReadDir(r.cfg.ServiceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []ServiceInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) < len("iox2_.service") || name[:5] != "iox2_" || filepath.Ext(name) != ".service" {
			continue
		}
		uuid := name[5 : len(name)-len(".service")]
		sc, err := r.readStatic(uuid)
		if err != nil {
			logging.Default().Warn("skipping unreadable service entry", "file", name, "error", err)
			continue
		}
		out = append(out, ServiceInfo{UUID: sc.UUID, Name: sc.Name, MessagingPattern: sc.MessagingPattern})
	}
	return out, nil
}

// Remove deletes a service's static config. Used by dead-participant
// cleanup once its dynamic config shows zero live participants.
func (r *Registry) Remove(uuid string) error {
	err := os.Remove(r.staticConfigPath(uuid))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
