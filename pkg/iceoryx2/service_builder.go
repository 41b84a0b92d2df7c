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

package iceoryx2

import (
	"errors"
	"time"

	"github.com/iox2go/iceoryx2/internal/registry"
)

// ServiceBuilder is used to create or open services.
type ServiceBuilder struct {
	node        *Node
	name        string
	serviceType ServiceType
	consumed    bool
}

// PublishSubscribe returns a ServiceBuilderPubSub for creating publish-subscribe services.
func (b *ServiceBuilder) PublishSubscribe() *ServiceBuilderPubSub {
	if b == nil || b.consumed {
		return nil
	}
	b.consumed = true
	cfg := b.node.cfg.inner
	return &ServiceBuilderPubSub{
		node:        b.node,
		name:        b.name,
		serviceType: b.serviceType,
		req: registry.StaticConfig{
			MaxPublishers:                cfg.DefaultMaxPublishers,
			MaxSubscribers:               cfg.DefaultMaxSubscribers,
			MaxNodes:                     cfg.DefaultMaxNodes,
			HistorySize:                  cfg.DefaultHistorySize,
			SubscriberMaxBufferSize:      cfg.DefaultSubscriberMaxBufferSize,
			SubscriberMaxBorrowedSamples: cfg.DefaultSubscriberMaxBorrowedSamples,
			MaxLoanedSamples:             cfg.DefaultMaxLoanedSamples,
			PayloadAlignment:             cfg.DefaultPayloadAlignment,
			EnableSafeOverflow:           cfg.DefaultEnableSafeOverflow,
		},
	}
}

// Event returns a ServiceBuilderEvent for creating event services.
func (b *ServiceBuilder) Event() *ServiceBuilderEvent {
	if b == nil || b.consumed {
		return nil
	}
	b.consumed = true
	cfg := b.node.cfg.inner
	return &ServiceBuilderEvent{
		node:        b.node,
		name:        b.name,
		serviceType: b.serviceType,
		req: registry.StaticConfig{
			MaxNotifiers:    cfg.DefaultMaxNotifiers,
			MaxListeners:    cfg.DefaultMaxListeners,
			MaxNodes:        cfg.DefaultMaxNodes,
			EventIdMaxValue: defaultEventIdMaxValue,
		},
	}
}

// RequestResponse returns a ServiceBuilderRequestResponse for creating request-response services.
func (b *ServiceBuilder) RequestResponse() *ServiceBuilderRequestResponse {
	if b == nil || b.consumed {
		return nil
	}
	b.consumed = true
	cfg := b.node.cfg.inner
	return &ServiceBuilderRequestResponse{
		node:        b.node,
		name:        b.name,
		serviceType: b.serviceType,
		req: registry.StaticConfig{
			MaxClients:                 cfg.DefaultMaxPublishers,
			MaxServers:                 cfg.DefaultMaxSubscribers,
			MaxNodes:                   cfg.DefaultMaxNodes,
			MaxActiveRequestsPerClient: cfg.DefaultMaxLoanedSamples,
			MaxResponseBufferSize:      cfg.DefaultSubscriberMaxBufferSize,
		},
	}
}

const defaultEventIdMaxValue = 4095

// applyAttributes folds an AttributeSpecifier into the creation request,
// and verifyAttributes checks an opened service against an
// AttributeVerifier.
func applyAttributes(req *registry.StaticConfig, spec *AttributeSpecifier) {
	if spec == nil || len(spec.attrs) == 0 {
		return
	}
	req.Attributes = map[string]string{}
	for _, a := range spec.attrs {
		req.Attributes[a.Key] = a.Value
	}
}

func verifyAttributes(sc *registry.StaticConfig, verifier *AttributeVerifier) error {
	if verifier == nil {
		return nil
	}
	return verifier.VerifyRequirements(newAttributeSet(sc.Attributes))
}

// ServiceBuilderPubSub is used to configure and create publish-subscribe services.
type ServiceBuilderPubSub struct {
	node        *Node
	name        string
	serviceType ServiceType
	req         registry.StaticConfig
	attributes  *AttributeSpecifier
	verifier    *AttributeVerifier
	consumed    bool
}

// PayloadType sets the payload type details for the service.
// typeName should be a unique identifier for the type (e.g., "MyData").
// size is the size of the payload in bytes.
// alignment is the alignment requirement for the payload.
func (b *ServiceBuilderPubSub) PayloadType(typeName string, size, alignment uint64) *ServiceBuilderPubSub {
	b.req.Payload = &registry.TypeDetail{
		TypeName:  typeName,
		Size:      size,
		Alignment: alignment,
		Variant:   TypeVariantFixedSize.String(),
	}
	return b
}

// PayloadTypeVariant overrides the payload type variant, e.g. for
// dynamically sized slice payloads.
func (b *ServiceBuilderPubSub) PayloadTypeVariant(variant TypeVariant) *ServiceBuilderPubSub {
	if b.req.Payload != nil {
		b.req.Payload.Variant = variant.String()
	}
	return b
}

// MaxPublishers sets the maximum number of publishers for this service.
func (b *ServiceBuilderPubSub) MaxPublishers(n uint64) *ServiceBuilderPubSub {
	b.req.MaxPublishers = n
	return b
}

// MaxSubscribers sets the maximum number of subscribers for this service.
func (b *ServiceBuilderPubSub) MaxSubscribers(n uint64) *ServiceBuilderPubSub {
	b.req.MaxSubscribers = n
	return b
}

// HistorySize sets the number of samples that are stored for late-joining subscribers.
func (b *ServiceBuilderPubSub) HistorySize(n uint64) *ServiceBuilderPubSub {
	b.req.HistorySize = n
	return b
}

// SubscriberMaxBufferSize sets the maximum buffer size for subscribers.
func (b *ServiceBuilderPubSub) SubscriberMaxBufferSize(n uint64) *ServiceBuilderPubSub {
	b.req.SubscriberMaxBufferSize = n
	return b
}

// EnableSafeOverflow enables safe overflow behavior (oldest samples are discarded when buffer is full).
func (b *ServiceBuilderPubSub) EnableSafeOverflow(enable bool) *ServiceBuilderPubSub {
	b.req.EnableSafeOverflow = enable
	return b
}

// MaxNodes sets the maximum number of nodes that can use this service.
func (b *ServiceBuilderPubSub) MaxNodes(n uint64) *ServiceBuilderPubSub {
	b.req.MaxNodes = n
	return b
}

// SubscriberMaxBorrowedSamples sets the maximum number of samples a subscriber can borrow at once.
func (b *ServiceBuilderPubSub) SubscriberMaxBorrowedSamples(n uint64) *ServiceBuilderPubSub {
	b.req.SubscriberMaxBorrowedSamples = n
	return b
}

// MaxLoanedSamples sets the maximum number of samples a publisher can have loaned at once.
func (b *ServiceBuilderPubSub) MaxLoanedSamples(n uint64) *ServiceBuilderPubSub {
	b.req.MaxLoanedSamples = n
	return b
}

// PayloadAlignment sets the alignment requirement for payloads.
func (b *ServiceBuilderPubSub) PayloadAlignment(alignment uint64) *ServiceBuilderPubSub {
	b.req.PayloadAlignment = alignment
	return b
}

// UserHeaderType sets the user header type details for the service.
// typeName should be a unique identifier for the type.
// size is the size of the user header in bytes.
// alignment is the alignment requirement for the user header.
func (b *ServiceBuilderPubSub) UserHeaderType(typeName string, size, alignment uint64) *ServiceBuilderPubSub {
	b.req.UserHeader = &registry.TypeDetail{
		TypeName:  typeName,
		Size:      size,
		Alignment: alignment,
		Variant:   TypeVariantFixedSize.String(),
	}
	return b
}

// Attributes sets the attributes a freshly created service is published with.
func (b *ServiceBuilderPubSub) Attributes(spec *AttributeSpecifier) *ServiceBuilderPubSub {
	b.attributes = spec
	return b
}

// AttributeVerifier requires an opened service to satisfy the given
// attribute requirements.
func (b *ServiceBuilderPubSub) AttributeVerifier(verifier *AttributeVerifier) *ServiceBuilderPubSub {
	b.verifier = verifier
	return b
}

func (b *ServiceBuilderPubSub) build(sc *registry.StaticConfig) (*PortFactoryPubSub, error) {
	if err := verifyAttributes(sc, b.verifier); err != nil {
		return nil, PubSubOpenOrCreateErrorIncompatibleAttributes
	}
	rt, err := acquireRuntime(b.node, sc)
	if err != nil {
		return nil, WrapError("ServiceBuilderPubSub", err)
	}
	return &PortFactoryPubSub{rt: rt, node: b.node, serviceType: b.serviceType}, nil
}

func (b *ServiceBuilderPubSub) prepare() error {
	if b == nil {
		return ErrNilHandle
	}
	if b.consumed {
		return ErrBuilderConsumed
	}
	b.consumed = true
	applyAttributes(&b.req, b.attributes)
	return nil
}

// OpenOrCreate opens an existing service or creates a new one if it doesn't exist.
func (b *ServiceBuilderPubSub) OpenOrCreate() (*PortFactoryPubSub, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	sc, err := b.node.registry.OpenOrCreate(b.name, registry.MessagingPatternPublishSubscribe, &b.req)
	if err != nil {
		return nil, mapPubSubOpenErr(err)
	}
	return b.build(sc)
}

// Open opens an existing service.
func (b *ServiceBuilderPubSub) Open() (*PortFactoryPubSub, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	sc, err := b.node.registry.Open(b.name, registry.MessagingPatternPublishSubscribe, &b.req)
	if err != nil {
		return nil, mapPubSubOpenErr(err)
	}
	return b.build(sc)
}

// Create creates a new service (fails if it already exists).
func (b *ServiceBuilderPubSub) Create() (*PortFactoryPubSub, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	sc, err := b.node.registry.Create(b.name, registry.MessagingPatternPublishSubscribe, &b.req)
	if err != nil {
		return nil, mapPubSubOpenErr(err)
	}
	return b.build(sc)
}

func mapPubSubOpenErr(err error) error {
	switch {
	case errors.Is(err, registry.ErrDoesNotExist):
		return PubSubOpenOrCreateErrorDoesNotExist
	case errors.Is(err, registry.ErrAlreadyExists):
		return PubSubOpenOrCreateErrorAlreadyExists
	case errors.Is(err, registry.ErrIncompatibleTypes),
		errors.Is(err, registry.ErrIncompatibleAlignment):
		return PubSubOpenOrCreateErrorIncompatibleTypes
	case errors.Is(err, registry.ErrIncompatibleOverflow):
		return PubSubOpenOrCreateErrorIncompatibleOverflowBehavior
	case errors.Is(err, registry.ErrUnsupportedPublishers):
		return PubSubOpenOrCreateErrorDoesNotSupportRequestedAmountOfPublishers
	case errors.Is(err, registry.ErrUnsupportedSubscribers):
		return PubSubOpenOrCreateErrorDoesNotSupportRequestedAmountOfSubscribers
	case errors.Is(err, registry.ErrUnsupportedNodes):
		return PubSubOpenOrCreateErrorDoesNotSupportRequestedAmountOfNodes
	case errors.Is(err, registry.ErrUnsupportedBufferSize):
		return PubSubOpenOrCreateErrorDoesNotSupportRequestedMinBufferSize
	case errors.Is(err, registry.ErrUnsupportedHistorySize):
		return PubSubOpenOrCreateErrorDoesNotSupportRequestedMinHistorySize
	case errors.Is(err, registry.ErrUnsupportedBorrowedSamples):
		return PubSubOpenOrCreateErrorDoesNotSupportRequestedAmountOfBorrowedSamples
	case errors.Is(err, registry.ErrUnsupportedLoanedSamples):
		return PubSubOpenOrCreateErrorDoesNotSupportRequestedAmountOfLoanedSamples
	case errors.Is(err, registry.ErrCorrupted):
		return PubSubOpenOrCreateErrorServiceInCorruptedState
	default:
		return PubSubOpenOrCreateErrorInternalError
	}
}

// ServiceBuilderEvent is used to configure and create event services.
type ServiceBuilderEvent struct {
	node        *Node
	name        string
	serviceType ServiceType
	req         registry.StaticConfig
	attributes  *AttributeSpecifier
	verifier    *AttributeVerifier
	consumed    bool
}

// MaxNotifiers sets the maximum number of notifiers for this service.
func (b *ServiceBuilderEvent) MaxNotifiers(n uint64) *ServiceBuilderEvent {
	b.req.MaxNotifiers = n
	return b
}

// MaxListeners sets the maximum number of listeners for this service.
func (b *ServiceBuilderEvent) MaxListeners(n uint64) *ServiceBuilderEvent {
	b.req.MaxListeners = n
	return b
}

// EventIdMaxValue sets the maximum event ID value.
func (b *ServiceBuilderEvent) EventIdMaxValue(n uint64) *ServiceBuilderEvent {
	b.req.EventIdMaxValue = n
	return b
}

// MaxNodes sets the maximum number of nodes that can use this event service.
func (b *ServiceBuilderEvent) MaxNodes(n uint64) *ServiceBuilderEvent {
	b.req.MaxNodes = n
	return b
}

// Deadline sets the deadline duration for the event service.
// Listeners must receive events within this duration.
func (b *ServiceBuilderEvent) Deadline(deadline time.Duration) *ServiceBuilderEvent {
	b.req.DeadlineNanos = uint64(deadline.Nanoseconds())
	return b
}

// DisableDeadline disables the deadline for the event service.
func (b *ServiceBuilderEvent) DisableDeadline() *ServiceBuilderEvent {
	b.req.DeadlineNanos = 0
	return b
}

// NotifierDeadEvent stores the notifier-dead event ID in the service's
// static config. No event is emitted when a notifier dies.
func (b *ServiceBuilderEvent) NotifierDeadEvent(id uint64) *ServiceBuilderEvent {
	b.req.NotifierDeadEvent = &id
	return b
}

// DisableNotifierDeadEvent disables the notifier dead event notification.
func (b *ServiceBuilderEvent) DisableNotifierDeadEvent() *ServiceBuilderEvent {
	b.req.NotifierDeadEvent = nil
	return b
}

// NotifierCreatedEvent sets the event ID that is emitted when a notifier is created.
func (b *ServiceBuilderEvent) NotifierCreatedEvent(id uint64) *ServiceBuilderEvent {
	b.req.NotifierCreatedEvent = &id
	return b
}

// DisableNotifierCreatedEvent disables the notifier created event notification.
func (b *ServiceBuilderEvent) DisableNotifierCreatedEvent() *ServiceBuilderEvent {
	b.req.NotifierCreatedEvent = nil
	return b
}

// NotifierDroppedEvent sets the event ID that is emitted when a notifier is dropped.
func (b *ServiceBuilderEvent) NotifierDroppedEvent(id uint64) *ServiceBuilderEvent {
	b.req.NotifierDroppedEvent = &id
	return b
}

// DisableNotifierDroppedEvent disables the notifier dropped event notification.
func (b *ServiceBuilderEvent) DisableNotifierDroppedEvent() *ServiceBuilderEvent {
	b.req.NotifierDroppedEvent = nil
	return b
}

// Attributes sets the attributes a freshly created service is published with.
func (b *ServiceBuilderEvent) Attributes(spec *AttributeSpecifier) *ServiceBuilderEvent {
	b.attributes = spec
	return b
}

// AttributeVerifier requires an opened service to satisfy the given
// attribute requirements.
func (b *ServiceBuilderEvent) AttributeVerifier(verifier *AttributeVerifier) *ServiceBuilderEvent {
	b.verifier = verifier
	return b
}

func (b *ServiceBuilderEvent) prepare() error {
	if b == nil {
		return ErrNilHandle
	}
	if b.consumed {
		return ErrBuilderConsumed
	}
	b.consumed = true
	applyAttributes(&b.req, b.attributes)
	return nil
}

func (b *ServiceBuilderEvent) build(sc *registry.StaticConfig) (*PortFactoryEvent, error) {
	if err := verifyAttributes(sc, b.verifier); err != nil {
		return nil, EventOpenOrCreateErrorIncompatibleAttributes
	}
	rt, err := acquireRuntime(b.node, sc)
	if err != nil {
		return nil, WrapError("ServiceBuilderEvent", err)
	}
	return &PortFactoryEvent{rt: rt, node: b.node, serviceType: b.serviceType}, nil
}

// OpenOrCreate opens an existing event service or creates a new one if it doesn't exist.
func (b *ServiceBuilderEvent) OpenOrCreate() (*PortFactoryEvent, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	sc, err := b.node.registry.OpenOrCreate(b.name, registry.MessagingPatternEvent, &b.req)
	if err != nil {
		return nil, mapEventOpenErr(err)
	}
	return b.build(sc)
}

// Open opens an existing event service.
func (b *ServiceBuilderEvent) Open() (*PortFactoryEvent, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	sc, err := b.node.registry.Open(b.name, registry.MessagingPatternEvent, &b.req)
	if err != nil {
		return nil, mapEventOpenErr(err)
	}
	return b.build(sc)
}

// Create creates a new event service (fails if it already exists).
func (b *ServiceBuilderEvent) Create() (*PortFactoryEvent, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	sc, err := b.node.registry.Create(b.name, registry.MessagingPatternEvent, &b.req)
	if err != nil {
		return nil, mapEventOpenErr(err)
	}
	return b.build(sc)
}

func mapEventOpenErr(err error) error {
	switch {
	case errors.Is(err, registry.ErrDoesNotExist):
		return EventOpenOrCreateErrorDoesNotExist
	case errors.Is(err, registry.ErrAlreadyExists):
		return EventOpenOrCreateErrorAlreadyExists
	case errors.Is(err, registry.ErrUnsupportedNotifiers):
		return EventOpenOrCreateErrorDoesNotSupportRequestedAmountOfNotifiers
	case errors.Is(err, registry.ErrUnsupportedListeners):
		return EventOpenOrCreateErrorDoesNotSupportRequestedAmountOfListeners
	case errors.Is(err, registry.ErrUnsupportedNodes):
		return EventOpenOrCreateErrorDoesNotSupportRequestedAmountOfNodes
	case errors.Is(err, registry.ErrUnsupportedEventIdMaxValue):
		return EventOpenOrCreateErrorDoesNotSupportRequestedMaxEventId
	case errors.Is(err, registry.ErrCorrupted):
		return EventOpenOrCreateErrorServiceInCorruptedState
	default:
		return EventOpenOrCreateErrorInternalError
	}
}

// ServiceBuilderRequestResponse is used to configure and create request-response services.
type ServiceBuilderRequestResponse struct {
	node        *Node
	name        string
	serviceType ServiceType
	req         registry.StaticConfig
	consumed    bool
}

// RequestPayloadType sets the request payload type details for the service.
func (b *ServiceBuilderRequestResponse) RequestPayloadType(typeName string, size, alignment uint64) *ServiceBuilderRequestResponse {
	b.req.RequestPayload = &registry.TypeDetail{
		TypeName:  typeName,
		Size:      size,
		Alignment: alignment,
		Variant:   TypeVariantFixedSize.String(),
	}
	return b
}

// ResponsePayloadType sets the response payload type details for the service.
func (b *ServiceBuilderRequestResponse) ResponsePayloadType(typeName string, size, alignment uint64) *ServiceBuilderRequestResponse {
	b.req.ResponsePayload = &registry.TypeDetail{
		TypeName:  typeName,
		Size:      size,
		Alignment: alignment,
		Variant:   TypeVariantFixedSize.String(),
	}
	return b
}

// MaxClients sets the maximum number of clients for this service.
func (b *ServiceBuilderRequestResponse) MaxClients(n uint64) *ServiceBuilderRequestResponse {
	b.req.MaxClients = n
	return b
}

// MaxServers sets the maximum number of servers for this service.
func (b *ServiceBuilderRequestResponse) MaxServers(n uint64) *ServiceBuilderRequestResponse {
	b.req.MaxServers = n
	return b
}

// MaxActiveRequestsPerClient sets the maximum number of active requests per client.
func (b *ServiceBuilderRequestResponse) MaxActiveRequestsPerClient(n uint64) *ServiceBuilderRequestResponse {
	b.req.MaxActiveRequestsPerClient = n
	return b
}

// MaxResponseBufferSize sets the maximum response buffer size.
func (b *ServiceBuilderRequestResponse) MaxResponseBufferSize(n uint64) *ServiceBuilderRequestResponse {
	b.req.MaxResponseBufferSize = n
	return b
}

// EnableFireAndForgetRequests enables fire and forget mode for requests.
func (b *ServiceBuilderRequestResponse) EnableFireAndForgetRequests(enable bool) *ServiceBuilderRequestResponse {
	b.req.FireAndForgetRequests = enable
	return b
}

func (b *ServiceBuilderRequestResponse) prepare() error {
	if b == nil {
		return ErrNilHandle
	}
	if b.consumed {
		return ErrBuilderConsumed
	}
	b.consumed = true
	return nil
}

func (b *ServiceBuilderRequestResponse) build(sc *registry.StaticConfig) (*PortFactoryRequestResponse, error) {
	rt, err := acquireRuntime(b.node, sc)
	if err != nil {
		return nil, WrapError("ServiceBuilderRequestResponse", err)
	}
	return &PortFactoryRequestResponse{rt: rt, node: b.node, serviceType: b.serviceType, exchange: exchangeFor(rt)}, nil
}

// OpenOrCreate opens an existing request-response service or creates a new one if it doesn't exist.
func (b *ServiceBuilderRequestResponse) OpenOrCreate() (*PortFactoryRequestResponse, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	sc, err := b.node.registry.OpenOrCreate(b.name, registry.MessagingPatternRequestResponse, &b.req)
	if err != nil {
		return nil, mapRequestResponseOpenErr(err)
	}
	return b.build(sc)
}

// Open opens an existing request-response service.
func (b *ServiceBuilderRequestResponse) Open() (*PortFactoryRequestResponse, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	sc, err := b.node.registry.Open(b.name, registry.MessagingPatternRequestResponse, &b.req)
	if err != nil {
		return nil, mapRequestResponseOpenErr(err)
	}
	return b.build(sc)
}

// Create creates a new request-response service (fails if it already exists).
func (b *ServiceBuilderRequestResponse) Create() (*PortFactoryRequestResponse, error) {
	if err := b.prepare(); err != nil {
		return nil, err
	}
	sc, err := b.node.registry.Create(b.name, registry.MessagingPatternRequestResponse, &b.req)
	if err != nil {
		return nil, mapRequestResponseOpenErr(err)
	}
	return b.build(sc)
}

func mapRequestResponseOpenErr(err error) error {
	switch {
	case errors.Is(err, registry.ErrDoesNotExist):
		return RequestResponseOpenOrCreateErrorDoesNotExist
	case errors.Is(err, registry.ErrAlreadyExists):
		return RequestResponseOpenOrCreateErrorAlreadyExists
	case errors.Is(err, registry.ErrIncompatibleTypes):
		return RequestResponseOpenOrCreateErrorIncompatibleTypes
	case errors.Is(err, registry.ErrUnsupportedClients):
		return RequestResponseOpenOrCreateErrorDoesNotSupportRequestedAmountOfClients
	case errors.Is(err, registry.ErrUnsupportedServers):
		return RequestResponseOpenOrCreateErrorDoesNotSupportRequestedAmountOfServers
	case errors.Is(err, registry.ErrUnsupportedNodes):
		return RequestResponseOpenOrCreateErrorDoesNotSupportRequestedAmountOfNodes
	case errors.Is(err, registry.ErrCorrupted):
		return RequestResponseOpenOrCreateErrorServiceInCorruptedState
	default:
		return RequestResponseOpenOrCreateErrorInternalError
	}
}
