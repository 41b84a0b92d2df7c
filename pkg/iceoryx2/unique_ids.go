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

import "github.com/iox2go/iceoryx2/internal/uniqueid"

// UniquePublisherId is a system-wide unique identifier for a publisher.
type UniquePublisherId struct {
	id uniqueid.PortId
}

// Close releases the resources associated with the UniquePublisherId.
func (id *UniquePublisherId) Close() error { return nil }

// Value returns the raw 64-bit value of the unique ID.
func (id *UniquePublisherId) Value() uint64 { return uint64(id.id) }

// Equals checks if two UniquePublisherIds are equal.
func (id *UniquePublisherId) Equals(other *UniquePublisherId) bool {
	return other != nil && id.id == other.id
}

// Less checks if this ID is less than another (for ordering).
func (id *UniquePublisherId) Less(other *UniquePublisherId) bool {
	return other != nil && id.id < other.id
}

// UniqueSubscriberId is a system-wide unique identifier for a subscriber.
type UniqueSubscriberId struct {
	id uniqueid.PortId
}

// Close releases the resources associated with the UniqueSubscriberId.
func (id *UniqueSubscriberId) Close() error { return nil }

// Value returns the raw 64-bit value of the unique ID.
func (id *UniqueSubscriberId) Value() uint64 { return uint64(id.id) }

// Equals checks if two UniqueSubscriberIds are equal.
func (id *UniqueSubscriberId) Equals(other *UniqueSubscriberId) bool {
	return other != nil && id.id == other.id
}

// Less checks if this ID is less than another (for ordering).
func (id *UniqueSubscriberId) Less(other *UniqueSubscriberId) bool {
	return other != nil && id.id < other.id
}

// UniqueListenerId is a system-wide unique identifier for a listener.
type UniqueListenerId struct {
	id uniqueid.PortId
}

// Close releases the resources associated with the UniqueListenerId.
func (id *UniqueListenerId) Close() error { return nil }

// Value returns the raw 64-bit value of the unique ID.
func (id *UniqueListenerId) Value() uint64 { return uint64(id.id) }

// Equals checks if two UniqueListenerIds are equal.
func (id *UniqueListenerId) Equals(other *UniqueListenerId) bool {
	return other != nil && id.id == other.id
}

// Less checks if this ID is less than another (for ordering).
func (id *UniqueListenerId) Less(other *UniqueListenerId) bool {
	return other != nil && id.id < other.id
}

// UniqueNotifierId is a system-wide unique identifier for a notifier.
type UniqueNotifierId struct {
	id uniqueid.PortId
}

// Close releases the resources associated with the UniqueNotifierId.
func (id *UniqueNotifierId) Close() error { return nil }

// Value returns the raw 64-bit value of the unique ID.
func (id *UniqueNotifierId) Value() uint64 { return uint64(id.id) }

// Equals checks if two UniqueNotifierIds are equal.
func (id *UniqueNotifierId) Equals(other *UniqueNotifierId) bool {
	return other != nil && id.id == other.id
}

// Less checks if this ID is less than another (for ordering).
func (id *UniqueNotifierId) Less(other *UniqueNotifierId) bool {
	return other != nil && id.id < other.id
}
