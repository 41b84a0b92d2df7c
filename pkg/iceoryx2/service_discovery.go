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

	"github.com/iox2go/iceoryx2/internal/registry"
)

// MessagingPattern defines the communication pattern of a service.
type MessagingPattern int

const (
	// MessagingPatternPublishSubscribe is the publish-subscribe pattern.
	MessagingPatternPublishSubscribe MessagingPattern = iota
	// MessagingPatternEvent is the event pattern.
	MessagingPatternEvent
	// MessagingPatternRequestResponse is the request-response pattern.
	MessagingPatternRequestResponse
	// MessagingPatternBlackboard is the blackboard pattern.
	MessagingPatternBlackboard
)

// String returns the string representation of the messaging pattern.
func (p MessagingPattern) String() string {
	switch p {
	case MessagingPatternPublishSubscribe:
		return "PublishSubscribe"
	case MessagingPatternEvent:
		return "Event"
	case MessagingPatternRequestResponse:
		return "RequestResponse"
	case MessagingPatternBlackboard:
		return "Blackboard"
	default:
		return "Unknown"
	}
}

// toInternal maps the pattern onto the registry's vocabulary. Patterns
// without a registry counterpart (blackboard) report ok=false.
func (p MessagingPattern) toInternal() (registry.MessagingPattern, bool) {
	switch p {
	case MessagingPatternPublishSubscribe:
		return registry.MessagingPatternPublishSubscribe, true
	case MessagingPatternEvent:
		return registry.MessagingPatternEvent, true
	case MessagingPatternRequestResponse:
		return registry.MessagingPatternRequestResponse, true
	default:
		return 0, false
	}
}

func patternFromInternal(p registry.MessagingPattern) MessagingPattern {
	switch p {
	case registry.MessagingPatternEvent:
		return MessagingPatternEvent
	case registry.MessagingPatternRequestResponse:
		return MessagingPatternRequestResponse
	default:
		return MessagingPatternPublishSubscribe
	}
}

// ServiceInfo contains information about a discovered service.
type ServiceInfo struct {
	// ID is the unique identifier of the service.
	ID string
	// Name is the name of the service.
	Name string
	// MessagingPattern is the messaging pattern of the service.
	MessagingPattern MessagingPattern
}

// ServiceListCallback is the callback type for service listing.
type ServiceListCallback func(info *ServiceInfo) CallbackProgression

// ListServices lists all available services of the given type.
// The callback is invoked for each discovered service.
func ListServices(serviceType ServiceType, callback ServiceListCallback) error {
	return ListServicesWithConfig(serviceType, nil, callback)
}

// ListServicesWithConfig lists all services registered under cfg's
// service directory, invoking the callback for each. The callback can
// return CallbackProgressionStop to end the listing early.
func ListServicesWithConfig(serviceType ServiceType, cfg *Config, callback ServiceListCallback) error {
	if callback == nil {
		return ErrNilHandle
	}
	if cfg == nil {
		cfg = GlobalConfig()
	}

	infos, err := registryFor(cfg.inner).List()
	if err != nil {
		return ServiceListErrorInternalError
	}
	for _, info := range infos {
		out := &ServiceInfo{
			ID:               info.UUID,
			Name:             info.Name,
			MessagingPattern: patternFromInternal(info.MessagingPattern),
		}
		if callback(out) == CallbackProgressionStop {
			break
		}
	}
	return nil
}

// ServiceExists checks if a service with the given name exists.
func ServiceExists(serviceType ServiceType, serviceName *ServiceName, pattern MessagingPattern) (bool, error) {
	if serviceName == nil {
		return false, ErrNilHandle
	}
	internalPattern, ok := pattern.toInternal()
	if !ok {
		return false, nil
	}
	return registryFor(GlobalConfig().inner).DoesExist(serviceName.String(), internalPattern), nil
}

// GetServiceDetails retrieves detailed information about a specific service.
func GetServiceDetails(serviceType ServiceType, serviceName *ServiceName, pattern MessagingPattern) (*ServiceInfo, error) {
	if serviceName == nil {
		return nil, ErrNilHandle
	}
	internalPattern, ok := pattern.toInternal()
	if !ok {
		return nil, ErrNoData
	}

	sc, err := registryFor(GlobalConfig().inner).Details(serviceName.String(), internalPattern)
	if err != nil {
		if errors.Is(err, registry.ErrDoesNotExist) {
			return nil, ErrNoData
		}
		if errors.Is(err, registry.ErrCorrupted) {
			return nil, ServiceDetailsErrorServiceInInconsistentState
		}
		return nil, ServiceDetailsErrorFailedToReadStaticServiceInfo
	}

	return &ServiceInfo{
		ID:               sc.UUID,
		Name:             sc.Name,
		MessagingPattern: patternFromInternal(sc.MessagingPattern),
	}, nil
}

// ServiceDiscovery provides methods for discovering services.
type ServiceDiscovery struct {
	serviceType ServiceType
}

// NewServiceDiscovery creates a new ServiceDiscovery instance.
func NewServiceDiscovery(serviceType ServiceType) *ServiceDiscovery {
	return &ServiceDiscovery{serviceType: serviceType}
}

// Exists checks if a service with the given name and pattern exists.
func (sd *ServiceDiscovery) Exists(serviceName *ServiceName, pattern MessagingPattern) (bool, error) {
	return ServiceExists(sd.serviceType, serviceName, pattern)
}

// Details retrieves detailed information about a specific service.
func (sd *ServiceDiscovery) Details(serviceName *ServiceName, pattern MessagingPattern) (*ServiceInfo, error) {
	return GetServiceDetails(sd.serviceType, serviceName, pattern)
}

// FindPubSubService finds a publish-subscribe service by name.
func (sd *ServiceDiscovery) FindPubSubService(name string) (*ServiceInfo, error) {
	serviceName, err := NewServiceName(name)
	if err != nil {
		return nil, err
	}
	defer serviceName.Close()

	return sd.Details(serviceName, MessagingPatternPublishSubscribe)
}

// FindEventService finds an event service by name.
func (sd *ServiceDiscovery) FindEventService(name string) (*ServiceInfo, error) {
	serviceName, err := NewServiceName(name)
	if err != nil {
		return nil, err
	}
	defer serviceName.Close()

	return sd.Details(serviceName, MessagingPatternEvent)
}

// FindRequestResponseService finds a request-response service by name.
func (sd *ServiceDiscovery) FindRequestResponseService(name string) (*ServiceInfo, error) {
	serviceName, err := NewServiceName(name)
	if err != nil {
		return nil, err
	}
	defer serviceName.Close()

	return sd.Details(serviceName, MessagingPatternRequestResponse)
}

// CollectServices collects all services of a specific type and returns them as a slice.
// This is a convenience wrapper around ListServices.
func CollectServices(serviceType ServiceType) ([]*ServiceInfo, error) {
	var services []*ServiceInfo

	err := ListServices(serviceType, func(info *ServiceInfo) CallbackProgression {
		services = append(services, info)
		return CallbackProgressionContinue
	})
	if err != nil {
		return nil, err
	}

	return services, nil
}
