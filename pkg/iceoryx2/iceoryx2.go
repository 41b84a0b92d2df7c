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
	"fmt"
	"os"

	"github.com/iox2go/iceoryx2/internal/config"
	"github.com/iox2go/iceoryx2/internal/logging"
)

// ServiceType defines the communication domain for services.
type ServiceType int

const (
	// ServiceTypeLocal restricts communication to the same process.
	ServiceTypeLocal ServiceType = iota
	// ServiceTypeIpc enables inter-process communication across multiple processes.
	ServiceTypeIpc
)

// String implements fmt.Stringer for ServiceType.
func (s ServiceType) String() string {
	switch s {
	case ServiceTypeLocal:
		return "Local"
	case ServiceTypeIpc:
		return "IPC"
	default:
		return fmt.Sprintf("ServiceType(%d)", int(s))
	}
}

// LogLevel defines the logging verbosity level.
type LogLevel int

const (
	LogLevelTrace LogLevel = iota
	LogLevelDebug
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// String implements fmt.Stringer for LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LogLevelTrace:
		return "Trace"
	case LogLevelDebug:
		return "Debug"
	case LogLevelInfo:
		return "Info"
	case LogLevelWarn:
		return "Warn"
	case LogLevelError:
		return "Error"
	case LogLevelFatal:
		return "Fatal"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

func (l LogLevel) toInternal() logging.Level {
	switch l {
	case LogLevelTrace:
		return logging.LevelTrace
	case LogLevelDebug:
		return logging.LevelDebug
	case LogLevelWarn:
		return logging.LevelWarning
	case LogLevelError:
		return logging.LevelError
	case LogLevelFatal:
		return logging.LevelFatal
	default:
		return logging.LevelInfo
	}
}

// CallbackProgression controls the iteration flow in callback functions.
type CallbackProgression int

const (
	// CallbackProgressionStop stops the iteration.
	CallbackProgressionStop CallbackProgression = iota
	// CallbackProgressionContinue continues the iteration.
	CallbackProgressionContinue
)

// String implements fmt.Stringer for CallbackProgression.
func (c CallbackProgression) String() string {
	switch c {
	case CallbackProgressionStop:
		return "Stop"
	case CallbackProgressionContinue:
		return "Continue"
	default:
		return fmt.Sprintf("CallbackProgression(%d)", int(c))
	}
}

// TypeVariant defines how payload size is determined.
type TypeVariant int

const (
	// TypeVariantFixedSize means the payload has a fixed size.
	TypeVariantFixedSize TypeVariant = iota
	// TypeVariantDynamic means the payload has a dynamic size.
	TypeVariantDynamic
)

// String implements fmt.Stringer for TypeVariant.
func (t TypeVariant) String() string {
	switch t {
	case TypeVariantFixedSize:
		return "FixedSize"
	case TypeVariantDynamic:
		return "Dynamic"
	default:
		return fmt.Sprintf("TypeVariant(%d)", int(t))
	}
}

// UnableToDeliverStrategy defines behavior when a subscriber's buffer is full.
type UnableToDeliverStrategy int

const (
	// UnableToDeliverStrategyBlock suspends Send until the subscriber
	// consumes a slot, returning SendErrorInterrupted if a termination
	// signal fires first. Only meaningful when safe overflow is off;
	// with safe overflow the oldest sample is discarded instead.
	UnableToDeliverStrategyBlock UnableToDeliverStrategy = iota
	// UnableToDeliverStrategyDiscardSample discards the new sample when
	// a subscriber's buffer is full.
	UnableToDeliverStrategyDiscardSample
)

// String implements fmt.Stringer for UnableToDeliverStrategy.
func (u UnableToDeliverStrategy) String() string {
	switch u {
	case UnableToDeliverStrategyBlock:
		return "Block"
	case UnableToDeliverStrategyDiscardSample:
		return "DiscardSample"
	default:
		return fmt.Sprintf("UnableToDeliverStrategy(%d)", int(u))
	}
}

// EventId represents an event identifier used in the event messaging pattern.
type EventId uint64

// String implements fmt.Stringer for EventId.
func (e EventId) String() string {
	return fmt.Sprintf("EventId(%d)", uint64(e))
}

// SignalHandlingMode defines how signals are handled.
type SignalHandlingMode int

const (
	// SignalHandlingModeHandleTerminationRequests registers SIGINT and SIGTERM handlers.
	SignalHandlingModeHandleTerminationRequests SignalHandlingMode = iota
	// SignalHandlingModeDisabled disables signal handling.
	SignalHandlingModeDisabled
)

// String implements fmt.Stringer for SignalHandlingMode.
func (s SignalHandlingMode) String() string {
	switch s {
	case SignalHandlingModeHandleTerminationRequests:
		return "HandleTerminationRequests"
	case SignalHandlingModeDisabled:
		return "Disabled"
	default:
		return fmt.Sprintf("SignalHandlingMode(%d)", int(s))
	}
}

// AllocationStrategy defines the memory allocation strategy.
type AllocationStrategy int

const (
	// AllocationStrategyStatic serves fixed-size chunks from a preallocated
	// free list; see internal/shm.StaticAllocator.
	AllocationStrategyStatic AllocationStrategy = iota
	// AllocationStrategyPowerOfTwo allocates memory in power of two sizes.
	AllocationStrategyPowerOfTwo
	// AllocationStrategyBestFit allocates the smallest fitting block.
	AllocationStrategyBestFit
)

// String implements fmt.Stringer for AllocationStrategy.
func (a AllocationStrategy) String() string {
	switch a {
	case AllocationStrategyStatic:
		return "Static"
	case AllocationStrategyPowerOfTwo:
		return "PowerOfTwo"
	case AllocationStrategyBestFit:
		return "BestFit"
	default:
		return fmt.Sprintf("AllocationStrategy(%d)", int(a))
	}
}

func (a AllocationStrategy) toInternal() config.AllocationStrategy {
	switch a {
	case AllocationStrategyPowerOfTwo:
		return config.AllocationStrategyPowerOfTwo
	case AllocationStrategyBestFit:
		return config.AllocationStrategyBestFit
	default:
		return config.AllocationStrategyStatic
	}
}

// Constants for string length limits
const (
	ServiceNameMaxLength = 255
	NodeNameMaxLength    = 128
)

// SetLogLevelFromEnvOr sets the log level from environment variable IOX2_LOG_LEVEL,
// or uses the provided default if the environment variable is not set. The
// environment variable, when set and recognized, wins; an unrecognized value
// is ignored and defaultLevel applies instead.
func SetLogLevelFromEnvOr(defaultLevel LogLevel) {
	if raw, set := os.LookupEnv("IOX2_LOG_LEVEL"); set {
		if parsed, ok := logging.ParseLevel(raw); ok {
			logging.SetLevel(parsed)
			return
		}
	}
	SetLogLevel(defaultLevel)
}

// SetLogLevel sets the global log level.
func SetLogLevel(level LogLevel) {
	logging.SetLevel(level.toInternal())
}
