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
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// The termination token is the only process-wide mutable state besides
// the logger: an opt-in SIGINT/SIGTERM handler flips it, and every
// blocking call consults it so it can return promptly instead of
// sleeping through a shutdown. Installation is init-once with
// first-writer-wins semantics; a node or waitset created with
// SignalHandlingModeDisabled never installs it.
var (
	terminationInstall sync.Once
	terminationFlag    atomic.Bool
	terminationCh      = make(chan struct{})
	terminationStop    sync.Once
)

func installTerminationHandler() {
	terminationInstall.Do(func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, unix.SIGINT, unix.SIGTERM)
		go func() {
			<-sigCh
			RequestTermination()
		}()
	})
}

// RequestTermination flips the process-wide termination token, as if a
// termination signal had been observed. From then on, Node.Wait and the
// WaitSet wait calls under SignalHandlingModeHandleTerminationRequests
// return NodeWaitErrorTerminationRequest, and a blocking send returns
// SendErrorInterrupted.
func RequestTermination() {
	terminationFlag.Store(true)
	terminationStop.Do(func() { close(terminationCh) })
}

// TerminationRequested reports whether a termination signal was observed.
func TerminationRequested() bool {
	return terminationFlag.Load()
}

// terminationError translates the token into the error a blocking call
// under the given mode must surface, or nil.
func terminationError(mode SignalHandlingMode) error {
	if mode == SignalHandlingModeHandleTerminationRequests && terminationFlag.Load() {
		return NodeWaitErrorTerminationRequest
	}
	return nil
}

// resetTerminationForTest clears the token so tests can exercise the
// termination path repeatedly. Production code never calls it.
func resetTerminationForTest() {
	terminationFlag.Store(false)
	terminationCh = make(chan struct{})
	terminationStop = sync.Once{}
}
