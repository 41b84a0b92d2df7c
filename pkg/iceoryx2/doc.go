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

// Package iceoryx2 is a decentralized, zero-copy inter-process
// communication middleware providing publish-subscribe, event, and
// request-response messaging patterns.
//
// Samples travel through shared memory: a publisher loans a chunk from
// its pre-allocated data segment, writes the payload in place, and hands
// only the chunk's descriptor to each subscriber. There is no broker
// process and the library runs no background threads; discovery,
// connection management and dead-participant cleanup all happen
// synchronously on the calling thread.
//
// # Getting Started
//
// Create a node, which is the central entry point:
//
//	node, err := iceoryx2.NewNodeBuilder().
//	    Name("my-app").
//	    Create(iceoryx2.ServiceTypeIpc)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
// # Publish-Subscribe Pattern
//
// Publisher:
//
//	serviceName, _ := iceoryx2.NewServiceName("My/Funk/ServiceName")
//	service, _ := node.ServiceBuilder(serviceName).
//	    PublishSubscribe().
//	    PayloadType("MyData", uint64(unsafe.Sizeof(MyData{})), uint64(unsafe.Alignof(MyData{}))).
//	    OpenOrCreate()
//	defer service.Close()
//
//	publisher, _ := service.PublisherBuilder().Create()
//	defer publisher.Close()
//
//	sample, _ := publisher.LoanUninit()
//	// Write payload...
//	sample.Send()
//
// Subscriber:
//
//	subscriber, _ := service.SubscriberBuilder().Create()
//	defer subscriber.Close()
//
//	sample, err := subscriber.Receive()
//	if err == nil {
//	    payload := sample.Payload()
//	    // Process payload...
//	    sample.Close()
//	}
//
// # Event Pattern
//
// Notifier:
//
//	service, _ := node.ServiceBuilder(serviceName).
//	    Event().
//	    OpenOrCreate()
//
//	notifier, _ := service.NotifierBuilder().Create()
//	notifier.Notify()
//
// Listener:
//
//	listener, _ := service.ListenerBuilder().Create()
//	ids, _ := listener.TimedWaitAll(time.Second)
//	for _, id := range ids {
//	    // Handle event id...
//	}
package iceoryx2
