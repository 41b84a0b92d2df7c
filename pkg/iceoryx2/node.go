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
	"context"
	"sync"
	"time"

	"github.com/iox2go/iceoryx2/internal/config"
	"github.com/iox2go/iceoryx2/internal/node"
	"github.com/iox2go/iceoryx2/internal/registry"
	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

// Config wraps the process-wide iceoryx2 configuration: directories for the
// service registry, node witness files and data segments, and the defaults
// new services are created with.
type Config struct {
	inner *config.Config
}

// Close releases the resources associated with the Config.
func (c *Config) Close() error { return nil }

var (
	globalConfigOnce sync.Once
	globalConfig     *Config
)

// GlobalConfig returns the process-wide default configuration, creating its
// directories on first use.
func GlobalConfig() *Config {
	globalConfigOnce.Do(func() {
		cfg := config.Default()
		_ = cfg.EnsureDirs()
		globalConfig = &Config{inner: cfg}
	})
	return globalConfig
}

// registries caches one *registry.Registry per service directory so that
// multiple Node instances built against the same Config observe the same
// services and connect to each other, mirroring how independent OS processes
// would rendezvous through shared memory.
var (
	registriesMu sync.Mutex
	registries   = map[string]*registry.Registry{}
)

func registryFor(cfg *config.Config) *registry.Registry {
	registriesMu.Lock()
	defer registriesMu.Unlock()
	if r, ok := registries[cfg.ServiceDir]; ok {
		return r
	}
	r := registry.New(cfg)
	registries[cfg.ServiceDir] = r
	return r
}

// Node is the central entry point of iceoryx2. It represents a node in the
// iceoryx2 system. One process can have arbitrary many nodes but usually
// there should be only one node per process.
type Node struct {
	n           *node.Node
	cfg         *Config
	registry    *registry.Registry
	serviceType ServiceType
	signalMode  SignalHandlingMode
}

// NodeBuilder is used to create a new Node with custom settings.
type NodeBuilder struct {
	name               *NodeName
	signalHandlingMode *SignalHandlingMode
	cfg                *Config
	err                error // stores any error encountered during building
}

// NewNodeBuilder creates a new NodeBuilder for constructing a Node.
func NewNodeBuilder() *NodeBuilder {
	return &NodeBuilder{}
}

// Name sets the name for the Node being built.
// The name does not have to be unique.
// If the name is invalid, the error is stored and returned by Create().
func (b *NodeBuilder) Name(name string) *NodeBuilder {
	if b.err != nil {
		return b // Don't overwrite existing error
	}
	nodeName, err := NewNodeName(name)
	if err != nil {
		b.err = err
		return b
	}
	b.name = nodeName
	return b
}

// SignalHandlingMode sets the signal handling mode for the Node.
func (b *NodeBuilder) SignalHandlingMode(mode SignalHandlingMode) *NodeBuilder {
	if b.err != nil {
		return b
	}
	b.signalHandlingMode = &mode
	return b
}

// Config overrides the configuration the Node is built against. When not
// set, GlobalConfig() is used.
func (b *NodeBuilder) Config(cfg *Config) *NodeBuilder {
	if b.err != nil {
		return b
	}
	b.cfg = cfg
	return b
}

// Create creates a new Node with the specified ServiceType.
// Returns any error encountered during the build process or node creation.
func (b *NodeBuilder) Create(serviceType ServiceType) (*Node, error) {
	if b.err != nil {
		return nil, b.err
	}

	cfg := b.cfg
	if cfg == nil {
		cfg = GlobalConfig()
	}
	if err := cfg.inner.EnsureDirs(); err != nil {
		return nil, WrapError("NodeBuilder.Create", err)
	}

	name := ""
	if b.name != nil {
		name = b.name.String()
	}

	n, err := node.New(cfg.inner, name)
	if err != nil {
		return nil, NodeCreationErrorInternalError
	}

	mode := SignalHandlingModeHandleTerminationRequests
	if b.signalHandlingMode != nil {
		mode = *b.signalHandlingMode
	}
	if mode == SignalHandlingModeHandleTerminationRequests {
		installTerminationHandler()
	}

	return &Node{
		n:           n,
		cfg:         cfg,
		registry:    registryFor(cfg.inner),
		serviceType: serviceType,
		signalMode:  mode,
	}, nil
}

// Close releases the resources associated with the Node.
// After calling Close, the Node should not be used.
// Implements io.Closer.
func (n *Node) Close() error {
	if n.n != nil {
		err := n.n.Close()
		n.n = nil
		return err
	}
	return nil
}

// Name returns the name of the Node.
func (n *Node) Name() string {
	if n.n == nil {
		return ""
	}
	return n.n.Name
}

// Wait waits for the specified duration, the main-loop cycle primitive.
// Returns NodeWaitErrorTerminationRequest as soon as a termination
// signal is observed, so shutdown is not delayed by a full cycle.
func (n *Node) Wait(duration time.Duration) error {
	if n.n == nil {
		return ErrNodeClosed
	}
	if err := terminationError(n.signalMode); err != nil {
		return err
	}
	if n.signalMode != SignalHandlingModeHandleTerminationRequests {
		time.Sleep(duration)
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-terminationCh:
		return NodeWaitErrorTerminationRequest
	case <-timer.C:
		return nil
	}
}

// WaitWithContext waits until the context is done or a termination
// signal is observed.
func (n *Node) WaitWithContext(ctx context.Context) error {
	if n.n == nil {
		return ErrNodeClosed
	}
	if n.signalMode != SignalHandlingModeHandleTerminationRequests {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-terminationCh:
		return NodeWaitErrorTerminationRequest
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ServiceBuilder returns a new ServiceBuilder for creating services associated with this Node.
func (n *Node) ServiceBuilder(serviceName *ServiceName) *ServiceBuilder {
	if n.n == nil || serviceName == nil {
		return nil
	}
	return &ServiceBuilder{
		node:        n,
		name:        serviceName.String(),
		serviceType: n.serviceType,
	}
}

// ServiceType returns the ServiceType of the Node.
func (n *Node) ServiceType() ServiceType {
	return n.serviceType
}

// ID returns the unique NodeId of this node.
func (n *Node) ID() *NodeId {
	if n.n == nil {
		return nil
	}
	return &NodeId{id: n.n.ID}
}

// SignalHandlingMode returns the signal handling mode with which the node was created.
func (n *Node) SignalHandlingMode() SignalHandlingMode {
	return n.signalMode
}

// Config returns the node's configuration.
func (n *Node) Config() *Config {
	if n.n == nil {
		return nil
	}
	return n.cfg
}

// NodeId represents a unique identifier for a Node.
type NodeId struct {
	id uniqueid.NodeId
}

// Close releases the resources associated with the NodeId.
// Implements io.Closer.
func (id *NodeId) Close() error { return nil }

// Pid returns the process ID associated with this NodeId.
func (id *NodeId) Pid() int32 {
	if id == nil {
		return 0
	}
	return id.id.Pid
}

// NodeState represents the state of a Node in the system.
type NodeState int

const (
	NodeStateAlive NodeState = iota
	NodeStateDead
	NodeStateInaccessible
	NodeStateUndefined
)

// String implements fmt.Stringer for NodeState.
func (s NodeState) String() string {
	switch s {
	case NodeStateAlive:
		return "Alive"
	case NodeStateDead:
		return "Dead"
	case NodeStateInaccessible:
		return "Inaccessible"
	case NodeStateUndefined:
		return "Undefined"
	default:
		return "Unknown"
	}
}

func nodeStateFromInternal(s node.State) NodeState {
	switch s {
	case node.StateAlive:
		return NodeStateAlive
	case node.StateDead:
		return NodeStateDead
	case node.StateInaccessible:
		return NodeStateInaccessible
	default:
		return NodeStateUndefined
	}
}

// NodeListCallback is called for each node during node listing.
type NodeListCallback func(state NodeState, nodeId *NodeId, name string) CallbackProgression

// NodeInfo contains information about a node found during listing.
type NodeInfo struct {
	State      NodeState
	Name       string
	Executable string
	Pid        int32
}

// ListNodes lists all nodes in the system matching the service type.
// Returns a slice of NodeInfo for each node found.
func ListNodes(serviceType ServiceType, cfg *Config) ([]NodeInfo, error) {
	var nodes []NodeInfo

	callback := func(state NodeState, nodeId *NodeId, name string) CallbackProgression {
		info := NodeInfo{
			State: state,
			Name:  name,
		}
		if nodeId != nil {
			info.Pid = nodeId.Pid()
		}
		nodes = append(nodes, info)
		return CallbackProgressionContinue
	}

	err := ListNodesWithCallback(serviceType, cfg, callback)
	return nodes, err
}

// ListNodesWithCallback lists all nodes in the system, calling the callback for each.
// The callback can return CallbackProgressionStop to stop the listing early.
func ListNodesWithCallback(serviceType ServiceType, cfg *Config, callback NodeListCallback) error {
	if cfg == nil {
		cfg = GlobalConfig()
	}

	entries, err := node.List(cfg.inner)
	if err != nil {
		return WrapError("ListNodesWithCallback", err)
	}

	for _, entry := range entries {
		nodeId := &NodeId{id: entry.ID}
		progression := callback(nodeStateFromInternal(entry.State), nodeId, entry.Name)
		if progression == CallbackProgressionStop {
			break
		}
	}
	return nil
}

// DeadNodeView represents a dead node in the system.
type DeadNodeView struct {
	nodeId *NodeId
	cfg    *Config
}

// RemoveStaleResources removes stale resources left behind by a dead
// node: its witness file, its port records in every opened service, and
// the data segments those ports owned. Idempotent; resources owned by a
// still-alive node are left untouched. Returns true if anything was
// cleaned up.
func RemoveStaleResources(serviceType ServiceType, nodeId *NodeId, cfg *Config) (bool, error) {
	const op = "RemoveStaleResources"

	if nodeId == nil {
		return false, WrapError(op, ErrHandleClosed)
	}
	if cfg == nil {
		cfg = GlobalConfig()
	}

	entries, err := node.List(cfg.inner)
	if err != nil {
		return false, WrapError(op, err)
	}

	for _, entry := range entries {
		if entry.ID != nodeId.id {
			continue
		}
		removed, err := node.RemoveStale(entry)
		if err != nil {
			return false, WrapError(op, err)
		}
		if removed {
			cleanupDeadNodeEverywhere(nodeId.id)
			sweepDeadNodeArtifacts(cfg.inner, nodeId.id)
		}
		return removed, nil
	}
	return false, nil
}
