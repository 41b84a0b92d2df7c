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
	"path/filepath"

	"github.com/iox2go/iceoryx2/internal/config"
	"github.com/iox2go/iceoryx2/internal/logging"
	"github.com/iox2go/iceoryx2/internal/node"
	"github.com/iox2go/iceoryx2/internal/registry"
	"github.com/iox2go/iceoryx2/internal/shm"
	"github.com/iox2go/iceoryx2/internal/uniqueid"
)

// Dead-node cleanup runs synchronously at well-defined call sites, since
// the library owns no background thread. CleanupDeadNodes and
// RemoveStaleResources are the only sites; service open and close do not
// run dead-node cleanup.

// NodeId returns the identity of the dead node this view refers to.
func (v *DeadNodeView) NodeId() *NodeId {
	if v == nil {
		return nil
	}
	return v.nodeId
}

// RemoveStaleResources removes every resource still attributable to the
// dead node. Returns true if anything was cleaned up.
func (v *DeadNodeView) RemoveStaleResources() (bool, error) {
	if v == nil || v.nodeId == nil {
		return false, ErrHandleClosed
	}
	return RemoveStaleResources(ServiceTypeIpc, v.nodeId, v.cfg)
}

// CleanupDeadNodes enumerates all nodes and removes the stale resources
// of every provably dead one. Per-node permission failures are logged
// and skipped, never fatal, so one inaccessible witness cannot block the
// cleanup of the rest.
func CleanupDeadNodes(serviceType ServiceType, cfg *Config) (cleaned uint64, err error) {
	if cfg == nil {
		cfg = GlobalConfig()
	}

	entries, listErr := node.List(cfg.inner)
	if listErr != nil {
		return 0, WrapError("CleanupDeadNodes", listErr)
	}

	for _, entry := range entries {
		if entry.State != node.StateDead {
			continue
		}
		view := &DeadNodeView{nodeId: &NodeId{id: entry.ID}, cfg: cfg}
		removed, rerr := view.RemoveStaleResources()
		if rerr != nil {
			logging.Default().Warn("dead node cleanup skipped",
				"node", entry.ID.String(), "error", rerr)
			continue
		}
		if removed {
			cleaned++
		}
	}
	return cleaned, nil
}

// sweepDeadNodeArtifacts removes a dead node's port records and backing
// files from every registered service, including services this process
// never opened: each service's shared dynamic segment names what the
// node owned. Per-service failures are logged and skipped.
func sweepDeadNodeArtifacts(cfg *config.Config, nodeID uniqueid.NodeId) {
	reg := registryFor(cfg)
	infos, err := reg.List()
	if err != nil {
		logging.Default().Warn("service enumeration during cleanup failed", "error", err)
		return
	}

	for _, info := range infos {
		sc, err := reg.Details(info.Name, info.MessagingPattern)
		if err != nil {
			continue
		}
		seg, err := shm.Open(cfg.DataSegmentDir, fmt.Sprintf("iox2_%s.dynamic", sc.UUID))
		if err != nil {
			continue
		}
		shared, err := registry.NewSharedDynamic(seg.Data, registry.CapacitiesOf(sc))
		if err != nil {
			seg.Close()
			continue
		}
		removed := shared.RemoveNodePorts(nodeID)
		shared.RemoveNode(nodeID)
		seg.Close()
		unlinkPortArtifacts(cfg, removed)
	}
}

// unlinkPortArtifacts removes the on-disk objects behind retired port
// records: a publisher's data segments and outgoing rings, a
// subscriber's incoming rings, a listener's notification socket.
// Permission failures are logged and skipped, never fatal.
func unlinkPortArtifacts(cfg *config.Config, removed map[registry.PortKind][]registry.SharedPortRecord) {
	unlinkGlob := func(pattern string) {
		paths, err := filepath.Glob(filepath.Join(cfg.DataSegmentDir, pattern))
		if err != nil {
			return
		}
		for _, path := range paths {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logging.Default().Warn("stale resource not removed", "path", path, "error", err)
			}
		}
	}

	for _, rec := range removed[registry.PortKindPublisher] {
		hex := portIdHex(rec.PortID)
		unlinkGlob("iox2_" + hex + ".data*")
		unlinkGlob("iox2_" + hex + "_*.conn")
	}
	for _, rec := range removed[registry.PortKindSubscriber] {
		unlinkGlob("iox2_*_" + portIdHex(rec.PortID) + ".conn")
	}
	for _, rec := range removed[registry.PortKindListener] {
		unlinkGlob("iox2_" + portIdHex(rec.PortID) + ".sock")
	}
}
