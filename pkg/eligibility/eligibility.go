// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eligibility decides whether this node should hold the descriptor
// and the payload of a content item.
//
// Placement is sharded: the decision is a pure function of the node id and
// the item id, so across a large population roughly a fixed fraction of
// nodes independently choose to hold any given item, with no coordination
// and no dependence on arrival order.
package eligibility

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/logging"
)

const (
	DefaultMetadataRate  = 0.35
	DefaultDataRate      = 0.10
	DefaultDiskThreshold = 0.70

	shardSpace = 65535
)

// DiskUsager reports the used/total ratio of the replication volume.
type DiskUsager interface {
	UsageRatio() (float64, error)
}

// DiskUsageFunc is an adapter to use a function as a DiskUsager.
type DiskUsageFunc func() (float64, error)

func (f DiskUsageFunc) UsageRatio() (float64, error) { return f() }

// Shard maps the (node, item) pair to a uniformly distributed value in
// [0, 65535] taken from the first 16 bits of a sha256 digest.
func Shard(nodeID, itemID string) uint16 {
	h := sha256.New()
	_, _ = h.Write([]byte(nodeID))
	_, _ = h.Write([]byte(itemID))
	return binary.BigEndian.Uint16(h.Sum(nil)[:2])
}

// Sharded reports whether the (node, item) pair falls within rate.
func Sharded(nodeID, itemID string, rate float64) bool {
	switch {
	case rate >= 1:
		return true
	case rate <= 0:
		return false
	}
	return float64(Shard(nodeID, itemID)) < shardSpace*rate
}

type Options struct {
	NodeID string
	// Region is the declared region of the node, empty when undeclared.
	Region        string
	MetadataRate  float64
	DataRate      float64
	DiskThreshold float64
	Disk          DiskUsager
	Logger        logging.Logger
}

// Policy evaluates the replication decisions of a single node.
type Policy struct {
	nodeID        string
	region        string
	metadataRate  float64
	dataRate      float64
	diskThreshold float64
	disk          DiskUsager
	logger        logging.Logger
	metrics       metrics
}

// New returns a Policy. Rates and the disk threshold are used as given, a
// zero data rate disables global payload replication.
func New(o Options) *Policy {
	if o.Logger == nil {
		o.Logger = logging.NewNoop()
	}
	return &Policy{
		nodeID:        o.NodeID,
		region:        strings.ToLower(strings.TrimSpace(o.Region)),
		metadataRate:  o.MetadataRate,
		dataRate:      o.DataRate,
		diskThreshold: o.DiskThreshold,
		disk:          o.Disk,
		logger:        o.Logger,
		metrics:       newMetrics(),
	}
}

// ShouldReplicateMetadata reports whether this node holds the descriptor
// of the item.
func (p *Policy) ShouldReplicateMetadata(itemID string) bool {
	ok := Sharded(p.nodeID, itemID, p.metadataRate)
	if ok {
		p.metrics.MetadataAccepted.Inc()
	} else {
		p.metrics.MetadataRefused.Inc()
	}
	return ok
}

// ShouldReplicateData reports whether this node holds the payload of the
// content described by d for campaign c. Conditions are evaluated in order
// and the first disqualifying one wins.
func (p *Policy) ShouldReplicateData(c *campaign.Campaign, d *campaign.Descriptor) bool {
	if !c.Servable() {
		p.metrics.DataRefused.WithLabelValues("campaign").Inc()
		return false
	}

	if p.disk != nil {
		ratio, err := p.disk.UsageRatio()
		if err != nil {
			p.logger.Errorf("eligibility: disk usage: %v", err)
			p.metrics.DataRefused.WithLabelValues("disk_error").Inc()
			return false
		}
		p.metrics.DiskUsage.Set(ratio)
		if ratio > p.diskThreshold {
			p.logger.Warningf("eligibility: disk usage %.2f exceeds threshold %.2f, not replicating payloads", ratio, p.diskThreshold)
			p.metrics.DiskPressure.Inc()
			p.metrics.DataRefused.WithLabelValues("disk").Inc()
			return false
		}
	}

	if !campaign.IsGlobalRegion(p.region) && !d.Global() {
		if strings.EqualFold(strings.TrimSpace(d.Region), p.region) {
			p.metrics.DataAccepted.WithLabelValues("affinity").Inc()
			return true
		}
		p.metrics.DataRefused.WithLabelValues("affinity").Inc()
		return false
	}

	if Sharded(p.nodeID, d.ID, p.dataRate) {
		p.metrics.DataAccepted.WithLabelValues("shard").Inc()
		return true
	}
	p.metrics.DataRefused.WithLabelValues("shard").Inc()
	return false
}
