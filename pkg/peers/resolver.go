// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package peers

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/viewshare/replicator/pkg/logging"
	m "github.com/viewshare/replicator/pkg/metrics"
)

// DefaultTimeout bounds the gossip directory query.
const DefaultTimeout = 5 * time.Second

// Resolver orders the endpoints that are asked for content.
type Resolver struct {
	self    string
	dir     Directory
	timeout time.Duration
	logger  logging.Logger
	metrics metrics
}

func NewResolver(self string, dir Directory, timeout time.Duration, logger logging.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		self:    strings.TrimRight(self, "/"),
		dir:     dir,
		timeout: timeout,
		logger:  logger,
		metrics: newMetrics(),
	}
}

// Resolve returns the local endpoint followed by the distinct gossiped
// endpoints. When the directory can not be queried only the local
// endpoint is returned.
func (r *Resolver) Resolve(ctx context.Context) []string {
	endpoints := []string{r.self}
	if r.dir == nil {
		return endpoints
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	gossiped, err := r.dir.LocalPeers(ctx)
	if err != nil {
		r.metrics.DirectoryFailures.Inc()
		r.logger.Debugf("peers: directory unavailable, using local endpoint only: %v", err)
		return endpoints
	}

	seen := map[string]struct{}{r.self: {}}
	for _, e := range gossiped {
		e = strings.TrimRight(e, "/")
		if _, ok := seen[e]; ok || e == "" {
			continue
		}
		seen[e] = struct{}{}
		endpoints = append(endpoints, e)
	}
	r.metrics.ResolvedPeers.Set(float64(len(endpoints) - 1))
	return endpoints
}

func (r *Resolver) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(r.metrics)
}
