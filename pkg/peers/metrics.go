// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package peers

import (
	"github.com/prometheus/client_golang/prometheus"

	m "github.com/viewshare/replicator/pkg/metrics"
)

type metrics struct {
	DirectoryFailures prometheus.Counter
	ResolvedPeers     prometheus.Gauge
}

func newMetrics() metrics {
	subsystem := "peers"

	return metrics{
		DirectoryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "directory_failures_count",
			Help:      "Number of failed peer directory queries.",
		}),
		ResolvedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "resolved_peers",
			Help:      "Number of remote peers in the last resolved list.",
		}),
	}
}
