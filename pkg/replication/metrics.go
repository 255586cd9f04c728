// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package replication

import (
	"github.com/prometheus/client_golang/prometheus"

	m "github.com/viewshare/replicator/pkg/metrics"
)

type metrics struct {
	// all metrics fields must be exported
	// to be able to return them by Metrics()
	// using reflection
	Replications        prometheus.Counter
	ReplicationDuration prometheus.Histogram
	NotEligible         prometheus.Counter
	Malformed           prometheus.Counter
	Failures            prometheus.Counter
	PeerFailures        prometheus.Counter
	MetadataUnavailable prometheus.Counter
	MetadataReplicated  prometheus.Counter
	PayloadReplicated   prometheus.Counter
	PayloadFailures     prometheus.Counter
	Evictions           prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "replication"

	return metrics{
		Replications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "runs_count",
			Help:      "Number of replication runs.",
		}),
		ReplicationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Histogram of replication run durations.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		NotEligible: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "not_eligible_count",
			Help:      "Number of campaigns this node does not hold metadata for.",
		}),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "malformed_count",
			Help:      "Number of campaigns skipped because of malformed ledger data.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "failures_count",
			Help:      "Number of replication runs that failed.",
		}),
		PeerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "peer_failures_count",
			Help:      "Number of descriptor requests that failed for reasons other than not found.",
		}),
		MetadataUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "metadata_unavailable_count",
			Help:      "Number of runs where no peer served the descriptor.",
		}),
		MetadataReplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "metadata_replicated_count",
			Help:      "Number of descriptors replicated.",
		}),
		PayloadReplicated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "payload_replicated_count",
			Help:      "Number of payloads replicated.",
		}),
		PayloadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "payload_failures_count",
			Help:      "Number of payload transfers that left the item metadata only.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "evictions_count",
			Help:      "Number of items evicted because their campaign is no longer servable.",
		}),
	}
}
