// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listener

import (
	"github.com/prometheus/client_golang/prometheus"

	m "github.com/viewshare/replicator/pkg/metrics"
)

type metrics struct {
	Polls           prometheus.Counter
	PollsSkipped    prometheus.Counter
	PollFailures    prometheus.Counter
	PollDuration    prometheus.Histogram
	Events          prometheus.Counter
	ItemFailures    prometheus.Counter
	BackfillItems   prometheus.Counter
	LedgerHeight    prometheus.Gauge
	CheckpointBlock prometheus.Gauge
}

func newMetrics() metrics {
	subsystem := "listener"

	return metrics{
		Polls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "polls_count",
			Help:      "Number of ledger polls.",
		}),
		PollsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "polls_skipped_count",
			Help:      "Number of polls skipped because one was in progress.",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "poll_failures_count",
			Help:      "Number of polls that ended without advancing the checkpoint.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "poll_duration_seconds",
			Help:      "Histogram of poll durations.",
			Buckets:   []float64{0.1, 1, 10, 60, 300, 900, 3600},
		}),
		Events: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "campaigns_count",
			Help:      "Number of campaigns handed to replication.",
		}),
		ItemFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "campaign_failures_count",
			Help:      "Number of campaigns whose replication failed.",
		}),
		BackfillItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "backfill_campaigns_count",
			Help:      "Number of campaigns replicated by backfill.",
		}),
		LedgerHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "ledger_height",
			Help:      "Last observed ledger height.",
		}),
		CheckpointBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "checkpoint_block",
			Help:      "Highest fully processed block.",
		}),
	}
}
