// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package retention

import (
	"github.com/prometheus/client_golang/prometheus"

	m "github.com/viewshare/replicator/pkg/metrics"
)

type metrics struct {
	Sweeps   prometheus.Counter
	Evicted  prometheus.Counter
	Orphans  prometheus.Counter
	Failures prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "retention"

	return metrics{
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "sweeps_count",
			Help:      "Number of retention sweeps.",
		}),
		Evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "evicted_count",
			Help:      "Number of items evicted for age.",
		}),
		Orphans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "orphans_count",
			Help:      "Number of payloads removed because their descriptor was missing.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "failures_count",
			Help:      "Number of sweeps that did not complete cleanly.",
		}),
	}
}
