// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package serving

import (
	"github.com/prometheus/client_golang/prometheus"

	m "github.com/viewshare/replicator/pkg/metrics"
)

type metrics struct {
	Registrations   prometheus.Counter
	Unregistrations prometheus.Counter
	Links           prometheus.Gauge
}

func newMetrics() metrics {
	subsystem := "serving"

	return metrics{
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "registrations_count",
			Help:      "Number of payloads registered for serving.",
		}),
		Unregistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "unregistrations_count",
			Help:      "Number of payloads no longer served.",
		}),
		Links: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "links",
			Help:      "Number of payloads currently served.",
		}),
	}
}
