// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package localstore

import (
	"github.com/prometheus/client_golang/prometheus"

	m "github.com/viewshare/replicator/pkg/metrics"
)

type metrics struct {
	DescriptorWrites prometheus.Counter
	PayloadWrites    prometheus.Counter
	PayloadBytes     prometheus.Counter
	WriteErrors      prometheus.Counter
	Removals         prometheus.Counter
	DiskUsage        prometheus.Gauge
}

func newMetrics() metrics {
	subsystem := "localstore"

	return metrics{
		DescriptorWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "descriptor_writes_count",
			Help:      "Number of descriptors written.",
		}),
		PayloadWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "payload_writes_count",
			Help:      "Number of payloads written.",
		}),
		PayloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "payload_bytes",
			Help:      "Total payload bytes written.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "write_errors_count",
			Help:      "Number of failed writes.",
		}),
		Removals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "removals_count",
			Help:      "Number of items removed.",
		}),
		DiskUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "disk_usage_ratio",
			Help:      "Used to total ratio of the volume holding the store.",
		}),
	}
}
