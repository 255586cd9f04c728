// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eligibility

import (
	"github.com/prometheus/client_golang/prometheus"

	m "github.com/viewshare/replicator/pkg/metrics"
)

type metrics struct {
	MetadataAccepted prometheus.Counter
	MetadataRefused  prometheus.Counter
	DataAccepted     *prometheus.CounterVec
	DataRefused      *prometheus.CounterVec
	DiskPressure     prometheus.Counter
	DiskUsage        prometheus.Gauge
}

func newMetrics() metrics {
	subsystem := "eligibility"

	return metrics{
		MetadataAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "metadata_accepted_count",
			Help:      "Number of items whose descriptor this node holds.",
		}),
		MetadataRefused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "metadata_refused_count",
			Help:      "Number of items whose descriptor is left to other nodes.",
		}),
		DataAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "data_accepted_count",
			Help:      "Number of payload acceptances by reason.",
		}, []string{"reason"}),
		DataRefused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "data_refused_count",
			Help:      "Number of payload refusals by reason.",
		}, []string{"reason"}),
		DiskPressure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "disk_pressure_count",
			Help:      "Number of payload decisions refused because the disk usage threshold was exceeded.",
		}),
		DiskUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "disk_usage_ratio",
			Help:      "Last observed used/total ratio of the replication volume.",
		}),
	}
}

func (p *Policy) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(p.metrics)
}
