// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/viewshare/replicator"
	"github.com/viewshare/replicator/pkg/metrics"
)

func newMetricsRegistry() (r *prometheus.Registry) {
	r = metrics.NewRegistry()

	r.MustRegister(
		prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Name:      "info",
			Help:      "Replicator information.",
			ConstLabels: prometheus.Labels{
				"version": replicator.Version,
			},
		}),
	)

	return r
}

func (s *Service) MustRegisterMetrics(cs ...prometheus.Collector) {
	s.metricsRegistry.MustRegister(cs...)
}
