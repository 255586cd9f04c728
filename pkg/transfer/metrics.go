// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transfer

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	m "github.com/viewshare/replicator/pkg/metrics"
)

type metrics struct {
	DescriptorRequests prometheus.Counter
	PayloadRequests    prometheus.Counter
	PayloadBytes       prometheus.Counter
	NotFound           prometheus.Counter
	Errors             prometheus.Counter
	InvalidDescriptors prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "transfer"

	return metrics{
		DescriptorRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "descriptor_requests_count",
			Help:      "Number of descriptor requests sent to peers.",
		}),
		PayloadRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "payload_requests_count",
			Help:      "Number of payload requests sent to peers.",
		}),
		PayloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "payload_bytes",
			Help:      "Payload bytes received from peers.",
		}),
		NotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "not_found_count",
			Help:      "Number of requests answered with not found.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "errors_count",
			Help:      "Number of failed requests.",
		}),
		InvalidDescriptors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "invalid_descriptors_count",
			Help:      "Number of descriptors rejected during parsing.",
		}),
	}
}

func (mt metrics) countError(err error) {
	if errors.Is(err, ErrNotFound) {
		mt.NotFound.Inc()
		return
	}
	mt.Errors.Inc()
}
