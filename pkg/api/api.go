// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package api serves the replicated content to peers and third parties.
// The same endpoints are used by other replicators to fetch descriptors
// and payloads from this node.
package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/viewshare/replicator/pkg/localstore"
	"github.com/viewshare/replicator/pkg/logging"
	m "github.com/viewshare/replicator/pkg/metrics"
	"github.com/viewshare/replicator/pkg/serving"
	"github.com/viewshare/replicator/pkg/tracing"
)

// Links looks up the payloads that are currently served.
type Links interface {
	Link(id string) (serving.Link, bool)
}

type Service interface {
	http.Handler
	m.MetricsCollector
}

type server struct {
	Options
	http.Handler
	metrics metrics
}

type Options struct {
	Store  *localstore.Store
	Links  Links
	Tracer *tracing.Tracer
	Logger logging.Logger
}

func New(o Options) Service {
	s := &server{
		Options: o,
		metrics: newMetrics(),
	}

	s.setupRouting()

	return s
}

func (s *server) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(s.metrics)
}
