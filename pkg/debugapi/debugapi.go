// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debugapi exposes the debug API used to
// inspect and control the replication agent.
package debugapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/viewshare/replicator/pkg/listener"
	"github.com/viewshare/replicator/pkg/logging"
	"github.com/viewshare/replicator/pkg/retention"
	"github.com/viewshare/replicator/pkg/tracing"
)

// Agent runs operations on behalf of the host.
type Agent interface {
	Replicate(ctx context.Context, campaignID uint64) error
	RunRetention(ctx context.Context) (retention.Result, error)
}

// SyncStatus reports the ledger synchronisation progress.
type SyncStatus interface {
	State() listener.State
	Checkpoint() (uint64, bool, error)
}

// LinkCounter reports the number of served payloads.
type LinkCounter interface {
	Len() int
}

// Service implements http.Handler interface to be used in HTTP server.
type Service struct {
	nodeID          string
	region          string
	agent           Agent
	sync            SyncStatus
	links           LinkCounter
	logger          logging.Logger
	tracer          *tracing.Tracer
	metricsRegistry *prometheus.Registry

	// handler is changed in the Configure method
	handler   http.Handler
	handlerMu sync.RWMutex
}

// New creates a Debug API Service that serves health, metrics and profiling
// before the agent is wired. Readiness reports 503 until Configure is called.
func New(nodeID, region string, logger logging.Logger, tracer *tracing.Tracer) *Service {
	s := new(Service)
	s.nodeID = nodeID
	s.region = region
	s.logger = logger
	s.tracer = tracer
	s.metricsRegistry = newMetricsRegistry()

	s.setRouter(s.newBasicRouter(notReadyHandler))

	return s
}

// Configure injects required dependencies and constructs HTTP routes that
// depend on them. It is intended and safe to call this method only once.
func (s *Service) Configure(agent Agent, sync SyncStatus, links LinkCounter) {
	s.agent = agent
	s.sync = sync
	s.links = links

	s.setRouter(s.newRouter())
}

// ServeHTTP implements http.Handler interface.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// protect handler as it is changed by the Configure method
	s.handlerMu.RLock()
	h := s.handler
	s.handlerMu.RUnlock()

	h.ServeHTTP(w, r)
}
