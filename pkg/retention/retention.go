// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package retention evicts locally held content that has not been
// refreshed for longer than the maximum age.
package retention

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/viewshare/replicator/pkg/localstore"
	"github.com/viewshare/replicator/pkg/logging"
	m "github.com/viewshare/replicator/pkg/metrics"
	"github.com/viewshare/replicator/pkg/serving"
)

const DefaultMaxAge = 30 * 24 * time.Hour

// Result summarises a single sweep.
type Result struct {
	Scanned int `json:"scanned"`
	Evicted int `json:"evicted"`
	Orphans int `json:"orphans"`
	Failed  int `json:"failed"`
}

type Options struct {
	Store   *localstore.Store
	Serving serving.Registrar
	MaxAge  time.Duration
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger logging.Logger
}

type Sweeper struct {
	store   *localstore.Store
	serving serving.Registrar
	maxAge  time.Duration
	now     func() time.Time
	logger  logging.Logger
	metrics metrics
}

func New(o Options) *Sweeper {
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &Sweeper{
		store:   o.Store,
		serving: o.Serving,
		maxAge:  o.MaxAge,
		now:     o.Now,
		logger:  o.Logger,
		metrics: newMetrics(),
	}
}

// Sweep evicts every item whose descriptor is older than the maximum age
// and every payload left without a descriptor. Failures to evict single
// items do not stop the sweep and are returned together.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	s.metrics.Sweeps.Inc()

	var r Result
	entries, err := s.store.List()
	if err != nil {
		s.metrics.Failures.Inc()
		return r, err
	}

	now := s.now()
	var errs *multierror.Error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		r.Scanned++

		switch {
		case !e.Descriptor:
			if err := serving.Evict(s.serving, s.store, e.ID); err != nil {
				r.Failed++
				errs = multierror.Append(errs, err)
				continue
			}
			r.Orphans++
			s.logger.Debugf("retention: removed orphaned payload %s", e.ID)
		case now.Sub(e.ModTime) > s.maxAge:
			if err := serving.Evict(s.serving, s.store, e.ID); err != nil {
				r.Failed++
				errs = multierror.Append(errs, err)
				continue
			}
			r.Evicted++
			s.logger.Debugf("retention: evicted %s, last modified %s", e.ID, e.ModTime.Format(time.RFC3339))
		}
	}

	s.metrics.Evicted.Add(float64(r.Evicted))
	s.metrics.Orphans.Add(float64(r.Orphans))
	if r.Evicted > 0 || r.Orphans > 0 {
		s.logger.Infof("retention: evicted %d items and %d orphaned payloads of %d", r.Evicted, r.Orphans, r.Scanned)
	}
	if err := errs.ErrorOrNil(); err != nil {
		s.metrics.Failures.Inc()
		return r, err
	}
	return r, nil
}

func (s *Sweeper) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(s.metrics)
}
