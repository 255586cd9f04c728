// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package serving keeps the set of payloads this node serves to third
// parties.
package serving

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/localstore"
	"github.com/viewshare/replicator/pkg/logging"
	m "github.com/viewshare/replicator/pkg/metrics"
)

// Registrar is the hook called when a payload becomes servable or stops
// being servable.
type Registrar interface {
	RegisterLink(id, path string, d *campaign.Descriptor) error
	UnregisterLink(id string)
}

// Link is a servable payload.
type Link struct {
	ID         string
	Path       string
	Descriptor campaign.Descriptor
}

type Registry struct {
	mu      sync.RWMutex
	links   map[string]Link
	logger  logging.Logger
	metrics metrics
}

var _ Registrar = (*Registry)(nil)

func New(logger logging.Logger) *Registry {
	return &Registry{
		links:   make(map[string]Link),
		logger:  logger,
		metrics: newMetrics(),
	}
}

// RegisterLink makes the payload at path servable under id, replacing a
// previous registration.
func (r *Registry) RegisterLink(id, path string, d *campaign.Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.links[id] = Link{ID: id, Path: path, Descriptor: *d}
	r.metrics.Registrations.Inc()
	r.metrics.Links.Set(float64(len(r.links)))
	r.logger.Debugf("serving: registered %s", id)
	return nil
}

// UnregisterLink stops serving the payload of id.
func (r *Registry) UnregisterLink(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[id]; !ok {
		return
	}
	delete(r.links, id)
	r.metrics.Unregistrations.Inc()
	r.metrics.Links.Set(float64(len(r.links)))
	r.logger.Debugf("serving: unregistered %s", id)
}

// Link returns the registered link of id.
func (r *Registry) Link(id string) (Link, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[id]
	return l, ok
}

// Links returns all registered links ordered by id.
func (r *Registry) Links() []Link {
	r.mu.RLock()
	defer r.mu.RUnlock()

	links := make([]Link, 0, len(r.links))
	for _, l := range r.links {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].ID < links[j].ID
	})
	return links
}

// Len returns the number of registered links.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}

// RestoreLinks registers every complete item held by the store. It is
// called once on startup so that payloads replicated by a previous run
// are served again. It returns the number of restored links.
func RestoreLinks(r Registrar, store *localstore.Store, logger logging.Logger) (int, error) {
	entries, err := store.List()
	if err != nil {
		return 0, err
	}

	var n int
	for _, e := range entries {
		if !e.Descriptor || !e.Payload {
			continue
		}
		d, err := store.Descriptor(e.ID)
		if err != nil {
			logger.Warningf("serving: restore %s: %v", e.ID, err)
			continue
		}
		if err := r.RegisterLink(e.ID, store.PayloadPath(e.ID), d); err != nil {
			logger.Warningf("serving: restore %s: %v", e.ID, err)
			continue
		}
		n++
	}
	return n, nil
}

// Evict stops serving the item and removes its payload and descriptor
// from the store.
func Evict(r Registrar, store *localstore.Store, id string) error {
	r.UnregisterLink(id)
	return store.Remove(id)
}

func (r *Registry) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(r.metrics)
}
