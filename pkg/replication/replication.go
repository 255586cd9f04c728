// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package replication fetches the descriptor and, when this node is
// eligible, the payload of a campaign's content from the first peer that
// holds it.
package replication

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	olog "github.com/opentracing/opentracing-go/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"resenje.org/singleflight"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/ledger"
	"github.com/viewshare/replicator/pkg/localstore"
	"github.com/viewshare/replicator/pkg/logging"
	m "github.com/viewshare/replicator/pkg/metrics"
	"github.com/viewshare/replicator/pkg/serving"
	"github.com/viewshare/replicator/pkg/tracing"
	"github.com/viewshare/replicator/pkg/transfer"
)

const (
	DefaultMetadataTimeout = 10 * time.Second
	DefaultPayloadTimeout  = 10 * time.Minute
)

// ErrMalformedCampaign is returned for campaigns whose ledger data can
// not be acted upon.
var ErrMalformedCampaign = errors.New("replication: malformed campaign")

// Eligibility decides which parts of an item this node holds.
type Eligibility interface {
	ShouldReplicateMetadata(itemID string) bool
	ShouldReplicateData(c *campaign.Campaign, d *campaign.Descriptor) bool
}

// PeerResolver returns the ordered endpoints asked for content.
type PeerResolver interface {
	Resolve(ctx context.Context) []string
}

// Replicator is implemented by the Service.
type Replicator interface {
	Replicate(ctx context.Context, campaignID uint64) error
}

type Options struct {
	Eligibility     Eligibility
	Ledger          ledger.Reader
	Peers           PeerResolver
	Transfer        transfer.Interface
	Store           *localstore.Store
	Serving         serving.Registrar
	MetadataTimeout time.Duration
	PayloadTimeout  time.Duration
	// LocalEndpoint is this node's public endpoint. It is skipped as a
	// source for items held without payload, as it serves their
	// descriptor but not the payload.
	LocalEndpoint string
	Tracer        *tracing.Tracer
	Logger        logging.Logger
}

type Service struct {
	eligibility     Eligibility
	ledger          ledger.Reader
	peers           PeerResolver
	transfer        transfer.Interface
	store           *localstore.Store
	serving         serving.Registrar
	metadataTimeout time.Duration
	payloadTimeout  time.Duration
	localEndpoint   string
	tracer          *tracing.Tracer
	logger          logging.Logger
	metrics         metrics

	flights singleflight.Group[uint64, struct{}]
}

var _ Replicator = (*Service)(nil)

func New(o Options) *Service {
	if o.MetadataTimeout <= 0 {
		o.MetadataTimeout = DefaultMetadataTimeout
	}
	if o.PayloadTimeout <= 0 {
		o.PayloadTimeout = DefaultPayloadTimeout
	}
	return &Service{
		eligibility:     o.Eligibility,
		ledger:          o.Ledger,
		peers:           o.Peers,
		transfer:        o.Transfer,
		store:           o.Store,
		serving:         o.Serving,
		metadataTimeout: o.MetadataTimeout,
		payloadTimeout:  o.PayloadTimeout,
		localEndpoint:   strings.TrimRight(o.LocalEndpoint, "/"),
		tracer:          o.Tracer,
		logger:          o.Logger,
		metrics:         newMetrics(),
	}
}

// Replicate brings the local copy of the campaign content to the state this
// node is responsible for. Absence of the content on every peer and a failed
// payload transfer are not errors. Concurrent calls for the same campaign
// share one run.
func (s *Service) Replicate(ctx context.Context, campaignID uint64) error {
	if campaignID == 0 {
		s.metrics.Malformed.Inc()
		return fmt.Errorf("%w: zero id", ErrMalformedCampaign)
	}

	_, _, err := s.flights.Do(ctx, campaignID, func(ctx context.Context) (struct{}, error) {
		span, logger, ctx := s.tracer.StartSpanFromContext(ctx, "replicate", s.logger, opentracing.Tag{Key: "campaign", Value: campaignID})
		defer span.Finish()

		err := s.replicate(ctx, campaignID, logger)
		if err != nil {
			span.LogFields(olog.Error(err))
		}
		return struct{}{}, err
	})
	return err
}

func (s *Service) replicate(ctx context.Context, campaignID uint64, logger *logrus.Entry) error {
	s.metrics.Replications.Inc()
	start := time.Now()
	defer func() {
		s.metrics.ReplicationDuration.Observe(time.Since(start).Seconds())
	}()

	// The content id is only known after the ledger read, so metadata
	// sharding is keyed by the campaign id.
	if !s.eligibility.ShouldReplicateMetadata(strconv.FormatUint(campaignID, 10)) {
		s.metrics.NotEligible.Inc()
		return nil
	}

	c, err := s.ledger.Campaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, ledger.ErrCampaignNotFound) {
			s.metrics.Malformed.Inc()
			return fmt.Errorf("%w: %v", ErrMalformedCampaign, err)
		}
		s.metrics.Failures.Inc()
		return fmt.Errorf("read campaign %d: %w", campaignID, err)
	}
	if err := c.Validate(); err != nil {
		s.metrics.Malformed.Inc()
		return fmt.Errorf("%w: %v", ErrMalformedCampaign, err)
	}
	itemID := c.ContentID()
	logger = logger.WithFields(logrus.Fields{
		"campaign": campaignID,
		"item":     itemID,
	})

	hasDescriptor, hasPayload, err := s.store.Has(itemID)
	if err != nil {
		s.metrics.Failures.Inc()
		return fmt.Errorf("local store: %w", err)
	}
	if hasDescriptor && hasPayload {
		if c.Servable() {
			return nil
		}
		if err := serving.Evict(s.serving, s.store, itemID); err != nil {
			s.metrics.Failures.Inc()
			return fmt.Errorf("evict %s: %w", itemID, err)
		}
		s.metrics.Evictions.Inc()
		logger.Infof("replication: evicted content of inactive campaign")
		return nil
	}

	d, source := s.fetchDescriptor(ctx, itemID, hasDescriptor, logger)
	if d == nil {
		s.metrics.MetadataUnavailable.Inc()
		logger.Debugf("replication: no peer holds the descriptor")
		return nil
	}

	if err := s.store.PutDescriptor(d); err != nil {
		s.metrics.Failures.Inc()
		return fmt.Errorf("store descriptor %s: %w", itemID, err)
	}
	s.metrics.MetadataReplicated.Inc()

	if !s.eligibility.ShouldReplicateData(c, d) {
		return nil
	}

	s.fetchPayload(ctx, source, d, logger)
	return nil
}

// fetchDescriptor asks the peers in order and returns the first descriptor
// received together with the endpoint that served it. The local endpoint
// is not asked when skipLocal is set.
func (s *Service) fetchDescriptor(ctx context.Context, itemID string, skipLocal bool, logger *logrus.Entry) (*campaign.Descriptor, string) {
	for _, endpoint := range s.peers.Resolve(ctx) {
		if ctx.Err() != nil {
			return nil, ""
		}
		if skipLocal && s.isLocal(endpoint) {
			continue
		}
		d, err := s.fetchDescriptorFrom(ctx, endpoint, itemID)
		if err == nil {
			return d, endpoint
		}
		if errors.Is(err, transfer.ErrNotFound) {
			logger.Tracef("replication: descriptor not found on %s", endpoint)
			continue
		}
		s.metrics.PeerFailures.Inc()
		logger.Debugf("replication: descriptor from %s: %v", endpoint, err)
	}
	return nil, ""
}

func (s *Service) fetchDescriptorFrom(ctx context.Context, endpoint, itemID string) (*campaign.Descriptor, error) {
	span, _, ctx := s.tracer.StartSpanFromContext(ctx, "fetch-descriptor", nil, opentracing.Tag{Key: "endpoint", Value: endpoint})
	defer span.Finish()

	ctx, cancel := context.WithTimeout(ctx, s.metadataTimeout)
	defer cancel()
	d, err := s.transfer.FetchDescriptor(ctx, endpoint, itemID)
	span.LogFields(olog.Bool("found", err == nil))
	return d, err
}

func (s *Service) isLocal(endpoint string) bool {
	return s.localEndpoint != "" && strings.TrimRight(endpoint, "/") == s.localEndpoint
}

// fetchPayload transfers the payload from the peer that served the
// descriptor. Failures leave the item metadata only.
func (s *Service) fetchPayload(ctx context.Context, endpoint string, d *campaign.Descriptor, logger *logrus.Entry) {
	span, _, ctx := s.tracer.StartSpanFromContext(ctx, "fetch-payload", nil, opentracing.Tag{Key: "endpoint", Value: endpoint})
	defer span.Finish()

	payload, err := func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, s.payloadTimeout)
		defer cancel()
		return s.transfer.FetchPayload(ctx, endpoint, d.ID)
	}()
	span.LogFields(olog.Bool("success", err == nil))
	if err != nil {
		s.metrics.PayloadFailures.Inc()
		logger.Warningf("replication: payload from %s: %v", endpoint, err)
		return
	}

	if err := d.VerifyPayload(payload); err != nil {
		s.metrics.PayloadFailures.Inc()
		logger.Warningf("replication: payload from %s: %v", endpoint, err)
		return
	}

	path, err := s.store.PutPayload(d.ID, payload)
	if err != nil {
		s.metrics.PayloadFailures.Inc()
		logger.Errorf("replication: store payload: %v", err)
		return
	}

	if err := s.serving.RegisterLink(d.ID, path, d); err != nil {
		s.metrics.PayloadFailures.Inc()
		logger.Errorf("replication: register link: %v", err)
		return
	}
	s.metrics.PayloadReplicated.Inc()
	logger.Infof("replication: payload replicated from %s", endpoint)
}

func (s *Service) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(s.metrics)
}
