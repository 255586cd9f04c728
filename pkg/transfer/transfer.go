// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transfer fetches content descriptors and payloads from peers.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/viewshare/replicator/pkg/campaign"
	m "github.com/viewshare/replicator/pkg/metrics"
	"github.com/viewshare/replicator/pkg/tracing"
)

// DefaultMaxPayloadSize bounds the payload a peer may send.
const DefaultMaxPayloadSize = 512 << 20

var (
	// ErrNotFound is returned when the peer does not hold the item.
	ErrNotFound = errors.New("transfer: not found")
	// ErrPayloadTooLarge is returned when the peer sends more than the
	// configured maximum payload size.
	ErrPayloadTooLarge = errors.New("transfer: payload too large")
	// ErrUnexpectedStatus is returned for any other non 200 response.
	ErrUnexpectedStatus = errors.New("transfer: unexpected status")
)

// maxDescriptorSize bounds a descriptor document.
const maxDescriptorSize = 64 << 10

// Interface fetches items from a single peer endpoint. Timeouts are
// carried by the context.
type Interface interface {
	FetchDescriptor(ctx context.Context, endpoint, id string) (*campaign.Descriptor, error)
	FetchPayload(ctx context.Context, endpoint, id string) ([]byte, error)
}

type Options struct {
	Client         *http.Client
	MaxPayloadSize int64
	Tracer         *tracing.Tracer
}

type Client struct {
	client         *http.Client
	maxPayloadSize int64
	tracer         *tracing.Tracer
	metrics        metrics
}

var _ Interface = (*Client)(nil)

func NewClient(o Options) *Client {
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.MaxPayloadSize <= 0 {
		o.MaxPayloadSize = DefaultMaxPayloadSize
	}
	return &Client{
		client:         o.Client,
		maxPayloadSize: o.MaxPayloadSize,
		tracer:         o.Tracer,
		metrics:        newMetrics(),
	}
}

// DescriptorURL returns the url of the item descriptor on the peer.
func DescriptorURL(endpoint, id string) string {
	return strings.TrimRight(endpoint, "/") + "/content/" + url.PathEscape(id) + "/descriptor"
}

// PayloadURL returns the url of the item payload on the peer.
func PayloadURL(endpoint, id string) string {
	return strings.TrimRight(endpoint, "/") + "/content/" + url.PathEscape(id)
}

func (c *Client) FetchDescriptor(ctx context.Context, endpoint, id string) (*campaign.Descriptor, error) {
	c.metrics.DescriptorRequests.Inc()

	data, err := c.get(ctx, DescriptorURL(endpoint, id), maxDescriptorSize)
	if err != nil {
		c.metrics.countError(err)
		return nil, err
	}

	d, err := campaign.ParseDescriptor(data, id)
	if err != nil {
		c.metrics.InvalidDescriptors.Inc()
		return nil, fmt.Errorf("descriptor %s from %s: %w", id, endpoint, err)
	}
	return d, nil
}

func (c *Client) FetchPayload(ctx context.Context, endpoint, id string) ([]byte, error) {
	c.metrics.PayloadRequests.Inc()

	data, err := c.get(ctx, PayloadURL(endpoint, id), c.maxPayloadSize)
	if err != nil {
		c.metrics.countError(err)
		return nil, err
	}
	c.metrics.PayloadBytes.Add(float64(len(data)))
	return data, nil
}

func (c *Client) get(ctx context.Context, u string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if err := c.tracer.AddContextHTTPHeader(ctx, req.Header); err != nil && !errors.Is(err, tracing.ErrContextNotFound) {
		return nil, fmt.Errorf("trace header: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("get %s: %w", u, ErrNotFound)
	default:
		return nil, fmt.Errorf("get %s: %w: %s", u, ErrUnexpectedStatus, resp.Status)
	}

	if resp.ContentLength > limit {
		return nil, fmt.Errorf("get %s: %w: %d bytes", u, ErrPayloadTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("get %s: %w", u, ErrPayloadTooLarge)
	}
	return data, nil
}

func (c *Client) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(c.metrics)
}
