// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"sync"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/transfer"
)

// Call records a single fetch.
type Call struct {
	Endpoint string
	ID       string
}

type Option func(*Transfer)

// Transfer serves items from in-memory peers keyed by endpoint.
type Transfer struct {
	mu          sync.Mutex
	descriptors map[string]map[string]*campaign.Descriptor
	payloads    map[string]map[string][]byte
	errors      map[string]error

	descriptorCalls []Call
	payloadCalls    []Call
}

var _ transfer.Interface = (*Transfer)(nil)

func New(opts ...Option) *Transfer {
	t := &Transfer{
		descriptors: make(map[string]map[string]*campaign.Descriptor),
		payloads:    make(map[string]map[string][]byte),
		errors:      make(map[string]error),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// WithDescriptor makes the peer at endpoint serve the descriptor.
func WithDescriptor(endpoint string, d *campaign.Descriptor) Option {
	return func(t *Transfer) {
		if t.descriptors[endpoint] == nil {
			t.descriptors[endpoint] = make(map[string]*campaign.Descriptor)
		}
		t.descriptors[endpoint][d.ID] = d
	}
}

// WithPayload makes the peer at endpoint serve the payload.
func WithPayload(endpoint, id string, payload []byte) Option {
	return func(t *Transfer) {
		if t.payloads[endpoint] == nil {
			t.payloads[endpoint] = make(map[string][]byte)
		}
		t.payloads[endpoint][id] = payload
	}
}

// WithError makes every request to endpoint fail with err.
func WithError(endpoint string, err error) Option {
	return func(t *Transfer) {
		t.errors[endpoint] = err
	}
}

func (t *Transfer) FetchDescriptor(ctx context.Context, endpoint, id string) (*campaign.Descriptor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.descriptorCalls = append(t.descriptorCalls, Call{Endpoint: endpoint, ID: id})
	if err := t.errors[endpoint]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := t.descriptors[endpoint][id]
	if !ok {
		return nil, transfer.ErrNotFound
	}
	dd := *d
	return &dd, nil
}

func (t *Transfer) FetchPayload(ctx context.Context, endpoint, id string) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.payloadCalls = append(t.payloadCalls, Call{Endpoint: endpoint, ID: id})
	if err := t.errors[endpoint]; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := t.payloads[endpoint][id]
	if !ok {
		return nil, transfer.ErrNotFound
	}
	return append([]byte(nil), p...), nil
}

// DescriptorCalls returns the descriptor requests in order.
func (t *Transfer) DescriptorCalls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.descriptorCalls...)
}

// PayloadCalls returns the payload requests in order.
func (t *Transfer) PayloadCalls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.payloadCalls...)
}
