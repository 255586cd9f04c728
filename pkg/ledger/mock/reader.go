// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/ledger"
)

type Option func(*Reader)

// Reader is an in-memory ledger. Campaign ids are assigned sequentially
// by AddCampaign.
type Reader struct {
	mu        sync.Mutex
	height    uint64
	campaigns map[uint64]*campaign.Campaign
	events    []ledger.CreatedEvent
	highest   uint64

	blockNumberErr error
	eventsErr      error
	campaignErr    error

	blockNumberCalls int
	eventsCalls      int
	campaignCalls    int
	highestCalls     int
	ranges           [][2]uint64
}

var _ ledger.Reader = (*Reader)(nil)

func New(opts ...Option) *Reader {
	r := &Reader{
		campaigns: make(map[uint64]*campaign.Campaign),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WithHeight sets the initial ledger height.
func WithHeight(h uint64) Option {
	return func(r *Reader) {
		r.height = h
	}
}

// WithCampaign adds the campaign to the ledger without an event.
func WithCampaign(c *campaign.Campaign) Option {
	return func(r *Reader) {
		r.campaigns[c.ID] = c
		if c.ID > r.highest {
			r.highest = c.ID
		}
	}
}

// WithEvent adds a creation event.
func WithEvent(e ledger.CreatedEvent) Option {
	return func(r *Reader) {
		r.events = append(r.events, e)
	}
}

// WithHighestCampaignID overrides the highest campaign id.
func WithHighestCampaignID(id uint64) Option {
	return func(r *Reader) {
		r.highest = id
	}
}

func WithBlockNumberError(err error) Option {
	return func(r *Reader) {
		r.blockNumberErr = err
	}
}

func WithEventsError(err error) Option {
	return func(r *Reader) {
		r.eventsErr = err
	}
}

func WithCampaignError(err error) Option {
	return func(r *Reader) {
		r.campaignErr = err
	}
}

// AddCampaign stores the campaign and emits its creation event at the
// given block. The height is raised to the block if needed.
func (r *Reader) AddCampaign(c *campaign.Campaign, block uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.campaigns[c.ID] = c
	if c.ID > r.highest {
		r.highest = c.ID
	}
	r.events = append(r.events, ledger.CreatedEvent{
		CampaignID:  c.ID,
		ContentRef:  c.ContentRef,
		BlockNumber: block,
	})
	if block > r.height {
		r.height = block
	}
}

// SetCampaign replaces the campaign snapshot.
func (r *Reader) SetCampaign(c *campaign.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
}

func (r *Reader) SetHeight(h uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.height = h
}

func (r *Reader) SetEventsError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventsErr = err
}

func (r *Reader) SetBlockNumberError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blockNumberErr = err
}

func (r *Reader) BlockNumber(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.blockNumberCalls++
	if r.blockNumberErr != nil {
		return 0, r.blockNumberErr
	}
	return r.height, nil
}

func (r *Reader) CreatedEvents(ctx context.Context, from, to uint64) ([]ledger.CreatedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.eventsCalls++
	r.ranges = append(r.ranges, [2]uint64{from, to})
	if r.eventsErr != nil {
		return nil, r.eventsErr
	}

	var events []ledger.CreatedEvent
	for _, e := range r.events {
		if e.BlockNumber >= from && e.BlockNumber <= to {
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].BlockNumber < events[j].BlockNumber
	})
	return events, nil
}

func (r *Reader) Campaign(ctx context.Context, id uint64) (*campaign.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.campaignCalls++
	if r.campaignErr != nil {
		return nil, r.campaignErr
	}
	c, ok := r.campaigns[id]
	if !ok {
		return nil, ledger.ErrCampaignNotFound
	}
	cc := *c
	return &cc, nil
}

func (r *Reader) HighestCampaignID(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.highestCalls++
	return r.highest, nil
}

// CampaignCalls returns the number of Campaign reads.
func (r *Reader) CampaignCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaignCalls
}

func (r *Reader) EventsCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eventsCalls
}

func (r *Reader) HighestCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.highestCalls
}

// Ranges returns the block ranges passed to CreatedEvents.
func (r *Reader) Ranges() [][2]uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][2]uint64(nil), r.ranges...)
}
