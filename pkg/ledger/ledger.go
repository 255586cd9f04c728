// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ledger defines the read-only view of the campaign ledger
// that the replication engine depends on.
package ledger

import (
	"context"
	"errors"

	"github.com/viewshare/replicator/pkg/campaign"
)

var (
	// ErrCampaignNotFound is returned when the ledger has no campaign
	// with the requested id.
	ErrCampaignNotFound = errors.New("ledger: campaign not found")
	// ErrMalformedEvent is returned for events that can not be decoded.
	ErrMalformedEvent = errors.New("ledger: malformed event")
)

// CreatedEvent announces a new campaign.
type CreatedEvent struct {
	CampaignID  uint64
	ContentRef  string
	BlockNumber uint64
}

// Reader reads campaign state and events from the ledger. All methods may
// fail when the ledger is unreachable.
type Reader interface {
	// BlockNumber returns the current ledger height.
	BlockNumber(ctx context.Context) (uint64, error)
	// CreatedEvents returns the campaign creation events in the
	// inclusive block range [from, to], ordered by block.
	CreatedEvents(ctx context.Context, from, to uint64) ([]CreatedEvent, error)
	// Campaign returns a fresh snapshot of the campaign.
	Campaign(ctx context.Context, id uint64) (*campaign.Campaign, error)
	// HighestCampaignID returns the id of the most recently created campaign.
	HighestCampaignID(ctx context.Context) (uint64, error)
}
