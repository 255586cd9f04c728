// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package campaign holds the ledger campaign snapshot and the content
// descriptor types, together with their boundary validation.
package campaign

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidCampaign   = errors.New("invalid campaign")
	ErrInvalidContentRef = errors.New("invalid content reference")
)

// DurationClass is the campaign run length class as encoded on the ledger.
type DurationClass uint8

const (
	DurationDay DurationClass = iota
	DurationWeek
	DurationMonth
	DurationQuarter
)

func (d DurationClass) String() string {
	switch d {
	case DurationDay:
		return "day"
	case DurationWeek:
		return "week"
	case DurationMonth:
		return "month"
	case DurationQuarter:
		return "quarter"
	default:
		return fmt.Sprintf("duration(%d)", uint8(d))
	}
}

// Campaign is a read-only snapshot of a campaign as stored on the ledger.
// Active and ViewsRemaining change over time, so snapshots must not be
// reused across replication runs.
type Campaign struct {
	ID             uint64
	Advertiser     common.Address
	Budget         *big.Int
	Duration       DurationClass
	ContentRef     string
	ViewsRemaining uint64
	Category       uint8
	Active         bool
}

// Validate rejects snapshots that can not be acted upon.
func (c *Campaign) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil", ErrInvalidCampaign)
	}
	if c.ID == 0 {
		return fmt.Errorf("%w: zero id", ErrInvalidCampaign)
	}
	if c.Budget == nil {
		return fmt.Errorf("%w: campaign %d: missing budget", ErrInvalidCampaign, c.ID)
	}
	if c.Budget.Sign() < 0 {
		return fmt.Errorf("%w: campaign %d: negative budget", ErrInvalidCampaign, c.ID)
	}
	if _, _, err := ParseContentRef(c.ContentRef); err != nil {
		return fmt.Errorf("campaign %d: %w", c.ID, err)
	}
	return nil
}

// ContentID returns the content id part of the content reference.
// It returns an empty string for a malformed reference.
func (c *Campaign) ContentID() string {
	id, _, err := ParseContentRef(c.ContentRef)
	if err != nil {
		return ""
	}
	return id
}

// Servable reports whether the campaign still pays for its content
// to be hosted: it is active, has views left and a positive budget.
func (c *Campaign) Servable() bool {
	return c.Active && c.ViewsRemaining > 0 && c.Budget != nil && c.Budget.Sign() > 0
}

// ParseContentRef splits a content reference of the form
// "<content-id>" or "<content-id>#<decryption-key>".
func ParseContentRef(ref string) (id, key string, err error) {
	id, key, _ = strings.Cut(strings.TrimSpace(ref), "#")
	if !ValidContentID(id) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidContentRef, ref)
	}
	return id, key, nil
}

// ValidContentID reports whether id can safely be used as a single
// path element of the local store.
func ValidContentID(id string) bool {
	if id == "" || id == "." || id == ".." || len(id) > 256 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
