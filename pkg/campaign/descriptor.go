// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package campaign

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// RegionGlobal marks content without region affinity.
const RegionGlobal = "global"

var (
	ErrInvalidDescriptor = errors.New("invalid descriptor")
	ErrPayloadMismatch   = errors.New("payload does not match descriptor")
)

// Encryption describes how the payload bytes are encrypted. The key itself
// travels in the campaign content reference, never in the descriptor.
type Encryption struct {
	Algorithm     string `json:"algorithm"`
	KeyDerivation string `json:"keyDerivation,omitempty"`
}

// Descriptor is the metadata document of a content item.
type Descriptor struct {
	ID         string      `json:"id"`
	Title      string      `json:"title,omitempty"`
	Size       int64       `json:"size,omitempty"`
	Hash       string      `json:"hash,omitempty"`
	Region     string      `json:"region,omitempty"`
	Encryption *Encryption `json:"encryption,omitempty"`
	StreamURL  string      `json:"streamUrl,omitempty"`
}

// ParseDescriptor decodes and validates a descriptor received for the
// content item wantID.
func ParseDescriptor(data []byte, wantID string) (*Descriptor, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var d Descriptor
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDescriptor, err)
	}
	if d.ID != wantID {
		return nil, fmt.Errorf("%w: got id %q, want %q", ErrInvalidDescriptor, d.ID, wantID)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.Region = strings.ToLower(strings.TrimSpace(d.Region))
	d.Hash = strings.ToLower(d.Hash)
	return &d, nil
}

// Validate checks the descriptor fields that the replication relies on.
func (d *Descriptor) Validate() error {
	if !ValidContentID(d.ID) {
		return fmt.Errorf("%w: id %q", ErrInvalidDescriptor, d.ID)
	}
	if d.Size < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidDescriptor)
	}
	if d.Hash != "" {
		if b, err := hex.DecodeString(d.Hash); err != nil || len(b) != sha256.Size {
			return fmt.Errorf("%w: hash %q", ErrInvalidDescriptor, d.Hash)
		}
	}
	if d.Encryption != nil && d.Encryption.Algorithm == "" {
		return fmt.Errorf("%w: encryption without algorithm", ErrInvalidDescriptor)
	}
	return nil
}

// Global reports whether the content has no region affinity.
func (d *Descriptor) Global() bool {
	return IsGlobalRegion(d.Region)
}

// VerifyPayload checks the payload length and digest against the
// descriptor. Unset fields are not checked.
func (d *Descriptor) VerifyPayload(payload []byte) error {
	if d.Size > 0 && int64(len(payload)) != d.Size {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPayloadMismatch, len(payload), d.Size)
	}
	if d.Hash != "" {
		sum := sha256.Sum256(payload)
		if got := hex.EncodeToString(sum[:]); !strings.EqualFold(got, d.Hash) {
			return fmt.Errorf("%w: got hash %s, want %s", ErrPayloadMismatch, got, d.Hash)
		}
	}
	return nil
}

// IsGlobalRegion reports whether region carries no affinity.
func IsGlobalRegion(region string) bool {
	region = strings.TrimSpace(region)
	return region == "" || strings.EqualFold(region, RegionGlobal)
}
