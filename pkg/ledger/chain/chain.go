// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chain implements the ledger reader on top of an ethereum
// compatible JSON-RPC backend and the campaign registry contract.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/viewshare/replicator/pkg/campaign"
	"github.com/viewshare/replicator/pkg/ledger"
	"github.com/viewshare/replicator/pkg/logging"
)

var (
	registryABI          = parseABI(CampaignRegistryABI)
	campaignCreatedTopic = registryABI.Events["CampaignCreated"].ID

	ErrNoTopic = errors.New("log has no topics")
)

// Backend is the subset of the ethereum client used by the reader.
// *ethclient.Client satisfies it.
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Options struct {
	// Timeout bounds every backend call. Zero disables it.
	Timeout time.Duration
	// Confirmations is the number of most recent blocks that are not
	// reported as part of the ledger height, to stay clear of reorgs.
	Confirmations uint64
}

var _ ledger.Reader = (*Reader)(nil)

type Reader struct {
	backend         Backend
	registryAddress common.Address
	opts            Options
	logger          logging.Logger
	metrics         metrics
}

func New(backend Backend, registryAddress common.Address, logger logging.Logger, o Options) *Reader {
	return &Reader{
		backend:         backend,
		registryAddress: registryAddress,
		opts:            o,
		logger:          logger,
		metrics:         newMetrics(),
	}
}

func (r *Reader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.opts.Timeout)
}

func (r *Reader) BlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	r.metrics.BackendCalls.Inc()
	h, err := r.backend.BlockNumber(ctx)
	if err != nil {
		r.metrics.BackendErrors.Inc()
		return 0, fmt.Errorf("block number: %w", err)
	}
	if h < r.opts.Confirmations {
		return 0, nil
	}
	return h - r.opts.Confirmations, nil
}

func (r *Reader) filterQuery(from, to *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{
			r.registryAddress,
		},
		Topics: [][]common.Hash{
			{
				campaignCreatedTopic,
			},
		},
	}
}

// CreatedEvents returns the CampaignCreated events in the inclusive block
// range. Events that can not be decoded are logged and skipped.
func (r *Reader) CreatedEvents(ctx context.Context, from, to uint64) ([]ledger.CreatedEvent, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	r.metrics.BackendCalls.Inc()
	logs, err := r.backend.FilterLogs(ctx, r.filterQuery(new(big.Int).SetUint64(from), new(big.Int).SetUint64(to)))
	if err != nil {
		r.metrics.BackendErrors.Inc()
		return nil, fmt.Errorf("filter logs: %w", err)
	}

	events := make([]ledger.CreatedEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		e, err := parseCreatedEvent(l)
		if err != nil {
			r.metrics.MalformedEvents.Inc()
			r.logger.Warningf("ledger: skipping event in block %d tx %s: %v", l.BlockNumber, l.TxHash, err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}

// Campaign returns a fresh snapshot of the campaign from the registry.
func (r *Reader) Campaign(ctx context.Context, id uint64) (*campaign.Campaign, error) {
	callData, err := registryABI.Pack("getCampaign", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}

	result, err := r.call(ctx, callData)
	if err != nil {
		return nil, fmt.Errorf("get campaign %d: %w", id, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("campaign %d: %w", id, ledger.ErrCampaignNotFound)
	}

	var out getCampaignOutput
	if err := registryABI.UnpackIntoInterface(&out, "getCampaign", result); err != nil {
		return nil, fmt.Errorf("unpack campaign %d: %w", id, err)
	}
	if out.Advertiser == (common.Address{}) && out.ContentRef == "" {
		return nil, fmt.Errorf("campaign %d: %w", id, ledger.ErrCampaignNotFound)
	}

	return &campaign.Campaign{
		ID:             id,
		Advertiser:     out.Advertiser,
		Budget:         out.Budget,
		Duration:       campaign.DurationClass(out.Duration),
		ContentRef:     out.ContentRef,
		ViewsRemaining: clampUint64(out.ViewsRemaining),
		Category:       out.Category,
		Active:         out.Active,
	}, nil
}

// HighestCampaignID returns the registry campaign count. Campaign ids
// are assigned sequentially starting at one.
func (r *Reader) HighestCampaignID(ctx context.Context) (uint64, error) {
	callData, err := registryABI.Pack("campaignCount")
	if err != nil {
		return 0, err
	}

	result, err := r.call(ctx, callData)
	if err != nil {
		return 0, fmt.Errorf("campaign count: %w", err)
	}

	results, err := registryABI.Unpack("campaignCount", result)
	if err != nil {
		return 0, fmt.Errorf("unpack campaign count: %w", err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("unpack campaign count: got %d values", len(results))
	}
	return clampUint64(abi.ConvertType(results[0], new(big.Int)).(*big.Int)), nil
}

func (r *Reader) call(ctx context.Context, data []byte) ([]byte, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	r.metrics.BackendCalls.Inc()
	result, err := r.backend.CallContract(ctx, ethereum.CallMsg{
		To:   &r.registryAddress,
		Data: data,
	}, nil)
	if err != nil {
		r.metrics.BackendErrors.Inc()
		return nil, err
	}
	return result, nil
}

func parseCreatedEvent(l types.Log) (ledger.CreatedEvent, error) {
	var c campaignCreatedEvent
	if err := parseEvent(&registryABI, "CampaignCreated", &c, l); err != nil {
		return ledger.CreatedEvent{}, fmt.Errorf("%w: %v", ledger.ErrMalformedEvent, err)
	}
	if c.CampaignId == nil || c.CampaignId.Sign() <= 0 || !c.CampaignId.IsUint64() {
		return ledger.CreatedEvent{}, fmt.Errorf("%w: campaign id %v", ledger.ErrMalformedEvent, c.CampaignId)
	}
	return ledger.CreatedEvent{
		CampaignID:  c.CampaignId.Uint64(),
		ContentRef:  c.ContentRef,
		BlockNumber: l.BlockNumber,
	}, nil
}

// parseEvent will parse the specified abi event from the given log.
func parseEvent(a *abi.ABI, eventName string, c interface{}, e types.Log) error {
	if len(e.Topics) == 0 {
		return ErrNoTopic
	}
	if e.Topics[0] != a.Events[eventName].ID {
		return fmt.Errorf("unexpected topic %s", e.Topics[0])
	}
	if len(e.Data) > 0 {
		if err := a.UnpackIntoInterface(c, eventName, e.Data); err != nil {
			return err
		}
	}
	var indexed abi.Arguments
	for _, arg := range a.Events[eventName].Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return abi.ParseTopics(c, indexed, e.Topics[1:])
}

func clampUint64(v *big.Int) uint64 {
	switch {
	case v == nil || v.Sign() <= 0:
		return 0
	case !v.IsUint64():
		return math.MaxUint64
	}
	return v.Uint64()
}

func parseABI(json string) abi.ABI {
	cabi, err := abi.JSON(strings.NewReader(json))
	if err != nil {
		panic(fmt.Sprintf("error creating ABI for campaign registry contract: %v", err))
	}
	return cabi
}

type campaignCreatedEvent struct {
	CampaignId *big.Int
	Advertiser common.Address
	ContentRef string
}

type getCampaignOutput struct {
	Advertiser     common.Address
	Budget         *big.Int
	Duration       uint8
	ContentRef     string
	ViewsRemaining *big.Int
	Category       uint8
	Active         bool
}
