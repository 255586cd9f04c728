// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package listener follows the campaign ledger and hands every announced
// campaign to the replication service.
package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	olog "github.com/opentracing/opentracing-go/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/viewshare/replicator/pkg/ledger"
	"github.com/viewshare/replicator/pkg/logging"
	m "github.com/viewshare/replicator/pkg/metrics"
	"github.com/viewshare/replicator/pkg/replication"
	"github.com/viewshare/replicator/pkg/storage"
	"github.com/viewshare/replicator/pkg/tracing"
)

const (
	DefaultBlockPage      = 5000
	DefaultBackfillWindow = 50
	DefaultBackfillRate   = 250 * time.Millisecond

	checkpointKey = "listener_checkpoint"
)

// ErrPollInProgress is returned by Poll when another poll is running.
var ErrPollInProgress = errors.New("listener: poll in progress")

// State is the sync state of the listener.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Polling:
		return "polling"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Checkpoint is the persisted highest fully processed block.
type Checkpoint struct {
	Block     uint64 `json:"block"`
	Timestamp int64  `json:"timestamp"`
}

type Options struct {
	Ledger     ledger.Reader
	Replicator replication.Replicator
	StateStore storage.StateStorer
	// BlockPage caps the number of blocks queried in one poll.
	BlockPage uint64
	// BackfillWindow is the number of most recent campaigns replicated
	// by Backfill.
	BackfillWindow uint64
	// BackfillFloor raises the campaign id Backfill starts from.
	BackfillFloor uint64
	// BackfillRate is the minimal delay between backfilled campaigns.
	BackfillRate time.Duration
	Tracer       *tracing.Tracer
	Logger       logging.Logger
}

type Listener struct {
	ledger     ledger.Reader
	replicator replication.Replicator
	store      storage.StateStorer
	blockPage  uint64
	window     uint64
	floor      uint64
	limiter    *rate.Limiter
	tracer     *tracing.Tracer
	logger     logging.Logger
	metrics    metrics

	mu    sync.Mutex
	state State
}

func New(o Options) *Listener {
	if o.BlockPage == 0 {
		o.BlockPage = DefaultBlockPage
	}
	if o.BackfillWindow == 0 {
		o.BackfillWindow = DefaultBackfillWindow
	}
	if o.BackfillRate <= 0 {
		o.BackfillRate = DefaultBackfillRate
	}
	return &Listener{
		ledger:     o.Ledger,
		replicator: o.Replicator,
		store:      o.StateStore,
		blockPage:  o.BlockPage,
		window:     o.BackfillWindow,
		floor:      o.BackfillFloor,
		limiter:    rate.NewLimiter(rate.Every(o.BackfillRate), 1),
		tracer:     o.Tracer,
		logger:     o.Logger,
		metrics:    newMetrics(),
	}
}

// State returns the current sync state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) begin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Idle {
		return false
	}
	l.state = Polling
	return true
}

func (l *Listener) end() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = Idle
}

// Checkpoint returns the persisted checkpoint block. The boolean is false
// when nothing has been processed yet.
func (l *Listener) Checkpoint() (uint64, bool, error) {
	var cp Checkpoint
	if err := l.store.Get(checkpointKey, &cp); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return cp.Block, true, nil
}

func (l *Listener) setCheckpoint(block uint64) error {
	return l.store.Put(checkpointKey, Checkpoint{
		Block:     block,
		Timestamp: time.Now().Unix(),
	})
}

// Poll processes the next page of ledger blocks after the checkpoint. It
// returns ErrPollInProgress without doing anything when another poll is
// running. The checkpoint is advanced only after every event of the page
// was handed to the replicator.
func (l *Listener) Poll(ctx context.Context) error {
	if !l.begin() {
		l.metrics.PollsSkipped.Inc()
		return ErrPollInProgress
	}
	defer l.end()

	l.metrics.Polls.Inc()
	start := time.Now()
	defer func() {
		l.metrics.PollDuration.Observe(time.Since(start).Seconds())
	}()

	span, _, ctx := l.tracer.StartSpanFromContext(ctx, "poll", nil)
	defer span.Finish()

	if err := l.poll(ctx, span); err != nil {
		l.metrics.PollFailures.Inc()
		span.LogFields(olog.Error(err))
		return err
	}
	return nil
}

func (l *Listener) poll(ctx context.Context, span opentracing.Span) error {
	height, err := l.ledger.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("ledger height: %w", err)
	}
	l.metrics.LedgerHeight.Set(float64(height))

	cp, found, err := l.Checkpoint()
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	var from uint64
	if found {
		from = cp + 1
	}
	if from > height {
		return nil
	}

	to := height
	if height-from > l.blockPage {
		to = from + l.blockPage
	}

	span.SetTag("from", from)
	span.SetTag("to", to)

	events, err := l.ledger.CreatedEvents(ctx, from, to)
	if err != nil {
		return fmt.Errorf("campaign events [%d, %d]: %w", from, to, err)
	}
	span.LogFields(olog.Int("events", len(events)))
	l.logger.Debugf("listener: %d campaign events in blocks [%d, %d]", len(events), from, to)

	for _, e := range events {
		l.replicate(ctx, e.CampaignID)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("blocks [%d, %d] not completed: %w", from, to, err)
	}

	if err := l.setCheckpoint(to); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	l.metrics.CheckpointBlock.Set(float64(to))
	return nil
}

// Backfill replicates the most recent campaigns, walking down from the
// highest campaign id, or the configured floor when it is higher. Canceling
// ctx stops the walk between campaigns.
func (l *Listener) Backfill(ctx context.Context) error {
	highest, err := l.ledger.HighestCampaignID(ctx)
	if err != nil {
		return fmt.Errorf("highest campaign id: %w", err)
	}

	start := highest
	if l.floor > start {
		start = l.floor
	}
	l.logger.Infof("listener: backfilling %d campaigns down from %d", l.window, start)

	for i := uint64(0); i < l.window && i < start; i++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}
		l.metrics.BackfillItems.Inc()
		l.replicate(context.WithoutCancel(ctx), start-i)
	}
	return nil
}

func (l *Listener) replicate(ctx context.Context, id uint64) {
	l.metrics.Events.Inc()
	err := l.replicator.Replicate(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, replication.ErrMalformedCampaign):
		l.metrics.ItemFailures.Inc()
		l.logger.Warningf("listener: skipping campaign %d: %v", id, err)
	default:
		l.metrics.ItemFailures.Inc()
		l.logger.Errorf("listener: replicate campaign %d: %v", id, err)
	}
}

func (l *Listener) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(l.metrics)
}
