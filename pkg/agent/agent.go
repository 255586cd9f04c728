// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package agent owns the scheduled work of the replicator: the startup
// backfill, the periodic ledger poll and the periodic retention sweep.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viewshare/replicator/pkg/listener"
	"github.com/viewshare/replicator/pkg/logging"
	"github.com/viewshare/replicator/pkg/replication"
	"github.com/viewshare/replicator/pkg/retention"
)

const (
	DefaultPollInterval      = 2 * time.Hour
	DefaultRetentionDelay    = time.Minute
	DefaultRetentionInterval = 24 * time.Hour
	DefaultCloseTimeout      = 5 * time.Second
)

// Poller follows the ledger.
type Poller interface {
	Poll(ctx context.Context) error
	Backfill(ctx context.Context) error
}

// Sweeper evicts stale content.
type Sweeper interface {
	Sweep(ctx context.Context) (retention.Result, error)
}

type Options struct {
	Poller            Poller
	Replicator        replication.Replicator
	Sweeper           Sweeper
	PollInterval      time.Duration
	RetentionDelay    time.Duration
	RetentionInterval time.Duration
	CloseTimeout      time.Duration
	Logger            logging.Logger
}

// Task is a handle to one scheduled loop.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *Task) Name() string {
	return t.name
}

// Stop cancels the loop. An operation already running is completed.
func (t *Task) Stop() {
	t.cancel()
}

// Done is closed when the loop has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Tasks holds the handles of the scheduled loops.
type Tasks struct {
	Backfill  *Task
	Poll      *Task
	Retention *Task
}

func (t *Tasks) all() []*Task {
	return []*Task{t.Backfill, t.Poll, t.Retention}
}

type Agent struct {
	poller            Poller
	replicator        replication.Replicator
	sweeper           Sweeper
	pollInterval      time.Duration
	retentionDelay    time.Duration
	retentionInterval time.Duration
	closeTimeout      time.Duration
	logger            logging.Logger

	mu    sync.Mutex
	tasks *Tasks
	wg    sync.WaitGroup
}

func New(o Options) *Agent {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.RetentionDelay <= 0 {
		o.RetentionDelay = DefaultRetentionDelay
	}
	if o.RetentionInterval <= 0 {
		o.RetentionInterval = DefaultRetentionInterval
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = DefaultCloseTimeout
	}
	return &Agent{
		poller:            o.Poller,
		replicator:        o.Replicator,
		sweeper:           o.Sweeper,
		pollInterval:      o.PollInterval,
		retentionDelay:    o.RetentionDelay,
		retentionInterval: o.RetentionInterval,
		closeTimeout:      o.CloseTimeout,
		logger:            o.Logger,
	}
}

// Start schedules the backfill, poll and retention loops and returns
// their handles. Subsequent calls return the same handles.
func (a *Agent) Start() *Tasks {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tasks != nil {
		return a.tasks
	}

	a.tasks = &Tasks{
		Backfill: a.spawn("backfill", func(ctx context.Context) {
			a.backfill(ctx)
		}),
		Poll: a.spawn("poll", func(ctx context.Context) {
			a.every(ctx, 0, a.pollInterval, a.poll)
		}),
		Retention: a.spawn("retention", func(ctx context.Context) {
			a.every(ctx, a.retentionDelay, a.retentionInterval, a.sweep)
		}),
	}
	a.logger.Infof("agent: started, polling every %s, retention every %s", a.pollInterval, a.retentionInterval)
	return a.tasks
}

func (a *Agent) spawn(name string, f func(ctx context.Context)) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(t.done)
		defer cancel()
		f(ctx)
	}()
	return t
}

// every calls f after delay and then every interval after the previous
// call returned, until ctx is done. f runs on a context that is not
// canceled together with the loop.
func (a *Agent) every(ctx context.Context, delay, interval time.Duration, f func(ctx context.Context)) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}
		f(context.WithoutCancel(ctx))
		timer.Reset(interval)
	}
}

func (a *Agent) backfill(ctx context.Context) {
	if err := a.poller.Backfill(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Debugf("agent: backfill stopped")
			return
		}
		a.logger.Errorf("agent: backfill: %v", err)
	}
}

func (a *Agent) poll(ctx context.Context) {
	if err := a.poller.Poll(ctx); err != nil {
		if errors.Is(err, listener.ErrPollInProgress) {
			a.logger.Debugf("agent: poll skipped, previous poll still running")
			return
		}
		a.logger.Errorf("agent: poll: %v", err)
	}
}

func (a *Agent) sweep(ctx context.Context) {
	if _, err := a.sweeper.Sweep(ctx); err != nil {
		a.logger.Errorf("agent: retention: %v", err)
	}
}

// Replicate replicates a single campaign on behalf of the host.
func (a *Agent) Replicate(ctx context.Context, campaignID uint64) error {
	return a.replicator.Replicate(ctx, campaignID)
}

// RunRetention runs a retention sweep on behalf of the host.
func (a *Agent) RunRetention(ctx context.Context) (retention.Result, error) {
	return a.sweeper.Sweep(ctx)
}

// Stop cancels all scheduled loops. Running operations are completed.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tasks == nil {
		return
	}
	for _, t := range a.tasks.all() {
		t.Stop()
	}
}

// Close stops the loops and waits for them to exit.
func (a *Agent) Close() error {
	a.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(a.closeTimeout):
		return errors.New("agent closed with running tasks")
	}
	return nil
}
