// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package node wires the replication components into a running node.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/viewshare/replicator/pkg/agent"
	"github.com/viewshare/replicator/pkg/api"
	"github.com/viewshare/replicator/pkg/debugapi"
	"github.com/viewshare/replicator/pkg/eligibility"
	"github.com/viewshare/replicator/pkg/ledger/chain"
	"github.com/viewshare/replicator/pkg/listener"
	"github.com/viewshare/replicator/pkg/localstore"
	"github.com/viewshare/replicator/pkg/logging"
	"github.com/viewshare/replicator/pkg/metrics"
	"github.com/viewshare/replicator/pkg/peers"
	"github.com/viewshare/replicator/pkg/replication"
	"github.com/viewshare/replicator/pkg/retention"
	"github.com/viewshare/replicator/pkg/serving"
	"github.com/viewshare/replicator/pkg/tracing"
	"github.com/viewshare/replicator/pkg/transfer"
)

var (
	ErrShutdownInProgress = errors.New("shutdown in progress")
	ErrNoLedger           = errors.New("blockchain rpc endpoint not configured")
	ErrNoRegistry         = errors.New("campaign registry address not configured")
)

type Replicator struct {
	agent            *agent.Agent
	apiServer        *http.Server
	debugAPIServer   *http.Server
	stateStoreCloser io.Closer
	tracerCloser     io.Closer
	ethClientCloser  func()
	errorLogWriter   *io.PipeWriter

	shutdownInProgress bool
	shutdownMutex      sync.Mutex
}

type Options struct {
	DataDir                 string
	NodeID                  string
	Region                  string
	APIAddr                 string
	PublicEndpoint          string
	DebugAPIAddr            string
	BlockchainRPCEndpoint   string
	CampaignRegistryAddress string
	GossipEndpoint          string
	MetadataRate            float64
	DataRate                float64
	DiskThreshold           float64
	PollInterval            time.Duration
	BlockPage               uint64
	BackfillWindow          uint64
	BackfillFloor           uint64
	BackfillRate            time.Duration
	RetentionInterval       time.Duration
	RetentionDelay          time.Duration
	RetentionMaxAge         time.Duration
	MetadataTimeout         time.Duration
	PayloadTimeout          time.Duration
	PeersTimeout            time.Duration
	LedgerTimeout           time.Duration
	LedgerConfirmations     uint64
	MaxPayloadSize          int64
	TracingEnabled          bool
	TracingEndpoint         string
	TracingServiceName      string
	Logger                  logging.Logger
}

func NewReplicator(o Options) (r *Replicator, err error) {
	logger := o.Logger
	if logger == nil {
		logger = logging.NewNoop()
	}
	if o.BlockchainRPCEndpoint == "" {
		return nil, ErrNoLedger
	}
	if !common.IsHexAddress(o.CampaignRegistryAddress) {
		return nil, ErrNoRegistry
	}

	r = &Replicator{
		errorLogWriter: logger.WriterLevel(logrus.ErrorLevel),
	}
	defer func() {
		if err != nil {
			if e := r.Shutdown(context.Background()); e != nil {
				logger.Errorf("cleanup after failed start: %v", e)
			}
		}
	}()

	tracer, tracerCloser, err := tracing.NewTracer(&tracing.Options{
		Enabled:     o.TracingEnabled,
		Endpoint:    o.TracingEndpoint,
		ServiceName: o.TracingServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	r.tracerCloser = tracerCloser

	stateStore, err := InitStateStore(logger, o.DataDir)
	if err != nil {
		return nil, fmt.Errorf("statestore: %w", err)
	}
	r.stateStoreCloser = stateStore

	nodeID, err := initNodeID(stateStore, o.NodeID)
	if err != nil {
		return nil, fmt.Errorf("node id: %w", err)
	}
	logger.Infof("using node id %s", nodeID)

	var debugAPIService *debugapi.Service
	if o.DebugAPIAddr != "" {
		// set up basic debug api endpoints for debugging and /health endpoint
		debugAPIService = debugapi.New(nodeID, o.Region, logger, tracer)

		debugAPIListener, err := net.Listen("tcp", o.DebugAPIAddr)
		if err != nil {
			return nil, fmt.Errorf("debug api listener: %w", err)
		}

		debugAPIServer := &http.Server{
			IdleTimeout:       30 * time.Second,
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           debugAPIService,
			ErrorLog:          stdlog.New(r.errorLogWriter, "", 0),
		}

		go func() {
			logger.Infof("debug api address: %s", debugAPIListener.Addr())

			if err := debugAPIServer.Serve(debugAPIListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Debugf("debug api server: %v", err)
				logger.Error("unable to serve debug api")
			}
		}()

		r.debugAPIServer = debugAPIServer
	}

	ethClient, err := ethclient.Dial(o.BlockchainRPCEndpoint)
	if err != nil {
		return nil, fmt.Errorf("dial blockchain rpc: %w", err)
	}
	r.ethClientCloser = ethClient.Close

	ledgerReader := chain.New(ethClient, common.HexToAddress(o.CampaignRegistryAddress), logger, chain.Options{
		Timeout:       o.LedgerTimeout,
		Confirmations: o.LedgerConfirmations,
	})

	store, err := localstore.New(localstore.Options{
		Dir:    o.DataDir,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("localstore: %w", err)
	}

	registry := serving.New(logger)
	restored, err := serving.RestoreLinks(registry, store, logger)
	if err != nil {
		return nil, fmt.Errorf("restore links: %w", err)
	}
	logger.Infof("serving %d held payloads", restored)

	policy := eligibility.New(eligibility.Options{
		NodeID:        nodeID,
		Region:        o.Region,
		MetadataRate:  o.MetadataRate,
		DataRate:      o.DataRate,
		DiskThreshold: o.DiskThreshold,
		Disk:          store,
		Logger:        logger,
	})

	httpClient := &http.Client{}
	var directory peers.Directory
	if o.GossipEndpoint != "" {
		directory = peers.NewGossipClient(o.GossipEndpoint, httpClient)
	}
	resolver := peers.NewResolver(o.PublicEndpoint, directory, o.PeersTimeout, logger)

	transferClient := transfer.NewClient(transfer.Options{
		Client:         httpClient,
		MaxPayloadSize: o.MaxPayloadSize,
		Tracer:         tracer,
	})

	replicationService := replication.New(replication.Options{
		Eligibility:     policy,
		Ledger:          ledgerReader,
		Peers:           resolver,
		Transfer:        transferClient,
		Store:           store,
		Serving:         registry,
		MetadataTimeout: o.MetadataTimeout,
		PayloadTimeout:  o.PayloadTimeout,
		LocalEndpoint:   o.PublicEndpoint,
		Tracer:          tracer,
		Logger:          logger,
	})

	ledgerListener := listener.New(listener.Options{
		Ledger:         ledgerReader,
		Replicator:     replicationService,
		StateStore:     stateStore,
		BlockPage:      o.BlockPage,
		BackfillWindow: o.BackfillWindow,
		BackfillFloor:  o.BackfillFloor,
		BackfillRate:   o.BackfillRate,
		Tracer:         tracer,
		Logger:         logger,
	})

	sweeper := retention.New(retention.Options{
		Store:   store,
		Serving: registry,
		MaxAge:  o.RetentionMaxAge,
		Logger:  logger,
	})

	r.agent = agent.New(agent.Options{
		Poller:            ledgerListener,
		Replicator:        replicationService,
		Sweeper:           sweeper,
		PollInterval:      o.PollInterval,
		RetentionDelay:    o.RetentionDelay,
		RetentionInterval: o.RetentionInterval,
		Logger:            logger,
	})

	if o.APIAddr != "" {
		apiService := api.New(api.Options{
			Store:  store,
			Links:  registry,
			Tracer: tracer,
			Logger: logger,
		})

		apiListener, err := net.Listen("tcp", o.APIAddr)
		if err != nil {
			return nil, fmt.Errorf("api listener: %w", err)
		}

		apiServer := &http.Server{
			IdleTimeout:       30 * time.Second,
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           apiService,
			ErrorLog:          stdlog.New(r.errorLogWriter, "", 0),
		}

		go func() {
			logger.Infof("api address: %s", apiListener.Addr())

			if err := apiServer.Serve(apiListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Debugf("api server: %v", err)
				logger.Error("unable to serve api")
			}
		}()

		r.apiServer = apiServer

		if debugAPIService != nil {
			debugAPIService.MustRegisterMetrics(apiService.Metrics()...)
		}
	}

	if debugAPIService != nil {
		// register metrics from components
		if l, ok := logger.(metrics.MetricsCollector); ok {
			debugAPIService.MustRegisterMetrics(l.Metrics()...)
		}
		debugAPIService.MustRegisterMetrics(ledgerReader.Metrics()...)
		debugAPIService.MustRegisterMetrics(store.Metrics()...)
		debugAPIService.MustRegisterMetrics(registry.Metrics()...)
		debugAPIService.MustRegisterMetrics(policy.Metrics()...)
		debugAPIService.MustRegisterMetrics(resolver.Metrics()...)
		debugAPIService.MustRegisterMetrics(transferClient.Metrics()...)
		debugAPIService.MustRegisterMetrics(replicationService.Metrics()...)
		debugAPIService.MustRegisterMetrics(ledgerListener.Metrics()...)
		debugAPIService.MustRegisterMetrics(sweeper.Metrics()...)
		debugAPIService.MustRegisterMetrics(tracer.Metrics()...)

		// inject dependencies and configure full debug api http path routes
		debugAPIService.Configure(r.agent, ledgerListener, registry)
	}

	r.agent.Start()

	return r, nil
}

// Shutdown stops the scheduled loops, the HTTP servers and closes the
// persistent stores.
func (r *Replicator) Shutdown(ctx context.Context) error {
	var mErr error

	// if a shutdown is already in process, return here
	r.shutdownMutex.Lock()
	if r.shutdownInProgress {
		r.shutdownMutex.Unlock()
		return ErrShutdownInProgress
	}
	r.shutdownInProgress = true
	r.shutdownMutex.Unlock()

	tryClose := func(c io.Closer, errMsg string) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", errMsg, err))
		}
	}

	if r.agent != nil {
		tryClose(r.agent, "agent")
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var eg errgroup.Group
	if r.apiServer != nil {
		eg.Go(func() error {
			if err := r.apiServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("api server: %w", err)
			}
			return nil
		})
	}
	if r.debugAPIServer != nil {
		eg.Go(func() error {
			if err := r.debugAPIServer.Shutdown(ctx); err != nil {
				return fmt.Errorf("debug api server: %w", err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		mErr = multierror.Append(mErr, err)
	}

	if r.ethClientCloser != nil {
		r.ethClientCloser()
	}

	tryClose(r.stateStoreCloser, "statestore")
	tryClose(r.tracerCloser, "tracer")
	tryClose(r.errorLogWriter, "error log writer")

	return mErr
}
