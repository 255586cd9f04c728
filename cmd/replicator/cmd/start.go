// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/viewshare/replicator"
	"github.com/viewshare/replicator/pkg/node"
)

func (c *command) initStartCmd() (err error) {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a replicator node",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}

			logger, err := newLogger(cmd, c.config.GetString(optionNameVerbosity))
			if err != nil {
				return err
			}

			logger.Infof("version: %v", replicator.Version)

			debugAPIAddr := c.config.GetString(optionNameDebugAPIAddr)
			if !c.config.GetBool(optionNameDebugAPIEnable) {
				debugAPIAddr = ""
			}

			r, err := node.NewReplicator(node.Options{
				DataDir:                 c.config.GetString(optionNameDataDir),
				NodeID:                  c.config.GetString(optionNameNodeID),
				Region:                  c.config.GetString(optionNameRegion),
				APIAddr:                 c.config.GetString(optionNameAPIAddr),
				PublicEndpoint:          c.config.GetString(optionNamePublicEndpoint),
				DebugAPIAddr:            debugAPIAddr,
				BlockchainRPCEndpoint:   c.config.GetString(optionNameBlockchainRPCEndpoint),
				CampaignRegistryAddress: c.config.GetString(optionNameCampaignRegistryAddress),
				GossipEndpoint:          c.config.GetString(optionNameGossipEndpoint),
				MetadataRate:            c.config.GetFloat64(optionNameMetadataRate),
				DataRate:                c.config.GetFloat64(optionNameDataRate),
				DiskThreshold:           c.config.GetFloat64(optionNameDiskThreshold),
				PollInterval:            c.config.GetDuration(optionNamePollInterval),
				BlockPage:               c.config.GetUint64(optionNameBlockPage),
				BackfillWindow:          c.config.GetUint64(optionNameBackfillWindow),
				BackfillFloor:           c.config.GetUint64(optionNameBackfillFloor),
				BackfillRate:            c.config.GetDuration(optionNameBackfillRate),
				RetentionInterval:       c.config.GetDuration(optionNameRetentionInterval),
				RetentionDelay:          c.config.GetDuration(optionNameRetentionDelay),
				RetentionMaxAge:         c.config.GetDuration(optionNameRetentionMaxAge),
				MetadataTimeout:         c.config.GetDuration(optionNameMetadataTimeout),
				PayloadTimeout:          c.config.GetDuration(optionNamePayloadTimeout),
				PeersTimeout:            c.config.GetDuration(optionNamePeersTimeout),
				LedgerTimeout:           c.config.GetDuration(optionNameLedgerTimeout),
				LedgerConfirmations:     c.config.GetUint64(optionNameLedgerConfirmations),
				MaxPayloadSize:          c.config.GetInt64(optionNameMaxPayloadSize),
				TracingEnabled:          c.config.GetBool(optionNameTracingEnabled),
				TracingEndpoint:         c.config.GetString(optionNameTracingEndpoint),
				TracingServiceName:      c.config.GetString(optionNameTracingServiceName),
				Logger:                  logger,
			})
			if err != nil {
				return fmt.Errorf("start node: %w", err)
			}

			// Wait for termination or interrupt signals.
			// We want to clean up things at the end.
			interruptChannel := make(chan os.Signal, 1)
			signal.Notify(interruptChannel, syscall.SIGINT, syscall.SIGTERM)

			// Block main goroutine until it is interrupted
			sig := <-interruptChannel

			logger.Debugf("received signal: %v", sig)
			logger.Info("shutting down")

			// Shutdown
			done := make(chan struct{})
			go func() {
				defer close(done)

				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()

				if err := r.Shutdown(ctx); err != nil {
					logger.Errorf("shutdown: %v", err)
				}
			}()

			// If shutdown function is blocking too long,
			// allow process termination by receiving another signal.
			select {
			case sig := <-interruptChannel:
				logger.Debugf("received signal: %v", sig)
			case <-done:
			}

			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	c.setAllFlags(cmd)
	c.root.AddCommand(cmd)
	return nil
}
