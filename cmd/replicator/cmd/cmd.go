// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/viewshare/replicator/pkg/agent"
	"github.com/viewshare/replicator/pkg/eligibility"
	"github.com/viewshare/replicator/pkg/listener"
	"github.com/viewshare/replicator/pkg/logging"
	"github.com/viewshare/replicator/pkg/peers"
	"github.com/viewshare/replicator/pkg/replication"
	"github.com/viewshare/replicator/pkg/retention"
	"github.com/viewshare/replicator/pkg/transfer"
)

const (
	optionNameDataDir                 = "data-dir"
	optionNameNodeID                  = "node-id"
	optionNameRegion                  = "region"
	optionNameAPIAddr                 = "api-addr"
	optionNamePublicEndpoint          = "public-endpoint"
	optionNameDebugAPIEnable          = "debug-api-enable"
	optionNameDebugAPIAddr            = "debug-api-addr"
	optionNameBlockchainRPCEndpoint   = "blockchain-rpc-endpoint"
	optionNameCampaignRegistryAddress = "campaign-registry-address"
	optionNameGossipEndpoint          = "gossip-endpoint"
	optionNameMetadataRate            = "metadata-rate"
	optionNameDataRate                = "data-rate"
	optionNameDiskThreshold           = "disk-threshold"
	optionNamePollInterval            = "poll-interval"
	optionNameBlockPage               = "block-page"
	optionNameBackfillWindow          = "backfill-window"
	optionNameBackfillFloor           = "backfill-floor"
	optionNameBackfillRate            = "backfill-rate"
	optionNameRetentionInterval       = "retention-interval"
	optionNameRetentionDelay          = "retention-delay"
	optionNameRetentionMaxAge         = "retention-max-age"
	optionNameMetadataTimeout         = "metadata-timeout"
	optionNamePayloadTimeout          = "payload-timeout"
	optionNamePeersTimeout            = "peers-timeout"
	optionNameLedgerTimeout           = "ledger-timeout"
	optionNameLedgerConfirmations     = "ledger-confirmations"
	optionNameMaxPayloadSize          = "max-payload-size"
	optionNameVerbosity               = "verbosity"
	optionNameTracingEnabled          = "tracing-enable"
	optionNameTracingEndpoint         = "tracing-endpoint"
	optionNameTracingServiceName      = "tracing-service-name"
)

func init() {
	cobra.EnableCommandSorting = false
}

type command struct {
	root    *cobra.Command
	config  *viper.Viper
	cfgFile string
	homeDir string
}

type option func(*command)

func newCommand(opts ...option) (c *command, err error) {
	c = &command{
		root: &cobra.Command{
			Use:           "replicator",
			Short:         "Campaign content replicator",
			SilenceErrors: true,
			SilenceUsage:  true,
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
				return c.initConfig()
			},
		},
	}

	for _, o := range opts {
		o(c)
	}

	// Find home directory.
	if err := c.setHomeDir(); err != nil {
		return nil, err
	}

	c.initGlobalFlags()

	if err := c.initStartCmd(); err != nil {
		return nil, err
	}

	c.initVersionCmd()

	if err := c.initPrintConfigCmd(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *command) Execute() (err error) {
	return c.root.Execute()
}

// Execute parses command line arguments and runs appropriate functions.
func Execute() (err error) {
	c, err := newCommand()
	if err != nil {
		return err
	}
	return c.Execute()
}

func (c *command) initGlobalFlags() {
	globalFlags := c.root.PersistentFlags()
	globalFlags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.replicator.yaml)")
}

func (c *command) initConfig() (err error) {
	config := viper.New()
	configName := ".replicator"
	if c.cfgFile != "" {
		// Use config file from the flag.
		config.SetConfigFile(c.cfgFile)
	} else {
		// Search config in home directory with name ".replicator" (without extension).
		config.AddConfigPath(c.homeDir)
		config.SetConfigName(configName)
	}

	// Environment
	config.SetEnvPrefix("replicator")
	config.AutomaticEnv() // read in environment variables that match
	config.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if c.homeDir != "" && c.cfgFile == "" {
		c.cfgFile = filepath.Join(c.homeDir, configName+".yaml")
	}

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		var e viper.ConfigFileNotFoundError
		if !errors.As(err, &e) {
			return err
		}
	}
	c.config = config
	return nil
}

func (c *command) setHomeDir() (err error) {
	if c.homeDir != "" {
		return
	}
	dir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	c.homeDir = dir
	return nil
}

func (c *command) setAllFlags(cmd *cobra.Command) {
	cmd.Flags().String(optionNameDataDir, filepath.Join(c.homeDir, ".replicator"), "data directory")
	cmd.Flags().String(optionNameNodeID, "", "node identity used for sharding, generated and persisted when empty")
	cmd.Flags().String(optionNameRegion, "", "declared region of the node")
	cmd.Flags().String(optionNameAPIAddr, ":1733", "HTTP API listen address")
	cmd.Flags().String(optionNamePublicEndpoint, "http://127.0.0.1:1733", "endpoint of the local content API, checked first for content not held")
	cmd.Flags().Bool(optionNameDebugAPIEnable, false, "enable debug HTTP API")
	cmd.Flags().String(optionNameDebugAPIAddr, ":1735", "debug HTTP API listen address")
	cmd.Flags().String(optionNameBlockchainRPCEndpoint, "ws://localhost:8546", "ledger blockchain rpc endpoint")
	cmd.Flags().String(optionNameCampaignRegistryAddress, "", "campaign registry contract address")
	cmd.Flags().String(optionNameGossipEndpoint, "", "local peer gossip service endpoint")
	cmd.Flags().Float64(optionNameMetadataRate, eligibility.DefaultMetadataRate, "fraction of nodes holding a descriptor")
	cmd.Flags().Float64(optionNameDataRate, eligibility.DefaultDataRate, "fraction of nodes holding a global payload")
	cmd.Flags().Float64(optionNameDiskThreshold, eligibility.DefaultDiskThreshold, "disk usage ratio above which payloads are refused")
	cmd.Flags().Duration(optionNamePollInterval, agent.DefaultPollInterval, "ledger poll interval")
	cmd.Flags().Uint64(optionNameBlockPage, listener.DefaultBlockPage, "maximal number of blocks queried in one poll")
	cmd.Flags().Uint64(optionNameBackfillWindow, listener.DefaultBackfillWindow, "number of most recent campaigns replicated on start")
	cmd.Flags().Uint64(optionNameBackfillFloor, 0, "lowest campaign id replicated on start")
	cmd.Flags().Duration(optionNameBackfillRate, listener.DefaultBackfillRate, "minimal delay between backfilled campaigns")
	cmd.Flags().Duration(optionNameRetentionInterval, agent.DefaultRetentionInterval, "retention sweep interval")
	cmd.Flags().Duration(optionNameRetentionDelay, agent.DefaultRetentionDelay, "delay of the first retention sweep")
	cmd.Flags().Duration(optionNameRetentionMaxAge, retention.DefaultMaxAge, "age after which content is evicted")
	cmd.Flags().Duration(optionNameMetadataTimeout, replication.DefaultMetadataTimeout, "descriptor transfer timeout")
	cmd.Flags().Duration(optionNamePayloadTimeout, replication.DefaultPayloadTimeout, "payload transfer timeout")
	cmd.Flags().Duration(optionNamePeersTimeout, peers.DefaultTimeout, "peer gossip query timeout")
	cmd.Flags().Duration(optionNameLedgerTimeout, 30*time.Second, "ledger call timeout")
	cmd.Flags().Uint64(optionNameLedgerConfirmations, 0, "number of most recent blocks not yet processed")
	cmd.Flags().Int64(optionNameMaxPayloadSize, transfer.DefaultMaxPayloadSize, "maximal payload size in bytes")
	cmd.Flags().String(optionNameVerbosity, "info", "log verbosity level 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace")
	cmd.Flags().Bool(optionNameTracingEnabled, false, "enable tracing")
	cmd.Flags().String(optionNameTracingEndpoint, "127.0.0.1:6831", "endpoint to send tracing data")
	cmd.Flags().String(optionNameTracingServiceName, "replicator", "service name identifier for tracing")
}

func newLogger(cmd *cobra.Command, verbosity string) (logging.Logger, error) {
	var logger logging.Logger
	switch verbosity {
	case "0", "silent":
		logger = logging.New(io.Discard, 0)
	case "1", "error":
		logger = logging.New(cmd.OutOrStdout(), logrus.ErrorLevel)
	case "2", "warn":
		logger = logging.New(cmd.OutOrStdout(), logrus.WarnLevel)
	case "3", "info":
		logger = logging.New(cmd.OutOrStdout(), logrus.InfoLevel)
	case "4", "debug":
		logger = logging.New(cmd.OutOrStdout(), logrus.DebugLevel)
	case "5", "trace":
		logger = logging.New(cmd.OutOrStdout(), logrus.TraceLevel)
	default:
		return nil, fmt.Errorf("unknown verbosity level %q", verbosity)
	}
	return logger, nil
}
