// Copyright 2024 The Replicator Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"sort"

	"github.com/spf13/cobra"
)

func (c *command) initPrintConfigCmd() (err error) {
	cmd := &cobra.Command{
		Use:   "printconfig",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}

			keys := c.config.AllKeys()
			sort.Strings(keys)
			for _, k := range keys {
				cmd.Printf("%s: %v\n", k, c.config.Get(k))
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
