// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pry/cmd/prysh/cli"
)

func serveCommand() *cli.Command {
	var common commonFlags
	return &cli.Command{
		Name:    "serve",
		Summary: "Accept remote sessions without a local shell",
		Description: `Run the bridge host in the foreground until interrupted. Trusted
peers can open remote sessions on this node; it has no operator
terminal, so pry() requests are not served.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("serve", pflag.ContinueOnError)
			common.bind(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := loadConfig(common.config)
			if err != nil {
				return err
			}
			if cfg.Node.Listen == "" {
				return errors.New("node.listen is not set")
			}
			logger := cli.NewCommandLogger(common.verbose).With("command", "serve")
			n, err := openNode(cfg, logger, envPassphrase(nil))
			if err != nil {
				return err
			}
			defer n.close()
			if n.host == nil {
				return fmt.Errorf("no node key at %s; run 'prysh key generate'", cfg.Node.KeyFile)
			}
			return n.serve(ctx)
		},
	}
}
