// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Prysh is an interactive shell that running code can hand itself to.
// A goroutine calls pry() with its local state; the operator takes it
// over, inspects and changes the state, then lets it continue. Nodes
// with a key can also open remote sessions on trusted peers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/pry/cmd/prysh/cli"
	"github.com/bureau-foundation/pry/lib/process"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root().Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		process.Fatal(err)
	}
}

// root is the prysh command tree. With no subcommand it starts a shell.
func root() *cli.Command {
	shell := shellCommand()
	return &cli.Command{
		Name:    "prysh",
		Summary: "Interactive shell with take-over of running code",
		Flags:   shell.Flags,
		Subcommands: []*cli.Command{
			shell,
			connectCommand(),
			demoCommand(),
			serveCommand(),
			keyCommand(),
			configCommand(),
			versionCommand(),
		},
		Run: shell.Run,
	}
}
