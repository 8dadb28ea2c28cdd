// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/pry/cmd/prysh/cli"
	"github.com/bureau-foundation/pry/lib/secret"
	"github.com/bureau-foundation/pry/lib/tui"
	"github.com/bureau-foundation/pry/lib/version"
	"github.com/bureau-foundation/pry/repl"
)

// commonFlags are accepted by every command that loads the node
// configuration.
type commonFlags struct {
	config  string
	verbose bool
}

func (c *commonFlags) bind(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&c.config, "config", "c", "", "configuration file (default $PRY_CONFIG, then built-in defaults)")
	flagSet.BoolVarP(&c.verbose, "verbose", "v", false, "log debug records")
}

// shellOptions select what runShell starts besides the front-end.
type shellOptions struct {
	commonFlags

	// connect opens a remote session on this peer once the shell is up.
	connect string

	// workers and interval start demo workers that pry into the shell.
	workers  int
	interval time.Duration
}

func shellCommand() *cli.Command {
	var options shellOptions
	return &cli.Command{
		Name:    "shell",
		Summary: "Start an interactive shell",
		Description: `Start an interactive shell on this node.

Code running in the process can request a take-over with pry(); the
shell offers each request to the operator (or grants it at once when
pry.confirm is off) and evaluates the following input in the
requester's context until "continue" or "respawn".

When the node has a key and node.listen is set, the shell also accepts
remote sessions from trusted peers.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("shell", pflag.ContinueOnError)
			options.bind(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			return runShell(ctx, options)
		},
	}
}

func connectCommand() *cli.Command {
	var options shellOptions
	return &cli.Command{
		Name:    "connect",
		Summary: "Start a shell with a remote session on a peer",
		Usage:   "prysh connect <peer> [flags]",
		Examples: []cli.Example{
			{Description: "Open a remote session on the peer named build-02", Command: "prysh connect build-02"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("connect", pflag.ContinueOnError)
			options.bind(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one peer id")
			}
			options.connect = args[0]
			return runShell(ctx, options)
		},
	}
}

func demoCommand() *cli.Command {
	options := shellOptions{workers: 2, interval: 20 * time.Second}
	return &cli.Command{
		Name:    "demo",
		Summary: "Start a shell with worker goroutines that pry into it",
		Description: `Start a shell alongside worker goroutines. Each worker processes a
queue and periodically calls pry() with its state, so the take-over
flow can be tried without writing any code.

Workers write progress to workers.log under the node root. While a
worker is pried its output goes to the terminal instead: call step()
to advance it by hand, print(queue) to show a binding, or poison() to
queue a job that panics. A panic in a pried worker is trapped and
reported; a panic in a running worker stops it.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("demo", pflag.ContinueOnError)
			options.bind(flagSet)
			flagSet.IntVar(&options.workers, "workers", options.workers, "number of workers")
			flagSet.DurationVar(&options.interval, "interval", options.interval, "time between a worker's pry() calls")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if options.workers < 1 || options.interval <= 0 {
				return fmt.Errorf("--workers and --interval must be positive")
			}
			return runShell(ctx, options)
		},
	}
}

// runShell assembles the node and drives the front-end on the
// process's terminal until the operator exits.
func runShell(ctx context.Context, options shellOptions) error {
	cfg, err := loadConfig(options.config)
	if err != nil {
		return err
	}

	// Log records would tear through the line editor, so the shell
	// logs to a file under the node root.
	logPath := filepath.Join(cfg.Paths.Root, "prysh.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer logFile.Close()
	logger := cli.NewFileLogger(logFile, options.verbose).With("command", "shell", "pid", os.Getpid())
	slog.SetDefault(logger)

	n, err := openNode(cfg, logger, envPassphrase(func(path string) (*secret.Buffer, error) {
		return promptPassphrase("passphrase for " + path)
	}))
	if err != nil {
		return err
	}
	defer n.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- n.serve(ctx) }()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	frontendOptions := repl.Options{
		Interactive: interactive,
		Settings:    n.settings,
		Registry:    n.registry,
		Broker:      n.broker,
		Evaluator:   n.evaluator,
		Node:        n.nodeID(),
		Confirm:     cfg.Pry.Confirm,
		Dialer:      n.dialer,
		Connect:     options.connect,
		Peers:       n.peers,
		Logger:      logger,
	}

	if interactive {
		console, err := openTerminal(os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		defer console.Restore()
		frontendOptions.Console = console
		frontendOptions.Menu = func(title string, choices []tui.DropdownOption) (string, error) {
			return repl.RunMenu(os.Stdin, os.Stdout, title, choices)
		}
	} else {
		frontendOptions.Console = newLineConsole(os.Stdin, os.Stdout)
	}

	frontend, err := repl.New(frontendOptions)
	if err != nil {
		return err
	}
	if options.workers > 0 {
		// Worker progress would tear through the line editor too; it
		// reaches the terminal only while the operator holds a worker.
		workerPath := filepath.Join(cfg.Paths.Root, "workers.log")
		workerLog, err := os.OpenFile(workerPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening worker log: %w", err)
		}
		defer workerLog.Close()
		for i := range options.workers {
			go runWorker(ctx, n.broker, i+1, options.interval, workerLog, logger)
		}
	}

	fmt.Fprintf(frontendOptions.Console, "prysh %s; type help for commands\n", version.Info())
	runErr := frontend.Run(ctx)
	cancel()
	if err := <-served; err != nil {
		logger.Error("bridge host stopped", "error", err)
	}
	return runErr
}
