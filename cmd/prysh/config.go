// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/pry/cmd/prysh/cli"
	"github.com/bureau-foundation/pry/lib/config"
	"github.com/bureau-foundation/pry/settings"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:        "config",
		Summary:     "Inspect the node configuration",
		Subcommands: []*cli.Command{configShowCommand(), configCheckCommand()},
	}
}

func configShowCommand() *cli.Command {
	var path string
	return &cli.Command{
		Name:    "show",
		Summary: "Print the resolved configuration as YAML",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("show", pflag.ContinueOnError)
			flagSet.StringVarP(&path, "config", "c", "", "configuration file (default $PRY_CONFIG, then built-in defaults)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := config.Resolve(path)
			if err != nil {
				return err
			}
			encoder := yaml.NewEncoder(os.Stdout)
			encoder.SetIndent(2)
			if err := encoder.Encode(cfg); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
}

func configCheckCommand() *cli.Command {
	var path string
	return &cli.Command{
		Name:    "check",
		Summary: "Validate the configuration and its settings",
		Description: `Validate the configuration, including the display settings it seeds.
Every problem is listed; the exit code is 2 when there are any.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
			flagSet.StringVarP(&path, "config", "c", "", "configuration file (default $PRY_CONFIG, then built-in defaults)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := config.Resolve(path)
			if err != nil {
				return err
			}
			return checkConfig(cfg, os.Stdout)
		},
	}
}

// checkConfig reports every problem in cfg to w, one per line.
func checkConfig(cfg *config.Config, w io.Writer) error {
	var problems []error
	if err := cfg.Validate(); err != nil {
		problems = append(problems, unjoin(err)...)
	}
	if _, err := settings.New(cfg.Settings); err != nil {
		for _, problem := range unjoin(err) {
			problems = append(problems, fmt.Errorf("settings: %w", problem))
		}
	}
	if len(problems) == 0 {
		fmt.Fprintln(w, "configuration ok")
		return nil
	}
	for _, problem := range problems {
		fmt.Fprintf(w, "  %v\n", problem)
	}
	return &cli.ExitError{Code: 2}
}

// unjoin splits an errors.Join result back into its parts.
func unjoin(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
