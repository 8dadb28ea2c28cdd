// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree behind the prysh binary: subcommand
// dispatch, pflag parsing with typo suggestions, generated help and the
// command logger.
//
// A command is a [Command] value. Leaf commands set Run; groups set
// Subcommands. [Command.Execute] walks the tree by positional name,
// parses the leaf's flags and calls Run with what remains:
//
//	root := &cli.Command{
//	    Name: "prysh",
//	    Subcommands: []*cli.Command{shellCommand(), keyCommand()},
//	}
//	if err := root.Execute(ctx, os.Args[1:]); err != nil {
//	    process.Fatal(err)
//	}
package cli
