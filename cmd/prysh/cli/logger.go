// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// NewCommandLogger returns the logger for command operations: text on a
// terminal stderr, JSON when stderr is piped. verbose lowers the level
// to debug.
func NewCommandLogger(verbose bool) *slog.Logger {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), verbose)
}

// NewFileLogger returns a JSON logger writing to w. The interactive
// shell logs here so records never interleave with the prompt.
func NewFileLogger(w io.Writer, verbose bool) *slog.Logger {
	return newLogger(w, false, verbose)
}

func newLogger(w io.Writer, text, verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		options.Level = slog.LevelDebug
	}
	if text {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}
