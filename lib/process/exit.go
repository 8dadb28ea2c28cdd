// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// exitCoder is satisfied by CLI errors that carry their own exit code.
type exitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits. Errors implementing
// ExitCode() int choose the exit code; everything else exits 1. Errors
// that report a zero or negative code exit silently with code 1.
func Fatal(err error) {
	os.Exit(report(os.Stderr, err))
}

// report writes the diagnostic for err and returns the exit code.
func report(w io.Writer, err error) int {
	var coded exitCoder
	if errors.As(err, &coded) {
		code := coded.ExitCode()
		if code <= 0 {
			return 1
		}
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(w, "error: %s\n", msg)
		}
		return code
	}
	fmt.Fprintf(w, "error: %v\n", err)
	return 1
}
