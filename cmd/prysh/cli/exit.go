// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

// ExitError ends the process with Code. Commands return it when they
// have already written their own report; an empty Message keeps
// process.Fatal from printing anything further.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// ExitCode implements the interface process.Fatal checks for.
func (e *ExitError) ExitCode() int { return e.Code }
