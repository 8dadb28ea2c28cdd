// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pry

import (
	"context"

	"github.com/google/uuid"
)

type executionKey struct{}

type execution struct {
	id    string
	flags *Flags
}

// WithExecution tags ctx with an execution identity and its flags.
// Sessions evaluate user input under the identity of the context they
// observe, which is how a pry from inside a pried session is recognized.
func WithExecution(ctx context.Context, id string, flags *Flags) context.Context {
	return context.WithValue(ctx, executionKey{}, execution{id: id, flags: flags})
}

// ExecutionID returns the identity set by WithExecution, or "".
func ExecutionID(ctx context.Context) string {
	e, _ := ctx.Value(executionKey{}).(execution)
	return e.id
}

// ExecutionFlags returns the flags set by WithExecution, or nil.
func ExecutionFlags(ctx context.Context) *Flags {
	e, _ := ctx.Value(executionKey{}).(execution)
	return e.flags
}

// NewExecutionID returns a fresh execution identity.
func NewExecutionID() string {
	return "exec-" + uuid.Must(uuid.NewV7()).String()
}
