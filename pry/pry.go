// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pry

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// DefaultTimeout is how long Pry waits for a grant.
const DefaultTimeout = 5 * time.Second

// Pry suspends the calling context until an operator releases it. The
// caller's location, the execution identity from ctx, and a deep copy
// of bindings are offered to the front-end. A context without an
// execution identity gets a fresh one.
func Pry(ctx context.Context, broker *Broker, bindings Bindings, timeout time.Duration) (Result, error) {
	return broker.RequestTakeover(ctx, Capture(bindings, callerOrigin(ctx, broker, 2)), timeout)
}

// callerOrigin builds an Origin for the function skip frames above it.
func callerOrigin(ctx context.Context, broker *Broker, skip int) Origin {
	origin := Origin{
		ExecutionID: ExecutionID(ctx),
		PID:         os.Getpid(),
		Time:        broker.clock.Now(),
	}
	if origin.ExecutionID == "" {
		origin.ExecutionID = NewExecutionID()
	}
	if pc, file, line, ok := runtime.Caller(skip); ok {
		origin.File, origin.Line = file, line
		if fn := runtime.FuncForPC(pc); fn != nil {
			origin.Function = fn.Name()
		}
	}
	return origin
}

// ConfirmPrompt is the question the front-end asks before granting.
func ConfirmPrompt(origin Origin) string {
	return fmt.Sprintf("Request to pry %s. Allow? [Yn] ", origin)
}

// ParseConfirm interprets an answer to ConfirmPrompt. An empty answer
// accepts.
func ParseConfirm(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "", "y", "yes":
		return true
	default:
		return false
	}
}
