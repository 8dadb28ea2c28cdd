// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pry implements the take-over protocol: an execution context
// suspends itself, offers a snapshot of its state to the interactive
// front-end, and resumes when the operator releases it.
//
// The requesting side calls [Broker.RequestTakeover] (or [Pry], which
// captures the call site). The front-end attaches to the broker as a
// [Host], receives [Request] values from [Broker.Pending] between input
// lines, and either grants or declines each one. A granted request
// opens a nested session in state Suspended over a working copy of the
// captured bindings; the requester stays blocked until [Grant.Release].
//
// Every request resolves exactly once. Grant, decline, timeout and
// cancellation race through a compare-and-swap on the request state, so
// a requester that times out and a front-end that grants at the same
// instant cannot both win.
//
// Outcomes for the requester:
//
//   - granted, then released: a [Result] and nil error
//   - rejected: *[RejectError] (SelfPry, NoInteractiveHost, Declined)
//   - not granted in time: [ErrTimedOut]
//
// In every case the caller resumes; the reason is diagnostic.
package pry
