// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package repl is prysh's interactive front-end.
//
// A [Frontend] owns the operator's terminal. It reads lines, evaluates
// them in the session currently holding the input, and keeps a set of
// frames: top-level local sessions, pried sessions opened by granting a
// take-over request from a [pry.Broker], and bridged sessions opened
// with a [bridge.Dialer]. Built-in commands (help, sessions, switch,
// connect, disconnect, continue, respawn, history, config, exit) move
// the input between frames and end them.
//
// The Frontend is the broker's [pry.Host]: it reports the execution
// identity of the frame holding the input, so code evaluated inside a
// pried session that calls pry on itself is rejected instead of
// deadlocking the terminal.
//
// [BindingEvaluator] is a small evaluator over bindings: YAML flow
// literals, assignments, dotted lookups, binding(), pry(), print() and
// calls to bound [Func] values. A pried frame evaluates under the
// requester's execution flags, so print() there writes to the
// operator's terminal.
package repl
