// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session holds interactive session records and the registry
// that owns them.
//
// A [Session] moves through a small state machine:
//
//	Init -> Running     top-level session started by the front-end
//	Init -> Suspended   nested session opened by a granted pry
//	Init -> Bridged     session started on behalf of a remote peer
//	any  -> Terminated  loop exit (final)
//
// The [Registry] is the only owner of live sessions. Lookups of unknown
// or terminated handles miss. The [Input] token tracks which session
// currently reads from a terminal; it moves only through an explicit
// [Input.Handoff] from the current holder.
package session
