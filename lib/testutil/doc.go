// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for pry packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so that tests waiting on a blocked pry caller or a bridge
// response do not hang the suite when the code under test is wrong.
// They are the only place tests use wall-clock timeouts; protocol
// timeouts under test use lib/clock's fake clock instead.
//
// [RequireBlocked] asserts the opposite: that nothing arrives within a
// short grace period, for requesters that must stay suspended.
//
// All helpers call t.Fatalf on failure.
package testutil
