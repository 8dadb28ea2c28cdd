// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction.
//
// The take-over broker bounds how long a pry request waits for a grant,
// and the bridge bounds how long a connect handshake may take. Both take
// a Clock instead of calling the time package so that tests can resolve
// a timeout deterministically:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	broker := pry.NewBroker(pry.BrokerConfig{Clock: fake})
//	go broker.RequestTakeover(ctx, snapshot, 5*time.Second)
//	fake.WaitForTimers(1)
//	fake.Advance(5 * time.Second) // the request resolves as timed out
//
// WaitForTimers closes the race between a goroutine registering its
// timer and the test advancing time.
package clock
