// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations used by pry. Production code
// injects Real(); tests inject Fake().
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time after d
	// elapses. If d <= 0, the channel receives immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f after d elapses. The returned Timer cancels the
	// pending call with Stop.
	AfterFunc(d time.Duration, f func()) *Timer

	// Sleep pauses the current goroutine for at least d.
	Sleep(d time.Duration)
}

// Timer represents a pending AfterFunc call.
type Timer struct {
	stopFunc func() bool
}

// Stop prevents the Timer from firing. Returns true if the call stops
// the timer, false if it already fired or was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
