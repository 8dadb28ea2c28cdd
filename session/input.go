// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotHolder is wrapped when a session acts on an input role it does
// not hold.
var ErrNotHolder = errors.New("session does not hold the input")

// Input is the active-input token for one input stream. At most one
// session holds it.
type Input struct {
	mu      sync.Mutex
	holder  Handle
	changed chan struct{}
}

// NewInput returns a token nobody holds.
func NewInput() *Input {
	return &Input{changed: make(chan struct{})}
}

// Holder returns the current holder, or "" when free.
func (in *Input) Holder() Handle {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.holder
}

// Changed returns a channel closed at the next change of holder.
func (in *Input) Changed() <-chan struct{} {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.changed
}

// Acquire takes the free token.
func (in *Input) Acquire(h Handle) error {
	return in.Handoff("", h)
}

// Release frees the token if h holds it.
func (in *Input) Release(h Handle) error {
	return in.Handoff(h, "")
}

// Handoff passes the token from the current holder to to. It fails
// unless from is the current holder ("" for a free token).
func (in *Input) Handoff(from, to Handle) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.holder != from {
		if from == "" {
			return fmt.Errorf("input is held by %s", in.holder.Short())
		}
		return fmt.Errorf("%w: %s", ErrNotHolder, from.Short())
	}
	in.holder = to
	close(in.changed)
	in.changed = make(chan struct{})
	return nil
}
