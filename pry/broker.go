// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/pry/lib/clock"
)

// Host is the interactive front-end as the broker sees it.
type Host interface {
	// Interactive reports whether an operator terminal is attached.
	Interactive() bool

	// ActiveExecutionID returns the execution identity observed by the
	// session currently holding the input, or "".
	ActiveExecutionID() string
}

// BrokerOptions configure a Broker.
type BrokerOptions struct {
	// Clock drives request timeouts. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives lifecycle notices. Nil uses slog.Default.
	Logger *slog.Logger
}

// Broker routes take-over requests from suspended contexts to the
// attached front-end.
type Broker struct {
	clock   clock.Clock
	logger  *slog.Logger
	pending chan *Request

	mu    sync.Mutex
	host  Host
	held  []*Grant
	epoch uint64
}

// NewBroker creates a broker with no host attached.
func NewBroker(options BrokerOptions) *Broker {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Broker{
		clock:   options.Clock,
		logger:  options.Logger,
		pending: make(chan *Request),
	}
}

// Attach installs host as the front-end. The returned detach function
// removes it again unless another host has been attached since.
func (b *Broker) Attach(host Host) (detach func()) {
	b.mu.Lock()
	b.host = host
	b.epoch++
	epoch := b.epoch
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.epoch == epoch {
			b.host = nil
		}
	}
}

// Pending delivers requests to the front-end. Receiving a request does
// not resolve it; the front-end must Grant or Decline.
func (b *Broker) Pending() <-chan *Request {
	return b.pending
}

// Held returns the innermost held grant, if any.
func (b *Broker) Held() (*Grant, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.held) == 0 {
		return nil, false
	}
	return b.held[len(b.held)-1], true
}

// Release releases the innermost held grant. It reports false, and does
// nothing, when no grant is held.
func (b *Broker) Release(exit ExitReason) bool {
	grant, ok := b.Held()
	if !ok {
		return false
	}
	return grant.Release(exit)
}

func (b *Broker) push(g *Grant) {
	b.mu.Lock()
	b.held = append(b.held, g)
	b.mu.Unlock()
}

func (b *Broker) pop(g *Grant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, held := range b.held {
		if held == g {
			b.held = append(b.held[:i], b.held[i+1:]...)
			return
		}
	}
}

// RequestTakeover offers snapshot to the front-end and blocks. If the
// front-end grants within timeout, it blocks further until the nested
// session is released and returns the Result. Otherwise it returns a
// *RejectError or ErrTimedOut. The timeout bounds only the wait for a
// grant. Cancelling ctx before a grant abandons the request.
func (b *Broker) RequestTakeover(ctx context.Context, snapshot Snapshot, timeout time.Duration) (Result, error) {
	origin := snapshot.Origin

	b.mu.Lock()
	host := b.host
	b.mu.Unlock()

	if host != nil && origin.ExecutionID != "" && origin.ExecutionID == host.ActiveExecutionID() {
		return Result{}, b.reject(SelfPry, origin)
	}
	if host == nil || !host.Interactive() {
		return Result{}, b.reject(NoInteractiveHost, origin)
	}

	request := &Request{
		broker:   b,
		snapshot: snapshot,
		flags:    ExecutionFlags(ctx),
		created:  b.clock.Now(),
		decided:  make(chan struct{}),
		released: make(chan Result, 1),
	}
	b.logger.Debug("pry request pending", "origin", origin.String(), "timeout", timeout)

	deadline := b.clock.After(timeout)
	select {
	case b.pending <- request:
	case <-deadline:
		request.resolve(stateTimedOut)
		return Result{}, b.timedOut(origin, timeout)
	case <-ctx.Done():
		request.resolve(stateCancelled)
		return Result{}, ctx.Err()
	}

	select {
	case <-request.decided:
	case <-deadline:
		if request.resolve(stateTimedOut) {
			return Result{}, b.timedOut(origin, timeout)
		}
		<-request.decided
	case <-ctx.Done():
		if request.resolve(stateCancelled) {
			return Result{}, ctx.Err()
		}
		<-request.decided
	}

	switch requestState(request.state.Load()) {
	case stateGranted:
		return <-request.released, nil
	case stateDeclined:
		return Result{}, b.reject(Declined, origin)
	default:
		// Only resolve can set the other states, and it returned early
		// above for them.
		return Result{}, ErrResolved
	}
}

func (b *Broker) reject(reason Reason, origin Origin) error {
	b.logger.Info("pry request rejected", "reason", reason.String(), "origin", origin.String())
	return &RejectError{Reason: reason, Origin: origin}
}

func (b *Broker) timedOut(origin Origin, timeout time.Duration) error {
	b.logger.Info("pry request timed out", "origin", origin.String(), "timeout", timeout)
	return ErrTimedOut
}
