// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pry

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/pry/session"
)

type requestState int32

const (
	statePending requestState = iota
	stateGranted
	stateDeclined
	stateTimedOut
	stateCancelled
)

// ExitReason says how a nested session ended.
type ExitReason int

const (
	// ExitRespawn: the operator asked for a fresh top-level session.
	ExitRespawn ExitReason = iota + 1

	// ExitContinue: the operator returned to the previous session.
	ExitContinue

	// ExitPanic: evaluation inside the nested session panicked.
	ExitPanic

	// ExitShutdown: the front-end is exiting.
	ExitShutdown
)

func (r ExitReason) String() string {
	switch r {
	case ExitRespawn:
		return "respawn"
	case ExitContinue:
		return "continue"
	case ExitPanic:
		return "panic"
	case ExitShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Result is what a released requester gets back.
type Result struct {
	// Bindings are the nested session's final working bindings. They
	// are for diagnostics; the requester's own values were never
	// shared with the nested session.
	Bindings Bindings

	Exit ExitReason

	// Duration is how long the requester was suspended.
	Duration time.Duration
}

// Request is one pending take-over, delivered to the front-end through
// [Broker.Pending].
type Request struct {
	broker   *Broker
	snapshot Snapshot
	flags    *Flags
	created  time.Time

	state    atomic.Int32
	decided  chan struct{}
	released chan Result
	grant    *Grant
}

// Origin returns where the request came from.
func (r *Request) Origin() Origin { return r.snapshot.Origin }

// BindingNames returns the captured binding names, sorted.
func (r *Request) BindingNames() []string { return r.snapshot.Bindings.Names() }

// resolve moves the request out of pending. Only the first caller wins.
func (r *Request) resolve(to requestState) bool {
	if !r.state.CompareAndSwap(int32(statePending), int32(to)) {
		return false
	}
	close(r.decided)
	return true
}

// GrantOptions configure the nested session a grant opens.
type GrantOptions struct {
	// Registry receives the nested session. Required.
	Registry *session.Registry

	// Node is the local node identity for the nested prompt.
	Node string

	// Output replaces the requester's output while suspended. Nil keeps
	// the requester's output.
	Output io.Writer
}

// Grant accepts the request, opens the nested session, and sets the
// requester's execution flags. It returns [ErrResolved] if the request
// already timed out or was cancelled.
func (r *Request) Grant(options GrantOptions) (*Grant, error) {
	if !r.state.CompareAndSwap(int32(statePending), int32(stateGranted)) {
		return nil, ErrResolved
	}

	nested := session.New(session.Options{
		Prefix: "pry",
		Node:   options.Node,
		Owner:  session.Owner{ExecutionID: r.snapshot.Origin.ExecutionID},
		Clock:  r.broker.clock,
	})
	nested.Transition(session.Suspended)
	options.Registry.Register(nested)

	grant := &Grant{
		request:  r,
		registry: options.Registry,
		session:  nested,
		Bindings: CopyBindings(r.snapshot.Bindings),
		granted:  r.broker.clock.Now(),
	}
	if r.flags != nil {
		grant.restoreFlags = r.flags.set(true, options.Output)
	}
	r.grant = grant
	r.broker.push(grant)
	close(r.decided)

	r.broker.logger.Info("pry request granted",
		"origin", r.snapshot.Origin.String(),
		"execution", r.snapshot.Origin.ExecutionID,
		"session", nested.Handle(),
		"waited", grant.granted.Sub(r.created),
	)
	return grant, nil
}

// Decline rejects the request with reason Declined.
func (r *Request) Decline() error {
	if !r.resolve(stateDeclined) {
		return ErrResolved
	}
	return nil
}

// Grant is a held take-over. The front-end runs the nested session
// over Bindings and must call Release on every exit path.
type Grant struct {
	request      *Request
	registry     *session.Registry
	session      *session.Session
	restoreFlags func()
	granted      time.Time

	// Bindings is the nested session's working copy.
	Bindings Bindings

	once sync.Once
}

// Session returns the nested session.
func (g *Grant) Session() *session.Session { return g.session }

// Origin returns the requester's origin.
func (g *Grant) Origin() Origin { return g.request.snapshot.Origin }

// Flags returns the requester's execution flags, or nil if its context
// carried none. Code evaluated in the nested session runs under these
// flags so that its output follows the redirect.
func (g *Grant) Flags() *Flags { return g.request.flags }

// Release ends the nested session, restores the requester's flags and
// unblocks it. Only the first call has any effect; it returns true.
func (g *Grant) Release(exit ExitReason) bool {
	released := false
	g.once.Do(func() {
		released = true
		if g.restoreFlags != nil {
			g.restoreFlags()
		}
		g.registry.Unregister(g.session.Handle())
		g.request.broker.pop(g)

		broker := g.request.broker
		duration := broker.clock.Now().Sub(g.granted)
		g.request.released <- Result{
			Bindings: CopyBindings(g.Bindings),
			Exit:     exit,
			Duration: duration,
		}
		broker.logger.Info("pry session released",
			"origin", g.request.snapshot.Origin.String(),
			"exit", exit.String(),
			"duration", duration,
		)
	})
	return released
}
