// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"

	"github.com/bureau-foundation/pry/lib/clock"
	"github.com/bureau-foundation/pry/settings"
)

// Handle is an opaque session identifier, unique within a process.
type Handle string

// NewHandle returns a fresh time-ordered handle.
func NewHandle() Handle {
	return Handle(uuid.Must(uuid.NewV7()).String())
}

// Short returns the first eight characters, for display.
func (h Handle) Short() string {
	if len(h) > 8 {
		return string(h[:8])
	}
	return string(h)
}

// State is a session's lifecycle state.
type State int

const (
	Init State = iota
	Running
	Suspended
	Bridged
	Terminated
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Bridged:
		return "bridged"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrIllegalTransition is wrapped by errors from [Session.Transition].
var ErrIllegalTransition = errors.New("illegal session state transition")

func legal(from, to State) bool {
	switch {
	case from == Terminated:
		return false
	case to == Terminated:
		return true
	case from == Init:
		return to == Running || to == Suspended || to == Bridged
	default:
		return false
	}
}

// Owner describes the execution context a session observes. The session
// never controls the owner's lifecycle.
type Owner struct {
	// ExecutionID identifies the goroutine or request the session
	// attaches to.
	ExecutionID string

	// Remote is set when the session evaluates on a peer node.
	Remote bool

	// Peer is the remote node id when Remote is set.
	Peer string
}

// Completer produces completion candidates for a partial input line.
type Completer interface {
	Complete(ctx context.Context, line string) []string
}

// Options configure a new session.
type Options struct {
	// Prefix is the context tag shown in prompts ("iex", "pry", "remsh").
	Prefix string

	// Node is the local node identity. Empty for a process that is not
	// on a bridge network, which selects the default prompt.
	Node string

	Owner Owner

	// Clock stamps creation. Nil uses the real clock.
	Clock clock.Clock
}

var sequence atomic.Uint64

// Session is one interactive read-eval-print session.
type Session struct {
	handle   Handle
	sequence uint64
	created  time.Time
	prefix   string
	node     string
	owner    Owner

	mu        sync.Mutex
	state     State
	counter   int
	history   []string
	completer Completer
}

// New creates a session in state Init.
func New(options Options) *Session {
	c := options.Clock
	if c == nil {
		c = clock.Real()
	}
	return &Session{
		handle:   NewHandle(),
		sequence: sequence.Add(1),
		created:  c.Now(),
		prefix:   options.Prefix,
		node:     options.Node,
		owner:    options.Owner,
		counter:  1,
	}
}

func (s *Session) Handle() Handle { return s.handle }
func (s *Session) Prefix() string { return s.prefix }
func (s *Session) Node() string { return s.node }
func (s *Session) Owner() Owner { return s.owner }
func (s *Session) Created() time.Time { return s.created }

// Alive reports whether the session has a live node identity.
func (s *Session) Alive() bool { return s.node != "" }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to state to. Illegal transitions return
// an error wrapping [ErrIllegalTransition] and leave the state unchanged.
func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !legal(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, to)
	}
	s.state = to
	return nil
}

// Counter returns the index the next evaluated line will get.
func (s *Session) Counter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// Record appends an evaluated line to the history and advances the
// counter. limit follows history_size: negative keeps everything, zero
// keeps nothing, positive keeps the newest limit lines. Terminal escape
// sequences are stripped before storing.
func (s *Session) Record(line string, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	switch {
	case limit == 0:
		s.history = nil
		return
	case limit > 0 && len(s.history) >= limit:
		drop := len(s.history) - limit + 1
		s.history = append(s.history[:0:0], s.history[drop:]...)
	}
	s.history = append(s.history, ansi.Strip(line))
}

// History returns a copy of the retained lines, oldest first.
func (s *Session) History() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.history...)
}

// SetCompleter installs the completion hook.
func (s *Session) SetCompleter(c Completer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completer = c
}

// Completer returns the installed completion hook, or nil.
func (s *Session) Completer() Completer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completer
}

// Prompt renders the session prompt from a settings snapshot.
func (s *Session) Prompt(snapshot settings.Snapshot) string {
	return settings.Prompt(snapshot.PromptFor(s.Alive()), s.Counter(), s.prefix, s.node)
}
