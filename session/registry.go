// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"log/slog"
	"sort"
	"sync"
)

// Registry maps handles to live sessions. All methods are safe for
// concurrent use.
type Registry struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[Handle]*Session
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger, sessions: make(map[Handle]*Session)}
}

// Register inserts s and returns its handle.
func (r *Registry) Register(s *Session) Handle {
	r.mu.Lock()
	r.sessions[s.handle] = s
	r.mu.Unlock()

	r.logger.Debug("session registered",
		"handle", s.handle, "prefix", s.prefix, "state", s.State().String())
	return s.handle
}

// Lookup returns the session for h. Unknown and terminated sessions
// miss.
func (r *Registry) Lookup(h Handle) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[h]
	r.mu.RUnlock()
	if !ok || s.State() == Terminated {
		return nil, false
	}
	return s, true
}

// Unregister removes h and marks its session Terminated. Unknown
// handles are ignored.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	s, ok := r.sessions[h]
	delete(r.sessions, h)
	r.mu.Unlock()

	if !ok {
		return
	}
	s.Transition(Terminated)
	r.logger.Debug("session unregistered", "handle", h)
}

// List returns live sessions in creation order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	live := sessions[:0]
	for _, s := range sessions {
		if s.State() != Terminated {
			live = append(live, s)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].sequence < live[j].sequence })
	return live
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
