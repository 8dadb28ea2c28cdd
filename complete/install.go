// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package complete

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/pry/driver"
	"github.com/bureau-foundation/pry/session"
)

// DefaultInstallTimeout bounds the on-demand install of pry.complete.
const DefaultInstallTimeout = 5 * time.Second

// Installer attaches completers to sessions.
type Installer struct {
	// Commands are the built-in command names offered locally.
	Commands []string

	// Bindings returns the binding names visible to a local session.
	Bindings func(*session.Session) []string

	// PeerFor returns the bridge serving a remote session.
	PeerFor func(*session.Session) (Peer, bool)

	// Timeout bounds the remote install. Zero uses
	// DefaultInstallTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Install picks and attaches a completer for s and returns it. It never
// fails: a remote session whose peer cannot serve completion gets None.
func (i *Installer) Install(ctx context.Context, s *session.Session) session.Completer {
	logger := i.Logger
	if logger == nil {
		logger = slog.Default()
	}
	completer := i.choose(ctx, s, logger)
	s.SetCompleter(completer)
	return completer
}

func (i *Installer) choose(ctx context.Context, s *session.Session, logger *slog.Logger) session.Completer {
	owner := s.Owner()
	if !owner.Remote {
		local := &Local{Commands: i.Commands}
		if i.Bindings != nil {
			local.Bindings = func() []string { return i.Bindings(s) }
		}
		return local
	}

	if i.PeerFor == nil {
		return None{}
	}
	peer, ok := i.PeerFor(s)
	if !ok {
		logger.Warn("no bridge for remote session, completion disabled", "session", s.Handle().Short(), "peer", owner.Peer)
		return None{}
	}

	timeout := i.Timeout
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := peer.EnsureUnit(ctx, driver.Complete); err != nil {
		logger.Warn("completion unavailable on peer", "peer", owner.Peer, "error", err)
		return None{}
	}
	return &Remote{Peer: peer, Logger: logger}
}
