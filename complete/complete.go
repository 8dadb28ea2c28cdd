// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package complete

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/bureau-foundation/pry/lib/tui"
	"github.com/bureau-foundation/pry/session"
)

// Compile-time interface checks.
var (
	_ session.Completer = (*Local)(nil)
	_ session.Completer = (*Remote)(nil)
	_ session.Completer = None{}
)

// Suggest ranks candidates against the word under the cursor at the
// end of line. Candidates that do not match are dropped.
func Suggest(line string, candidates []string) []string {
	return tui.Rank(candidates, LastWord(line))
}

// LastWord returns the identifier being typed at the end of line.
func LastWord(line string) string {
	start := strings.LastIndexFunc(line, func(r rune) bool {
		return !isWordRune(r)
	})
	return line[start+1:]
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.'
}

// Local completes from built-in commands and the session's bindings.
type Local struct {
	Commands []string

	// Bindings returns the binding names currently in scope. Nil means
	// none.
	Bindings func() []string
}

// Complete implements session.Completer.
func (l *Local) Complete(_ context.Context, line string) []string {
	candidates := append([]string(nil), l.Commands...)
	if l.Bindings != nil {
		candidates = append(candidates, l.Bindings()...)
	}
	return Suggest(line, candidates)
}

// Peer is the part of a bridge the remote completer needs.
type Peer interface {
	EnsureUnit(ctx context.Context, name string) error
	Complete(ctx context.Context, line string) ([]string, error)
}

// Remote completes by asking the peer a session is bridged to.
type Remote struct {
	Peer   Peer
	Logger *slog.Logger
}

// Complete implements session.Completer. Failures yield no candidates.
func (r *Remote) Complete(ctx context.Context, line string) []string {
	candidates, err := r.Peer.Complete(ctx, line)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Debug("remote completion failed", "error", err)
		}
		return nil
	}
	return candidates
}

// None never suggests anything.
type None struct{}

// Complete implements session.Completer.
func (None) Complete(context.Context, string) []string { return nil }
