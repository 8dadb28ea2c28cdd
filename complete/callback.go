// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package complete

import (
	"context"
	"strings"

	"github.com/bureau-foundation/pry/session"
)

// Callback returns a function suitable for term.Terminal's
// AutoCompleteCallback. On tab it completes the word before the cursor
// with the single candidate, or with the longest prefix every
// candidate shares. When several candidates remain, show (if non-nil)
// receives them.
func Callback(ctx context.Context, s *session.Session, show func([]string)) func(line string, pos int, key rune) (string, int, bool) {
	return func(line string, pos int, key rune) (string, int, bool) {
		if key != '\t' {
			return "", 0, false
		}
		completer := s.Completer()
		if completer == nil {
			return "", 0, false
		}
		head, tail := line[:pos], line[pos:]
		word := LastWord(head)
		candidates := completer.Complete(ctx, head)
		if len(candidates) == 0 {
			return "", 0, false
		}

		replacement := candidates[0]
		if len(candidates) > 1 {
			replacement = commonPrefix(candidates)
			if show != nil {
				show(candidates)
			}
			if len(replacement) <= len(word) || !strings.HasPrefix(replacement, word) {
				return "", 0, false
			}
		}

		newHead := head[:len(head)-len(word)] + replacement
		return newHead + tail, len(newHead), true
	}
}

func commonPrefix(values []string) string {
	prefix := values[0]
	for _, value := range values[1:] {
		for !strings.HasPrefix(value, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
