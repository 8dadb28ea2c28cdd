// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"strconv"
	"strings"
)

// Unlimited is the Inspect limit value for "infinity".
const Unlimited = -1

// Snapshot is a typed, immutable view of one published configuration.
type Snapshot struct {
	Colors        Colors
	Inspect       Inspect
	DefaultPrompt string
	AlivePrompt   string

	// HistorySize bounds session history. Negative is unbounded, zero
	// disables history.
	HistorySize int
}

// Colors is the "colors" key.
type Colors struct {
	Enabled bool
	roles   map[string]string
}

// Role returns the display-attribute string for a color role, or ""
// when colors are disabled or the role is unset.
func (c Colors) Role(role string) string {
	if !c.Enabled {
		return ""
	}
	return c.roles[role]
}

// Inspect is the "inspect" key. Limit and PrintableLimit are
// [Unlimited] for "infinity".
type Inspect struct {
	Limit          int
	Width          int
	Pretty         bool
	SyntaxColors   bool
	PrintableLimit int
}

// PromptFor picks the alive prompt for sessions with a live peer
// identity and the default prompt otherwise.
func (s Snapshot) PromptFor(alive bool) string {
	if alive {
		return s.AlivePrompt
	}
	return s.DefaultPrompt
}

// Prompt expands %counter, %prefix and %node in template.
func Prompt(template string, counter int, prefix, node string) string {
	return strings.NewReplacer(
		"%counter", strconv.Itoa(counter),
		"%prefix", prefix,
		"%node", node,
	).Replace(template)
}

// decodeSnapshot reads already-validated values, so type assertions
// cannot fail.
func decodeSnapshot(values map[string]any) Snapshot {
	colors := values[KeyColors].(map[string]any)
	inspect := values[KeyInspect].(map[string]any)

	roles := make(map[string]string, len(colors))
	for key, value := range colors {
		if spec, ok := value.(string); ok {
			roles[key] = spec
		}
	}
	enabled, _ := colors["enabled"].(bool)
	pretty, _ := inspect["pretty"].(bool)
	syntax, _ := inspect["syntax_colors"].(bool)
	width, _ := inspect["width"].(int)

	return Snapshot{
		Colors: Colors{Enabled: enabled, roles: roles},
		Inspect: Inspect{
			Limit:          limitValue(inspect["limit"]),
			Width:          width,
			Pretty:         pretty,
			SyntaxColors:   syntax,
			PrintableLimit: limitValue(inspect["printable_limit"]),
		},
		DefaultPrompt: values[KeyDefaultPrompt].(string),
		AlivePrompt:   values[KeyAlivePrompt].(string),
		HistorySize:   values[KeyHistorySize].(int),
	}
}

func limitValue(value any) int {
	if n, ok := value.(int); ok {
		return n
	}
	return Unlimited
}
