// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides the terminal UI pieces shared by prysh's
// interactive surfaces: the color theme, the dropdown menu used by the
// session switcher, and fzf-backed fuzzy matching used for completion
// ranking and menu filtering.
//
// Components render to strings with lipgloss and measure with
// ansi.StringWidth, so they compose with a bubbletea View or print
// straight to a terminal.
package tui
