// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// DropdownOption is a single selectable item in a dropdown.
type DropdownOption struct {
	Label  string // Display text, matched by the filter.
	Detail string // Faint trailing text, not matched.
	Value  string // Returned on selection.
	Color  lipgloss.Color
}

// Dropdown is a vertical menu with a cursor and an optional fuzzy
// filter. The owner routes key input to MoveUp, MoveDown, SetFilter and
// reads Selected.
type Dropdown struct {
	Options []DropdownOption
	Cursor  int

	filter  string
	visible []int // indexes into Options, best match first
}

// NewDropdown returns a dropdown showing every option, cursor on
// initial (clamped).
func NewDropdown(options []DropdownOption, initial int) *Dropdown {
	dropdown := &Dropdown{Options: options}
	dropdown.SetFilter("")
	if initial >= 0 && initial < len(dropdown.visible) {
		dropdown.Cursor = initial
	}
	return dropdown
}

// SetFilter narrows the visible options to fuzzy matches of filter and
// resets the cursor to the best match.
func (dropdown *Dropdown) SetFilter(filter string) {
	dropdown.filter = filter
	dropdown.Cursor = 0
	dropdown.visible = dropdown.visible[:0]

	if filter == "" {
		for index := range dropdown.Options {
			dropdown.visible = append(dropdown.visible, index)
		}
		return
	}

	labels := make([]string, len(dropdown.Options))
	byLabel := make(map[string][]int, len(dropdown.Options))
	for index, option := range dropdown.Options {
		labels[index] = option.Label
		byLabel[option.Label] = append(byLabel[option.Label], index)
	}
	for _, label := range Rank(labels, filter) {
		dropdown.visible = append(dropdown.visible, byLabel[label]...)
	}
}

// Filter returns the current filter text.
func (dropdown *Dropdown) Filter() string { return dropdown.filter }

// Visible returns the number of options passing the filter.
func (dropdown *Dropdown) Visible() int { return len(dropdown.visible) }

// MoveUp moves the cursor up by one, wrapping to the bottom.
func (dropdown *Dropdown) MoveUp() {
	if len(dropdown.visible) == 0 {
		return
	}
	dropdown.Cursor--
	if dropdown.Cursor < 0 {
		dropdown.Cursor = len(dropdown.visible) - 1
	}
}

// MoveDown moves the cursor down by one, wrapping to the top.
func (dropdown *Dropdown) MoveDown() {
	if len(dropdown.visible) == 0 {
		return
	}
	dropdown.Cursor++
	if dropdown.Cursor >= len(dropdown.visible) {
		dropdown.Cursor = 0
	}
}

// Selected returns the highlighted option. ok is false when the filter
// hides every option.
func (dropdown *Dropdown) Selected() (DropdownOption, bool) {
	if len(dropdown.visible) == 0 {
		return DropdownOption{}, false
	}
	return dropdown.Options[dropdown.visible[dropdown.Cursor]], true
}

// Width returns the visible width of every rendered line.
func (dropdown *Dropdown) Width() int {
	widest := 0
	for _, option := range dropdown.Options {
		width := ansi.StringWidth(option.Label)
		if option.Detail != "" {
			width += 2 + ansi.StringWidth(option.Detail)
		}
		widest = max(widest, width)
	}
	// " > " marker prefix plus one column of padding on the right.
	return 3 + widest + 1
}

// Render produces one line per visible option, all the same width. The
// highlighted row uses the selection colors; matched characters use
// MatchForeground.
func (dropdown *Dropdown) Render(theme Theme) []string {
	width := dropdown.Width()
	base := lipgloss.NewStyle().Background(theme.MenuBackground).Foreground(theme.MenuForeground)
	selected := lipgloss.NewStyle().Background(theme.SelectedBackground).Foreground(theme.SelectedForeground)
	slab := NewSlab()
	pattern := []rune(dropdown.filter)

	lines := make([]string, 0, len(dropdown.visible))
	for row, index := range dropdown.visible {
		option := dropdown.Options[index]
		style := base
		marker := "   "
		if row == dropdown.Cursor {
			style = selected
			marker = " > "
		}

		label := highlight(option.Label, FuzzyMatch(option.Label, pattern, slab).Positions,
			style.Foreground(optionColor(option, theme)), style.Foreground(theme.MatchForeground))
		line := style.Render(marker) + label
		if option.Detail != "" {
			line += style.Render("  ") + style.Foreground(theme.FaintText).Render(option.Detail)
		}
		if pad := width - ansi.StringWidth(line); pad > 0 {
			line += style.Render(strings.Repeat(" ", pad))
		}
		lines = append(lines, line)
	}
	return lines
}

func optionColor(option DropdownOption, theme Theme) lipgloss.Color {
	if option.Color != "" {
		return option.Color
	}
	return theme.MenuForeground
}

// highlight renders text with the runes at positions in the match style.
func highlight(text string, positions []int, normal, match lipgloss.Style) string {
	if len(positions) == 0 {
		return normal.Render(text)
	}
	hit := make(map[int]bool, len(positions))
	for _, position := range positions {
		hit[position] = true
	}

	var builder strings.Builder
	for index, r := range []rune(text) {
		if hit[index] {
			builder.WriteString(match.Render(string(r)))
		} else {
			builder.WriteString(normal.Render(string(r)))
		}
	}
	return builder.String()
}
