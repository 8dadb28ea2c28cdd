// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the palette for prysh's menus. All colors are lipgloss
// ANSI 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Session state colors, keyed by the state's display name.
	StateRunning    lipgloss.Color
	StateSuspended  lipgloss.Color
	StateBridged    lipgloss.Color
	StateTerminated lipgloss.Color

	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	MatchForeground lipgloss.Color // Characters hit by a fuzzy filter.
	MenuBackground  lipgloss.Color
	MenuForeground  lipgloss.Color
}

// StateColor returns the color for a session state name. Unknown names
// (including "init") use FaintText.
func (theme Theme) StateColor(state string) lipgloss.Color {
	switch state {
	case "running":
		return theme.StateRunning
	case "suspended":
		return theme.StateSuspended
	case "bridged":
		return theme.StateBridged
	case "terminated":
		return theme.StateTerminated
	default:
		return theme.FaintText
	}
}

// DefaultTheme is tuned for 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	StateRunning:    lipgloss.Color("114"), // green
	StateSuspended:  lipgloss.Color("220"), // amber
	StateBridged:    lipgloss.Color("75"),  // blue
	StateTerminated: lipgloss.Color("240"), // dim gray

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	MatchForeground: lipgloss.Color("208"),
	MenuBackground:  lipgloss.Color("237"),
	MenuForeground:  lipgloss.Color("252"),
}
