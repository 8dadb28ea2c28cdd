// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/pry/lib/tui"
	"github.com/bureau-foundation/pry/session"
)

// ErrMenuCancelled is returned by RunMenu when the operator dismisses
// the menu without choosing.
var ErrMenuCancelled = errors.New("menu cancelled")

// MenuFunc asks the operator to choose one of options and returns the
// chosen option's Value.
type MenuFunc func(title string, options []tui.DropdownOption) (string, error)

// menuKeys are the session picker's bindings. Printable keys feed the
// filter, so movement stays off the letter keys.
type menuKeys struct {
	Up     key.Binding
	Down   key.Binding
	Choose key.Binding
	Cancel key.Binding
	Erase  key.Binding
}

var defaultMenuKeys = menuKeys{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+p"),
		key.WithHelp("↑/C-p", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+n"),
		key.WithHelp("↓/C-n", "down"),
	),
	Choose: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "choose"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc", "ctrl+c"),
		key.WithHelp("esc", "cancel"),
	),
	Erase: key.NewBinding(
		key.WithKeys("backspace"),
		key.WithHelp("backspace", "erase filter"),
	),
}

// menuModel is a bubbletea model over a tui.Dropdown.
type menuModel struct {
	title    string
	dropdown *tui.Dropdown
	keys     menuKeys
	theme    tui.Theme

	chosen    string
	done      bool
	cancelled bool
}

func newMenuModel(title string, options []tui.DropdownOption) menuModel {
	return menuModel{
		title:    title,
		dropdown: tui.NewDropdown(options, 0),
		keys:     defaultMenuKeys,
		theme:    tui.DefaultTheme,
	}
}

func (model menuModel) Init() tea.Cmd { return nil }

func (model menuModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	keyMessage, ok := message.(tea.KeyMsg)
	if !ok {
		return model, nil
	}
	switch {
	case key.Matches(keyMessage, model.keys.Cancel):
		model.cancelled = true
		model.done = true
		return model, tea.Quit
	case key.Matches(keyMessage, model.keys.Choose):
		option, ok := model.dropdown.Selected()
		if !ok {
			return model, nil
		}
		model.chosen = option.Value
		model.done = true
		return model, tea.Quit
	case key.Matches(keyMessage, model.keys.Up):
		model.dropdown.MoveUp()
	case key.Matches(keyMessage, model.keys.Down):
		model.dropdown.MoveDown()
	case key.Matches(keyMessage, model.keys.Erase):
		filter := []rune(model.dropdown.Filter())
		if len(filter) > 0 {
			model.dropdown.SetFilter(string(filter[:len(filter)-1]))
		}
	case keyMessage.Type == tea.KeyRunes || keyMessage.Type == tea.KeySpace:
		model.dropdown.SetFilter(model.dropdown.Filter() + string(keyMessage.Runes))
	}
	return model, nil
}

func (model menuModel) View() string {
	if model.done {
		return ""
	}
	header := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground).Render(model.title)
	if filter := model.dropdown.Filter(); filter != "" {
		header += lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("  /" + filter)
	}
	lines := append([]string{header}, model.dropdown.Render(model.theme)...)
	if model.dropdown.Visible() == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("   no matches"))
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(
		fmt.Sprintf("%s  %s  %s", model.keys.Up.Help().Key+"/"+model.keys.Down.Help().Key,
			model.keys.Choose.Help().Key+" "+model.keys.Choose.Help().Desc,
			model.keys.Cancel.Help().Key+" "+model.keys.Cancel.Help().Desc)))
	return strings.Join(lines, "\n") + "\n"
}

// RunMenu shows a picker on out, reading keys from in, and returns the
// chosen option's Value.
func RunMenu(in io.Reader, out io.Writer, title string, options []tui.DropdownOption) (string, error) {
	if len(options) == 0 {
		return "", errors.New("nothing to choose from")
	}
	program := tea.NewProgram(newMenuModel(title, options), tea.WithInput(in), tea.WithOutput(out))
	final, err := program.Run()
	if err != nil {
		return "", fmt.Errorf("running menu: %w", err)
	}
	model := final.(menuModel)
	if model.cancelled || !model.done {
		return "", ErrMenuCancelled
	}
	return model.chosen, nil
}

// sessionOptions builds picker entries for the live sessions, marking
// the one holding the input.
func sessionOptions(sessions []*session.Session, active session.Handle, theme tui.Theme) []tui.DropdownOption {
	options := make([]tui.DropdownOption, 0, len(sessions))
	for _, s := range sessions {
		label := s.Handle().Short() + " " + s.Prefix()
		if s.Owner().Remote {
			label += "@" + s.Owner().Peer
		}
		detail := s.State().String()
		if s.Handle() == active {
			detail += ", active"
		}
		options = append(options, tui.DropdownOption{
			Label:  label,
			Detail: detail,
			Value:  string(s.Handle()),
			Color:  theme.StateColor(s.State().String()),
		})
	}
	return options
}
