// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bureau-foundation/pry/lib/tui"
	"github.com/bureau-foundation/pry/pry"
	"github.com/bureau-foundation/pry/render"
	"github.com/bureau-foundation/pry/session"
	"github.com/bureau-foundation/pry/settings"
)

// builtin is a front-end command. A line whose first word names a
// builtin runs it instead of being evaluated.
type builtin struct {
	name    string
	usage   string
	summary string

	// remote marks commands handled locally in a bridged session. All
	// other input there goes to the peer.
	remote bool

	run func(ctx context.Context, f *Frontend, args []string) error
}

// builtins is populated in init because several commands print the
// list itself.
var builtins []builtin

func init() {
	builtins = []builtin{
		{name: "help", summary: "list the built-in commands", remote: true, run: runHelp},
		{name: "sessions", summary: "list live sessions", remote: true, run: runSessions},
		{name: "switch", usage: "[session|peer]", summary: "move the input to another session, or open the switch menu", remote: true, run: runSwitch},
		{name: "connect", usage: "<peer>", summary: "open a remote session on a trusted peer", remote: true, run: runConnect},
		{name: "disconnect", summary: "close the current remote session", remote: true, run: runDisconnect},
		{name: "continue", summary: "release the pried context and return to the previous session", run: runContinue},
		{name: "respawn", summary: "release the pried context and start a fresh session", run: runRespawn},
		{name: "history", summary: "show this session's input history", run: runHistory},
		{name: "config", usage: "[key [value] | reset <key>]", summary: "show or change display settings", run: runConfig},
		{name: "exit", summary: "leave the shell", remote: true, run: runExit},
	}
}

// Commands returns the built-in command names. Driver catalogs offer
// them to peers for completion.
func Commands() []string { return commandNames() }

func commandNames() []string {
	names := make([]string, len(builtins))
	for i, command := range builtins {
		names[i] = command.name
	}
	return names
}

// lookupCommand parses line as a builtin available in a frame of kind.
func lookupCommand(line string, kind frameKind) (builtin, []string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return builtin{}, nil, false
	}
	for _, command := range builtins {
		if command.name != fields[0] {
			continue
		}
		if kind == bridgedFrame && !command.remote {
			return builtin{}, nil, false
		}
		return command, fields[1:], true
	}
	return builtin{}, nil, false
}

func runHelp(_ context.Context, f *Frontend, _ []string) error {
	var text strings.Builder
	for _, command := range builtins {
		usage := command.name
		if command.usage != "" {
			usage += " " + command.usage
		}
		fmt.Fprintf(&text, "  %-36s %s\n", usage, command.summary)
	}
	f.info(strings.TrimRight(text.String(), "\n"))
	return nil
}

func runSessions(_ context.Context, f *Frontend, _ []string) error {
	active := f.Current()
	var text strings.Builder
	for _, s := range f.options.Registry.List() {
		marker := " "
		if s == active {
			marker = "*"
		}
		location := s.Prefix()
		if owner := s.Owner(); owner.Remote {
			location += "@" + owner.Peer
		}
		fmt.Fprintf(&text, "%s %s  %-20s %s\n", marker, s.Handle().Short(), location, s.State())
	}
	f.info(strings.TrimRight(text.String(), "\n"))
	return nil
}

const peerValuePrefix = "peer:"

func runSwitch(ctx context.Context, f *Frontend, args []string) error {
	var target string
	switch {
	case len(args) > 1:
		return errors.New("usage: switch [session|peer]")
	case len(args) == 1:
		target = args[0]
	case f.options.Menu == nil:
		return errors.New("usage: switch <session|peer>")
	default:
		chosen, err := f.options.Menu("switch session", f.switchOptions())
		if errors.Is(err, ErrMenuCancelled) {
			return nil
		}
		if err != nil {
			return err
		}
		target = chosen
	}

	if peer, ok := strings.CutPrefix(target, peerValuePrefix); ok {
		return f.connect(ctx, peer)
	}
	if fr, ok := f.findFrame(target); ok {
		f.setCurrent(ctx, fr)
		return nil
	}
	if f.isPeer(target) {
		return f.connect(ctx, target)
	}
	return fmt.Errorf("no session or peer %q", target)
}

// switchOptions lists this front-end's sessions followed by the
// configured peers.
func (f *Frontend) switchOptions() []tui.DropdownOption {
	f.mu.Lock()
	frames := append([]*frame(nil), f.frames...)
	active := f.current.session.Handle()
	f.mu.Unlock()

	sessions := make([]*session.Session, 0, len(frames))
	for _, fr := range frames {
		sessions = append(sessions, fr.session)
	}
	options := sessionOptions(sessions, active, tui.DefaultTheme)
	if f.options.Peers != nil {
		for _, peer := range f.options.Peers() {
			options = append(options, tui.DropdownOption{
				Label:  "connect " + peer,
				Detail: "remote",
				Value:  peerValuePrefix + peer,
				Color:  tui.DefaultTheme.StateBridged,
			})
		}
	}
	return options
}

// findFrame matches target against full or short session handles.
func (f *Frontend) findFrame(target string) (*frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fr := range f.frames {
		handle := fr.session.Handle()
		if string(handle) == target || handle.Short() == target {
			return fr, true
		}
	}
	return nil, false
}

func (f *Frontend) isPeer(target string) bool {
	if f.options.Peers == nil {
		return false
	}
	for _, peer := range f.options.Peers() {
		if peer == target {
			return true
		}
	}
	return false
}

func runConnect(ctx context.Context, f *Frontend, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: connect <peer>")
	}
	return f.connect(ctx, args[0])
}

func runDisconnect(ctx context.Context, f *Frontend, _ []string) error {
	f.mu.Lock()
	current := f.current
	f.mu.Unlock()
	if current.kind != bridgedFrame {
		return errors.New("not in a remote session")
	}
	peer := current.bridge.Peer()
	f.closeBridge(ctx, current)
	f.info(fmt.Sprintf("disconnected from %s", peer))
	return nil
}

func runContinue(ctx context.Context, f *Frontend, _ []string) error {
	f.mu.Lock()
	current := f.current
	f.mu.Unlock()
	if current.kind != priedFrame {
		return errors.New("no pried context is held by this session")
	}
	f.release(ctx, current, pry.ExitContinue)
	return nil
}

func runRespawn(ctx context.Context, f *Frontend, _ []string) error {
	f.respawn(ctx)
	return nil
}

func runHistory(_ context.Context, f *Frontend, _ []string) error {
	history := f.Current().History()
	if len(history) == 0 {
		f.info("no history")
		return nil
	}
	var text strings.Builder
	for i, line := range history {
		fmt.Fprintf(&text, "%4d  %s\n", i+1, line)
	}
	f.info(strings.TrimRight(text.String(), "\n"))
	return nil
}

func runConfig(_ context.Context, f *Frontend, args []string) error {
	store := f.options.Settings
	show := func(key string, value any) {
		f.info(key + ": " + render.Inspect(value, settings.Inspect{
			Limit: settings.Unlimited, PrintableLimit: settings.Unlimited,
		}))
	}

	switch {
	case len(args) == 0:
		all := store.All()
		keys := make([]string, 0, len(all))
		for key := range all {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			show(key, all[key])
		}
		return nil
	case args[0] == "reset":
		if len(args) != 2 {
			return errors.New("usage: config reset <key>")
		}
		return store.Reset(args[1])
	case len(args) == 1:
		value, ok := store.Get(args[0])
		if !ok {
			return &settings.ConfigError{Key: args[0], Reason: "unknown key"}
		}
		show(args[0], value)
		return nil
	}

	value, err := parseValue(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if err := store.Update(map[string]any{args[0]: value}); err != nil {
		return err
	}
	updated, _ := store.Get(args[0])
	show(args[0], updated)
	return nil
}

func runExit(context.Context, *Frontend, []string) error {
	return errQuit
}
