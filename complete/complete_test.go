// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package complete

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/bureau-foundation/pry/driver"
	"github.com/bureau-foundation/pry/session"
)

var commands = []string{"respawn", "continue", "exit", "help", "sessions"}

func TestLastWord(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"", ""},
		{"res", "res"},
		{"x = con", "con"},
		{"inspect(user.na", "user.na"},
		{"trailing ", ""},
	}
	for _, test := range tests {
		if got := LastWord(test.line); got != test.want {
			t.Errorf("LastWord(%q) = %q, want %q", test.line, got, test.want)
		}
	}
}

func TestSuggest(t *testing.T) {
	if got := Suggest("x = con", commands); !reflect.DeepEqual(got, []string{"continue"}) {
		t.Errorf("Suggest(con) = %v", got)
	}

	got := Suggest("res", commands)
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"respawn"}) {
		t.Errorf("Suggest(res) = %v", got)
	}

	if got := Suggest("zzz", commands); len(got) != 0 {
		t.Errorf("Suggest(zzz) = %v, want nothing", got)
	}
	if got := Suggest("", commands); len(got) != len(commands) {
		t.Errorf("Suggest(\"\") = %v, want every command", got)
	}
}

func TestLocalIncludesBindings(t *testing.T) {
	local := &Local{
		Commands: commands,
		Bindings: func() []string { return []string{"request", "count"} },
	}
	got := local.Complete(context.Background(), "req")
	if len(got) == 0 || got[0] != "request" {
		t.Errorf("Complete(req) = %v, want request first", got)
	}
}

// fakePeer records EnsureUnit calls and serves canned completions.
type fakePeer struct {
	ensureErr   error
	completeErr error
	ensured     []string
	candidates  []string
}

func (p *fakePeer) EnsureUnit(_ context.Context, name string) error {
	p.ensured = append(p.ensured, name)
	return p.ensureErr
}

func (p *fakePeer) Complete(context.Context, string) ([]string, error) {
	return p.candidates, p.completeErr
}

func remoteSession() *session.Session {
	return session.New(session.Options{
		Prefix: "remsh",
		Node:   "beta",
		Owner:  session.Owner{Remote: true, Peer: "beta"},
	})
}

func TestInstallLocal(t *testing.T) {
	s := session.New(session.Options{Prefix: "iex"})
	installer := &Installer{
		Commands: commands,
		Bindings: func(*session.Session) []string { return []string{"answer"} },
	}
	completer := installer.Install(context.Background(), s)
	if _, ok := completer.(*Local); !ok {
		t.Fatalf("local session got %T", completer)
	}
	if s.Completer() != completer {
		t.Error("completer not attached to session")
	}
	if got := completer.Complete(context.Background(), "ans"); len(got) == 0 || got[0] != "answer" {
		t.Errorf("Complete(ans) = %v", got)
	}
}

func TestInstallRemote(t *testing.T) {
	peer := &fakePeer{candidates: []string{"help"}}
	installer := &Installer{
		PeerFor: func(*session.Session) (Peer, bool) { return peer, true },
	}
	s := remoteSession()

	completer := installer.Install(context.Background(), s)
	if _, ok := completer.(*Remote); !ok {
		t.Fatalf("remote session got %T", completer)
	}
	if !reflect.DeepEqual(peer.ensured, []string{driver.Complete}) {
		t.Errorf("ensured units = %v", peer.ensured)
	}
	if got := completer.Complete(context.Background(), "he"); !reflect.DeepEqual(got, []string{"help"}) {
		t.Errorf("Complete = %v", got)
	}

	peer.completeErr = errors.New("bridge closed")
	if got := completer.Complete(context.Background(), "he"); got != nil {
		t.Errorf("failed remote completion = %v, want nil", got)
	}
}

func TestInstallRemoteFallsBackToNone(t *testing.T) {
	tests := []struct {
		name    string
		peerFor func(*session.Session) (Peer, bool)
	}{
		{"no resolver", nil},
		{"no bridge", func(*session.Session) (Peer, bool) { return nil, false }},
		{"install refused", func(*session.Session) (Peer, bool) {
			return &fakePeer{ensureErr: errors.New("install rejected")}, true
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := remoteSession()
			completer := (&Installer{PeerFor: test.peerFor}).Install(context.Background(), s)
			if _, ok := completer.(None); !ok {
				t.Fatalf("got %T, want None", completer)
			}
			if got := completer.Complete(context.Background(), "x"); got != nil {
				t.Errorf("None suggested %v", got)
			}
		})
	}
}

func TestCallback(t *testing.T) {
	s := session.New(session.Options{Prefix: "iex"})
	var shown []string
	callback := Callback(context.Background(), s, func(candidates []string) { shown = candidates })

	if _, _, ok := callback("con", 3, '\t'); ok {
		t.Fatal("callback completed without a completer")
	}

	s.SetCompleter(&Local{Commands: commands})

	if _, _, ok := callback("con", 3, 'a'); ok {
		t.Error("non-tab key should not complete")
	}

	line, pos, ok := callback("x = con rest", 7, '\t')
	if !ok || line != "x = continue rest" || pos != len("x = continue") {
		t.Errorf("single candidate: %q %d %v", line, pos, ok)
	}

	s.SetCompleter(&Local{Commands: []string{"session_one", "session_two"}})
	line, pos, ok = callback("sess", 4, '\t')
	if !ok || line != "session_" || pos != len("session_") {
		t.Errorf("common prefix: %q %d %v", line, pos, ok)
	}
	if len(shown) != 2 {
		t.Errorf("shown = %v, want both candidates", shown)
	}

	if _, _, ok := callback("zzz", 3, '\t'); ok {
		t.Error("no candidates should not complete")
	}
}
