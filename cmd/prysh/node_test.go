// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/pry/cmd/prysh/cli"
	"github.com/bureau-foundation/pry/lib/config"
	"github.com/bureau-foundation/pry/lib/nodekey"
	"github.com/bureau-foundation/pry/lib/secret"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeNodeConfig writes a configuration rooted in a temporary
// directory and loads it. extra is appended to the YAML.
func writeNodeConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	root := t.TempDir()
	content := `
node:
  id: alpha
  key_file: ` + filepath.Join(root, "node.key") + `
  keyring: ` + filepath.Join(root, "authorized_keys") + `
paths:
  root: ` + root + `
  units: ` + filepath.Join(root, "units") + `
` + extra
	path := filepath.Join(root, "prysh.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	return cfg
}

func passphrase(t *testing.T, value string) PassphraseFunc {
	return func(string) (*secret.Buffer, error) {
		return secret.NewFromBytes([]byte(value))
	}
}

func authorizedLine(t *testing.T, peerID string) string {
	t.Helper()
	key, err := nodekey.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer key.Close()
	line, err := nodekey.AuthorizedKey(key.Public(), peerID)
	if err != nil {
		t.Fatalf("AuthorizedKey: %v", err)
	}
	return line
}

func TestOpenNodeWithoutKey(t *testing.T) {
	cfg := writeNodeConfig(t, "")
	n, err := openNode(cfg, discardLogger(), nil)
	if err != nil {
		t.Fatalf("openNode: %v", err)
	}
	defer n.close()

	if n.dialer != nil || n.host != nil {
		t.Error("a node without a key should not bridge")
	}
	if n.nodeID() != "" {
		t.Errorf("nodeID = %q, want empty", n.nodeID())
	}
	if n.peers() != nil {
		t.Errorf("peers = %v, want none", n.peers())
	}
	if err := n.serve(context.Background()); err != nil {
		t.Errorf("serve without a host: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.Units); err != nil {
		t.Errorf("units directory not created: %v", err)
	}
}

func TestOpenNodeWithSealedKey(t *testing.T) {
	cfg := writeNodeConfig(t, `
peers:
  beta:
    address: 127.0.0.1:7401
  gamma:
    address: 127.0.0.1:7402
settings:
  history_size: 5
`)
	cfg.Node.Listen = "127.0.0.1:0"

	phrase, err := secret.NewFromBytes([]byte("correct horse"))
	if err != nil {
		t.Fatal(err)
	}
	line, err := generateKey(cfg, phrase, false)
	phrase.Close()
	if err != nil {
		t.Fatalf("generateKey: %v", err)
	}
	if !strings.HasPrefix(line, "ssh-ed25519 ") || !strings.HasSuffix(line, " alpha") {
		t.Errorf("authorized line = %q", line)
	}
	if _, err := trustPeer(cfg, strings.NewReader(authorizedLine(t, "beta")+"\n")); err != nil {
		t.Fatalf("trustPeer: %v", err)
	}

	if _, err := openNode(cfg, discardLogger(), nil); err == nil {
		t.Fatal("openNode with a sealed key and no passphrase succeeded")
	}
	if _, err := openNode(cfg, discardLogger(), passphrase(t, "wrong")); err == nil {
		t.Fatal("openNode with the wrong passphrase succeeded")
	}

	n, err := openNode(cfg, discardLogger(), passphrase(t, "correct horse"))
	if err != nil {
		t.Fatalf("openNode: %v", err)
	}
	defer n.close()

	if n.nodeID() != "alpha" {
		t.Errorf("nodeID = %q, want alpha", n.nodeID())
	}
	if peers := n.peers(); len(peers) != 1 || peers[0] != "beta" {
		t.Errorf("peers = %v, want only the trusted beta", peers)
	}
	if n.dialer == nil || n.host == nil {
		t.Fatal("a listening node with a key should have a dialer and a host")
	}
	if address, ok := n.dialer.Directory.Lookup("gamma"); !ok || address != "127.0.0.1:7402" {
		t.Errorf("directory gamma = %q, %v", address, ok)
	}
	if snapshot := n.settings.Snapshot(); snapshot.HistorySize != 5 {
		t.Errorf("history size = %d, want 5 from configuration", snapshot.HistorySize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.serve(ctx); err != nil {
		t.Errorf("serve after cancel: %v", err)
	}
}

func TestGenerateKeyRefusesOverwrite(t *testing.T) {
	cfg := writeNodeConfig(t, "")
	if _, err := generateKey(cfg, nil, false); err != nil {
		t.Fatalf("generateKey: %v", err)
	}
	if _, err := generateKey(cfg, nil, false); err == nil || !strings.Contains(err.Error(), "--force") {
		t.Errorf("second generateKey error = %v, want a --force hint", err)
	}
	if _, err := generateKey(cfg, nil, true); err != nil {
		t.Errorf("generateKey --force: %v", err)
	}

	identity, err := loadIdentity(cfg, nil)
	if err != nil {
		t.Fatalf("loadIdentity of a plain key: %v", err)
	}
	defer identity.Key.Close()
	if identity.ID != "alpha" || len(identity.Keyring.IDs()) != 0 {
		t.Errorf("identity = %s with keyring %v", identity.ID, identity.Keyring.IDs())
	}
}

func TestTrustPeerErrors(t *testing.T) {
	cfg := writeNodeConfig(t, "")
	beta := authorizedLine(t, "beta")
	if _, err := trustPeer(cfg, strings.NewReader(beta)); err != nil {
		t.Fatalf("trustPeer: %v", err)
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"duplicate", beta, "already in"},
		{"self", authorizedLine(t, "alpha"), "is this node"},
		{"no comment", authorizedLine(t, ""), "no peer id"},
		{"garbage", "not a key", "parsing authorized key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := trustPeer(cfg, strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("trustPeer error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestEnvPassphrase(t *testing.T) {
	t.Setenv(passphraseEnv, "from the environment")
	phrase, err := envPassphrase(nil)("node.key")
	if err != nil {
		t.Fatalf("envPassphrase: %v", err)
	}
	defer phrase.Close()
	if phrase.String() != "from the environment" {
		t.Errorf("passphrase = %q", phrase.String())
	}
	if _, set := os.LookupEnv(passphraseEnv); set {
		t.Errorf("%s should be unset once read", passphraseEnv)
	}

	if _, err := envPassphrase(nil)("node.key"); err == nil || !strings.Contains(err.Error(), passphraseEnv) {
		t.Errorf("envPassphrase without a source error = %v", err)
	}

	prompted := false
	phrase, err = envPassphrase(func(string) (*secret.Buffer, error) {
		prompted = true
		return secret.NewFromBytes([]byte("typed"))
	})("node.key")
	if err != nil || !prompted {
		t.Fatalf("envPassphrase fallback: prompted=%v err=%v", prompted, err)
	}
	phrase.Close()
}

func TestCheckConfig(t *testing.T) {
	cfg := config.Default()
	var out bytes.Buffer
	if err := checkConfig(cfg, &out); err != nil {
		t.Fatalf("checkConfig on defaults: %v", err)
	}
	if !strings.Contains(out.String(), "configuration ok") {
		t.Errorf("output = %q", out.String())
	}

	cfg.Pry.Timeout = "-1s"
	cfg.Settings = map[string]any{"no_such_key": 1}
	out.Reset()
	err := checkConfig(cfg, &out)
	var exit *cli.ExitError
	if !errors.As(err, &exit) || exit.ExitCode() != 2 {
		t.Fatalf("checkConfig error = %v, want exit code 2", err)
	}
	for _, want := range []string{"pry.timeout", `settings: unknown configuration key "no_such_key"`} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestLineConsole(t *testing.T) {
	var out bytes.Buffer
	console := newLineConsole(strings.NewReader("a = 1\na\n"), &out)
	console.SetPrompt("ignored>")
	for _, want := range []string{"a = 1", "a"} {
		line, err := console.ReadLine()
		if err != nil || line != want {
			t.Fatalf("ReadLine = %q, %v; want %q", line, err, want)
		}
	}
	if _, err := console.ReadLine(); !errors.Is(err, io.EOF) {
		t.Errorf("ReadLine at end = %v, want EOF", err)
	}
	console.Write([]byte("result\n"))
	if out.String() != "result\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRootCommandTree(t *testing.T) {
	var help bytes.Buffer
	command := root()
	command.HelpOutput = &help
	if err := command.Execute(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"shell", "connect", "demo", "serve", "key", "config", "version"} {
		if !strings.Contains(help.String(), "  "+name) {
			t.Errorf("root help does not list %s:\n%s", name, help.String())
		}
	}

	err := command.Execute(context.Background(), []string{"key", "genrate"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "generate"`) {
		t.Errorf("typo error = %v", err)
	}
}
