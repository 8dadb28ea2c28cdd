// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nodekey

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/pry/lib/secret"
)

func generate(t *testing.T) *Key {
	t.Helper()
	key, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return key
}

func TestKeySigns(t *testing.T) {
	key := generate(t)
	message := []byte("challenge")
	signature := ed25519.Sign(key.Private(), message)
	if !ed25519.Verify(key.Public(), message, signature) {
		t.Fatal("signature from protected key does not verify")
	}
}

func TestSaveLoad_Plain(t *testing.T) {
	key := generate(t)
	path := filepath.Join(t.TempDir(), "node.key")

	if err := key.Save(path, "alpha", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer loaded.Close()
	if !bytes.Equal(loaded.Public(), key.Public()) {
		t.Error("loaded public key differs")
	}
	if !bytes.Equal(loaded.Private(), key.Private()) {
		t.Error("loaded private key differs")
	}
}

func TestSaveLoad_Sealed(t *testing.T) {
	key := generate(t)
	path := filepath.Join(t.TempDir(), "node.key")

	pass := func(value string) *secret.Buffer {
		buffer, err := secret.NewFromBytes([]byte(value))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { buffer.Close() })
		return buffer
	}

	if err := key.Save(path, "alpha", pass("pw")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := Load(path, nil); !errors.Is(err, ErrPassphraseRequired) {
		t.Fatalf("Load without passphrase: got %v, want ErrPassphraseRequired", err)
	}

	loaded, err := Load(path, pass("pw"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer loaded.Close()
	if !bytes.Equal(loaded.Public(), key.Public()) {
		t.Error("loaded public key differs")
	}
}

func TestAuthorizedKeyRoundTrip(t *testing.T) {
	key := generate(t)

	line, err := AuthorizedKey(key.Public(), "beta")
	if err != nil {
		t.Fatalf("AuthorizedKey: %v", err)
	}
	if !strings.HasPrefix(line, "ssh-ed25519 ") || !strings.HasSuffix(line, " beta") {
		t.Errorf("line = %q", line)
	}

	public, comment, err := ParseAuthorizedKey([]byte(line))
	if err != nil {
		t.Fatalf("ParseAuthorizedKey: %v", err)
	}
	if comment != "beta" {
		t.Errorf("comment = %q, want beta", comment)
	}
	if !bytes.Equal(public, key.Public()) {
		t.Error("public key differs after round trip")
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, err := Parse([]byte("not a key"), nil); err == nil {
		t.Fatal("expected error")
	}
}
