// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/bureau-foundation/pry/lib/nodekey"
)

// ErrUntrusted is returned when a peer is absent from the keyring or
// fails to prove possession of its key.
var ErrUntrusted = errors.New("peer not trusted")

// Keyring holds the public keys of trusted peers. Safe for concurrent
// use.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]ed25519.PublicKey)}
}

// LoadKeyring reads an authorized_keys file. A missing file yields an
// empty keyring: a node without one trusts nobody.
func LoadKeyring(path string) (*Keyring, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewKeyring(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	defer file.Close()

	keyring, err := ParseKeyring(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return keyring, nil
}

// ParseKeyring reads authorized_keys lines of the form
// "ssh-ed25519 <base64> <peer-id>". Blank lines and # comments are
// skipped.
func ParseKeyring(r io.Reader) (*Keyring, error) {
	keyring := NewKeyring()
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		public, peerID, err := nodekey.ParseAuthorizedKey(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		if peerID == "" {
			return nil, fmt.Errorf("line %d: key has no peer id comment", lineNumber)
		}
		keyring.Add(peerID, public)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	return keyring, nil
}

// Add trusts public as the key of peerID, replacing any previous key.
func (k *Keyring) Add(peerID string, public ed25519.PublicKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[peerID] = public
}

// IsTrusted reports whether peerID has a key in the keyring.
func (k *Keyring) IsTrusted(peerID string) bool {
	_, ok := k.PublicKey(peerID)
	return ok
}

// PublicKey returns the trusted key for peerID.
func (k *Keyring) PublicKey(peerID string) (ed25519.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	public, ok := k.keys[peerID]
	return public, ok
}

// IDs returns the trusted peer ids, sorted.
func (k *Keyring) IDs() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VerifyPeer checks that signature is peerID's signature of message.
func (k *Keyring) VerifyPeer(peerID string, message, signature []byte) error {
	public, ok := k.PublicKey(peerID)
	if !ok {
		return fmt.Errorf("%w: %q has no key", ErrUntrusted, peerID)
	}
	if !ed25519.Verify(public, message, signature) {
		return fmt.Errorf("%w: signature from %q does not verify", ErrUntrusted, peerID)
	}
	return nil
}
