// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package nodekey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/bureau-foundation/pry/lib/sealed"
	"github.com/bureau-foundation/pry/lib/secret"
)

// ErrPassphraseRequired is returned when a key file is encrypted and no
// passphrase was supplied.
var ErrPassphraseRequired = errors.New("nodekey: key file is encrypted; a passphrase is required")

// Key is a loaded Ed25519 keypair. Close releases the private half.
type Key struct {
	public  ed25519.PublicKey
	private *secret.Buffer
}

// Generate creates a fresh keypair.
func Generate() (*Key, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("nodekey: generating key: %w", err)
	}
	return fromPrivate(public, private)
}

// fromPrivate moves private into protected memory and zeros it.
func fromPrivate(public ed25519.PublicKey, private ed25519.PrivateKey) (*Key, error) {
	buffer, err := secret.NewFromBytes(private)
	if err != nil {
		return nil, fmt.Errorf("nodekey: protecting private key: %w", err)
	}
	return &Key{public: public, private: buffer}, nil
}

// Public returns the public key.
func (k *Key) Public() ed25519.PublicKey { return k.public }

// Private returns the private key backed by protected memory. It is
// only valid until Close.
func (k *Key) Private() ed25519.PrivateKey {
	return ed25519.PrivateKey(k.private.Bytes())
}

// Close zeros the private key.
func (k *Key) Close() error { return k.private.Close() }

// MarshalOpenSSH encodes the private key as an OpenSSH PEM file.
func (k *Key) MarshalOpenSSH(comment string) ([]byte, error) {
	block, err := ssh.MarshalPrivateKey(k.Private(), comment)
	if err != nil {
		return nil, fmt.Errorf("nodekey: encoding key: %w", err)
	}
	return pem.EncodeToMemory(block), nil
}

// Save writes the key to path with mode 0600. With a non-nil passphrase
// the file is sealed with age.
func (k *Key) Save(path, comment string, passphrase *secret.Buffer) error {
	data, err := k.MarshalOpenSSH(comment)
	if err != nil {
		return err
	}
	defer secret.Zero(data)

	if passphrase != nil {
		data, err = sealed.Seal(data, passphrase)
		if err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("nodekey: writing %s: %w", path, err)
	}
	return nil
}

// Load reads a key file. passphrase may be nil for unencrypted files.
func Load(path string, passphrase *secret.Buffer) (*Key, error) {
	data, err := secret.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("nodekey: reading %s: %w", path, err)
	}
	defer data.Close()

	key, err := Parse(data.Bytes(), passphrase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// Parse decodes an OpenSSH private key, unwrapping an age seal first if
// present. Only Ed25519 keys are accepted.
func Parse(data []byte, passphrase *secret.Buffer) (*Key, error) {
	if sealed.IsSealed(data) {
		if passphrase == nil {
			return nil, ErrPassphraseRequired
		}
		opened, err := sealed.Open(data, passphrase)
		if err != nil {
			return nil, err
		}
		defer opened.Close()
		data = opened.Bytes()
	}

	raw, err := ssh.ParseRawPrivateKey(data)
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		if passphrase == nil {
			return nil, ErrPassphraseRequired
		}
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase.Bytes())
	}
	if err != nil {
		return nil, fmt.Errorf("nodekey: parsing key: %w", err)
	}

	var private ed25519.PrivateKey
	switch typed := raw.(type) {
	case *ed25519.PrivateKey:
		private = *typed
	case ed25519.PrivateKey:
		private = typed
	default:
		return nil, fmt.Errorf("nodekey: unsupported key type %T; node keys must be Ed25519", raw)
	}
	public := private.Public().(ed25519.PublicKey)
	return fromPrivate(append(ed25519.PublicKey(nil), public...), private)
}

// AuthorizedKey formats a public key as an authorized_keys line with the
// peer id as its comment.
func AuthorizedKey(public ed25519.PublicKey, peerID string) (string, error) {
	sshKey, err := ssh.NewPublicKey(public)
	if err != nil {
		return "", fmt.Errorf("nodekey: encoding public key: %w", err)
	}
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshKey)))
	if peerID != "" {
		line += " " + peerID
	}
	return line, nil
}

// ParseAuthorizedKey parses one authorized_keys line into its Ed25519
// key and comment.
func ParseAuthorizedKey(line []byte) (ed25519.PublicKey, string, error) {
	sshKey, comment, _, _, err := ssh.ParseAuthorizedKey(line)
	if err != nil {
		return nil, "", fmt.Errorf("nodekey: parsing authorized key: %w", err)
	}
	cryptoKey, ok := sshKey.(ssh.CryptoPublicKey)
	if !ok {
		return nil, "", fmt.Errorf("nodekey: key type %s has no crypto form", sshKey.Type())
	}
	public, ok := cryptoKey.CryptoPublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, "", fmt.Errorf("nodekey: key type %s is not Ed25519", sshKey.Type())
	}
	return public, comment, nil
}
