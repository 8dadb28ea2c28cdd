// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/bureau-foundation/pry/lib/secret"
)

// scryptWorkFactor is the log2 scrypt cost used when sealing. Opening
// accepts any work factor up to age's limit.
var scryptWorkFactor = 18

// ErrWrongPassphrase is returned by Open when the passphrase does not
// unlock the file.
var ErrWrongPassphrase = errors.New("sealed: wrong passphrase")

// IsSealed reports whether data is an armored age file.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte(armor.Header))
}

// Seal encrypts plaintext to passphrase and returns armored ciphertext.
func Seal(plaintext []byte, passphrase *secret.Buffer) ([]byte, error) {
	recipient, err := age.NewScryptRecipient(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: creating recipient: %w", err)
	}
	recipient.SetWorkFactor(scryptWorkFactor)

	var out bytes.Buffer
	armorWriter := armor.NewWriter(&out)
	writer, err := age.Encrypt(armorWriter, recipient)
	if err != nil {
		return nil, fmt.Errorf("sealed: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("sealed: writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("sealed: finalizing armor: %w", err)
	}
	return out.Bytes(), nil
}

// Open decrypts armored ciphertext with passphrase. The plaintext is
// returned in a secret.Buffer the caller must close.
func Open(ciphertext []byte, passphrase *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.NewScryptIdentity(passphrase.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: creating identity: %w", err)
	}

	reader, err := age.Decrypt(armor.NewReader(bytes.NewReader(ciphertext)), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) || errors.Is(err, age.ErrIncorrectIdentity) {
			return nil, ErrWrongPassphrase
		}
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}

	plaintext, err := io.ReadAll(reader)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: reading plaintext: %w", err)
	}
	return secret.NewFromBytes(plaintext)
}
