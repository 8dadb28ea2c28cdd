// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed seals small files at rest with an age passphrase
// (scrypt) recipient. It exists for the node private key: `prysh key generate
// --seal` writes an ASCII-armored age file, and the key loader opens it
// with a passphrase held in a [secret.Buffer].
//
// Depends on lib/secret for secure memory allocation.
package sealed
