// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package nodekey manages a node's Ed25519 identity key.
//
// Keys are stored as OpenSSH private key files, so `ssh-keygen -t
// ed25519` output works unchanged (including ssh-keygen's own passphrase
// encryption). A key file may also be sealed with an age passphrase
// by `prysh key generate --seal`. Once loaded, the private key lives in a
// [secret.Buffer] and signing reads it in place.
//
// Public keys are exchanged as authorized_keys lines whose comment is
// the peer id; see transport.LoadKeyring.
package nodekey
