// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material outside the Go heap.
//
// A [Buffer] is an anonymous mmap region locked into RAM (mlock) and
// excluded from core dumps (MADV_DONTDUMP). Close zeros, unlocks and
// unmaps it. The node's Ed25519 private key and the passphrase that
// unseals it live in Buffers for the lifetime of the process; signing
// reads the key through [Buffer.Bytes] without a heap copy.
//
// Depends on golang.org/x/sys/unix. No pry-internal dependencies.
package secret
