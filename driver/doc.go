// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package driver defines the small capability units a node ships to a
// peer on demand, and the peer-side store that installs them.
//
// A [Unit] carries a CBOR [Manifest] describing one capability: the
// bridged session protocol (pry.remsh) or the completion server
// (pry.complete). Its digest is a domain-separated BLAKE3 keyed hash of
// the uncompressed payload; the payload travels zstd-compressed.
//
// The connecting node probes for a unit by [Ref] before sending it, so
// a peer that already holds the same digest costs zero install bytes.
// On the peer, [Store.Install] stages a unit provisionally. The staging
// [Txn] is committed once the session that needed it starts, and rolled
// back if that start fails or the connection drops first.
package driver
