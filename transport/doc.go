// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries bridge traffic between pry nodes.
//
// [Listener] accepts inbound connections and [Dialer] opens outbound
// ones; [TCPListener] and [TCPDialer] are the implementations, and the
// bridge package layers its framed protocol on the resulting net.Conn.
//
// Every connection starts with [Authenticate]: both sides send a hello
// naming their node id, the dialing side checks it reached the peer it
// asked for, and then both run a mutual Ed25519 challenge-response.
// Each side signs the other's random nonce concatenated with the other's
// claimed id, so a signature produced for one node cannot be replayed
// against another. Public keys come from a [Keyring] loaded from an
// OpenSSH authorized_keys file whose comment field is the peer id; a
// peer absent from the keyring is untrusted and the handshake fails with
// [ErrUntrusted] before any nonce is exchanged.
//
// [Directory] maps peer ids to dial addresses. Ids are opaque strings;
// the directory and keyring are populated from node configuration.
package transport
