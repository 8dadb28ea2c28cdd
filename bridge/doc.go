// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge attaches a local session to an evaluator running on a
// peer node.
//
// The client side is [Dialer.Connect], which returns a [Bridge]. Connect
// refuses to dial the local node, checks the peer against the keyring,
// resolves its address through the directory, dials, and authenticates
// with the transport handshake. It then probes the peer for the
// pry.remsh driver unit, installs it provisionally when absent, and
// starts a bridged session; starting commits the provisional install.
// A peer that already holds the unit receives zero install bytes.
//
// The peer side is [Host]. It serves each connection from one
// goroutine, so requests on a connection are answered in order. A
// provisional install that is not committed by the time the connection
// ends, or whose session fails to start, is rolled back.
//
// On the wire every message is a frame: a 5-byte header (type byte,
// big-endian uint32 payload length) followed by a CBOR envelope carrying
// the request sequence number and the typed body. Payloads larger than
// 64 KiB are LZ4 compressed and marked by the high bit of the type byte.
//
// A [Bridge] keeps its outstanding requests in a FIFO queue. One reader
// goroutine matches each response to the head of the queue and checks
// its sequence number. Any transport failure closes the bridge and fails
// every waiter with a [Disconnected] error; a bridge is never
// reconnected. Other bridges are unaffected.
package bridge
