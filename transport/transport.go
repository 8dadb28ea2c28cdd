// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
)

// Listener accepts inbound connections from peer nodes.
type Listener interface {
	// Accept blocks until a connection arrives or the listener closes.
	Accept() (net.Conn, error)

	// Address returns the address peers dial to reach this listener.
	Address() string

	// Close stops the listener. Blocked Accept calls return an error.
	Close() error
}

// Dialer opens connections to peer nodes. The address format matches
// what the peer's Listener.Address returns.
type Dialer interface {
	DialContext(ctx context.Context, address string) (net.Conn, error)
}
