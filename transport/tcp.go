// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net"
	"time"
)

// Compile-time interface checks.
var (
	_ Listener = (*TCPListener)(nil)
	_ Dialer   = (*TCPDialer)(nil)
)

// TCPListener accepts inbound TCP connections from peer nodes. It
// requires direct TCP reachability between nodes.
type TCPListener struct {
	listener net.Listener
}

// NewTCPListener listens on address (e.g. ":7891" or "127.0.0.1:0").
// Use port 0 for a random available port.
func NewTCPListener(address string) (*TCPListener, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &TCPListener{listener: listener}, nil
}

// Accept waits for the next connection.
func (l *TCPListener) Accept() (net.Conn, error) {
	return l.listener.Accept()
}

// Address returns the TCP address in "host:port" format.
func (l *TCPListener) Address() string {
	return l.listener.Addr().String()
}

// Close shuts down the TCP listener.
func (l *TCPListener) Close() error {
	return l.listener.Close()
}

// TCPDialer opens TCP connections to peer nodes.
type TCPDialer struct {
	// Timeout is the maximum time to wait for a TCP connection to be
	// established. Zero means no standalone timeout; only the context
	// deadline applies.
	Timeout time.Duration
}

// DialContext opens a TCP connection to the given address (host:port).
func (d *TCPDialer) DialContext(ctx context.Context, address string) (net.Conn, error) {
	return (&net.Dialer{Timeout: d.Timeout}).DialContext(ctx, "tcp", address)
}
