// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/pry/driver"
	"github.com/bureau-foundation/pry/pry"
	"github.com/bureau-foundation/pry/transport"
)

// DefaultPrefix tags bridged sessions in prompts.
const DefaultPrefix = "remsh"

// Dialer opens bridges from the local node.
type Dialer struct {
	// Identity is the local node's id, key and keyring.
	Identity transport.Identity

	// Directory resolves peer ids to addresses.
	Directory *transport.Directory

	// Transport opens connections. Nil uses a TCPDialer.
	Transport transport.Dialer

	// Catalog supplies the driver units offered to peers.
	Catalog *driver.Catalog

	// Timeout bounds the whole connect sequence. Zero means only the
	// context applies.
	Timeout time.Duration

	// Prefix tags the remote session. Empty uses DefaultPrefix.
	Prefix string

	// Logger receives connection events. Nil uses slog.Default.
	Logger *slog.Logger
}

// Connect opens a bridge to peerID and starts a session on it. The
// sequence stops at the first failure: self check, trust check,
// directory lookup, dial, handshake, driver probe and install, session
// start. Nothing is dialed for a self or untrusted peer.
func (d *Dialer) Connect(ctx context.Context, peerID string) (*Bridge, error) {
	if peerID == d.Identity.ID {
		return nil, &Error{Kind: SelfConnect, Peer: peerID, Err: errors.New("refusing to bridge to the local node")}
	}
	if !d.Identity.Keyring.IsTrusted(peerID) {
		return nil, &Error{Kind: Untrusted, Peer: peerID, Err: transport.ErrUntrusted}
	}
	address, ok := d.Directory.Lookup(peerID)
	if !ok {
		return nil, &Error{Kind: Unreachable, Peer: peerID, Err: errors.New("no address in the peer directory")}
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	dialer := d.Transport
	if dialer == nil {
		dialer = &transport.TCPDialer{}
	}
	conn, err := dialer.DialContext(ctx, address)
	if err != nil {
		return nil, &Error{Kind: Unreachable, Peer: peerID, Err: err}
	}

	if _, err := transport.Authenticate(ctx, conn, d.Identity, peerID); err != nil {
		conn.Close()
		return nil, &Error{Kind: Untrusted, Peer: peerID, Err: err}
	}

	b := newBridge(peerID, conn, d.Catalog, d.logger())
	if _, err := b.ensure(ctx, driver.Remsh); err != nil {
		b.Disconnect()
		return nil, err
	}

	prefix := d.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if err := b.start(ctx, StartRequest{Prefix: prefix, ExecutionID: pry.ExecutionID(ctx)}); err != nil {
		b.Disconnect()
		if IsKind(err, Protocol) {
			return nil, fmt.Errorf("starting session: %w", err)
		}
		return nil, err
	}

	b.logger.Info("bridge connected",
		"address", address,
		"session", b.Handle(),
		"install_bytes", b.Stats().InstallBytes,
	)
	return b, nil
}

// logger returns the configured logger or the default.
func (d *Dialer) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
