// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
)

// Kind classifies bridge failures.
type Kind int

const (
	// Unreachable: the peer has no known address or the dial failed.
	Unreachable Kind = iota + 1

	// Untrusted: the peer is absent from the keyring or failed the
	// authentication handshake.
	Untrusted

	// InstallRejected: the peer refused a driver unit.
	InstallRejected

	// Disconnected: the transport failed or the bridge was closed.
	Disconnected

	// SelfConnect: the peer id names the local node.
	SelfConnect

	// Protocol: the peer sent something the bridge cannot interpret,
	// or refused a request.
	Protocol
)

func (k Kind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Untrusted:
		return "untrusted"
	case InstallRejected:
		return "install rejected"
	case Disconnected:
		return "disconnected"
	case SelfConnect:
		return "self connect"
	case Protocol:
		return "protocol error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a bridge failure against one peer.
type Error struct {
	Kind Kind
	Peer string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("peer %q %s", e.Peer, e.Kind)
	}
	return fmt.Sprintf("peer %q %s: %v", e.Peer, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a bridge *Error of kind.
func IsKind(err error, kind Kind) bool {
	var bridgeError *Error
	return errors.As(err, &bridgeError) && bridgeError.Kind == kind
}

// Codes carried in an envelope when the host refuses a request.
const (
	codeInstallRejected = "install_rejected"
	codeNotInstalled    = "not_installed"
	codeNoSession       = "no_session"
	codeStartFailed     = "start_failed"
	codeBadRequest      = "bad_request"
)

// remoteError is a refusal reported by the host for one request.
type remoteError struct {
	code    string
	message string
}

func (e *remoteError) Error() string { return e.message }
