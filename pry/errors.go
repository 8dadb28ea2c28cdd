// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pry

import (
	"errors"
	"fmt"
)

// ErrTimedOut is returned when no host granted the request before the
// timeout.
var ErrTimedOut = errors.New("pry request timed out")

// ErrResolved is returned by Grant and Decline when the request was
// already resolved, typically by its timeout.
var ErrResolved = errors.New("pry request already resolved")

// Reason says why a request was rejected.
type Reason int

const (
	// SelfPry: the request came from the execution context that owns
	// the session currently holding the input.
	SelfPry Reason = iota + 1

	// NoInteractiveHost: no front-end is attached, or it has no
	// interactive terminal.
	NoInteractiveHost

	// Declined: the operator refused the confirmation prompt.
	Declined
)

func (r Reason) String() string {
	switch r {
	case SelfPry:
		return "self pry"
	case NoInteractiveHost:
		return "no interactive host"
	case Declined:
		return "declined"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// RejectError is returned when a request is rejected.
type RejectError struct {
	Reason Reason
	Origin Origin
}

func (e *RejectError) Error() string {
	return "pry request rejected: " + e.Reason.String()
}

// IsReject reports whether err is a *RejectError with the given reason.
func IsReject(err error, reason Reason) bool {
	var reject *RejectError
	return errors.As(err, &reject) && reject.Reason == reason
}
