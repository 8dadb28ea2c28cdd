// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error handler used by
// cmd/prysh before its structured logger exists.
package process
