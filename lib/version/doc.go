// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information.
//
// Four variables are injected at build time via -ldflags -X:
// [GitCommit], [GitDirty], [BuildTime] and [Version]. They default to
// "unknown" / "0.1.0-dev" for development builds and tests.
//
// [Info] formats the string printed by `prysh version`. [DriverVersion]
// is the version stamped into the driver units a node builds: two nodes
// built from the same release agree on it, so a peer that already holds
// the unit answers a presence probe positively and no bytes transfer.
package version
