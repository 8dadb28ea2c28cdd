// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package complete installs tab completion on sessions.
//
// [Installer.Install] picks a completer from the session's owner. A
// local session gets [Local], which ranks built-in commands and binding
// names with fzf's matcher. A bridged session asks its peer to hold the
// pry.complete driver unit (installing it on demand through the same
// probe, install and commit path the bridge uses for its session
// driver) and then gets [Remote], which forwards each request. If the
// peer cannot serve completion the session gets [None] and starts
// anyway.
//
// [Callback] adapts a session's completer to the tab key of an
// x/term Terminal.
package complete
