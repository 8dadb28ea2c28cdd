// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the node configuration for prysh.
//
// Configuration comes from a single file named by the --config flag or
// the PRY_CONFIG environment variable (via [Resolve]). There is no search
// path and no ~/.config discovery: with neither set, [Default] is used
// unchanged. Files ending in .json or .jsonc are parsed as JSON with
// comments and trailing commas; everything else is YAML.
//
// Path fields support ${HOME}, ${PRY_ROOT} and ${VAR:-default}
// expansion after loading. No other environment variables override
// config values.
//
// The settings section is not interpreted here. It is handed verbatim to
// the session settings store, which owns validation of display keys.
//
// This package depends on no other pry packages.
package config
