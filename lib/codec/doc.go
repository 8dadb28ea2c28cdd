// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides pry's standard CBOR encoding configuration.
//
// Every payload that crosses a bridge connection (probe, install, start,
// command, completion and their replies) and every driver unit manifest
// is CBOR. Configuration files and CLI output are YAML or JSON and do not
// go through this package.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// driver package depends on this: a unit manifest hashed on one node must
// hash identically after a round trip through another.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that only travel over the wire carry `cbor` struct tags. Types
// that are also printed as JSON (for example by `prysh sessions --json`)
// carry `json` tags only; fxamacker/cbor falls back to them.
package codec
