// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 keyed hash of a unit's uncompressed
// payload.
type Digest [32]byte

// unitDomainKey separates unit digests from any other BLAKE3 use. The
// bytes are the ASCII domain name, zero-padded. Changing it invalidates
// every installed unit.
var unitDomainKey = [32]byte{
	'p', 'r', 'y', '.', 'd', 'r', 'i', 'v', 'e', 'r', '.', 'u', 'n', 'i', 't', 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// DigestOf computes the unit digest of payload.
func DigestOf(payload []byte) Digest {
	hasher, err := blake3.NewKeyed(unitDomainKey[:])
	if err != nil {
		panic("driver: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(payload)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for logs.
func (d Digest) Short() string {
	return d.String()[:12]
}

// ParseDigest parses a 64-character hex digest.
func ParseDigest(s string) (Digest, error) {
	var digest Digest
	raw, err := hex.DecodeString(s)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(raw) != len(digest) {
		return digest, fmt.Errorf("parsing digest: got %d bytes, want %d", len(raw), len(digest))
	}
	copy(digest[:], raw)
	return digest, nil
}
