// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/pry/lib/codec"
	"github.com/bureau-foundation/pry/lib/compress"
)

// Well-known unit names.
const (
	// Remsh serves bridged sessions on the peer.
	Remsh = "pry.remsh"

	// Complete serves completion requests on the peer.
	Complete = "pry.complete"
)

var (
	// ErrUnknownUnit is returned when a peer does not accept a unit name.
	ErrUnknownUnit = errors.New("unknown driver unit")

	// ErrDigestMismatch is returned when a payload does not hash to the
	// digest it claims.
	ErrDigestMismatch = errors.New("driver unit digest mismatch")

	// ErrUnitTooLarge is returned when a unit's declared uncompressed
	// size is negative or exceeds MaxUnitSize.
	ErrUnitTooLarge = errors.New("driver unit size out of range")
)

// MaxUnitSize bounds the uncompressed payload of a unit. Manifests are
// a few hundred bytes; the bound only has to stop a peer from making
// the host allocate whatever Size claims.
const MaxUnitSize = 1 << 20

// Ref identifies a unit without its payload. Presence probes carry refs.
type Ref struct {
	Name    string `cbor:"name"`
	Version string `cbor:"version"`
	Digest  Digest `cbor:"digest"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s@%s (%s)", r.Name, r.Version, r.Digest.Short())
}

// Unit is a transferable capability.
type Unit struct {
	Name     string       `cbor:"name"`
	Version  string       `cbor:"version"`
	Digest   Digest       `cbor:"digest"`
	Encoding compress.Tag `cbor:"encoding"`
	Size     int          `cbor:"size"`
	Payload  []byte       `cbor:"payload"`
}

// Ref returns the unit's identity.
func (u Unit) Ref() Ref {
	return Ref{Name: u.Name, Version: u.Version, Digest: u.Digest}
}

// WireSize is the number of payload bytes sent to install the unit.
func (u Unit) WireSize() int { return len(u.Payload) }

// Manifest is a unit's payload: the capability it grants.
type Manifest struct {
	Name     string   `cbor:"name"`
	Protocol int      `cbor:"protocol"`
	Summary  string   `cbor:"summary"`
	Commands []string `cbor:"commands,omitempty"`
}

// Build encodes manifest into a unit, digesting the uncompressed CBOR
// and compressing it with zstd when that helps.
func Build(version string, manifest Manifest) (Unit, error) {
	payload, err := codec.Marshal(manifest)
	if err != nil {
		return Unit{}, fmt.Errorf("encoding %s manifest: %w", manifest.Name, err)
	}
	encoded, tag, err := compress.Compress(payload, compress.Zstd)
	if err != nil {
		return Unit{}, fmt.Errorf("compressing %s: %w", manifest.Name, err)
	}
	return Unit{
		Name:     manifest.Name,
		Version:  version,
		Digest:   DigestOf(payload),
		Encoding: tag,
		Size:     len(payload),
		Payload:  encoded,
	}, nil
}

// Open decompresses and verifies the payload and decodes its manifest.
// The manifest name must match the unit name.
func (u Unit) Open() (Manifest, error) {
	if u.Size < 0 || u.Size > MaxUnitSize {
		return Manifest{}, fmt.Errorf("%s: %w: %d bytes", u.Name, ErrUnitTooLarge, u.Size)
	}
	payload, err := compress.Decompress(u.Payload, u.Encoding, u.Size)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", u.Name, err)
	}
	if DigestOf(payload) != u.Digest {
		return Manifest{}, fmt.Errorf("%s: %w", u.Name, ErrDigestMismatch)
	}
	var manifest Manifest
	if err := codec.Unmarshal(payload, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("%s: decoding manifest: %w", u.Name, err)
	}
	if manifest.Name != u.Name {
		return Manifest{}, fmt.Errorf("%s: manifest names %q", u.Name, manifest.Name)
	}
	return manifest, nil
}
