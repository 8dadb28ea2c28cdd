// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress wraps the two block compressors pry puts on the
// wire: zstd for driver unit payloads (shipped once, so ratio matters)
// and LZ4 for large evaluation results (latency matters).
//
// Tags are protocol constants carried in bridge frames and unit
// manifests. Changing a value breaks compatibility between nodes.
package compress

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies a compression algorithm.
type Tag uint8

const (
	None Tag = 0
	LZ4  Tag = 1
	Zstd Tag = 2
)

func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// errIncompressible means the compressed form would not be smaller.
var errIncompressible = errors.New("data is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress compresses data with the preferred algorithm. If that would
// not shrink the data, it returns data unchanged tagged None.
func Compress(data []byte, preferred Tag) ([]byte, Tag, error) {
	var (
		compressed []byte
		err        error
	)
	switch preferred {
	case None:
		return data, None, nil
	case LZ4:
		compressed, err = compressLZ4(data)
	case Zstd:
		compressed, err = compressZstd(data)
	default:
		return nil, None, fmt.Errorf("compress: unsupported tag %s", preferred)
	}
	if errors.Is(err, errIncompressible) {
		return data, None, nil
	}
	if err != nil {
		return nil, None, err
	}
	return compressed, preferred, nil
}

// Decompress reverses Compress. size is the exact uncompressed length;
// a mismatch is an error. Callers reading size from untrusted input
// must bound it before calling, since LZ4 and zstd allocate it up front.
func Decompress(data []byte, tag Tag, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("compress: negative size %d", size)
	}
	switch tag {
	case None:
		if len(data) != size {
			return nil, fmt.Errorf("compress: stored size %d does not match expected %d", len(data), size)
		}
		return data, nil
	case LZ4:
		return decompressLZ4(data, size)
	case Zstd:
		return decompressZstd(data, size)
	default:
		return nil, fmt.Errorf("compress: unsupported tag %s", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock reports 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, size int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != size {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
	}
	return result, nil
}
