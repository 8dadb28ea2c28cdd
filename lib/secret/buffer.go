// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is locked, dump-excluded memory holding one secret. It must not
// be copied. After Close, Bytes and String panic.
type Buffer struct {
	mu     sync.Mutex
	region []byte
	closed bool
}

// New maps a zero-filled protected region of size bytes.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	region, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap: %w", err)
	}
	if err := protect(region); err != nil {
		unix.Munmap(region)
		return nil, err
	}
	return &Buffer{region: region}, nil
}

func protect(region []byte) error {
	if err := unix.Mlock(region); err != nil {
		return fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(region, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(region)
		return fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}
	return nil
}

// NewFromBytes moves source into a protected region. source is zeroed
// whether or not the move succeeds.
func NewFromBytes(source []byte) (*Buffer, error) {
	defer Zero(source)
	if len(source) == 0 {
		return nil, errors.New("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.region, source)
	return buffer, nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	clear(b)
}

// Bytes returns the secret in place. The slice is only valid until Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpen()
	return b.region
}

// String returns a heap copy of the secret, for APIs that only take
// strings.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mustBeOpen()
	return string(b.region)
}

// Len returns the secret's size, or zero once closed.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.region)
}

func (b *Buffer) mustBeOpen() {
	if b.closed {
		panic("secret: use of closed buffer")
	}
}

// Close zeros and releases the region. It is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	Zero(b.region)

	err := unix.Munlock(b.region)
	if unmapErr := unix.Munmap(b.region); unmapErr != nil {
		err = errors.Join(err, unmapErr)
	}
	b.region = nil
	if err != nil {
		return fmt.Errorf("secret: releasing buffer: %w", err)
	}
	return nil
}
