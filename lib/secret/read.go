// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"errors"
	"os"
)

// ReadFile reads a secret file into a Buffer. Surrounding whitespace is
// dropped and the heap copy of the file is zeroed before returning.
func ReadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("secret is empty")
	}
	return NewFromBytes(trimmed)
}

// FromEnv moves the value of an environment variable into a Buffer. The
// process environment still holds its own copy; callers unset the
// variable once read.
func FromEnv(name string) (*Buffer, bool, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, false, nil
	}
	buffer, err := NewFromBytes([]byte(value))
	if err != nil {
		return nil, true, err
	}
	os.Unsetenv(name)
	return buffer, true, nil
}
