// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pry

import (
	"io"
	"sync"
)

// Flags are the execution flags of one requesting context. A grant
// turns panic trapping on and redirects output to the operator's
// terminal; release restores the previous values.
type Flags struct {
	mu         sync.Mutex
	trapPanics bool
	output     io.Writer
}

// NewFlags returns flags with trapping off and the given output.
func NewFlags(output io.Writer) *Flags {
	return &Flags{output: output}
}

// TrapPanics reports whether panics in the context are being trapped.
func (f *Flags) TrapPanics() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trapPanics
}

// Output returns the context's current output writer.
func (f *Flags) Output() io.Writer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.output
}

// set installs new values and returns a function restoring the old ones.
func (f *Flags) set(trapPanics bool, output io.Writer) (restore func()) {
	f.mu.Lock()
	savedTrap, savedOutput := f.trapPanics, f.output
	f.trapPanics = trapPanics
	if output != nil {
		f.output = output
	}
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		f.trapPanics, f.output = savedTrap, savedOutput
		f.mu.Unlock()
	}
}
