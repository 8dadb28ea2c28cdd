// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/bureau-foundation/pry/lib/secret"
)

// terminalConsole is the line editor on a raw-mode terminal.
type terminalConsole struct {
	*term.Terminal
	fd    int
	state *term.State
}

// openTerminal puts stdin in raw mode and wraps it in a line editor.
func openTerminal(in *os.File, out io.Writer) (*terminalConsole, error) {
	fd := int(in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("entering raw mode: %w", err)
	}
	screen := struct {
		io.Reader
		io.Writer
	}{in, out}
	console := &terminalConsole{Terminal: term.NewTerminal(screen, ""), fd: fd, state: state}
	if width, height, err := term.GetSize(fd); err == nil {
		console.SetSize(width, height)
	}
	return console, nil
}

// SetCompletion installs the tab-completion callback.
func (c *terminalConsole) SetCompletion(callback func(line string, pos int, key rune) (string, int, bool)) {
	c.AutoCompleteCallback = callback
}

// Restore leaves raw mode.
func (c *terminalConsole) Restore() error {
	return term.Restore(c.fd, c.state)
}

// lineConsole reads newline-terminated input from a pipe or file. It
// never shows a prompt.
type lineConsole struct {
	mu      sync.Mutex
	scanner *bufio.Scanner
	out     io.Writer
}

func newLineConsole(in io.Reader, out io.Writer) *lineConsole {
	return &lineConsole{scanner: bufio.NewScanner(in), out: out}
}

func (c *lineConsole) ReadLine() (string, error) {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.scanner.Text(), nil
}

func (c *lineConsole) SetPrompt(string) {}

func (c *lineConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

// promptPassphrase reads a passphrase from the controlling terminal
// without echo.
func promptPassphrase(label string) (*secret.Buffer, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%s: stdin is not a terminal", label)
	}
	fmt.Fprintf(os.Stderr, "%s: ", label)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	defer secret.Zero(raw)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%s: empty passphrase", label)
	}
	return secret.NewFromBytes(raw)
}
