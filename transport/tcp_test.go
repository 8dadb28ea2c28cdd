// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/pry/lib/testutil"
)

func TestTCPListener_Address(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	address := listener.Address()
	if !strings.Contains(address, ":") {
		t.Errorf("Address() = %q, expected host:port format", address)
	}
}

func TestTCPRoundTrip(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	received := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- string(data)
	}()

	dialer := &TCPDialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(context.Background(), listener.Address())
	if err != nil {
		t.Fatalf("DialContext() error: %v", err)
	}
	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	conn.Close()

	if got := testutil.RequireReceive(t, received, 5*time.Second); got != "hello" {
		t.Errorf("listener received %q, want hello", got)
	}
}

func TestTCPAuthenticatedConnection(t *testing.T) {
	alpha := newIdentity(t, "alpha")
	beta := newIdentity(t, "beta")
	trustEachOther(alpha, beta)

	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTCPListener() error: %v", err)
	}
	defer listener.Close()

	accepted := make(chan string, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		peerID, err := Authenticate(context.Background(), conn, beta, "")
		if err != nil {
			accepted <- "error: " + err.Error()
			return
		}
		accepted <- peerID
	}()

	conn, err := (&TCPDialer{}).DialContext(context.Background(), listener.Address())
	if err != nil {
		t.Fatalf("DialContext() error: %v", err)
	}
	defer conn.Close()

	peerID, err := Authenticate(context.Background(), conn, alpha, "beta")
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if peerID != "beta" {
		t.Errorf("dialer authenticated %q", peerID)
	}
	if got := testutil.RequireReceive(t, accepted, 5*time.Second); got != "alpha" {
		t.Errorf("listener authenticated %q", got)
	}
}

func TestTCPDialUnreachable(t *testing.T) {
	listener, err := NewTCPListener("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	address := listener.Address()
	listener.Close()

	if _, err := (&TCPDialer{Timeout: time.Second}).DialContext(context.Background(), address); err == nil {
		t.Fatal("dial to a closed listener should fail")
	}
}
