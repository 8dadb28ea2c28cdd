// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	registry := NewRegistry(nil)
	s := New(Options{Prefix: "iex"})
	if err := s.Transition(Running); err != nil {
		t.Fatal(err)
	}

	h := registry.Register(s)
	if h != s.Handle() {
		t.Fatalf("Register returned %s, want %s", h, s.Handle())
	}
	if got, ok := registry.Lookup(h); !ok || got != s {
		t.Fatalf("Lookup(%s) = %v, %v", h, got, ok)
	}

	registry.Unregister(h)
	if _, ok := registry.Lookup(h); ok {
		t.Error("Lookup after Unregister should miss")
	}
	if s.State() != Terminated {
		t.Errorf("state after Unregister = %s, want terminated", s.State())
	}
	if registry.Len() != 0 {
		t.Errorf("Len() = %d, want 0", registry.Len())
	}

	// Unknown handles are ignored.
	registry.Unregister("missing")
	if _, ok := registry.Lookup("missing"); ok {
		t.Error("Lookup of unknown handle should miss")
	}
}

func TestRegistryLookupTerminated(t *testing.T) {
	registry := NewRegistry(nil)
	s := New(Options{})
	h := registry.Register(s)
	if err := s.Transition(Terminated); err != nil {
		t.Fatal(err)
	}
	if _, ok := registry.Lookup(h); ok {
		t.Error("Lookup of terminated session should miss")
	}
	if len(registry.List()) != 0 {
		t.Error("List should omit terminated sessions")
	}
}

func TestRegistryListOrder(t *testing.T) {
	registry := NewRegistry(nil)
	sessions := make([]*Session, 0, 5)
	for i := 0; i < 5; i++ {
		sessions = append(sessions, New(Options{}))
	}
	// Register in reverse creation order.
	for i := len(sessions) - 1; i >= 0; i-- {
		registry.Register(sessions[i])
	}

	listed := registry.List()
	if len(listed) != len(sessions) {
		t.Fatalf("List() returned %d sessions, want %d", len(listed), len(sessions))
	}
	for i, s := range listed {
		if s != sessions[i] {
			t.Fatalf("List()[%d] = %s, want %s", i, s.Handle().Short(), sessions[i].Handle().Short())
		}
	}
}

func TestRegistryConcurrent(t *testing.T) {
	registry := NewRegistry(nil)
	var wg sync.WaitGroup
	handles := make(chan Handle, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handles <- registry.Register(New(Options{}))
		}()
	}
	wg.Wait()
	close(handles)

	if registry.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", registry.Len())
	}
	for h := range handles {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			registry.Unregister(h)
		}(h)
	}
	wg.Wait()
	if registry.Len() != 0 {
		t.Errorf("Len() = %d after concurrent Unregister, want 0", registry.Len())
	}
}
