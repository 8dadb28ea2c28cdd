// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bureau-foundation/pry/lib/codec"
)

// StoreOptions configure a Store.
type StoreOptions struct {
	// Accept lists the unit names this node will install. Anything else
	// is rejected with ErrUnknownUnit.
	Accept []string

	// Dir, when set, persists committed units so they survive restarts.
	Dir string

	// Logger receives install events. Nil uses slog.Default.
	Logger *slog.Logger
}

// installed is a committed unit.
type installed struct {
	ref      Ref
	manifest Manifest
}

// Store is a node's set of installed units. Safe for concurrent use.
type Store struct {
	accept map[string]bool
	dir    string
	logger *slog.Logger

	mu        sync.Mutex
	installed map[string]installed
}

// NewStore creates a store and loads any units persisted in Dir.
// Persisted units that fail verification are skipped with a warning.
func NewStore(options StoreOptions) (*Store, error) {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	store := &Store{
		accept:    make(map[string]bool, len(options.Accept)),
		dir:       options.Dir,
		logger:    options.Logger,
		installed: make(map[string]installed),
	}
	for _, name := range options.Accept {
		store.accept[name] = true
	}
	if store.dir != "" {
		if err := store.load(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *Store) load() error {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.unit"))
	if err != nil {
		return fmt.Errorf("listing units: %w", err)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading unit: %w", err)
		}
		var unit Unit
		if err := codec.Unmarshal(data, &unit); err != nil {
			s.logger.Warn("skipping unreadable unit", "path", path, "error", err)
			continue
		}
		manifest, err := unit.Open()
		if err != nil || !s.accept[unit.Name] {
			s.logger.Warn("skipping invalid unit", "path", path, "error", err)
			continue
		}
		s.installed[unit.Name] = installed{ref: unit.Ref(), manifest: manifest}
	}
	return nil
}

// Has reports whether exactly ref (name, version and digest) is
// committed.
func (s *Store) Has(ref Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.installed[ref.Name]
	return ok && current.ref == ref
}

// Manifest returns the committed manifest for name.
func (s *Store) Manifest(name string) (Manifest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.installed[name]
	return current.manifest, ok
}

// Installed returns the committed refs.
func (s *Store) Installed() []Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]Ref, 0, len(s.installed))
	for _, current := range s.installed {
		refs = append(refs, current.ref)
	}
	return refs
}

// Install verifies unit and stages it. The unit is not visible to Has
// until the returned Txn commits. Installing a unit identical to the
// committed one returns a Txn whose Commit and Rollback do nothing.
func (s *Store) Install(unit Unit) (*Txn, error) {
	if !s.accept[unit.Name] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, unit.Name)
	}
	manifest, err := unit.Open()
	if err != nil {
		return nil, err
	}
	if s.Has(unit.Ref()) {
		return &Txn{store: s, unit: unit, noop: true}, nil
	}

	s.logger.Debug("driver unit staged", "unit", unit.Ref().String(), "bytes", unit.WireSize())
	return &Txn{store: s, unit: unit, manifest: manifest}, nil
}

// Txn is a provisional install.
type Txn struct {
	store    *Store
	unit     Unit
	manifest Manifest
	noop     bool

	mu   sync.Mutex
	done bool
}

// Ref identifies the staged unit.
func (t *Txn) Ref() Ref { return t.unit.Ref() }

// Noop reports whether the unit was already present.
func (t *Txn) Noop() bool { return t.noop }

// Manifest returns the staged manifest, available before commit to the
// connection that staged it.
func (t *Txn) Manifest() Manifest { return t.manifest }

// Commit makes the unit visible and persists it. Later calls, and calls
// after Rollback, do nothing.
func (t *Txn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || t.noop {
		t.done = true
		return nil
	}
	t.done = true

	if t.store.dir != "" {
		if err := t.store.persist(t.unit); err != nil {
			return err
		}
	}

	t.store.mu.Lock()
	t.store.installed[t.unit.Name] = installed{ref: t.unit.Ref(), manifest: t.manifest}
	t.store.mu.Unlock()

	t.store.logger.Info("driver unit installed", "unit", t.unit.Ref().String())
	return nil
}

// Rollback discards the staged unit. It does nothing after Commit.
func (t *Txn) Rollback() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	if !t.noop {
		t.store.logger.Info("driver unit install rolled back", "unit", t.unit.Ref().String())
	}
}

// persist writes unit atomically: temp file then rename.
func (s *Store) persist(unit Unit) error {
	data, err := codec.Marshal(unit)
	if err != nil {
		return fmt.Errorf("encoding unit: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating unit directory: %w", err)
	}
	temp, err := os.CreateTemp(s.dir, ".staging-*")
	if err != nil {
		return fmt.Errorf("staging unit: %w", err)
	}
	defer os.Remove(temp.Name())
	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return fmt.Errorf("writing unit: %w", err)
	}
	if err := temp.Close(); err != nil {
		return fmt.Errorf("writing unit: %w", err)
	}

	// One file per name: a newer version replaces the older one.
	target := filepath.Join(s.dir, unit.Name+".unit")
	if err := os.Rename(temp.Name(), target); err != nil {
		return fmt.Errorf("installing unit: %w", err)
	}
	return nil
}
