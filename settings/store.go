// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
)

// state is one published configuration. It is never mutated after
// publication; updates build a new state.
type state struct {
	values   map[string]any
	snapshot Snapshot
}

// Store holds the current configuration. Readers load the published
// state without locking; writers serialize on mu.
type Store struct {
	mu       sync.Mutex
	current  atomic.Pointer[state]
	defaults map[string]any
}

// New creates a store seeded with defaults. A nil defaults uses
// [Defaults]. The defaults are validated like any update; a partial
// defaults map is merged over the built-in values.
func New(defaults map[string]any) (*Store, error) {
	store := &Store{}
	base := defaultsWithColor(colorSupported())
	store.current.Store(newState(base))

	if defaults != nil {
		if err := store.Update(defaults); err != nil {
			return nil, err
		}
	}
	store.defaults = store.current.Load().values
	return store, nil
}

func newState(values map[string]any) *state {
	return &state{values: values, snapshot: decodeSnapshot(values)}
}

// Update applies options as one batch. Every key is validated against a
// working copy first; if any key fails, nothing changes and the errors
// are returned (a single *ConfigError, or several joined).
func (s *Store) Update(options map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := shallowCopy(s.current.Load().values)

	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		merged, err := apply(working[key], key, options[key])
		if err != nil {
			errs = append(errs, err...)
			continue
		}
		working[key] = merged
	}

	switch len(errs) {
	case 0:
		s.current.Store(newState(working))
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

// apply validates one key and returns its new value. Mapping values
// merge over existing; the existing map is copied, never mutated.
func apply(existing any, key string, value any) (any, []error) {
	spec, ok := keySpecs[key]
	if !ok {
		return nil, []error{&ConfigError{Key: key, Value: value, Reason: "unknown key"}}
	}

	if !spec.mapping {
		normalized, reason := spec.scalar(value)
		if reason != "" {
			return nil, []error{&ConfigError{Key: key, Value: value, Reason: reason}}
		}
		return normalized, nil
	}

	update, ok := asMapping(value)
	if !ok {
		return nil, []error{&ConfigError{Key: key, Value: value, Reason: "must be a mapping"}}
	}

	merged := shallowCopy(existing.(map[string]any))
	var errs []error
	subKeys := make([]string, 0, len(update))
	for subKey := range update {
		subKeys = append(subKeys, subKey)
	}
	sort.Strings(subKeys)
	for _, subKey := range subKeys {
		normalized, reason := spec.sub(subKey, update[subKey])
		if reason != "" {
			errs = append(errs, &ConfigError{Key: key + "." + subKey, Value: update[subKey], Reason: reason})
			continue
		}
		merged[subKey] = normalized
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return merged, nil
}

// Reset restores key to the value the store was created with.
func (s *Store) Reset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.defaults[key]
	if !ok {
		return &ConfigError{Key: key, Reason: "unknown key"}
	}
	working := shallowCopy(s.current.Load().values)
	working[key] = original
	s.current.Store(newState(working))
	return nil
}

// All returns a deep copy of the current configuration.
func (s *Store) All() map[string]any {
	return deepCopy(s.current.Load().values)
}

// Get returns a deep copy of one key's value.
func (s *Store) Get(key string) (any, bool) {
	value, ok := s.current.Load().values[key]
	if !ok {
		return nil, false
	}
	if m, isMap := value.(map[string]any); isMap {
		return deepCopy(m), true
	}
	return value, true
}

// Snapshot returns the typed view of the current configuration.
func (s *Store) Snapshot() Snapshot {
	return s.current.Load().snapshot
}

func shallowCopy(m map[string]any) map[string]any {
	copied := make(map[string]any, len(m))
	for k, v := range m {
		copied[k] = v
	}
	return copied
}

func deepCopy(m map[string]any) map[string]any {
	copied := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			copied[k] = deepCopy(nested)
		} else {
			copied[k] = v
		}
	}
	return copied
}
