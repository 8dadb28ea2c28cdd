// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"sort"
	"sync"
)

// Directory maps peer ids to dial addresses. Safe for concurrent use.
type Directory struct {
	mu        sync.RWMutex
	addresses map[string]string
}

// NewDirectory creates a directory seeded with addresses. The map is
// copied.
func NewDirectory(addresses map[string]string) *Directory {
	directory := &Directory{addresses: make(map[string]string, len(addresses))}
	for id, address := range addresses {
		directory.addresses[id] = address
	}
	return directory
}

// Lookup returns the address registered for id.
func (d *Directory) Lookup(id string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	address, ok := d.addresses[id]
	return address, ok
}

// Set registers or replaces the address for id.
func (d *Directory) Set(id, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addresses[id] = address
}

// IDs returns the known peer ids, sorted.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.addresses))
	for id := range d.addresses {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
