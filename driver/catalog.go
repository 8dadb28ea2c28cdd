// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package driver

import (
	"fmt"
	"sort"
)

// ProtocolVersion is the bridge protocol the built-in units speak.
const ProtocolVersion = 1

// Catalog holds the units a node can ship to peers.
type Catalog struct {
	units map[string]Unit
}

// NewCatalog builds the built-in units, stamped with version. commands
// is the built-in command list offered to remote completion.
func NewCatalog(version string, commands []string) (*Catalog, error) {
	sorted := append([]string(nil), commands...)
	sort.Strings(sorted)

	manifests := []Manifest{
		{
			Name:     Remsh,
			Protocol: ProtocolVersion,
			Summary:  "bridged read-eval-print session",
		},
		{
			Name:     Complete,
			Protocol: ProtocolVersion,
			Summary:  "completion server",
			Commands: sorted,
		},
	}

	catalog := &Catalog{units: make(map[string]Unit, len(manifests))}
	for _, manifest := range manifests {
		unit, err := Build(version, manifest)
		if err != nil {
			return nil, err
		}
		catalog.units[unit.Name] = unit
	}
	return catalog, nil
}

// Unit returns the named unit.
func (c *Catalog) Unit(name string) (Unit, error) {
	unit, ok := c.units[name]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
	}
	return unit, nil
}

// Names returns the catalog's unit names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.units))
	for name := range c.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
