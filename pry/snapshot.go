// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pry

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"time"
)

// Bindings maps variable names to values in an evaluation scope.
type Bindings map[string]any

// Names returns the binding names in sorted order.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Origin tags where a take-over request came from.
type Origin struct {
	ExecutionID string
	PID         int
	File        string
	Line        int
	Function    string
	Time        time.Time
}

// String formats the origin for prompts and logs, e.g.
// "main.handle at server.go:42 (pid 812)".
func (o Origin) String() string {
	location := "unknown location"
	if o.File != "" {
		location = fmt.Sprintf("%s:%d", filepath.Base(o.File), o.Line)
	}
	if o.Function != "" {
		location = o.Function + " at " + location
	}
	if o.PID != 0 {
		location += fmt.Sprintf(" (pid %d)", o.PID)
	}
	return location
}

// Snapshot is the state a requester offers: an isolated copy of its
// bindings plus where it was taken.
type Snapshot struct {
	Bindings Bindings
	Origin   Origin
}

// Capture deep-copies bindings so nothing done in the nested session
// reaches the caller's values.
func Capture(bindings Bindings, origin Origin) Snapshot {
	return Snapshot{Bindings: CopyBindings(bindings), Origin: origin}
}

// CopyBindings returns a deep copy of b. Maps, slices, arrays, pointers
// and exported struct fields are copied recursively. Channels, funcs and
// unexported struct fields are shared. Values reachable more than once,
// including through cycles, are copied once and the copy is shared the
// same way the original was.
func CopyBindings(b Bindings) Bindings {
	if b == nil {
		return Bindings{}
	}
	c := &copier{seen: make(map[visitKey]reflect.Value)}
	copied := make(Bindings, len(b))
	for name, value := range b {
		if value == nil {
			copied[name] = nil
			continue
		}
		copied[name] = c.copyValue(reflect.ValueOf(value)).Interface()
	}
	return copied
}

// visitKey identifies a reference already copied. Slices also key on
// length so that two slices sharing a backing array but with different
// bounds get distinct copies.
type visitKey struct {
	pointer uintptr
	typ     reflect.Type
	length  int
}

type copier struct {
	seen map[visitKey]reflect.Value
}

func (c *copier) copyValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		key := visitKey{pointer: v.Pointer(), typ: v.Type()}
		if copied, ok := c.seen[key]; ok {
			return copied
		}
		copied := reflect.MakeMapWithSize(v.Type(), v.Len())
		c.seen[key] = copied
		iter := v.MapRange()
		for iter.Next() {
			copied.SetMapIndex(iter.Key(), c.copyElem(iter.Value(), v.Type().Elem()))
		}
		return copied
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		key := visitKey{pointer: v.Pointer(), typ: v.Type(), length: v.Len()}
		if copied, ok := c.seen[key]; ok {
			return copied
		}
		copied := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		c.seen[key] = copied
		for i := 0; i < v.Len(); i++ {
			copied.Index(i).Set(c.copyElem(v.Index(i), v.Type().Elem()))
		}
		return copied
	case reflect.Array:
		copied := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			copied.Index(i).Set(c.copyElem(v.Index(i), v.Type().Elem()))
		}
		return copied
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		key := visitKey{pointer: v.Pointer(), typ: v.Type()}
		if copied, ok := c.seen[key]; ok {
			return copied
		}
		copied := reflect.New(v.Type().Elem())
		c.seen[key] = copied
		copied.Elem().Set(c.copyValue(v.Elem()))
		return copied
	case reflect.Struct:
		copied := reflect.New(v.Type()).Elem()
		copied.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if field := copied.Field(i); field.CanSet() {
				field.Set(c.copyElem(v.Field(i), field.Type()))
			}
		}
		return copied
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		return c.copyValue(v.Elem())
	default:
		return v
	}
}

// copyElem copies v and converts the result back to the container's
// element type, which matters for interface-typed elements.
func (c *copier) copyElem(v reflect.Value, elemType reflect.Type) reflect.Value {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(elemType)
		}
		inner := c.copyValue(v.Elem())
		wrapped := reflect.New(elemType).Elem()
		wrapped.Set(inner)
		return wrapped
	}
	return c.copyValue(v)
}
