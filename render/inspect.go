// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/pry/settings"
)

// maxDepth stops runaway recursion through cyclic pointers.
const maxDepth = 32

// ellipsis marks truncated collections and strings.
const ellipsis = "..."

// node is a formatted value before layout. Leaves carry text;
// collections carry children between open and close.
type node struct {
	prefix   string
	text     string
	open     string
	close    string
	children []node
	leaf     bool
}

func leaf(text string) node { return node{text: text, leaf: true} }

// flat renders the node on one line.
func (n node) flat() string {
	if n.leaf {
		return n.prefix + n.text
	}
	parts := make([]string, len(n.children))
	for i, child := range n.children {
		parts[i] = child.flat()
	}
	return n.prefix + n.open + strings.Join(parts, ", ") + n.close
}

// layout renders the node, breaking collections that do not fit in
// width columns starting at indent.
func (n node) layout(indent, width int) string {
	flat := n.flat()
	if n.leaf || len(n.children) == 0 || indent+ansi.StringWidth(flat) <= width {
		return flat
	}
	var b strings.Builder
	b.WriteString(n.prefix)
	b.WriteString(n.open)
	b.WriteByte('\n')
	inner := strings.Repeat(" ", indent+2)
	for i, child := range n.children {
		b.WriteString(inner)
		b.WriteString(child.layout(indent+2, width))
		if i < len(n.children)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(strings.Repeat(" ", indent))
	b.WriteString(n.close)
	return b.String()
}

// Inspect formats value according to options.
func Inspect(value any, options settings.Inspect) string {
	root := inspect(reflect.ValueOf(value), options, 0)
	if !options.Pretty || options.Width <= 0 {
		return root.flat()
	}
	return root.layout(0, options.Width)
}

func inspect(v reflect.Value, options settings.Inspect, depth int) node {
	if !v.IsValid() {
		return leaf("nil")
	}
	if depth > maxDepth {
		return leaf(ellipsis)
	}

	if v.Kind() != reflect.String && v.CanInterface() {
		switch typed := v.Interface().(type) {
		case error:
			if v.Kind() != reflect.Pointer || !v.IsNil() {
				return leaf("error(" + quote(typed.Error(), options.PrintableLimit) + ")")
			}
		case fmt.Stringer:
			if v.Kind() == reflect.Struct {
				return leaf(typed.String())
			}
		}
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return leaf("nil")
		}
		return inspect(v.Elem(), options, depth)

	case reflect.Pointer:
		if v.IsNil() {
			return leaf("nil")
		}
		inner := inspect(v.Elem(), options, depth+1)
		inner.prefix = "&" + inner.prefix
		return inner

	case reflect.String:
		return leaf(quote(v.String(), options.PrintableLimit))

	case reflect.Bool:
		return leaf(strconv.FormatBool(v.Bool()))

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return leaf(strconv.FormatInt(v.Int(), 10))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return leaf(strconv.FormatUint(v.Uint(), 10))

	case reflect.Float32, reflect.Float64:
		return leaf(strconv.FormatFloat(v.Float(), 'g', -1, v.Type().Bits()))

	case reflect.Slice:
		if v.IsNil() {
			return leaf("nil")
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return leaf(quote(string(v.Bytes()), options.PrintableLimit))
		}
		return inspectSequence(v, options, depth)

	case reflect.Array:
		return inspectSequence(v, options, depth)

	case reflect.Map:
		if v.IsNil() {
			return leaf("nil")
		}
		return inspectMap(v, options, depth)

	case reflect.Struct:
		return inspectStruct(v, options, depth)

	default:
		return leaf(fmt.Sprintf("#%s<%v>", v.Type(), v))
	}
}

func inspectSequence(v reflect.Value, options settings.Inspect, depth int) node {
	n := node{open: "[", close: "]"}
	count := v.Len()
	shown := limited(count, options.Limit)
	for i := 0; i < shown; i++ {
		n.children = append(n.children, inspect(v.Index(i), options, depth+1))
	}
	if shown < count {
		n.children = append(n.children, leaf(ellipsis))
	}
	return n
}

func inspectMap(v reflect.Value, options settings.Inspect, depth int) node {
	type entry struct {
		key   string
		value reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iterator := v.MapRange()
	for iterator.Next() {
		key := iterator.Key()
		var text string
		if key.Kind() == reflect.String {
			text = key.String()
		} else {
			text = inspect(key, options, depth+1).flat()
		}
		entries = append(entries, entry{key: text, value: iterator.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	n := node{open: "{", close: "}"}
	shown := limited(len(entries), options.Limit)
	for _, e := range entries[:shown] {
		child := inspect(e.value, options, depth+1)
		child.prefix = e.key + ": " + child.prefix
		n.children = append(n.children, child)
	}
	if shown < len(entries) {
		n.children = append(n.children, leaf(ellipsis))
	}
	return n
}

func inspectStruct(v reflect.Value, options settings.Inspect, depth int) node {
	t := v.Type()
	name := t.Name()
	if name == "" {
		name = "struct"
	}
	n := node{open: name + "{", close: "}"}
	var visible []int
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			visible = append(visible, i)
		}
	}
	shown := limited(len(visible), options.Limit)
	for _, i := range visible[:shown] {
		child := inspect(v.Field(i), options, depth+1)
		child.prefix = t.Field(i).Name + ": " + child.prefix
		n.children = append(n.children, child)
	}
	if shown < len(visible) {
		n.children = append(n.children, leaf(ellipsis))
	}
	return n
}

// limited returns how many of count items to show under limit.
func limited(count, limit int) int {
	if limit == settings.Unlimited || limit >= count {
		return count
	}
	return max(limit, 0)
}

// quote quotes s, truncating it to limit runes first.
func quote(s string, limit int) string {
	if limit != settings.Unlimited && limit >= 0 {
		runes := []rune(s)
		if len(runes) > limit {
			return strconv.Quote(string(runes[:limit])) + ellipsis
		}
	}
	return strconv.Quote(s)
}
