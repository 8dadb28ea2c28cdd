// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repl

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/pry/pry"
)

// Evaluator evaluates one line of input against bindings. It returns
// the value and the bindings visible to the next line; it must not
// modify the bindings it was given.
type Evaluator interface {
	Evaluate(ctx context.Context, input string, bindings pry.Bindings) (any, pry.Bindings, error)
}

// Func is a callable binding. name() calls it with the evaluating
// context, which carries the execution flags of the session it runs in.
type Func func(ctx context.Context) (any, error)

var (
	call       = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\((.*)\)$`)
	assignment = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=(.*)$`)
	reference  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
)

// ErrUndefined is returned for a reference to an unbound name.
var ErrUndefined = errors.New("undefined")

// BindingEvaluator is a minimal evaluator over bindings. It accepts:
//
//	name = <literal>   bind a YAML flow literal: 1, "s", [1, 2], {a: 1}
//	name               the bound value
//	name.key.0         walk maps by key and slices by index
//	<literal>          the literal itself
//	binding()          every binding as a map
//	pry()              request a take-over of the evaluating context
//	print(<expr>)      write a value to the context's output
//	name()             call a bound Func
type BindingEvaluator struct {
	// Broker serves pry(). Nil disables it.
	Broker *pry.Broker

	// PryTimeout bounds pry(). Zero uses pry.DefaultTimeout.
	PryTimeout time.Duration
}

// Evaluate implements Evaluator.
func (e *BindingEvaluator) Evaluate(ctx context.Context, input string, bindings pry.Bindings) (any, pry.Bindings, error) {
	input = strings.TrimSpace(input)
	switch input {
	case "":
		return nil, bindings, nil
	case "binding()":
		return map[string]any(pry.CopyBindings(bindings)), bindings, nil
	case "pry()":
		return e.pry(ctx, bindings)
	}

	if match := call.FindStringSubmatch(input); match != nil {
		return e.call(ctx, match[1], strings.TrimSpace(match[2]), bindings)
	}

	if match := assignment.FindStringSubmatch(input); match != nil && !strings.HasPrefix(match[2], "=") {
		value, err := parseLiteral(match[2])
		if err != nil {
			return nil, bindings, err
		}
		next := pry.CopyBindings(bindings)
		if next == nil {
			next = pry.Bindings{}
		}
		next[match[1]] = value
		return value, next, nil
	}

	if reference.MatchString(input) && !isKeywordLiteral(input) {
		value, err := lookup(bindings, input)
		return value, bindings, err
	}

	value, err := parseLiteral(input)
	return value, bindings, err
}

func (e *BindingEvaluator) pry(ctx context.Context, bindings pry.Bindings) (any, pry.Bindings, error) {
	if e.Broker == nil {
		return nil, bindings, errors.New("pry() is not available in this session")
	}
	timeout := e.PryTimeout
	if timeout <= 0 {
		timeout = pry.DefaultTimeout
	}
	result, err := pry.Pry(ctx, e.Broker, bindings, timeout)
	if err != nil {
		return nil, bindings, err
	}
	return result.Exit.String(), bindings, nil
}

func (e *BindingEvaluator) call(ctx context.Context, name, argument string, bindings pry.Bindings) (any, pry.Bindings, error) {
	if name == "print" {
		return e.print(ctx, argument, bindings)
	}
	if argument != "" {
		return nil, bindings, fmt.Errorf("%s() takes no arguments", name)
	}
	value, ok := bindings[name]
	if !ok {
		return nil, bindings, fmt.Errorf("%w: %s", ErrUndefined, name)
	}
	fn, ok := value.(Func)
	if !ok {
		return nil, bindings, fmt.Errorf("%s is %T, not callable", name, value)
	}
	result, err := fn(ctx)
	return result, bindings, err
}

// print writes the value of argument to the output of the evaluating
// context. A pried session's output is the operator's terminal until
// the grant is released.
func (e *BindingEvaluator) print(ctx context.Context, argument string, bindings pry.Bindings) (any, pry.Bindings, error) {
	flags := pry.ExecutionFlags(ctx)
	if flags == nil || flags.Output() == nil {
		return nil, bindings, errors.New("print() has no output in this context")
	}
	value, _, err := e.Evaluate(ctx, argument, bindings)
	if err != nil {
		return nil, bindings, err
	}
	text, isString := value.(string)
	if !isString {
		text = fmt.Sprint(value)
	}
	if _, err := fmt.Fprintln(flags.Output(), text); err != nil {
		return nil, bindings, fmt.Errorf("print: %w", err)
	}
	return nil, bindings, nil
}

// isKeywordLiteral reports whether s is a YAML scalar that reads like a
// name.
func isKeywordLiteral(s string) bool {
	switch s {
	case "true", "false", "null", "nil":
		return true
	}
	return false
}

func parseLiteral(text string) (any, error) {
	value, err := parseValue(text)
	if err != nil {
		return nil, err
	}
	// YAML reads any unquoted text as a string; only quoted strings are
	// literals at the top level.
	text = strings.TrimSpace(text)
	if _, isString := value.(string); isString && !strings.ContainsAny(text[:1], `"'`) {
		return nil, fmt.Errorf("invalid expression %q", text)
	}
	return value, nil
}

// parseValue decodes a YAML flow value. Unquoted words are strings.
func parseValue(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("missing value")
	}
	if text == "nil" {
		return nil, nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(text), &value); err != nil {
		return nil, fmt.Errorf("invalid literal %q: %w", text, err)
	}
	return value, nil
}

// lookup resolves a dotted reference through maps and slices.
func lookup(bindings pry.Bindings, path string) (any, error) {
	parts := strings.Split(path, ".")
	value, ok := bindings[parts[0]]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUndefined, parts[0])
	}
	for i, part := range parts[1:] {
		walked := strings.Join(parts[:i+1], ".")
		switch container := value.(type) {
		case map[string]any:
			next, ok := container[part]
			if !ok {
				return nil, fmt.Errorf("%w: %s has no key %q", ErrUndefined, walked, part)
			}
			value = next
		case []any:
			index, err := strconv.Atoi(part)
			if err != nil || index < 0 || index >= len(container) {
				return nil, fmt.Errorf("%w: %s has no index %s", ErrUndefined, walked, part)
			}
			value = container[index]
		default:
			return nil, fmt.Errorf("%s is %T, not a map or list", walked, value)
		}
	}
	return value, nil
}
