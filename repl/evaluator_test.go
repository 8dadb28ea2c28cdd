// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repl

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bureau-foundation/pry/lib/clock"
	"github.com/bureau-foundation/pry/pry"
)

func TestBindingEvaluator(t *testing.T) {
	bindings := pry.Bindings{
		"user":  map[string]any{"name": "ada", "roles": []any{"admin", "ops"}},
		"count": 3,
	}

	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"integer literal", "42", 42},
		{"string literal", `"hi"`, "hi"},
		{"bare word literal", "true", true},
		{"nil", "nil", nil},
		{"list literal", "[1, 2]", []any{1, 2}},
		{"map literal", "{a: 1}", map[string]any{"a": 1}},
		{"lookup", "count", 3},
		{"map path", "user.name", "ada"},
		{"list path", "user.roles.1", "ops"},
		{"empty", "   ", nil},
	}

	evaluator := &BindingEvaluator{}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			value, next, err := evaluator.Evaluate(context.Background(), test.input, bindings)
			if err != nil {
				t.Fatalf("Evaluate(%q): %v", test.input, err)
			}
			if !reflect.DeepEqual(value, test.want) {
				t.Errorf("Evaluate(%q) = %#v, want %#v", test.input, value, test.want)
			}
			if !reflect.DeepEqual(next, bindings) {
				t.Errorf("Evaluate(%q) changed bindings to %v", test.input, next)
			}
		})
	}
}

func TestBindingEvaluatorAssignment(t *testing.T) {
	evaluator := &BindingEvaluator{}
	original := pry.Bindings{"a": 1}

	value, next, err := evaluator.Evaluate(context.Background(), "b = [1, {c: two}]", original)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := []any{1, map[string]any{"c": "two"}}
	if !reflect.DeepEqual(value, want) {
		t.Errorf("value = %#v, want %#v", value, want)
	}
	if !reflect.DeepEqual(next["b"], want) || next["a"] != 1 {
		t.Errorf("next = %v", next)
	}
	if _, leaked := original["b"]; leaked {
		t.Error("assignment modified the caller's bindings")
	}

	// "==" is not an assignment.
	if _, _, err := evaluator.Evaluate(context.Background(), "a == 1", original); err == nil {
		t.Error("expected an error for a == 1")
	}
}

func TestBindingEvaluatorBinding(t *testing.T) {
	bindings := pry.Bindings{"x": 1, "y": "two"}
	value, _, err := (&BindingEvaluator{}).Evaluate(context.Background(), "binding()", bindings)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	listed, ok := value.(map[string]any)
	if !ok || len(listed) != 2 || listed["y"] != "two" {
		t.Errorf("binding() = %#v", value)
	}
}

func TestBindingEvaluatorErrors(t *testing.T) {
	bindings := pry.Bindings{"user": map[string]any{"roles": []any{"admin"}}, "n": 1}
	tests := []struct {
		name      string
		input     string
		undefined bool
	}{
		{"unbound name", "missing", true},
		{"missing key", "user.email", true},
		{"index out of range", "user.roles.5", true},
		{"path through scalar", "n.x", false},
		{"assignment without value", "z =", false},
		{"unterminated list", "[1, 2", false},
		{"call unbound name", "missing()", true},
		{"call a value", "n()", false},
		{"call with arguments", "n(1)", false},
		{"print without output", "print(n)", false},
	}
	evaluator := &BindingEvaluator{}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, next, err := evaluator.Evaluate(context.Background(), test.input, bindings)
			if err == nil {
				t.Fatalf("Evaluate(%q) succeeded", test.input)
			}
			if got := errors.Is(err, ErrUndefined); got != test.undefined {
				t.Errorf("errors.Is(%v, ErrUndefined) = %v, want %v", err, got, test.undefined)
			}
			if !reflect.DeepEqual(next, bindings) {
				t.Errorf("failed evaluation changed bindings to %v", next)
			}
		})
	}
}

func TestBindingEvaluatorPryWithoutBroker(t *testing.T) {
	_, _, err := (&BindingEvaluator{}).Evaluate(context.Background(), "pry()", nil)
	if err == nil {
		t.Fatal("pry() without a broker succeeded")
	}
}

type staticHost struct {
	interactive bool
	active      string
}

func (h staticHost) Interactive() bool         { return h.interactive }
func (h staticHost) ActiveExecutionID() string { return h.active }

func TestBindingEvaluatorPryRejections(t *testing.T) {
	broker := pry.NewBroker(pry.BrokerOptions{Clock: clock.Fake(time.Unix(0, 0))})
	detach := broker.Attach(staticHost{interactive: true, active: "exec-shell"})
	defer detach()

	evaluator := &BindingEvaluator{Broker: broker, PryTimeout: time.Second}
	ctx := pry.WithExecution(context.Background(), "exec-shell", nil)
	_, _, err := evaluator.Evaluate(ctx, "pry()", pry.Bindings{})
	if !pry.IsReject(err, pry.SelfPry) {
		t.Fatalf("pry() from the active context: err = %v, want SelfPry", err)
	}

	detach()
	_, _, err = evaluator.Evaluate(context.Background(), "pry()", pry.Bindings{})
	if !pry.IsReject(err, pry.NoInteractiveHost) {
		t.Fatalf("pry() with no host: err = %v, want NoInteractiveHost", err)
	}
}

func TestBindingEvaluatorPrint(t *testing.T) {
	var output bytes.Buffer
	ctx := pry.WithExecution(context.Background(), "exec-print", pry.NewFlags(&output))
	bindings := pry.Bindings{"queue": []any{1, 2}, "name": "ada"}
	evaluator := &BindingEvaluator{}

	for _, input := range []string{"print(name)", "print(queue)", `print("done")`} {
		if _, next, err := evaluator.Evaluate(ctx, input, bindings); err != nil {
			t.Fatalf("Evaluate(%q): %v", input, err)
		} else if !reflect.DeepEqual(next, bindings) {
			t.Errorf("Evaluate(%q) changed bindings to %v", input, next)
		}
	}
	if got, want := output.String(), "ada\n[1 2]\ndone\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	if _, _, err := evaluator.Evaluate(ctx, "print(missing)", bindings); !errors.Is(err, ErrUndefined) {
		t.Errorf("print(missing) = %v, want ErrUndefined", err)
	}
}

func TestBindingEvaluatorCallsFunc(t *testing.T) {
	flags := pry.NewFlags(nil)
	ctx := pry.WithExecution(context.Background(), "exec-call", flags)
	var seen *pry.Flags
	bindings := pry.Bindings{
		"step": Func(func(ctx context.Context) (any, error) {
			seen = pry.ExecutionFlags(ctx)
			return 3, nil
		}),
		"fail": Func(func(context.Context) (any, error) {
			return nil, errors.New("queue is empty")
		}),
	}
	evaluator := &BindingEvaluator{}

	value, _, err := evaluator.Evaluate(ctx, "step()", bindings)
	if err != nil || value != 3 {
		t.Fatalf("step() = %v, %v", value, err)
	}
	if seen != flags {
		t.Error("Func did not run under the evaluating context's flags")
	}
	if _, _, err := evaluator.Evaluate(ctx, "fail()", bindings); err == nil || err.Error() != "queue is empty" {
		t.Errorf("fail() = %v", err)
	}
}
