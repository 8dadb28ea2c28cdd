// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/pry/lib/clock"
	"github.com/bureau-foundation/pry/lib/testutil"
	"github.com/bureau-foundation/pry/pry"
	"github.com/bureau-foundation/pry/session"
	"github.com/bureau-foundation/pry/settings"
)

const waitTimeout = 5 * time.Second

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeConsole feeds lines from a channel and reports every prompt on
// another, which is how tests know a line has been fully handled.
type fakeConsole struct {
	lines     chan string
	prompts   chan string
	closeOnce sync.Once

	mu         sync.Mutex
	output     strings.Builder
	completion func(line string, pos int, key rune) (string, int, bool)
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{
		lines:   make(chan string),
		prompts: make(chan string, 64),
	}
}

func (c *fakeConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output.Write(p)
}

func (c *fakeConsole) ReadLine() (string, error) {
	line, ok := <-c.lines
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (c *fakeConsole) SetPrompt(prompt string) { c.prompts <- prompt }

func (c *fakeConsole) SetCompletion(callback func(line string, pos int, key rune) (string, int, bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completion = callback
}

func (c *fakeConsole) complete(line string) (string, bool) {
	c.mu.Lock()
	callback := c.completion
	c.mu.Unlock()
	completed, _, ok := callback(line, len(line), '\t')
	return completed, ok
}

func (c *fakeConsole) close() { c.closeOnce.Do(func() { close(c.lines) }) }

func (c *fakeConsole) text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output.String()
}

type harness struct {
	t        *testing.T
	console  *fakeConsole
	frontend *Frontend
	registry *session.Registry
	settings *settings.Store

	stopped chan struct{}
	err     error
}

func newSettings(t *testing.T) *settings.Store {
	t.Helper()
	store, err := settings.New(map[string]any{"colors": map[string]any{"enabled": false}})
	if err != nil {
		t.Fatalf("settings.New: %v", err)
	}
	return store
}

// start runs a front-end over a fake console until the test ends.
func start(t *testing.T, options Options) *harness {
	t.Helper()
	console := newFakeConsole()
	options.Console = console
	if options.Settings == nil {
		options.Settings = newSettings(t)
	}
	if options.Registry == nil {
		options.Registry = session.NewRegistry(nil)
	}
	if options.Evaluator == nil {
		options.Evaluator = &BindingEvaluator{Broker: options.Broker}
	}
	frontend, err := New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	h := &harness{
		t:        t,
		console:  console,
		frontend: frontend,
		registry: options.Registry,
		settings: options.Settings,
		stopped:  make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer close(h.stopped)
		h.err = frontend.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		console.close()
		<-h.stopped
	})
	return h
}

func (h *harness) expectPrompt(want string) {
	h.t.Helper()
	got := testutil.RequireReceive(h.t, h.console.prompts, waitTimeout, "waiting for prompt %q", want)
	if got != want {
		h.t.Fatalf("prompt = %q, want %q\noutput:\n%s", got, want, h.console.text())
	}
}

func (h *harness) enter(line string) {
	h.t.Helper()
	select {
	case h.console.lines <- line:
	case <-time.After(waitTimeout): //nolint:realclock test hang prevention
		h.t.Fatalf("front-end did not read %q", line)
	}
}

// run enters line and waits for the prompt that follows it.
func (h *harness) run(line, nextPrompt string) {
	h.t.Helper()
	h.enter(line)
	h.expectPrompt(nextPrompt)
}

func (h *harness) requireOutput(want string) {
	h.t.Helper()
	if text := h.console.text(); !strings.Contains(text, want) {
		h.t.Fatalf("output does not contain %q:\n%s", want, text)
	}
}

func (h *harness) wait() error {
	h.t.Helper()
	testutil.RequireClosed(h.t, h.stopped, waitTimeout, "waiting for Run to return")
	return h.err
}

type outcome struct {
	result pry.Result
	err    error
}

// request asks for a take-over from a worker context on its own
// goroutine.
func request(broker *pry.Broker, ctx context.Context, bindings pry.Bindings, timeout time.Duration) <-chan outcome {
	snapshot := pry.Capture(bindings, pry.Origin{
		ExecutionID: pry.ExecutionID(ctx),
		Function:    "worker.run",
		File:        "worker.go",
		Line:        7,
	})
	done := make(chan outcome, 1)
	go func() {
		result, err := broker.RequestTakeover(ctx, snapshot, timeout)
		done <- outcome{result, err}
	}()
	return done
}

func newBroker() (*pry.Broker, *clock.FakeClock) {
	fake := clock.Fake(epoch)
	return pry.NewBroker(pry.BrokerOptions{Clock: fake}), fake
}

func TestEvaluateLocal(t *testing.T) {
	h := start(t, Options{})
	h.expectPrompt("iex(1)>")

	h.run("x = 1", "iex(2)>")
	h.run("x", "iex(3)>")
	h.run("missing", "iex(4)>")
	h.requireOutput("** (eval) undefined: missing")
	h.run("", "iex(4)>")

	h.run("history", "iex(4)>")
	h.requireOutput("   1  x = 1")

	h.enter("exit")
	if err := h.wait(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.registry.Len() != 0 {
		t.Errorf("registry has %d sessions after exit", h.registry.Len())
	}
}

func TestEndOfInputEndsRun(t *testing.T) {
	h := start(t, Options{})
	h.expectPrompt("iex(1)>")
	h.console.close()
	if err := h.wait(); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestConfigCommand(t *testing.T) {
	h := start(t, Options{})
	h.expectPrompt("iex(1)>")

	h.run("config history_size 50", "iex(1)>")
	h.run("config history_size abc", "iex(1)>")
	h.requireOutput(`** (config) invalid value for "history_size"`)
	if got := h.settings.Snapshot().HistorySize; got != 50 {
		t.Errorf("history_size = %d after a rejected update, want 50", got)
	}

	h.run("config default_prompt \"%prefix[%counter]>\"", "iex[1]>")
	h.run("config reset default_prompt", "iex(1)>")
	h.run("config nonsense", "iex(1)>")
	h.requireOutput(`unknown configuration key "nonsense"`)
}

func TestGrantContinue(t *testing.T) {
	broker, _ := newBroker()
	h := start(t, Options{Broker: broker, Interactive: true})
	h.expectPrompt("iex(1)>")
	shell := h.frontend.Current()

	var workerOutput bytes.Buffer
	flags := pry.NewFlags(&workerOutput)
	ctx := pry.WithExecution(context.Background(), "exec-worker", flags)
	order := map[string]any{"id": 7}
	done := request(broker, ctx, pry.Bindings{"order": order}, time.Minute)

	h.expectPrompt("pry(1)>")
	h.requireOutput("prying worker.run at worker.go:7; bindings: order")
	if !flags.TrapPanics() || flags.Output() != h.console {
		t.Error("grant did not set the requester's execution flags")
	}
	if h.registry.Len() != 2 {
		t.Errorf("registry has %d sessions while pried, want 2", h.registry.Len())
	}

	h.run("order.id", "pry(2)>")
	h.run("order = 8", "pry(3)>")
	testutil.RequireBlocked(t, done, 20*time.Millisecond, "requester released before continue")

	h.run("continue", "iex(1)>")
	got := testutil.RequireReceive(t, done, waitTimeout, "waiting for release")
	if got.err != nil {
		t.Fatalf("RequestTakeover: %v", got.err)
	}
	if got.result.Exit != pry.ExitContinue {
		t.Errorf("exit = %v, want continue", got.result.Exit)
	}
	if got.result.Bindings["order"] != 8 {
		t.Errorf("final bindings = %v", got.result.Bindings)
	}
	if order["id"] != 7 {
		t.Error("nested session modified the requester's value")
	}
	if flags.TrapPanics() || flags.Output() != &workerOutput {
		t.Error("release did not restore the requester's execution flags")
	}
	if h.frontend.Current() != shell {
		t.Error("continue did not return to the previous session")
	}
}

// syncBuffer is a bytes.Buffer safe for the front-end and the test to
// share.
type syncBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}

func TestPriedOutputFollowsFlags(t *testing.T) {
	broker, _ := newBroker()
	h := start(t, Options{Broker: broker, Interactive: true})
	h.expectPrompt("iex(1)>")

	workerOutput := &syncBuffer{}
	flags := pry.NewFlags(workerOutput)
	ctx := pry.WithExecution(context.Background(), "exec-worker", flags)
	done := request(broker, ctx, pry.Bindings{"queue": []any{"job-1", "job-2"}}, time.Minute)
	h.expectPrompt("pry(1)>")

	h.run("print(queue)", "pry(2)>")
	h.requireOutput("[job-1 job-2]")
	if workerOutput.String() != "" {
		t.Errorf("worker sink received %q while pried", workerOutput.String())
	}

	h.run("continue", "iex(1)>")
	if got := testutil.RequireReceive(t, done, waitTimeout, "waiting for release"); got.err != nil {
		t.Fatalf("RequestTakeover: %v", got.err)
	}

	// After release the requester's own writes go back to its sink and
	// a print in the shell goes to the shell's console.
	fmt.Fprintln(pry.ExecutionFlags(ctx).Output(), "step 2")
	h.run(`print("shell")`, "iex(2)>")
	if got := workerOutput.String(); got != "step 2\n" {
		t.Errorf("worker sink = %q, want only the post-release write", got)
	}
	if strings.Contains(h.console.text(), "step 2") {
		t.Error("post-release worker output reached the console")
	}
	h.requireOutput("shell")
}

func TestRespawnStartsFreshSession(t *testing.T) {
	broker, _ := newBroker()
	h := start(t, Options{Broker: broker, Interactive: true})
	h.expectPrompt("iex(1)>")
	h.run("x = 1", "iex(2)>")
	shell := h.frontend.Current()

	done := request(broker, pry.WithExecution(context.Background(), "exec-worker", nil), nil, time.Minute)
	h.expectPrompt("pry(1)>")

	h.run("respawn", "iex(1)>")
	got := testutil.RequireReceive(t, done, waitTimeout, "waiting for release")
	if got.err != nil || got.result.Exit != pry.ExitRespawn {
		t.Fatalf("outcome = %+v, want respawn", got)
	}
	if current := h.frontend.Current(); current == shell || current.Prefix() != "iex" {
		t.Errorf("respawn did not start a fresh top-level session")
	}

	// Nothing is held now; respawn still replaces the session.
	h.run("respawn", "iex(1)>")
	h.run("continue", "iex(1)>")
	h.requireOutput("** (continue) no pried context is held by this session")
}

func TestConfirmation(t *testing.T) {
	broker, _ := newBroker()
	h := start(t, Options{Broker: broker, Interactive: true, Confirm: true})
	h.expectPrompt("iex(1)>")
	ctx := pry.WithExecution(context.Background(), "exec-worker", nil)

	done := request(broker, ctx, nil, time.Minute)
	h.expectPrompt("Request to pry worker.run at worker.go:7. Allow? [Yn] ")
	h.run("n", "iex(1)>")
	got := testutil.RequireReceive(t, done, waitTimeout, "waiting for decline")
	if !pry.IsReject(got.err, pry.Declined) {
		t.Fatalf("err = %v, want Declined", got.err)
	}

	done = request(broker, ctx, nil, time.Minute)
	h.expectPrompt("Request to pry worker.run at worker.go:7. Allow? [Yn] ")
	h.run("", "pry(1)>")
	h.enter("exit")
	got = testutil.RequireReceive(t, done, waitTimeout, "waiting for shutdown release")
	if got.err != nil || got.result.Exit != pry.ExitShutdown {
		t.Fatalf("outcome = %+v, want shutdown", got)
	}
}

func TestSelfPryFromEvaluatedCode(t *testing.T) {
	broker, _ := newBroker()
	h := start(t, Options{Broker: broker, Interactive: true})
	h.expectPrompt("iex(1)>")
	h.run("pry()", "iex(2)>")
	h.requireOutput("** (eval) pry request rejected: self pry")

	// Inside a pried session the evaluated code runs as the requester.
	done := request(broker, pry.WithExecution(context.Background(), "exec-worker", nil), nil, time.Minute)
	h.expectPrompt("pry(1)>")
	h.run("pry()", "pry(2)>")
	h.requireOutput("** (eval) pry request rejected: self pry")
	testutil.RequireBlocked(t, done, 20*time.Millisecond, "self pry released the requester")
}

func TestNonInteractiveHostRejects(t *testing.T) {
	broker, _ := newBroker()
	h := start(t, Options{Broker: broker, Interactive: false})
	h.expectPrompt("iex(1)>")

	got := testutil.RequireReceive(t, request(broker, context.Background(), nil, time.Minute), waitTimeout)
	if !pry.IsReject(got.err, pry.NoInteractiveHost) {
		t.Fatalf("err = %v, want NoInteractiveHost", got.err)
	}
}

func TestBusyHostLetsRequestsTimeOut(t *testing.T) {
	broker, fake := newBroker()
	h := start(t, Options{Broker: broker, Interactive: true})
	h.expectPrompt("iex(1)>")

	first := request(broker, pry.WithExecution(context.Background(), "exec-first", nil), nil, time.Minute)
	h.expectPrompt("pry(1)>")

	second := request(broker, pry.WithExecution(context.Background(), "exec-second", nil), nil, time.Minute)
	fake.WaitForTimers(2)
	fake.Advance(time.Minute)
	got := testutil.RequireReceive(t, second, waitTimeout, "waiting for the second request")
	if !errors.Is(got.err, pry.ErrTimedOut) {
		t.Fatalf("second request: err = %v, want ErrTimedOut", got.err)
	}
	testutil.RequireBlocked(t, first, 20*time.Millisecond, "first requester released by the timeout")

	h.run("continue", "iex(1)>")
	if got := testutil.RequireReceive(t, first, waitTimeout); got.err != nil {
		t.Fatalf("first request: %v", got.err)
	}
}

type panickyEvaluator struct {
	BindingEvaluator
}

func (e *panickyEvaluator) Evaluate(ctx context.Context, input string, bindings pry.Bindings) (any, pry.Bindings, error) {
	if input == "boom" {
		panic("kaboom")
	}
	return e.BindingEvaluator.Evaluate(ctx, input, bindings)
}

func TestPanicReleasesGrant(t *testing.T) {
	broker, _ := newBroker()
	h := start(t, Options{Broker: broker, Interactive: true, Evaluator: &panickyEvaluator{}})
	h.expectPrompt("iex(1)>")

	flags := pry.NewFlags(io.Discard)
	done := request(broker, pry.WithExecution(context.Background(), "exec-worker", flags), nil, time.Minute)
	h.expectPrompt("pry(1)>")

	h.run("boom", "iex(1)>")
	h.requireOutput("** (panic) kaboom")
	got := testutil.RequireReceive(t, done, waitTimeout, "waiting for release")
	if got.result.Exit != pry.ExitPanic {
		t.Errorf("exit = %v, want panic", got.result.Exit)
	}
	if flags.TrapPanics() {
		t.Error("flags not restored after a panic")
	}

	// A panic in a top-level session is only reported.
	h.run("boom", "iex(2)>")
}

func TestLocalCompletion(t *testing.T) {
	h := start(t, Options{})
	h.expectPrompt("iex(1)>")
	h.run("alpha_value = 1", "iex(2)>")

	completed, ok := h.console.complete("alp")
	if !ok || completed != "alpha_value" {
		t.Errorf("complete(alp) = %q, %v", completed, ok)
	}
	completed, ok = h.console.complete("disc")
	if !ok || completed != "disconnect" {
		t.Errorf("complete(disc) = %q, %v", completed, ok)
	}
}

func TestSessionsCommand(t *testing.T) {
	broker, _ := newBroker()
	h := start(t, Options{Broker: broker, Interactive: true})
	h.expectPrompt("iex(1)>")
	shell := h.frontend.Current()

	request(broker, pry.WithExecution(context.Background(), "exec-worker", nil), nil, time.Minute)
	h.expectPrompt("pry(1)>")
	pried := h.frontend.Current()

	h.run("sessions", "pry(1)>")
	h.requireOutput("  " + shell.Handle().Short() + "  iex")
	h.requireOutput("* " + pried.Handle().Short() + "  pry")

	h.run("switch "+shell.Handle().Short(), "iex(1)>")
	h.run("switch", "iex(1)>")
	h.requireOutput("** (switch) usage: switch <session|peer>")
	h.run("switch nowhere", "iex(1)>")
	h.requireOutput(`** (switch) no session or peer "nowhere"`)
}
