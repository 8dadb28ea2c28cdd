// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/pry/bridge"
	"github.com/bureau-foundation/pry/complete"
	"github.com/bureau-foundation/pry/lib/clock"
	"github.com/bureau-foundation/pry/pry"
	"github.com/bureau-foundation/pry/render"
	"github.com/bureau-foundation/pry/session"
	"github.com/bureau-foundation/pry/settings"
)

// Console is the operator's terminal. golang.org/x/term's Terminal
// satisfies it.
type Console interface {
	io.Writer
	ReadLine() (string, error)
	SetPrompt(prompt string)
}

// CompletingConsole is a Console that supports tab completion.
type CompletingConsole interface {
	Console
	SetCompletion(callback func(line string, pos int, key rune) (string, int, bool))
}

// Options configure a Frontend.
type Options struct {
	// Console is the operator terminal. Required.
	Console Console

	// Interactive reports whether Console is a real terminal. Take-over
	// requests are rejected with NoInteractiveHost when it is false.
	Interactive bool

	// Settings supplies prompts, history limits and display options.
	// Required.
	Settings *settings.Store

	// Registry receives every session the front-end opens. Required.
	Registry *session.Registry

	// Input is the active-input token. Nil creates a private one.
	Input *session.Input

	// Broker delivers take-over requests. Nil disables pry.
	Broker *pry.Broker

	// Evaluator runs local and pried input. Required.
	Evaluator Evaluator

	// Renderer formats results. Nil renders for Console.
	Renderer *render.Renderer

	// Node is the local node id, empty outside a bridge network.
	Node string

	// Confirm asks the operator before granting a take-over.
	Confirm bool

	// Dialer opens remote sessions. Nil disables connect.
	Dialer *bridge.Dialer

	// Connect names a peer to open a remote session on as soon as Run
	// starts. A failure is reported and leaves the local session current.
	Connect string

	// CommandTimeout bounds how long the front-end waits for a peer to
	// answer a bridged command. Zero uses DefaultCommandTimeout.
	CommandTimeout time.Duration

	// Peers lists the peer ids offered by the switch menu.
	Peers func() []string

	// Menu shows the switch menu. Nil makes switch require an argument.
	Menu MenuFunc

	// Clock stamps sessions. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives lifecycle events. Nil uses slog.Default.
	Logger *slog.Logger
}

// DefaultCommandTimeout is the wait for a bridged command's answer. A
// command that outlives it is reported and the operator gets the prompt
// back; its late answer is discarded.
const DefaultCommandTimeout = 30 * time.Second

type frameKind int

const (
	localFrame frameKind = iota
	priedFrame
	bridgedFrame
)

// frame is one session the front-end can drive.
type frame struct {
	kind        frameKind
	session     *session.Session
	executionID string
	flags       *pry.Flags
	bindings    pry.Bindings
	grant       *pry.Grant
	bridge      *bridge.Bridge

	// previous is where continue and disconnect return to.
	previous *frame
}

// Frontend is the interactive front-end: it reads operator input, runs
// it in the current session, serves take-over requests from the broker
// and switches between local, pried and bridged sessions.
type Frontend struct {
	options    Options
	logger     *slog.Logger
	completion *complete.Installer

	mu      sync.Mutex
	frames  []*frame
	current *frame

	// Owned by the Run goroutine.
	awaiting    *pry.Request
	shownPrompt string
}

// New creates a front-end.
func New(options Options) (*Frontend, error) {
	switch {
	case options.Console == nil:
		return nil, errors.New("repl: Console is required")
	case options.Settings == nil:
		return nil, errors.New("repl: Settings is required")
	case options.Registry == nil:
		return nil, errors.New("repl: Registry is required")
	case options.Evaluator == nil:
		return nil, errors.New("repl: Evaluator is required")
	}
	if options.Input == nil {
		options.Input = session.NewInput()
	}
	if options.Renderer == nil {
		options.Renderer = render.New(options.Console)
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.CommandTimeout <= 0 {
		options.CommandTimeout = DefaultCommandTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f := &Frontend{options: options, logger: logger}
	f.completion = &complete.Installer{
		Commands: commandNames(),
		Bindings: f.bindingNames,
		PeerFor:  f.peerFor,
		Logger:   logger,
	}
	return f, nil
}

// Interactive implements pry.Host.
func (f *Frontend) Interactive() bool { return f.options.Interactive }

// ActiveExecutionID implements pry.Host.
func (f *Frontend) ActiveExecutionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return ""
	}
	return f.current.executionID
}

// Current returns the session holding the input, or nil before Run.
func (f *Frontend) Current() *session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil
	}
	return f.current.session
}

type readResult struct {
	line string
	err  error
}

// errQuit ends Run cleanly.
var errQuit = errors.New("quit")

// Run drives the front-end until the operator exits, input ends or ctx
// is cancelled. Every held grant is released and every bridge closed
// before it returns.
func (f *Frontend) Run(ctx context.Context) error {
	if f.options.Broker != nil {
		detach := f.options.Broker.Attach(f)
		defer detach()
	}
	first := f.newLocal()
	f.adopt(first)
	f.setCurrent(ctx, first)
	defer f.shutdown()

	if f.options.Connect != "" {
		if err := f.connect(ctx, f.options.Connect); err != nil {
			f.diagnostic("connect", err)
		}
	}

	// The reader only calls ReadLine when asked, so nothing competes
	// with a menu program for the terminal between lines.
	reads := make(chan struct{})
	lines := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	go f.readLoop(reads, lines, done)

	reading := false
	for {
		f.pruneBridges(ctx)

		prompt := f.prompt()
		if !reading || prompt != f.shownPrompt {
			f.options.Console.SetPrompt(prompt)
			f.shownPrompt = prompt
		}
		if !reading {
			select {
			case reads <- struct{}{}:
				reading = true
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case result := <-lines:
			reading = false
			if result.err != nil {
				if errors.Is(result.err, io.EOF) {
					return nil
				}
				return fmt.Errorf("reading input: %w", result.err)
			}
			if err := f.handleLine(ctx, result.line); errors.Is(err, errQuit) {
				return nil
			}
		case request := <-f.pending():
			f.offer(ctx, request)
		case <-ctx.Done():
			return nil
		}
	}
}

func (f *Frontend) readLoop(reads <-chan struct{}, lines chan<- readResult, done <-chan struct{}) {
	for {
		select {
		case <-reads:
		case <-done:
			return
		}
		line, err := f.options.Console.ReadLine()
		select {
		case lines <- readResult{line: line, err: err}:
		case <-done:
			return
		}
	}
}

// pending returns the broker's request channel while the front-end can
// take a request. A host already holding a grant, or waiting on a
// confirmation, leaves new requests to time out.
func (f *Frontend) pending() <-chan *pry.Request {
	if f.options.Broker == nil || f.awaiting != nil {
		return nil
	}
	if _, held := f.options.Broker.Held(); held {
		return nil
	}
	return f.options.Broker.Pending()
}

func (f *Frontend) prompt() string {
	if f.awaiting != nil {
		return pry.ConfirmPrompt(f.awaiting.Origin())
	}
	f.mu.Lock()
	current := f.current
	f.mu.Unlock()

	if current.kind == bridgedFrame {
		return current.bridge.Prompt()
	}
	return current.session.Prompt(f.options.Settings.Snapshot())
}

func (f *Frontend) handleLine(ctx context.Context, line string) error {
	if f.awaiting != nil {
		request := f.awaiting
		f.awaiting = nil
		if !pry.ParseConfirm(line) {
			if err := request.Decline(); err != nil {
				f.diagnostic("pry", err)
			}
			return nil
		}
		f.grant(ctx, request)
		return nil
	}

	if strings.TrimSpace(line) == "" {
		return nil
	}

	f.mu.Lock()
	current := f.current
	f.mu.Unlock()

	if cmd, args, ok := lookupCommand(line, current.kind); ok {
		if err := cmd.run(ctx, f, args); err != nil {
			if errors.Is(err, errQuit) {
				return err
			}
			f.diagnostic(cmd.name, err)
		}
		return nil
	}

	if current.kind == bridgedFrame {
		f.send(ctx, current, line)
		return nil
	}
	f.evaluate(ctx, current, line)
	return nil
}

// offer handles a request taken from the broker.
func (f *Frontend) offer(ctx context.Context, request *pry.Request) {
	f.logger.Info("pry request received", "origin", request.Origin().String())
	if f.options.Confirm {
		f.info(fmt.Sprintf("pry request from %s", request.Origin()))
		f.awaiting = request
		return
	}
	f.grant(ctx, request)
}

func (f *Frontend) grant(ctx context.Context, request *pry.Request) {
	grant, err := request.Grant(pry.GrantOptions{
		Registry: f.options.Registry,
		Node:     f.options.Node,
		Output:   f.options.Console,
	})
	if err != nil {
		f.diagnostic("pry", err)
		return
	}
	flags := grant.Flags()
	if flags == nil {
		flags = pry.NewFlags(f.options.Console)
	}
	pried := &frame{
		kind:        priedFrame,
		session:     grant.Session(),
		executionID: grant.Origin().ExecutionID,
		flags:       flags,
		bindings:    grant.Bindings,
		grant:       grant,
	}
	f.completion.Install(ctx, pried.session)
	f.push(ctx, pried)

	names := request.BindingNames()
	message := fmt.Sprintf("prying %s", grant.Origin())
	if len(names) > 0 {
		message += "; bindings: " + strings.Join(names, ", ")
	}
	f.info(message + "\ntype continue to return or respawn for a fresh session")
}

// evaluate runs line in a local or pried frame. A panic is reported; in
// a pried frame it also releases the grant.
func (f *Frontend) evaluate(ctx context.Context, current *frame, line string) {
	snapshot := f.options.Settings.Snapshot()
	evalContext := pry.WithExecution(ctx, current.executionID, current.flags)

	f.mu.Lock()
	bindings := current.bindings
	f.mu.Unlock()

	result := f.safeEvaluate(evalContext, line, bindings)
	current.session.Record(line, snapshot.HistorySize)
	if result.panicked != nil {
		f.diagnostic("panic", fmt.Errorf("%v", result.panicked))
		if current.kind == priedFrame {
			f.release(ctx, current, pry.ExitPanic)
		}
		return
	}
	if result.err != nil {
		f.diagnostic("eval", result.err)
		return
	}

	f.mu.Lock()
	current.bindings = result.bindings
	if current.grant != nil {
		current.grant.Bindings = result.bindings
	}
	f.mu.Unlock()
	f.println(f.options.Renderer.Render(result.value, snapshot))
}

type evaluation struct {
	value    any
	bindings pry.Bindings
	err      error
	panicked any
}

func (f *Frontend) safeEvaluate(ctx context.Context, line string, bindings pry.Bindings) (result evaluation) {
	defer func() {
		if recovered := recover(); recovered != nil {
			f.logger.Error("evaluation panicked", "panic", recovered)
			result = evaluation{bindings: bindings, panicked: recovered}
		}
	}()
	value, next, err := f.options.Evaluator.Evaluate(ctx, line, bindings)
	return evaluation{value: value, bindings: next, err: err}
}

// send forwards line to a bridged frame's peer.
func (f *Frontend) send(ctx context.Context, current *frame, line string) {
	snapshot := f.options.Settings.Snapshot()

	sendContext, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := f.options.Clock.AfterFunc(f.options.CommandTimeout, cancel)
	defer timer.Stop()

	response, err := current.bridge.Send(sendContext, bridge.Command{Input: line})
	if err != nil && ctx.Err() == nil && sendContext.Err() != nil {
		f.logger.Warn("bridged command timed out", "peer", current.bridge.Peer(), "timeout", f.options.CommandTimeout)
		err = fmt.Errorf("no response from %s within %s", current.bridge.Peer(), f.options.CommandTimeout)
	}
	if err != nil {
		f.diagnostic(current.session.Prefix(), err)
		if bridge.IsKind(err, bridge.Disconnected) {
			f.closeBridge(ctx, current)
		}
		return
	}
	current.session.Record(line, snapshot.HistorySize)
	if response.Error != "" {
		f.diagnostic("eval", errors.New(response.Error))
		return
	}
	f.println(response.Output)
}

// connect opens a bridged frame to peerID.
func (f *Frontend) connect(ctx context.Context, peerID string) error {
	if f.options.Dialer == nil {
		return errors.New("bridging is not configured on this node")
	}
	f.mu.Lock()
	executionID := f.current.executionID
	f.mu.Unlock()

	b, err := f.options.Dialer.Connect(pry.WithExecution(ctx, executionID, nil), peerID)
	if err != nil {
		return err
	}

	prefix := f.options.Dialer.Prefix
	if prefix == "" {
		prefix = bridge.DefaultPrefix
	}
	remote := session.New(session.Options{
		Prefix: prefix,
		Node:   peerID,
		Owner:  session.Owner{ExecutionID: executionID, Remote: true, Peer: peerID},
		Clock:  f.options.Clock,
	})
	if err := remote.Transition(session.Bridged); err != nil {
		b.Disconnect()
		return err
	}
	f.options.Registry.Register(remote)

	bridged := &frame{
		kind:        bridgedFrame,
		session:     remote,
		executionID: executionID,
		bridge:      b,
	}
	f.push(ctx, bridged)
	f.completion.Install(ctx, remote)
	f.info(fmt.Sprintf("connected to %s", peerID))
	return nil
}

// closeBridge disconnects a bridged frame and removes it.
func (f *Frontend) closeBridge(ctx context.Context, bridged *frame) {
	bridged.bridge.Disconnect()
	f.options.Registry.Unregister(bridged.session.Handle())
	f.drop(ctx, bridged)
}

// pruneBridges removes bridged frames whose connection has gone away.
func (f *Frontend) pruneBridges(ctx context.Context) {
	f.mu.Lock()
	var dead []*frame
	for _, fr := range f.frames {
		if fr.kind != bridgedFrame {
			continue
		}
		select {
		case <-fr.bridge.Done():
			dead = append(dead, fr)
		default:
		}
	}
	f.mu.Unlock()

	for _, fr := range dead {
		err := fr.bridge.Err()
		if err == nil {
			err = errors.New("connection closed")
		}
		f.diagnostic(fr.session.Prefix(), err)
		f.closeBridge(ctx, fr)
	}
}

// release ends a pried frame with exit and removes it.
func (f *Frontend) release(ctx context.Context, pried *frame, exit pry.ExitReason) {
	pried.grant.Release(exit)
	f.drop(ctx, pried)
}

// respawn replaces the current frame with a fresh top-level session.
func (f *Frontend) respawn(ctx context.Context) {
	f.mu.Lock()
	current := f.current
	f.mu.Unlock()

	switch current.kind {
	case priedFrame:
		current.grant.Release(pry.ExitRespawn)
	case localFrame:
		f.options.Registry.Unregister(current.session.Handle())
	}
	f.remove(current)
	fresh := f.newLocal()
	f.adopt(fresh)
	f.setCurrent(ctx, fresh)
}

// newLocal creates and registers a top-level session.
func (f *Frontend) newLocal() *frame {
	s := session.New(session.Options{
		Prefix: "iex",
		Node:   f.options.Node,
		Clock:  f.options.Clock,
	})
	s.Transition(session.Running)
	f.options.Registry.Register(s)
	local := &frame{
		kind:        localFrame,
		session:     s,
		executionID: pry.NewExecutionID(),
		flags:       pry.NewFlags(f.options.Console),
		bindings:    pry.Bindings{},
	}
	f.completion.Install(context.Background(), s)
	return local
}

// adopt adds fr to the frames without making it current.
func (f *Frontend) adopt(fr *frame) {
	f.mu.Lock()
	f.frames = append(f.frames, fr)
	f.mu.Unlock()
}

// push adds fr on top of the current frame and makes it current.
func (f *Frontend) push(ctx context.Context, fr *frame) {
	f.mu.Lock()
	fr.previous = f.current
	f.mu.Unlock()
	f.adopt(fr)
	f.setCurrent(ctx, fr)
}

// remove forgets fr without choosing a new current frame.
func (f *Frontend) remove(fr *frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, candidate := range f.frames {
		if candidate == fr {
			f.frames = append(f.frames[:i], f.frames[i+1:]...)
			break
		}
	}
	for _, candidate := range f.frames {
		if candidate.previous == fr {
			candidate.previous = fr.previous
		}
	}
}

// drop forgets fr. If fr was current, its previous frame takes over, or
// the newest remaining frame, or a fresh top-level session.
func (f *Frontend) drop(ctx context.Context, fr *frame) {
	f.remove(fr)

	f.mu.Lock()
	if f.current != fr {
		f.mu.Unlock()
		return
	}
	next := fr.previous
	if next == nil && len(f.frames) > 0 {
		next = f.frames[len(f.frames)-1]
	}
	f.mu.Unlock()

	if next == nil {
		next = f.newLocal()
		f.adopt(next)
	}
	f.setCurrent(ctx, next)
}

// setCurrent hands the input to fr.
func (f *Frontend) setCurrent(ctx context.Context, fr *frame) {
	f.mu.Lock()
	var from session.Handle
	if f.current != nil {
		from = f.current.session.Handle()
	}
	if err := f.options.Input.Handoff(from, fr.session.Handle()); err != nil {
		f.logger.Warn("input handoff failed", "from", from.Short(), "to", fr.session.Handle().Short(), "error", err)
	}
	f.current = fr
	f.mu.Unlock()

	if completing, ok := f.options.Console.(CompletingConsole); ok {
		completing.SetCompletion(complete.Callback(ctx, fr.session, f.showCandidates))
	}
	f.logger.Debug("input handed off", "session", fr.session.Handle().Short(), "prefix", fr.session.Prefix())
}

// shutdown releases grants, closes bridges and ends local sessions.
func (f *Frontend) shutdown() {
	f.mu.Lock()
	frames := append([]*frame(nil), f.frames...)
	current := f.current
	f.frames = nil
	f.current = nil
	f.mu.Unlock()

	for i := len(frames) - 1; i >= 0; i-- {
		fr := frames[i]
		switch fr.kind {
		case priedFrame:
			fr.grant.Release(pry.ExitShutdown)
		case bridgedFrame:
			fr.bridge.Disconnect()
			f.options.Registry.Unregister(fr.session.Handle())
		default:
			f.options.Registry.Unregister(fr.session.Handle())
		}
	}
	if f.awaiting != nil {
		f.awaiting.Decline()
		f.awaiting = nil
	}
	if current != nil {
		f.options.Input.Release(current.session.Handle())
	}
}

func (f *Frontend) frameFor(s *session.Session) (*frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fr := range f.frames {
		if fr.session == s {
			return fr, true
		}
	}
	return nil, false
}

func (f *Frontend) bindingNames(s *session.Session) []string {
	fr, ok := f.frameFor(s)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return fr.bindings.Names()
}

func (f *Frontend) peerFor(s *session.Session) (complete.Peer, bool) {
	fr, ok := f.frameFor(s)
	if !ok || fr.bridge == nil {
		return nil, false
	}
	return fr.bridge, true
}

func (f *Frontend) showCandidates(candidates []string) {
	f.println(f.options.Renderer.Role(f.options.Settings.Snapshot(), settings.RoleEvalInfo, strings.Join(candidates, "  ")))
}

func (f *Frontend) println(text string) {
	fmt.Fprintln(f.options.Console, text)
}

func (f *Frontend) info(text string) {
	f.println(f.options.Renderer.Role(f.options.Settings.Snapshot(), settings.RoleEvalInfo, text))
}

func (f *Frontend) diagnostic(context string, err error) {
	f.println(f.options.Renderer.Diagnostic(f.options.Settings.Snapshot(), context, err))
}
