// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/bureau-foundation/pry/complete"
	"github.com/bureau-foundation/pry/driver"
	"github.com/bureau-foundation/pry/lib/clock"
	"github.com/bureau-foundation/pry/lib/codec"
	"github.com/bureau-foundation/pry/lib/netutil"
	"github.com/bureau-foundation/pry/pry"
	"github.com/bureau-foundation/pry/session"
	"github.com/bureau-foundation/pry/settings"
	"github.com/bureau-foundation/pry/transport"
)

// Evaluator evaluates one line of input against a set of bindings and
// returns the value and the updated bindings.
type Evaluator interface {
	Evaluate(ctx context.Context, input string, bindings pry.Bindings) (any, pry.Bindings, error)
}

// Formatter renders evaluated values for display.
type Formatter interface {
	Render(value any, snapshot settings.Snapshot) string
}

// HostOptions configure a Host.
type HostOptions struct {
	// Identity is the local node's id, key and keyring.
	Identity transport.Identity

	// Store holds installed driver units.
	Store *driver.Store

	// Settings provides prompts and history limits for bridged sessions.
	Settings *settings.Store

	// Registry receives one Bridged session per started connection.
	Registry *session.Registry

	Evaluator Evaluator
	Formatter Formatter

	// MaxSessions caps concurrently bridged sessions. Zero is unlimited.
	MaxSessions int

	// Clock stamps sessions. Nil uses the real clock.
	Clock clock.Clock

	// Logger receives connection events. Nil uses slog.Default.
	Logger *slog.Logger
}

// Host serves bridge connections from peers.
type Host struct {
	options HostOptions
	logger  *slog.Logger

	mu      sync.Mutex
	bridged int

	connections sync.WaitGroup
}

// NewHost creates a host.
func NewHost(options HostOptions) *Host {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	return &Host{options: options, logger: logger}
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener and waits for in-flight connections to finish. It returns
// nil on a clean shutdown.
func (h *Host) Serve(ctx context.Context, listener transport.Listener) error {
	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	h.logger.Info("bridge host listening", "address", listener.Address(), "node", h.options.Identity.ID)

	var connectionCount int64
	for {
		conn, err := listener.Accept()
		if err != nil {
			h.connections.Wait()
			if ctx.Err() != nil || netutil.IsExpectedCloseError(err) {
				return nil
			}
			return fmt.Errorf("accepting bridge connection: %w", err)
		}

		connectionCount++
		connectionID := connectionCount
		h.connections.Add(1)
		go func() {
			defer h.connections.Done()
			h.ServeConn(ctx, conn, connectionID)
		}()
	}
}

// ServeConn authenticates conn and answers its requests in order until
// the peer disconnects or ctx is cancelled.
func (h *Host) ServeConn(ctx context.Context, conn net.Conn, connectionID int64) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger := h.logger.With("connection_id", connectionID)
	peer, err := transport.Authenticate(ctx, conn, h.options.Identity, "")
	if err != nil {
		logger.Warn("bridge handshake failed", "remote_addr", conn.RemoteAddr(), "error", err)
		return
	}
	logger = logger.With("peer", peer)
	logger.Info("bridge peer connected")

	state := &hostConn{
		host:   h,
		conn:   conn,
		peer:   peer,
		logger: logger,
		staged: make(map[string]*driver.Txn),
	}
	defer state.close()

	for {
		frame, err := ReadFrame(conn)
		if err != nil {
			if netutil.IsExpectedCloseError(err) || ctx.Err() != nil {
				logger.Info("bridge peer disconnected")
			} else {
				logger.Warn("bridge read failed", "error", err)
			}
			return
		}
		response, err := state.handle(ctx, frame)
		if err != nil {
			logger.Warn("closing bridge after protocol error", "error", err)
			return
		}
		if err := WriteFrame(conn, response); err != nil {
			logger.Warn("bridge write failed", "error", err)
			return
		}
	}
}

// reserve claims a bridged session slot.
func (h *Host) reserve() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.options.MaxSessions > 0 && h.bridged >= h.options.MaxSessions {
		return false
	}
	h.bridged++
	return true
}

func (h *Host) unreserve() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridged--
}

// hostConn is the per-connection state. It is only touched by the
// connection's goroutine.
type hostConn struct {
	host   *Host
	conn   net.Conn
	peer   string
	logger *slog.Logger

	staged   map[string]*driver.Txn
	session  *session.Session
	bindings pry.Bindings
}

// errRefused carries a refusal code back to handle.
type errRefused struct {
	code    string
	message string
}

func (e *errRefused) Error() string { return e.message }

func refuse(code, format string, args ...any) error {
	return &errRefused{code: code, message: fmt.Sprintf(format, args...)}
}

// handle answers one request frame. A returned error is a protocol
// violation that ends the connection; refusals become envelopes.
func (c *hostConn) handle(ctx context.Context, frame Frame) (Frame, error) {
	env, err := decodeEnvelope(frame)
	if err != nil {
		return Frame{}, err
	}

	var body any
	switch frame.Type {
	case FrameProbe:
		var request ProbeRequest
		if err = decodeBody(env, &request); err == nil {
			body, err = c.probe(request)
		}
	case FrameInstall:
		var request InstallRequest
		if err = decodeBody(env, &request); err == nil {
			body, err = c.install(request)
		}
	case FrameCommit:
		var request CommitRequest
		if err = decodeBody(env, &request); err == nil {
			body, err = c.commit(request)
		}
	case FrameStart:
		var request StartRequest
		if err = decodeBody(env, &request); err == nil {
			body, err = c.start(request)
		}
	case FrameEval:
		var request Command
		if err = decodeBody(env, &request); err == nil {
			body, err = c.eval(ctx, request)
		}
	case FrameComplete:
		var request CompleteRequest
		if err = decodeBody(env, &request); err == nil {
			body, err = c.complete(request)
		}
	default:
		return Frame{}, fmt.Errorf("unknown request type 0x%02x", frame.Type)
	}

	var refused *errRefused
	if errors.As(err, &refused) {
		c.logger.Info("bridge request refused", "type", frame.Type, "code", refused.code, "reason", refused.message)
		return encodeRefusal(responseType(frame.Type), env.Seq, refused.code, refused.message)
	}
	if err != nil {
		return Frame{}, err
	}
	c.logger.Debug("bridge request answered", "type", frame.Type, "seq", env.Seq)
	return encodeFrame(responseType(frame.Type), env.Seq, body)
}

func decodeBody(env envelope, target any) error {
	if err := codec.Unmarshal(env.Body, target); err != nil {
		return refuse(codeBadRequest, "decoding request: %v", err)
	}
	return nil
}

func (c *hostConn) probe(request ProbeRequest) (ProbeResult, error) {
	return ProbeResult{Present: c.host.options.Store.Has(request.Ref)}, nil
}

func (c *hostConn) install(request InstallRequest) (InstallResult, error) {
	txn, err := c.host.options.Store.Install(request.Unit)
	if err != nil {
		return InstallResult{}, refuse(codeInstallRejected, "%v", err)
	}
	if txn.Noop() {
		return InstallResult{Noop: true}, nil
	}
	if previous, ok := c.staged[request.Unit.Name]; ok {
		previous.Rollback()
	}
	c.staged[request.Unit.Name] = txn
	return InstallResult{}, nil
}

func (c *hostConn) commit(request CommitRequest) (CommitResult, error) {
	txn, ok := c.staged[request.Name]
	if !ok {
		if _, installed := c.host.options.Store.Manifest(request.Name); installed {
			return CommitResult{}, nil
		}
		return CommitResult{}, refuse(codeNotInstalled, "unit %q is not staged", request.Name)
	}
	delete(c.staged, request.Name)
	if err := txn.Commit(); err != nil {
		return CommitResult{}, refuse(codeInstallRejected, "%v", err)
	}
	return CommitResult{}, nil
}

// start opens the connection's bridged session and commits a staged
// pry.remsh. When the session cannot start the staged unit is rolled
// back.
func (c *hostConn) start(request StartRequest) (StartResult, error) {
	options := c.host.options
	txn, staged := c.staged[driver.Remsh]
	if !staged {
		if _, installed := options.Store.Manifest(driver.Remsh); !installed {
			return StartResult{}, refuse(codeNotInstalled, "driver unit %q is not installed", driver.Remsh)
		}
	}
	rollback := func() {
		if staged {
			delete(c.staged, driver.Remsh)
			txn.Rollback()
		}
	}

	if c.session != nil {
		rollback()
		return StartResult{}, refuse(codeStartFailed, "session already started on this connection")
	}
	if !c.host.reserve() {
		rollback()
		return StartResult{}, refuse(codeStartFailed, "node is at its limit of %d bridged sessions", options.MaxSessions)
	}

	prefix := request.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := session.New(session.Options{
		Prefix: prefix,
		Node:   options.Identity.ID,
		Owner: session.Owner{
			ExecutionID: request.ExecutionID,
			Remote:      true,
			Peer:        c.peer,
		},
		Clock: options.Clock,
	})
	if err := s.Transition(session.Bridged); err != nil {
		c.host.unreserve()
		rollback()
		return StartResult{}, refuse(codeStartFailed, "%v", err)
	}

	if staged {
		delete(c.staged, driver.Remsh)
		if err := txn.Commit(); err != nil {
			c.host.unreserve()
			return StartResult{}, refuse(codeStartFailed, "committing driver: %v", err)
		}
	}

	options.Registry.Register(s)
	c.session = s
	c.bindings = pry.Bindings{}
	c.logger.Info("bridged session started", "session", s.Handle().Short(), "prefix", prefix)

	return StartResult{
		Handle: string(s.Handle()),
		Node:   options.Identity.ID,
		Prompt: s.Prompt(options.Settings.Snapshot()),
	}, nil
}

func (c *hostConn) eval(ctx context.Context, command Command) (Response, error) {
	if c.session == nil {
		return Response{}, refuse(codeNoSession, "no session started on this connection")
	}
	options := c.host.options
	snapshot := options.Settings.Snapshot()

	// Output the evaluated code prints travels back ahead of the
	// rendered value.
	var printed strings.Builder
	ctx = pry.WithExecution(ctx, c.session.Owner().ExecutionID, pry.NewFlags(&printed))

	var response Response
	value, bindings, err := c.evaluate(ctx, command.Input)
	if err != nil {
		response.Error = err.Error()
	} else {
		c.bindings = bindings
		response.Output = printed.String() + options.Formatter.Render(value, snapshot)
	}
	c.session.Record(command.Input, snapshot.HistorySize)
	response.Prompt = c.session.Prompt(snapshot)
	return response, nil
}

// evaluate runs the evaluator, turning a panic into an error so that
// only this command fails.
func (c *hostConn) evaluate(ctx context.Context, input string) (value any, bindings pry.Bindings, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			c.logger.Error("bridged evaluation panicked", "panic", recovered, "session", c.session.Handle().Short())
			value, bindings, err = nil, c.bindings, fmt.Errorf("panic: %v", recovered)
		}
	}()
	return c.host.options.Evaluator.Evaluate(ctx, input, c.bindings)
}

func (c *hostConn) complete(request CompleteRequest) (CompleteResult, error) {
	manifest, ok := c.host.options.Store.Manifest(driver.Complete)
	if !ok {
		return CompleteResult{}, refuse(codeNotInstalled, "driver unit %q is not installed", driver.Complete)
	}
	candidates := append([]string(nil), manifest.Commands...)
	candidates = append(candidates, c.bindings.Names()...)
	return CompleteResult{Candidates: complete.Suggest(request.Line, candidates)}, nil
}

// close rolls back uncommitted installs and ends the bridged session.
func (c *hostConn) close() {
	for name, txn := range c.staged {
		txn.Rollback()
		delete(c.staged, name)
	}
	if c.session != nil {
		c.host.options.Registry.Unregister(c.session.Handle())
		c.host.unreserve()
		c.logger.Info("bridged session ended", "session", c.session.Handle().Short())
	}
}
