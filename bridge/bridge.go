// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/pry/driver"
	"github.com/bureau-foundation/pry/lib/codec"
	"github.com/bureau-foundation/pry/lib/netutil"
)

// errClosedByCaller is the cause recorded when Disconnect closes a
// bridge.
var errClosedByCaller = errors.New("bridge closed")

// Stats counts a bridge's driver traffic.
type Stats struct {
	// Probes is the number of presence probes sent.
	Probes int

	// Installs is the number of units transferred.
	Installs int

	// InstallBytes is the total compressed unit payload transferred.
	InstallBytes int64

	// Commands is the number of commands answered.
	Commands int
}

// call is one outstanding request.
type call struct {
	seq      uint64
	response byte
	done     chan struct{}
	env      envelope
	err      error
}

// Bridge is a connection to one peer carrying one bridged session.
// Methods are safe for concurrent use; responses are delivered in
// request order.
type Bridge struct {
	peer    string
	conn    net.Conn
	catalog *driver.Catalog
	logger  *slog.Logger

	// writeMu serializes sequence assignment, queueing and frame
	// writes, so the queue order is the wire order.
	writeMu sync.Mutex
	nextSeq uint64

	queueMu  sync.Mutex
	queue    []*call
	failed   bool
	closeErr error
	closed   chan struct{}

	driverConfirmed atomic.Bool

	mu     sync.Mutex
	stats  Stats
	handle string
	node   string
	prompt string
}

func newBridge(peer string, conn net.Conn, catalog *driver.Catalog, logger *slog.Logger) *Bridge {
	b := &Bridge{
		peer:    peer,
		conn:    conn,
		catalog: catalog,
		logger:  logger.With("peer", peer),
		nextSeq: 1,
		closed:  make(chan struct{}),
	}
	go b.readLoop()
	return b
}

// Peer returns the peer node id.
func (b *Bridge) Peer() string { return b.peer }

// DriverConfirmed reports whether the peer is known to hold the
// session driver unit.
func (b *Bridge) DriverConfirmed() bool { return b.driverConfirmed.Load() }

// Stats returns a copy of the transfer counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Handle returns the peer's session handle, empty before start.
func (b *Bridge) Handle() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle
}

// Prompt returns the most recent prompt the peer sent.
func (b *Bridge) Prompt() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prompt
}

// Done is closed when the bridge closes for any reason.
func (b *Bridge) Done() <-chan struct{} { return b.closed }

// Err returns why the bridge closed, or nil while it is open.
func (b *Bridge) Err() error {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	return b.closeErr
}

// Send evaluates one command on the peer. Commands are answered in the
// order they were sent. A transport failure returns a Disconnected
// error and closes the bridge.
func (b *Bridge) Send(ctx context.Context, command Command) (Response, error) {
	if b.Handle() == "" {
		return Response{}, &Error{Kind: Protocol, Peer: b.peer, Err: errors.New("no session started")}
	}
	var response Response
	if err := b.roundTrip(ctx, FrameEval, command, &response); err != nil {
		return Response{}, err
	}
	b.mu.Lock()
	b.stats.Commands++
	b.prompt = response.Prompt
	b.mu.Unlock()
	return response, nil
}

// Complete asks the peer's completion server for candidates. The
// pry.complete unit must be installed; see EnsureUnit.
func (b *Bridge) Complete(ctx context.Context, line string) ([]string, error) {
	var result CompleteResult
	if err := b.roundTrip(ctx, FrameComplete, CompleteRequest{Line: line}, &result); err != nil {
		return nil, err
	}
	return result.Candidates, nil
}

// EnsureUnit makes sure the peer holds the named unit, probing first
// and installing and committing only when it is absent.
func (b *Bridge) EnsureUnit(ctx context.Context, name string) error {
	installed, err := b.ensure(ctx, name)
	if err != nil || !installed {
		return err
	}
	if err := b.roundTrip(ctx, FrameCommit, CommitRequest{Name: name}, &CommitResult{}); err != nil {
		return err
	}
	b.logger.Info("driver unit committed on peer", "unit", name)
	return nil
}

// ensure probes for name and installs it provisionally when missing.
// It reports whether an install was staged.
func (b *Bridge) ensure(ctx context.Context, name string) (bool, error) {
	unit, err := b.catalog.Unit(name)
	if err != nil {
		return false, &Error{Kind: InstallRejected, Peer: b.peer, Err: err}
	}

	var probe ProbeResult
	if err := b.roundTrip(ctx, FrameProbe, ProbeRequest{Ref: unit.Ref()}, &probe); err != nil {
		return false, err
	}
	b.mu.Lock()
	b.stats.Probes++
	b.mu.Unlock()
	if probe.Present {
		b.logger.Debug("driver unit present on peer", "unit", unit.Ref().String())
		return false, nil
	}

	var result InstallResult
	if err := b.roundTrip(ctx, FrameInstall, InstallRequest{Unit: unit}, &result); err != nil {
		return false, err
	}
	b.mu.Lock()
	b.stats.Installs++
	b.stats.InstallBytes += int64(unit.WireSize())
	b.mu.Unlock()
	b.logger.Info("driver unit transferred",
		"unit", unit.Ref().String(),
		"bytes", unit.WireSize(),
		"noop", result.Noop,
	)
	return !result.Noop, nil
}

// start opens the bridged session. The peer commits a provisional
// pry.remsh install before answering.
func (b *Bridge) start(ctx context.Context, request StartRequest) error {
	var result StartResult
	if err := b.roundTrip(ctx, FrameStart, request, &result); err != nil {
		return err
	}
	b.driverConfirmed.Store(true)
	b.mu.Lock()
	b.handle = result.Handle
	b.node = result.Node
	b.prompt = result.Prompt
	b.mu.Unlock()
	return nil
}

// Disconnect closes the bridge. Outstanding requests fail with a
// Disconnected error. Calling Disconnect more than once is harmless.
func (b *Bridge) Disconnect() {
	b.fail(errClosedByCaller)
}

// roundTrip sends one request and waits for its response. When ctx ends
// first the request stays queued so later responses still line up.
func (b *Bridge) roundTrip(ctx context.Context, requestType byte, request, response any) error {
	b.writeMu.Lock()
	seq := b.nextSeq
	frame, err := encodeFrame(requestType, seq, request)
	if err != nil {
		b.writeMu.Unlock()
		return &Error{Kind: Protocol, Peer: b.peer, Err: err}
	}
	pending := &call{seq: seq, response: responseType(requestType), done: make(chan struct{})}

	b.queueMu.Lock()
	if b.failed {
		closeErr := b.closeErr
		b.queueMu.Unlock()
		b.writeMu.Unlock()
		return closeErr
	}
	b.nextSeq++
	b.queue = append(b.queue, pending)
	b.queueMu.Unlock()

	writeErr := WriteFrame(b.conn, frame)
	b.writeMu.Unlock()
	if writeErr != nil {
		// fail resolves pending along with everything else queued.
		b.fail(writeErr)
	}

	select {
	case <-pending.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if pending.err != nil {
		return pending.err
	}
	if pending.env.Code != "" {
		return b.refusal(pending.env)
	}
	if response == nil || len(pending.env.Body) == 0 {
		return nil
	}
	if err := codec.Unmarshal(pending.env.Body, response); err != nil {
		diagnostic, _ := codec.Diagnose(pending.env.Body)
		b.logger.Debug("undecodable response body", "seq", seq, "body", diagnostic)
		return &Error{Kind: Protocol, Peer: b.peer, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

func (b *Bridge) refusal(env envelope) error {
	cause := &remoteError{code: env.Code, message: env.Message}
	kind := Protocol
	if env.Code == codeInstallRejected {
		kind = InstallRejected
	}
	return &Error{Kind: kind, Peer: b.peer, Err: cause}
}

// readLoop is the only reader. Each frame must answer the request at
// the head of the queue.
func (b *Bridge) readLoop() {
	for {
		frame, err := ReadFrame(b.conn)
		if err != nil {
			b.fail(err)
			return
		}
		env, err := decodeEnvelope(frame)
		if err != nil {
			b.fail(err)
			return
		}

		b.queueMu.Lock()
		if len(b.queue) == 0 {
			b.queueMu.Unlock()
			b.fail(fmt.Errorf("unsolicited frame type 0x%02x seq %d", frame.Type, env.Seq))
			return
		}
		head := b.queue[0]
		if head.seq != env.Seq || head.response != frame.Type {
			b.queueMu.Unlock()
			b.fail(fmt.Errorf("response out of order: got type 0x%02x seq %d, want type 0x%02x seq %d",
				frame.Type, env.Seq, head.response, head.seq))
			return
		}
		b.queue[0] = nil
		b.queue = b.queue[1:]
		b.queueMu.Unlock()

		if frame.Compressed {
			b.logger.Debug("compressed response", "seq", env.Seq, "bytes", len(frame.Payload))
		}
		head.env = env
		close(head.done)
	}
}

// fail closes the bridge once and resolves every queued request with a
// Disconnected error.
func (b *Bridge) fail(cause error) {
	b.queueMu.Lock()
	if b.failed {
		b.queueMu.Unlock()
		return
	}
	b.failed = true
	b.closeErr = &Error{Kind: Disconnected, Peer: b.peer, Err: cause}
	pending := b.queue
	b.queue = nil
	close(b.closed)
	b.queueMu.Unlock()

	b.conn.Close()
	for _, c := range pending {
		c.err = b.closeErr
		close(c.done)
	}

	switch {
	case errors.Is(cause, errClosedByCaller):
		b.logger.Info("bridge disconnected", "pending", len(pending))
	case netutil.IsExpectedCloseError(cause):
		b.logger.Info("bridge closed by peer", "pending", len(pending))
	default:
		b.logger.Warn("bridge failed", "error", cause, "pending", len(pending))
	}
}
