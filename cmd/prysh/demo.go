// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/pry/lib/clock"
	"github.com/bureau-foundation/pry/pry"
	"github.com/bureau-foundation/pry/repl"
)

// worker is a demo job processor. Its state is what an operator sees
// after granting one of its take-over requests.
type worker struct {
	id        int
	processed int
	queue     []any
	lastError string
}

// bindings is the snapshot offered to the operator. step and poison act
// on the live worker, which is suspended while the operator holds it.
func (w *worker) bindings() pry.Bindings {
	return pry.Bindings{
		"worker":     w.id,
		"processed":  w.processed,
		"queue":      w.queue,
		"last_error": w.lastError,
		"step": repl.Func(func(ctx context.Context) (any, error) {
			if err := w.runStep(ctx); err != nil {
				return nil, err
			}
			return w.state(), nil
		}),
		"poison": repl.Func(func(context.Context) (any, error) {
			w.poison()
			return w.state(), nil
		}),
	}
}

func (w *worker) state() map[string]any {
	return map[string]any{
		"processed":  w.processed,
		"queued":     len(w.queue),
		"last_error": w.lastError,
	}
}

// step processes one job and enqueues another. A poisoned job panics.
func (w *worker) step() {
	if len(w.queue) > 0 {
		job := w.queue[0]
		w.queue = w.queue[1:]
		if fields, ok := job.(map[string]any); ok && fields["poisoned"] == true {
			panic(fmt.Sprintf("worker %d: %s is poisoned", w.id, fields["id"]))
		}
		w.processed++
	}
	job := map[string]any{"id": fmt.Sprintf("job-%d-%d", w.id, w.processed+len(w.queue)+1), "attempts": 0}
	if w.processed%3 == 2 {
		job["attempts"] = 3
		w.lastError = fmt.Sprintf("%s exhausted its retries", job["id"])
	}
	w.queue = append(w.queue, job)
}

// poison puts a job that panics at the head of the queue.
func (w *worker) poison() {
	job := map[string]any{"id": fmt.Sprintf("job-%d-poison", w.id), "poisoned": true}
	w.queue = append([]any{job}, w.queue...)
}

// runStep steps the worker and reports on the context's output. A
// panicking step is recovered only while the context traps panics,
// which it does while an operator holds it; otherwise the panic
// propagates to the caller.
func (w *worker) runStep(ctx context.Context) (err error) {
	flags := pry.ExecutionFlags(ctx)
	if flags == nil {
		flags = pry.NewFlags(io.Discard)
	}
	if flags.TrapPanics() {
		defer func() {
			if recovered := recover(); recovered != nil {
				w.lastError = fmt.Sprint(recovered)
				err = fmt.Errorf("step panicked: %v", recovered)
			}
		}()
	}
	w.step()
	fmt.Fprintf(flags.Output(), "worker %d: processed %d, %d queued\n", w.id, w.processed, len(w.queue))
	return nil
}

// runWorker steps a worker every interval and asks to be pried after
// each step until ctx is cancelled. Progress is written to output
// except while pried, when it goes to the operator.
func runWorker(ctx context.Context, broker *pry.Broker, id int, interval time.Duration, output io.Writer, logger *slog.Logger) {
	runWorkerWithClock(ctx, broker, id, interval, output, clock.Real(), logger)
}

func runWorkerWithClock(ctx context.Context, broker *pry.Broker, id int, interval time.Duration, output io.Writer, clk clock.Clock, logger *slog.Logger) {
	logger = logger.With("worker", id)
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("worker stopped", "panic", recovered)
		}
	}()

	w := &worker{id: id}
	ctx = pry.WithExecution(ctx, pry.NewExecutionID(), pry.NewFlags(output))
	for {
		select {
		case <-clk.After(interval):
		case <-ctx.Done():
			return
		}
		if err := w.runStep(ctx); err != nil {
			logger.Warn("worker step failed", "error", err)
		}
		result, err := pry.Pry(ctx, broker, w.bindings(), interval)
		if err != nil {
			logger.Debug("pry not granted", "error", err)
			continue
		}
		logger.Info("pry finished", "exit", result.Exit.String(), "suspended", result.Duration)
	}
}
