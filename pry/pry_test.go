// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/pry/lib/testutil"
	"github.com/bureau-foundation/pry/session"
)

func TestPryCapturesCaller(t *testing.T) {
	broker, _ := newBroker(t)
	broker.Attach(&fakeHost{interactive: true})

	done := make(chan outcome, 1)
	go func() {
		result, err := Pry(context.Background(), broker, Bindings{"x": 1}, time.Hour)
		done <- outcome{result, err}
	}()

	pending := testutil.RequireReceive(t, broker.Pending(), time.Second)
	origin := pending.Origin()
	if !strings.HasSuffix(origin.File, "pry_test.go") {
		t.Errorf("Origin.File = %q, want pry_test.go", origin.File)
	}
	if !strings.Contains(origin.Function, "TestPryCapturesCaller") {
		t.Errorf("Origin.Function = %q", origin.Function)
	}
	if !strings.HasPrefix(origin.ExecutionID, "exec-") {
		t.Errorf("Origin.ExecutionID = %q, want a generated id", origin.ExecutionID)
	}
	if !origin.Time.Equal(epoch) {
		t.Errorf("Origin.Time = %v, want the broker clock", origin.Time)
	}

	grant, err := pending.Grant(GrantOptions{Registry: session.NewRegistry(nil)})
	if err != nil {
		t.Fatalf("Grant: %v", err)
	}
	grant.Release(ExitContinue)
	if got := testutil.RequireReceive(t, done, time.Second); got.err != nil {
		t.Fatalf("Pry: %v", got.err)
	}
}

func TestPryUsesContextExecution(t *testing.T) {
	broker, _ := newBroker(t)
	broker.Attach(&fakeHost{interactive: true, active: "exec-shell"})

	// Evaluating pry inside the session that observes exec-shell.
	ctx := WithExecution(context.Background(), "exec-shell", nil)
	_, err := Pry(ctx, broker, nil, time.Hour)
	if !IsReject(err, SelfPry) {
		t.Fatalf("err = %v, want SelfPry", err)
	}
}

func TestOriginString(t *testing.T) {
	origin := Origin{Function: "main.handle", File: "/src/app/server.go", Line: 42, PID: 812}
	if got := origin.String(); got != "main.handle at server.go:42 (pid 812)" {
		t.Errorf("String() = %q", got)
	}
	if got := (Origin{}).String(); got != "unknown location" {
		t.Errorf("empty String() = %q", got)
	}
}

func TestConfirm(t *testing.T) {
	prompt := ConfirmPrompt(Origin{Function: "main.handle", File: "server.go", Line: 1})
	if prompt != "Request to pry main.handle at server.go:1. Allow? [Yn] " {
		t.Errorf("ConfirmPrompt = %q", prompt)
	}
	for answer, want := range map[string]bool{"": true, "y": true, " Yes\n": true, "n": false, "no": false, "x": false} {
		if got := ParseConfirm(answer); got != want {
			t.Errorf("ParseConfirm(%q) = %v, want %v", answer, got, want)
		}
	}
}
