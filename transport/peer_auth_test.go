// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/pry/lib/nodekey"
	"github.com/bureau-foundation/pry/lib/testutil"
)

// testAuthenticator implements PeerAuthenticator for tests using
// in-memory Ed25519 keypairs.
type testAuthenticator struct {
	privateKey ed25519.PrivateKey
	peerKeys   map[string]ed25519.PublicKey
}

func (a *testAuthenticator) Sign(message []byte) []byte {
	return ed25519.Sign(a.privateKey, message)
}

func (a *testAuthenticator) VerifyPeer(peerID string, message, signature []byte) error {
	publicKey, ok := a.peerKeys[peerID]
	if !ok {
		return fmt.Errorf("unknown peer: %s", peerID)
	}
	if !ed25519.Verify(publicKey, message, signature) {
		return fmt.Errorf("Ed25519 signature verification failed for %s", peerID)
	}
	return nil
}

// newTestKeypair generates a fresh Ed25519 keypair for testing.
func newTestKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating Ed25519 keypair: %v", err)
	}
	return publicKey, privateKey
}

// TestRunPeerAuth_MutualSuccess verifies that two peers with valid
// keypairs and each other's public keys complete authentication.
func TestRunPeerAuth_MutualSuccess(t *testing.T) {
	publicKeyAlpha, privateKeyAlpha := newTestKeypair(t)
	publicKeyBeta, privateKeyBeta := newTestKeypair(t)

	authAlpha := &testAuthenticator{
		privateKey: privateKeyAlpha,
		peerKeys:   map[string]ed25519.PublicKey{"beta": publicKeyBeta},
	}
	authBeta := &testAuthenticator{
		privateKey: privateKeyBeta,
		peerKeys:   map[string]ed25519.PublicKey{"alpha": publicKeyAlpha},
	}

	connectionAlpha, connectionBeta := net.Pipe()

	results := make(chan error, 2)
	go func() {
		results <- runPeerAuth(connectionAlpha, authAlpha, "alpha", "beta")
		connectionAlpha.Close()
	}()
	go func() {
		results <- runPeerAuth(connectionBeta, authBeta, "beta", "alpha")
		connectionBeta.Close()
	}()

	for range 2 {
		if err := <-results; err != nil {
			t.Fatalf("authentication failed: %v", err)
		}
	}
}

// TestRunPeerAuth_WrongKey verifies that authentication fails when a
// peer presents a signature from a different key than the one the
// verifier expects.
func TestRunPeerAuth_WrongKey(t *testing.T) {
	publicKeyAlpha, privateKeyAlpha := newTestKeypair(t)
	_, privateKeyBeta := newTestKeypair(t)
	_, privateKeyRogue := newTestKeypair(t)

	// Alpha knows the real beta key, but beta's slot is filled by a
	// rogue that has a different private key.
	authAlpha := &testAuthenticator{
		privateKey: privateKeyAlpha,
		peerKeys:   map[string]ed25519.PublicKey{"beta": privateKeyBeta.Public().(ed25519.PublicKey)},
	}
	authRogue := &testAuthenticator{
		privateKey: privateKeyRogue,
		peerKeys:   map[string]ed25519.PublicKey{"alpha": publicKeyAlpha},
	}

	connectionAlpha, connectionRogue := net.Pipe()

	results := make(chan error, 2)
	go func() {
		results <- runPeerAuth(connectionAlpha, authAlpha, "alpha", "beta")
		connectionAlpha.Close()
	}()
	go func() {
		results <- runPeerAuth(connectionRogue, authRogue, "beta", "alpha")
		connectionRogue.Close()
	}()

	// At least one side must fail (the side verifying the rogue's
	// signature). The other side may fail with a read error when the
	// first side tears down.
	var failures int
	for range 2 {
		if err := <-results; err != nil {
			failures++
		}
	}
	if failures == 0 {
		t.Fatal("expected at least one authentication failure, got none")
	}
}

// TestRunPeerAuth_UnknownPeer verifies that authentication fails when
// the verifier has no public key for the claimed peer identity.
func TestRunPeerAuth_UnknownPeer(t *testing.T) {
	publicKeyAlpha, privateKeyAlpha := newTestKeypair(t)
	_, privateKeyBeta := newTestKeypair(t)

	authAlpha := &testAuthenticator{
		privateKey: privateKeyAlpha,
		peerKeys:   map[string]ed25519.PublicKey{}, // no keys at all
	}
	authBeta := &testAuthenticator{
		privateKey: privateKeyBeta,
		peerKeys:   map[string]ed25519.PublicKey{"alpha": publicKeyAlpha},
	}

	connectionAlpha, connectionBeta := net.Pipe()

	results := make(chan error, 2)
	go func() {
		results <- runPeerAuth(connectionAlpha, authAlpha, "alpha", "beta")
		connectionAlpha.Close()
	}()
	go func() {
		results <- runPeerAuth(connectionBeta, authBeta, "beta", "alpha")
		connectionBeta.Close()
	}()

	var failures int
	for range 2 {
		if err := <-results; err != nil {
			failures++
		}
	}
	if failures == 0 {
		t.Fatal("expected at least one authentication failure, got none")
	}
}

// TestRunPeerAuth_BrokenChannel verifies that authentication fails
// gracefully when the underlying connection breaks mid-handshake.
func TestRunPeerAuth_BrokenChannel(t *testing.T) {
	_, privateKeyAlpha := newTestKeypair(t)
	publicKeyBeta, _ := newTestKeypair(t)

	authAlpha := &testAuthenticator{
		privateKey: privateKeyAlpha,
		peerKeys:   map[string]ed25519.PublicKey{"beta": publicKeyBeta},
	}

	connectionAlpha, connectionBeta := net.Pipe()

	// Close beta's side immediately to simulate a broken connection.
	connectionBeta.Close()

	err := runPeerAuth(connectionAlpha, authAlpha, "alpha", "beta")
	if err == nil {
		t.Fatal("expected error from broken channel, got nil")
	}
}

// newIdentity generates a node key for id with an empty keyring.
func newIdentity(t *testing.T, id string) Identity {
	t.Helper()
	key, err := nodekey.Generate()
	if err != nil {
		t.Fatalf("generating node key: %v", err)
	}
	t.Cleanup(func() { key.Close() })
	return Identity{ID: id, Key: key, Keyring: NewKeyring()}
}

// trustEachOther adds each identity's public key to the other's keyring.
func trustEachOther(a, b Identity) {
	a.Keyring.Add(b.ID, b.Key.Public())
	b.Keyring.Add(a.ID, a.Key.Public())
}

type handshakeResult struct {
	peerID string
	err    error
}

// handshake runs Authenticate on both ends of a pipe. The dialing side
// expects expectedPeer; each side closes its end when done so a failure
// on one side unblocks the other.
func handshake(ctx context.Context, dialer, listener Identity, expectedPeer string) (dialed, accepted handshakeResult) {
	dialerConn, listenerConn := net.Pipe()
	dialerResult := make(chan handshakeResult, 1)
	listenerResult := make(chan handshakeResult, 1)
	go func() {
		peerID, err := Authenticate(ctx, dialerConn, dialer, expectedPeer)
		if err != nil {
			dialerConn.Close()
		}
		dialerResult <- handshakeResult{peerID, err}
	}()
	go func() {
		peerID, err := Authenticate(ctx, listenerConn, listener, "")
		if err != nil {
			listenerConn.Close()
		}
		listenerResult <- handshakeResult{peerID, err}
	}()
	dialed = <-dialerResult
	accepted = <-listenerResult
	dialerConn.Close()
	listenerConn.Close()
	return dialed, accepted
}

func TestAuthenticateMutual(t *testing.T) {
	alpha := newIdentity(t, "alpha")
	beta := newIdentity(t, "beta")
	trustEachOther(alpha, beta)

	dialed, accepted := handshake(context.Background(), alpha, beta, "beta")
	if dialed.err != nil || accepted.err != nil {
		t.Fatalf("handshake failed: dialer=%v listener=%v", dialed.err, accepted.err)
	}
	if dialed.peerID != "beta" {
		t.Errorf("dialer authenticated %q, want beta", dialed.peerID)
	}
	if accepted.peerID != "alpha" {
		t.Errorf("listener authenticated %q, want alpha", accepted.peerID)
	}
}

func TestAuthenticateUnexpectedPeer(t *testing.T) {
	alpha := newIdentity(t, "alpha")
	beta := newIdentity(t, "beta")
	trustEachOther(alpha, beta)

	dialed, accepted := handshake(context.Background(), alpha, beta, "gamma")
	if !errors.Is(dialed.err, ErrUnexpectedPeer) {
		t.Errorf("dialer error = %v, want ErrUnexpectedPeer", dialed.err)
	}
	if accepted.err == nil {
		t.Error("listener should fail once the dialer abandons the handshake")
	}
}

func TestAuthenticateUntrusted(t *testing.T) {
	alpha := newIdentity(t, "alpha")
	beta := newIdentity(t, "beta")
	// Beta trusts alpha, alpha does not trust beta.
	beta.Keyring.Add(alpha.ID, alpha.Key.Public())

	dialed, _ := handshake(context.Background(), alpha, beta, "beta")
	if !errors.Is(dialed.err, ErrUntrusted) {
		t.Errorf("dialer error = %v, want ErrUntrusted", dialed.err)
	}
}

func TestAuthenticateImpostor(t *testing.T) {
	alpha := newIdentity(t, "alpha")
	beta := newIdentity(t, "beta")
	impostor := newIdentity(t, "beta")
	trustEachOther(alpha, beta)
	impostor.Keyring.Add(alpha.ID, alpha.Key.Public())

	dialed, _ := handshake(context.Background(), alpha, impostor, "beta")
	if !errors.Is(dialed.err, ErrUntrusted) {
		t.Errorf("dialer error = %v, want ErrUntrusted", dialed.err)
	}
}

func TestAuthenticateCancelled(t *testing.T) {
	alpha := newIdentity(t, "alpha")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conn, peer := net.Pipe()
	defer peer.Close()
	defer conn.Close()

	done := make(chan error, 1)
	go func() {
		_, err := Authenticate(ctx, conn, alpha, "beta")
		done <- err
	}()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "Authenticate did not return"); err == nil {
		t.Fatal("Authenticate succeeded with a cancelled context")
	}
}
