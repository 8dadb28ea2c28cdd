// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/pry/lib/nodekey"
)

// helloMagic opens every connection; the last byte is the handshake
// version.
var helloMagic = [4]byte{'p', 'r', 'y', 1}

// maxPeerIDLength bounds the id carried in a hello.
const maxPeerIDLength = 255

// authNonceSize is the size of the random challenge nonce in bytes.
const authNonceSize = 32

// authSignatureSize is the size of an Ed25519 signature in bytes.
const authSignatureSize = 64

// authTimeout is the maximum time allowed for the whole handshake when
// the context carries no earlier deadline.
const authTimeout = 10 * time.Second

// ErrUnexpectedPeer is returned to a dialer when the node it reached
// announces a different id than the one it dialed.
var ErrUnexpectedPeer = errors.New("unexpected peer identity")

// PeerAuthenticator signs challenges with the local key and verifies
// peer signatures.
type PeerAuthenticator interface {
	// Sign signs message with the local node's Ed25519 private key.
	Sign(message []byte) []byte

	// VerifyPeer checks that signature is a valid signature of message
	// by the node identified by peerID.
	VerifyPeer(peerID string, message, signature []byte) error
}

// Identity is the local side of a handshake.
type Identity struct {
	ID      string
	Key     *nodekey.Key
	Keyring *Keyring
}

// Sign implements PeerAuthenticator.
func (i Identity) Sign(message []byte) []byte {
	return ed25519.Sign(i.Key.Private(), message)
}

// VerifyPeer implements PeerAuthenticator.
func (i Identity) VerifyPeer(peerID string, message, signature []byte) error {
	return i.Keyring.VerifyPeer(peerID, message, signature)
}

// Authenticate runs the hello exchange and mutual authentication on
// conn and returns the authenticated peer id. A dialer passes the id it
// expects in expectedPeer; a listener passes "". The connection's
// deadline is cleared on success.
func Authenticate(ctx context.Context, conn net.Conn, local Identity, expectedPeer string) (string, error) {
	deadline := time.Now().Add(authTimeout)
	if contextDeadline, ok := ctx.Deadline(); ok && contextDeadline.Before(deadline) {
		deadline = contextDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("setting handshake deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	peerID, err := exchangeHello(conn, local.ID)
	if err != nil {
		return "", err
	}
	if expectedPeer != "" && peerID != expectedPeer {
		return "", fmt.Errorf("%w: dialed %q, reached %q", ErrUnexpectedPeer, expectedPeer, peerID)
	}
	if !local.Keyring.IsTrusted(peerID) {
		return "", fmt.Errorf("%w: %q is not in the keyring", ErrUntrusted, peerID)
	}
	if err := runPeerAuth(conn, local, local.ID, peerID); err != nil {
		return "", err
	}

	if !stop() {
		return "", ctx.Err()
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		return "", fmt.Errorf("clearing handshake deadline: %w", err)
	}
	return peerID, nil
}

// exchangeHello sends our id and reads the peer's. The write runs in the
// background so synchronous connections such as net.Pipe cannot
// deadlock with both sides writing first.
func exchangeHello(conn io.ReadWriter, localID string) (string, error) {
	if len(localID) == 0 || len(localID) > maxPeerIDLength {
		return "", fmt.Errorf("node id must be 1-%d bytes, got %d", maxPeerIDLength, len(localID))
	}
	hello := make([]byte, 0, len(helloMagic)+1+len(localID))
	hello = append(hello, helloMagic[:]...)
	hello = append(hello, byte(len(localID)))
	hello = append(hello, localID...)

	writeErrors := make(chan error, 1)
	go func() {
		_, err := conn.Write(hello)
		writeErrors <- err
	}()

	var header [len(helloMagic) + 1]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return "", fmt.Errorf("reading peer hello: %w", err)
	}
	if [4]byte(header[:4]) != helloMagic {
		return "", fmt.Errorf("peer hello has bad magic %x", header[:4])
	}
	peerID := make([]byte, header[4])
	if len(peerID) == 0 {
		return "", errors.New("peer hello has an empty id")
	}
	if _, err := io.ReadFull(conn, peerID); err != nil {
		return "", fmt.Errorf("reading peer id: %w", err)
	}
	if err := <-writeErrors; err != nil {
		return "", fmt.Errorf("sending hello: %w", err)
	}
	return string(peerID), nil
}

// runPeerAuth executes the mutual authentication protocol. Both peers
// run this function simultaneously on the same connection:
//
//  1. Send a 32-byte random nonce
//  2. Read the peer's 32-byte nonce
//  3. Sign (peerNonce || peerID)
//  4. Send the 64-byte Ed25519 signature
//  5. Read the peer's 64-byte signature
//  6. Verify it against (ownNonce || ownID) using the peer's key
//
// Binding the id in step 3 prevents a valid signature for peer A from
// being replayed to authenticate against peer B. Writes go through a
// background goroutine so the two sides never block on simultaneous
// writes.
func runPeerAuth(channel io.ReadWriter, authenticator PeerAuthenticator, localID, peerID string) error {
	nonce := make([]byte, authNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating auth nonce: %w", err)
	}

	writeErrors := make(chan error, 1)
	signatureToSend := make(chan []byte, 1)

	go func() {
		if _, err := channel.Write(nonce); err != nil {
			writeErrors <- fmt.Errorf("sending auth nonce: %w", err)
			return
		}
		signature, ok := <-signatureToSend
		if !ok {
			return
		}
		if _, err := channel.Write(signature); err != nil {
			writeErrors <- fmt.Errorf("sending auth signature: %w", err)
			return
		}
		writeErrors <- nil
	}()

	peerNonce := make([]byte, authNonceSize)
	if _, err := io.ReadFull(channel, peerNonce); err != nil {
		close(signatureToSend)
		return fmt.Errorf("reading peer nonce: %w", err)
	}

	signedMessage := make([]byte, 0, authNonceSize+len(peerID))
	signedMessage = append(signedMessage, peerNonce...)
	signedMessage = append(signedMessage, peerID...)
	signatureToSend <- authenticator.Sign(signedMessage)

	peerSignature := make([]byte, authSignatureSize)
	if _, err := io.ReadFull(channel, peerSignature); err != nil {
		return fmt.Errorf("reading peer signature: %w", err)
	}

	if err := <-writeErrors; err != nil {
		return err
	}

	verifyMessage := make([]byte, 0, authNonceSize+len(localID))
	verifyMessage = append(verifyMessage, nonce...)
	verifyMessage = append(verifyMessage, localID...)
	if err := authenticator.VerifyPeer(peerID, verifyMessage, peerSignature); err != nil {
		return fmt.Errorf("peer %s failed authentication: %w", peerID, err)
	}
	return nil
}
