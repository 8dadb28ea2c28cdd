// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bureau-foundation/pry/driver"
	"github.com/bureau-foundation/pry/lib/codec"
	"github.com/bureau-foundation/pry/lib/compress"
)

// Frame types. Every request type is odd and its response is the next
// even value.
const (
	FrameProbe          byte = 0x01
	FrameProbeResult    byte = 0x02
	FrameInstall        byte = 0x03
	FrameInstallResult  byte = 0x04
	FrameCommit         byte = 0x05
	FrameCommitResult   byte = 0x06
	FrameStart          byte = 0x07
	FrameStartResult    byte = 0x08
	FrameEval           byte = 0x09
	FrameEvalResult     byte = 0x0a
	FrameComplete       byte = 0x0b
	FrameCompleteResult byte = 0x0c
)

// frameFlagLZ4 marks a payload as LZ4 compressed. The payload then
// starts with the big-endian uint32 uncompressed length.
const frameFlagLZ4 byte = 0x80

// frameHeaderLength is 1 type byte plus a 4-byte payload length.
const frameHeaderLength = 5

// maxPayloadLength bounds a single frame payload.
const maxPayloadLength = 16 * 1024 * 1024

// compressThreshold is the payload size above which frames are
// compressed.
const compressThreshold = 64 * 1024

// responseType returns the response frame type for a request type.
func responseType(request byte) byte { return request + 1 }

// Frame is one protocol message. Type never carries the compression
// flag; WriteFrame and ReadFrame handle it.
type Frame struct {
	Type       byte
	Payload    []byte
	Compressed bool
}

// WriteFrame writes frame to w, compressing payloads above 64 KiB when
// LZ4 makes them smaller.
func WriteFrame(w io.Writer, frame Frame) error {
	frameType := frame.Type
	payload := frame.Payload
	if len(payload) > compressThreshold {
		compressed, tag, err := compress.Compress(payload, compress.LZ4)
		if err != nil {
			return fmt.Errorf("compressing frame: %w", err)
		}
		if tag == compress.LZ4 {
			prefixed := make([]byte, 4, 4+len(compressed))
			binary.BigEndian.PutUint32(prefixed, uint32(len(payload)))
			payload = append(prefixed, compressed...)
			frameType |= frameFlagLZ4
		}
	}
	if len(payload) > maxPayloadLength {
		return fmt.Errorf("frame payload %d exceeds maximum %d", len(payload), maxPayloadLength)
	}

	// One Write per frame so concurrent writers interleave whole frames
	// only when the caller serializes them.
	buffer := make([]byte, frameHeaderLength+len(payload))
	buffer[0] = frameType
	binary.BigEndian.PutUint32(buffer[1:frameHeaderLength], uint32(len(payload)))
	copy(buffer[frameHeaderLength:], payload)
	if _, err := w.Write(buffer); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r, decompressing it when flagged.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("read frame header: %w", err)
	}
	frameType := header[0]
	payloadLength := binary.BigEndian.Uint32(header[1:frameHeaderLength])
	if payloadLength > maxPayloadLength {
		return Frame{}, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}
	payload := make([]byte, payloadLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, fmt.Errorf("read frame payload: %w", err)
	}

	if frameType&frameFlagLZ4 == 0 {
		return Frame{Type: frameType, Payload: payload}, nil
	}
	if len(payload) < 4 {
		return Frame{}, fmt.Errorf("compressed frame too short (%d bytes)", len(payload))
	}
	size := binary.BigEndian.Uint32(payload[:4])
	if size > maxPayloadLength {
		return Frame{}, fmt.Errorf("uncompressed length %d exceeds maximum %d", size, maxPayloadLength)
	}
	decompressed, err := compress.Decompress(payload[4:], compress.LZ4, int(size))
	if err != nil {
		return Frame{}, fmt.Errorf("decompressing frame: %w", err)
	}
	return Frame{Type: frameType &^ frameFlagLZ4, Payload: decompressed, Compressed: true}, nil
}

// envelope wraps every frame body. Responses echo the request's Seq.
// A host refusal sets Code and Message and leaves Body empty.
type envelope struct {
	Seq     uint64           `cbor:"seq"`
	Code    string           `cbor:"code,omitempty"`
	Message string           `cbor:"message,omitempty"`
	Body    codec.RawMessage `cbor:"body,omitempty"`
}

func encodeFrame(frameType byte, seq uint64, body any) (Frame, error) {
	env := envelope{Seq: seq}
	if body != nil {
		encoded, err := codec.Marshal(body)
		if err != nil {
			return Frame{}, fmt.Errorf("encoding frame body: %w", err)
		}
		env.Body = encoded
	}
	payload, err := codec.Marshal(env)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding envelope: %w", err)
	}
	return Frame{Type: frameType, Payload: payload}, nil
}

func encodeRefusal(frameType byte, seq uint64, code, message string) (Frame, error) {
	payload, err := codec.Marshal(envelope{Seq: seq, Code: code, Message: message})
	if err != nil {
		return Frame{}, fmt.Errorf("encoding envelope: %w", err)
	}
	return Frame{Type: frameType, Payload: payload}, nil
}

func decodeEnvelope(frame Frame) (envelope, error) {
	var env envelope
	if err := codec.Unmarshal(frame.Payload, &env); err != nil {
		return envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	return env, nil
}

// ProbeRequest asks whether the peer holds exactly Ref.
type ProbeRequest struct {
	Ref driver.Ref `cbor:"ref"`
}

type ProbeResult struct {
	Present bool `cbor:"present"`
}

// InstallRequest stages a unit on the peer. It stays provisional until
// committed by a CommitRequest or, for pry.remsh, a StartRequest.
type InstallRequest struct {
	Unit driver.Unit `cbor:"unit"`
}

type InstallResult struct {
	Noop bool `cbor:"noop"`
}

type CommitRequest struct {
	Name string `cbor:"name"`
}

type CommitResult struct{}

// StartRequest opens the bridged session for this connection.
type StartRequest struct {
	Prefix      string `cbor:"prefix"`
	ExecutionID string `cbor:"execution_id,omitempty"`
}

type StartResult struct {
	Handle string `cbor:"handle"`
	Node   string `cbor:"node"`
	Prompt string `cbor:"prompt"`
}

// Command is one line of input for the bridged session.
type Command struct {
	Input string `cbor:"input"`
}

// Response is the evaluated result of a Command. Error holds an
// evaluation failure reported by the peer's evaluator; the bridge
// itself succeeded. Prompt is the session's next prompt.
type Response struct {
	Output string `cbor:"output,omitempty"`
	Error  string `cbor:"error,omitempty"`
	Prompt string `cbor:"prompt"`
}

type CompleteRequest struct {
	Line string `cbor:"line"`
}

type CompleteResult struct {
	Candidates []string `cbor:"candidates"`
}
