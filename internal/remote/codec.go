// Package remote implements the editor protocol (§6): length-prefixed
// JSON-RPC-style messages over a duplex byte stream, letting a remote
// editor create sessions, send messages, and answer approval/questionnaire
// interactions the agent loop raises mid turn.
package remote

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameBytes bounds a single frame per §6's indicative size caps.
const MaxFrameBytes = 1 << 20 // 1 MiB

// MaxMessageBytes bounds one JSON-RPC message payload.
const MaxMessageBytes = 64 * 1024

// FrameTooLargeError is returned by ReadFrame when the declared length
// exceeds MaxFrameBytes; callers map this onto the payload-too-large
// framing error (§6).
type FrameTooLargeError struct{ Declared uint32 }

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("remote: frame of %d bytes exceeds the %d byte cap", e.Declared, MaxFrameBytes)
}

// WriteFrame writes v as a length-prefixed JSON frame: a 4-byte big-endian
// length header followed by that many bytes of JSON. The framing itself is
// transport-independent (§6); this is the codec used regardless of
// whether the duplex stream is a pipe, a TCP socket, or one message of a
// websocket connection.
func WriteFrame(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("remote: marshal frame: %w", err)
	}
	if len(payload) > MaxFrameBytes {
		return &FrameTooLargeError{Declared: uint32(len(payload))}
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("remote: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("remote: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed JSON frame from r and unmarshals it
// into v.
func ReadFrame(r *bufio.Reader, v any) error {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(header)
	if length > MaxFrameBytes {
		return &FrameTooLargeError{Declared: length}
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("remote: read frame body: %w", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("remote: unmarshal frame: %w", err)
	}
	return nil
}
