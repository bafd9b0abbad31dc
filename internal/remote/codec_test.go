package remote

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestWriteFrameReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	env := Envelope{ID: "1", Method: MethodInitialize}
	if err := WriteFrame(&buf, &env); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	var got Envelope
	if err := ReadFrame(bufio.NewReader(&buf), &got); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if got.ID != env.ID || got.Method != env.Method {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, env)
	}
}

func TestWriteFrameRejectsOversizedPayload(t *testing.T) {
	var buf bytes.Buffer
	big := strings.Repeat("a", MaxFrameBytes+1)
	err := WriteFrame(&buf, map[string]string{"data": big})
	if err == nil {
		t.Fatalf("expected an error for an oversized frame")
	}
	var tooLarge *FrameTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected a *FrameTooLargeError, got %T: %v", err, err)
	}
}

func TestReadFrameMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		if err := WriteFrame(&buf, Envelope{ID: string(rune('a' + i))}); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
	reader := bufio.NewReader(&buf)
	for i := 0; i < 3; i++ {
		var env Envelope
		if err := ReadFrame(reader, &env); err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if env.ID != string(rune('a'+i)) {
			t.Fatalf("frame %d: got id %q", i, env.ID)
		}
	}
}
