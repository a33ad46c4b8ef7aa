package ipc

import (
	"bytes"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, TypeStdinData, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFrame(&buf, TypeHeartbeat, nil); err != nil {
		t.Fatalf("write: %v", err)
	}

	f1, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read 1: %v", err)
	}
	if f1.Type != TypeStdinData || string(f1.Payload) != "hello" {
		t.Fatalf("unexpected frame: %+v", f1)
	}

	f2, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read 2: %v", err)
	}
	if f2.Type != TypeHeartbeat || len(f2.Payload) != 0 {
		t.Fatalf("unexpected frame: %+v", f2)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF, byte(TypeStdinData)})
	if _, err := ReadFrame(&buf); err == nil {
		t.Fatalf("expected oversized frame to be rejected")
	}
}

func TestReadFrameSkipsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, MessageType(0x7F), []byte("ignored")); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if f.Type != MessageType(0x7F) {
		t.Fatalf("expected type preserved for caller inspection, got %v", f.Type)
	}
}
