package ws_test

import (
	"bytes"
	"testing"

	"github.com/momentics/asynchttp/ws"
)

func TestEncodeDecodeTextFrame(t *testing.T) {
	f := ws.TextFrame("hello websocket")
	var buf bytes.Buffer
	if err := ws.Encode(&buf, f, true); err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := ws.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Final || got.Opcode != ws.OpcodeText {
		t.Fatalf("unexpected frame header: %+v", got)
	}
	if string(got.Payload) != "hello websocket" {
		t.Fatalf("payload mismatch: got %q", got.Payload)
	}
}

func TestEncodeDecodeLargePayload(t *testing.T) {
	payload := bytes.Repeat([]byte{'x'}, 70000)
	f := ws.BinaryFrame(payload)
	var buf bytes.Buffer
	if err := ws.Encode(&buf, f, true); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ws.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("payload mismatch: got %d bytes, want %d", len(got.Payload), len(payload))
	}
}

func TestEncodeUnmaskedFrame(t *testing.T) {
	f := ws.TextFrame("server frame")
	var buf bytes.Buffer
	if err := ws.Encode(&buf, f, false); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := ws.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Masked {
		t.Fatal("expected unmasked frame")
	}
	if string(got.Payload) != "server frame" {
		t.Fatalf("payload mismatch: got %q", got.Payload)
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	f := &ws.Frame{Final: true, Opcode: ws.OpcodeBinary, Payload: make([]byte, ws.MaxFramePayload+1)}
	var buf bytes.Buffer
	if err := ws.Encode(&buf, f, false); err == nil {
		t.Fatal("expected encode to reject oversized payload")
	}
}
