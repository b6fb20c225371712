package protocol_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/glancehq/glance-relay/internal/protocol"
)

func TestDecodeInbound(t *testing.T) {
	c := protocol.NewCodec()

	raw := []byte(`{"type":"chat","payload":{"message":"hola"},"messageId":"m-1"}`)
	msg, err := c.DecodeInbound(raw)
	if err != nil {
		t.Fatalf("DecodeInbound failed: %v", err)
	}

	if msg.Type != protocol.TypeChat {
		t.Fatalf("expected chat type, got %q", msg.Type)
	}
	if msg.MessageID != "m-1" {
		t.Fatalf("expected messageId m-1, got %q", msg.MessageID)
	}

	var p protocol.ChatPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		t.Fatalf("decoding chat payload: %v", err)
	}
	if p.Message != "hola" {
		t.Fatalf("expected message hola, got %q", p.Message)
	}
}

func TestDecodeInboundRejectsMalformed(t *testing.T) {
	c := protocol.NewCodec()

	cases := map[string]string{
		"not json":          `{"type":`,
		"missing type":      `{"payload":{},"messageId":"m-1"}`,
		"missing messageId": `{"type":"ping","payload":{}}`,
		"not an object":     `"ping"`,
	}

	for name, raw := range cases {
		if _, err := c.DecodeInbound([]byte(raw)); err == nil {
			t.Fatalf("%s: expected decode error, got none", name)
		}
	}
}

func TestOutboundEnvelope(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	c := protocol.NewCodecWithClock(func() time.Time { return fixed })

	ev := c.Ack("pong", "m-7")
	if ev.Type != protocol.EventAck {
		t.Fatalf("expected ack, got %q", ev.Type)
	}
	if ev.Payload.Timestamp != 1700000000000 {
		t.Fatalf("expected fixed timestamp, got %d", ev.Payload.Timestamp)
	}
	if ev.MessageID != "m-7" {
		t.Fatalf("expected echoed messageId, got %q", ev.MessageID)
	}

	b, err := c.EncodeEvent(ev)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("round-trip decode failed: %v", err)
	}
	payload, ok := decoded["payload"].(map[string]any)
	if !ok {
		t.Fatalf("expected payload object, got %T", decoded["payload"])
	}
	if payload["content"] != "pong" {
		t.Fatalf("expected pong content, got %v", payload["content"])
	}
}

func TestServerInitiatedEventsGetFreshIDs(t *testing.T) {
	c := protocol.NewCodec()

	a := c.Transcription("hello")
	b := c.Transcription("hello")

	if a.MessageID == "" || b.MessageID == "" {
		t.Fatalf("expected non-empty server ids")
	}
	if a.MessageID == b.MessageID {
		t.Fatalf("expected distinct server ids, got %q twice", a.MessageID)
	}
}
