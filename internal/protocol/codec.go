package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType tags inbound client frames.
type MessageType string

const (
	TypePing       MessageType = "ping"
	TypeScreenData MessageType = "screen_data"
	TypeVoiceData  MessageType = "voice_data"
	TypeChat       MessageType = "chat"
)

// EventType tags outbound server frames.
type EventType string

const (
	EventAck           EventType = "ack"
	EventTranscription EventType = "transcription"
	EventGPTResponse   EventType = "gpt_response"
	EventError         EventType = "error"
)

// Inbound is the wire envelope for client frames. The payload shape is
// type-specific and checked by the corresponding handler, not here.
type Inbound struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	MessageID string          `json:"messageId"`
}

// ScreenDataPayload carries a base64 image, optionally as a data-URI.
type ScreenDataPayload struct {
	Data string `json:"data"`
}

// VoiceDataPayload carries base64 audio; the MIME type may be embedded
// in a data-URI prefix.
type VoiceDataPayload struct {
	Data string `json:"data"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

// DecodeInbound is the single validating parse step for client frames.
// It requires a JSON object with a type string and a messageId; the
// payload stays raw for the handler to interpret.
func (c *Codec) DecodeInbound(raw []byte) (*Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("decoding inbound frame: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("inbound frame missing type")
	}
	if msg.MessageID == "" {
		return nil, fmt.Errorf("inbound frame missing messageId")
	}
	return &msg, nil
}

// EventPayload is the fixed payload shape of outbound frames.
type EventPayload struct {
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// Event is the wire envelope for server frames. MessageID echoes the
// inbound id for correlated responses, or is a fresh opaque id for
// server-initiated events.
type Event struct {
	Type      EventType    `json:"type"`
	Payload   EventPayload `json:"payload"`
	MessageID string       `json:"messageId"`
}

// Codec frames outbound events and validates inbound ones. The clock is
// injectable so tests can pin timestamps.
type Codec struct {
	now func() time.Time
}

func NewCodec() *Codec {
	return &Codec{now: time.Now}
}

// NewCodecWithClock is used by tests.
func NewCodecWithClock(now func() time.Time) *Codec {
	return &Codec{now: now}
}

func (c *Codec) newEvent(t EventType, content, messageID string) Event {
	return Event{
		Type: t,
		Payload: EventPayload{
			Content:   content,
			Timestamp: c.now().UnixMilli(),
		},
		MessageID: messageID,
	}
}

func (c *Codec) Ack(content, messageID string) Event {
	return c.newEvent(EventAck, content, messageID)
}

func (c *Codec) Transcription(content string) Event {
	return c.newEvent(EventTranscription, content, NewServerID())
}

// ResponseChunk frames one assistant-response chunk. messageID correlates
// the chunk with the inbound message that triggered it.
func (c *Codec) ResponseChunk(content, messageID string) Event {
	return c.newEvent(EventGPTResponse, content, messageID)
}

func (c *Codec) Error(content, messageID string) Event {
	if messageID == "" {
		messageID = NewServerID()
	}
	return c.newEvent(EventError, content, messageID)
}

// EncodeEvent serializes an outbound frame.
func (c *Codec) EncodeEvent(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding outbound event: %w", err)
	}
	return b, nil
}

// NewServerID returns a fresh opaque id for server-initiated events.
func NewServerID() string {
	return uuid.NewString()
}
