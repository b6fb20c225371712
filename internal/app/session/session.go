package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glancehq/glance-relay/internal/domain"
	"github.com/glancehq/glance-relay/internal/observability"
	"github.com/glancehq/glance-relay/internal/protocol"
)

// State is the lifecycle of one connection. Closed is terminal.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultLivenessTimeout   = 45 * time.Second
)

// Transport abstracts the client connection so the session core can be
// tested without a socket.
type Transport interface {
	SendEvent(ev protocol.Event) error
	Close(reason string) error
	IsOpen() bool
}

// Options tunes the session; zero values pick production defaults.
// The clock is injectable so tests can simulate elapsed time.
type Options struct {
	HeartbeatInterval time.Duration
	LivenessTimeout   time.Duration
	Clock             func() time.Time
}

// Session is the per-connection controller: it supervises liveness,
// dispatches inbound message types, sequences upstream calls and
// serializes outbound frames.
type Session struct {
	id        domain.ConnectionID
	store     domain.ContextStore
	upstream  domain.UpstreamClient
	transport Transport
	codec     *protocol.Codec
	clock     func() time.Time

	heartbeatInterval time.Duration
	livenessTimeout   time.Duration

	mu    sync.Mutex
	state State

	stopHeartbeat chan struct{}
	handlers      sync.WaitGroup
}

func New(
	id domain.ConnectionID,
	store domain.ContextStore,
	upstream domain.UpstreamClient,
	transport Transport,
	opts Options,
) *Session {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	interval := opts.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	timeout := opts.LivenessTimeout
	if timeout <= 0 {
		timeout = DefaultLivenessTimeout
	}

	return &Session{
		id:                id,
		store:             store,
		upstream:          upstream,
		transport:         transport,
		codec:             protocol.NewCodecWithClock(clock),
		clock:             clock,
		heartbeatInterval: interval,
		livenessTimeout:   timeout,
		stopHeartbeat:     make(chan struct{}),
	}
}

func (s *Session) ID() domain.ConnectionID {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions Connecting -> Open: it creates the conversation
// context and launches the recurring heartbeat check.
func (s *Session) Start() {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateOpen

	conv := s.store.Create(s.id)
	conv.LastPingAt = s.clock()
	s.mu.Unlock()

	go s.heartbeatLoop()

	observability.WithFields("connection_id", s.id).Info("connection open")
}

// Close tears the session down. It is idempotent: close, error and
// timeout paths all converge here, and the context is deleted once.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if s.state != StateClosing {
		close(s.stopHeartbeat)
	}
	s.state = StateClosing
	s.mu.Unlock()

	s.store.Delete(s.id)
	_ = s.transport.Close(reason)

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	observability.WithFields("connection_id", s.id, "reason", reason).Info("connection closed")
}

// Wait blocks until in-flight message handlers finish. Used on shutdown
// and by tests.
func (s *Session) Wait() {
	s.handlers.Wait()
}

// ─────────────────────────────────────────────
// Inbound dispatch
// ─────────────────────────────────────────────

// HandleFrame processes one raw inbound frame. A malformed frame emits a
// single error event and leaves the session and its context untouched.
func (s *Session) HandleFrame(raw []byte) {
	msg, err := s.codec.DecodeInbound(raw)
	if err != nil {
		observability.WithFields("connection_id", s.id).Warn("malformed inbound frame", "error", err)
		s.send(s.codec.Error("Invalid message format", ""))
		return
	}

	conv, ok := s.store.Get(s.id)
	if !ok {
		// Message raced with teardown.
		observability.WithFields("connection_id", s.id).Warn("dropping frame", "error", domain.ErrSessionExpired)
		s.send(s.codec.Error("Session expired", msg.MessageID))
		return
	}

	if msg.Type == protocol.TypePing {
		s.mu.Lock()
		conv.LastPingAt = s.clock()
		s.mu.Unlock()
		s.send(s.codec.Ack("pong", msg.MessageID))
		return
	}

	var handler func(*protocol.Inbound)
	switch msg.Type {
	case protocol.TypeScreenData:
		handler = s.handleScreenData
	case protocol.TypeVoiceData:
		handler = s.handleVoiceData
	case protocol.TypeChat:
		handler = s.handleChat
	default:
		s.send(s.codec.Error(fmt.Sprintf("Unknown message type: %s", msg.Type), msg.MessageID))
		return
	}

	// The ack is written before dispatched handling begins; handlers for
	// distinct messages may then complete in any order.
	s.send(s.codec.Ack("Message received", msg.MessageID))

	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()
		defer func() {
			if r := recover(); r != nil {
				observability.WithFields("connection_id", s.id).Error("handler panic", "panic", r)
				s.send(s.codec.Error("Internal error handling message", msg.MessageID))
			}
		}()
		handler(msg)
	}()
}

func (s *Session) handleScreenData(msg *protocol.Inbound) {
	var p protocol.ScreenDataPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Data == "" {
		s.send(s.codec.Error("screen_data payload requires a data field", msg.MessageID))
		return
	}

	// Bare base64 captures become a JPEG data URI; vision APIs only
	// accept image_url values in that form.
	screenData := p.Data
	if !strings.HasPrefix(screenData, "data:") {
		screenData = "data:image/jpeg;base64," + screenData
	}

	s.mu.Lock()
	conv, ok := s.store.Get(s.id)
	if !ok {
		s.mu.Unlock()
		s.send(s.codec.Error("Session expired", msg.MessageID))
		return
	}
	conv.LastScreenData = screenData
	start := len(conv.LastVoiceData) > 0 && !conv.PendingAnalysis
	if start {
		conv.PendingAnalysis = true
	}
	s.mu.Unlock()

	if start {
		s.runCombinedAnalysis(msg.MessageID)
	}
}

func (s *Session) handleVoiceData(msg *protocol.Inbound) {
	var p protocol.VoiceDataPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Data == "" {
		s.send(s.codec.Error("voice_data payload requires a data field", msg.MessageID))
		return
	}

	// Browser MediaRecorder blobs are webm unless the data URI says otherwise.
	mimeType, audio, err := domain.DecodeDataURI(p.Data, "audio/webm")
	if err != nil {
		s.send(s.codec.Error("voice_data payload is not valid base64 audio", msg.MessageID))
		return
	}

	s.mu.Lock()
	conv, ok := s.store.Get(s.id)
	if !ok {
		s.mu.Unlock()
		s.send(s.codec.Error("Session expired", msg.MessageID))
		return
	}
	conv.LastVoiceData = audio
	conv.LastVoiceMIME = mimeType
	start := conv.LastScreenData != "" && !conv.PendingAnalysis
	if start {
		conv.PendingAnalysis = true
	}
	s.mu.Unlock()

	if start {
		s.runCombinedAnalysis(msg.MessageID)
	}
}

// ─────────────────────────────────────────────
// Combined screen+voice analysis
// ─────────────────────────────────────────────

// runCombinedAnalysis transcribes the pending voice chunk, then sends the
// transcript together with the screen capture through the vision model.
// PendingAnalysis is always released, even when an upstream call fails;
// the input slots are cleared only on success so a later capture can
// retrigger the run without the client re-sending both inputs.
func (s *Session) runCombinedAnalysis(triggerID string) {
	ctx := observability.WithConnectionID(context.Background(), string(s.id))
	log := observability.LoggerFromContext(ctx)

	defer func() {
		s.mu.Lock()
		if conv, ok := s.store.Get(s.id); ok {
			conv.PendingAnalysis = false
		}
		s.mu.Unlock()
	}()

	s.mu.Lock()
	conv, ok := s.store.Get(s.id)
	if !ok {
		s.mu.Unlock()
		return
	}
	audio := conv.LastVoiceData
	mimeType := conv.LastVoiceMIME
	screen := conv.LastScreenData
	s.mu.Unlock()

	log.Info("combined analysis start", "audio_bytes", len(audio))

	transcript, err := s.upstream.Transcribe(ctx, audio, mimeType)
	if err != nil {
		log.Error("transcription failed", "error", err)
		s.send(s.codec.Error("Transcription failed: "+err.Error(), triggerID))
		return
	}

	s.send(s.codec.Transcription(transcript))

	analysis, err := s.upstream.AnalyzeImage(ctx, screen, analysisPrompt(transcript))
	if err != nil {
		log.Error("screen analysis failed", "error", err)
		s.send(s.codec.Error("Screen analysis failed: "+err.Error(), triggerID))
		return
	}

	s.send(s.codec.ResponseChunk(analysis, triggerID))

	s.mu.Lock()
	if conv, ok := s.store.Get(s.id); ok {
		conv.LastTranscription = transcript
		conv.LastScreenDescription = analysis
		conv.AppendTurn(domain.RoleAssistant, analysis)
		conv.LastScreenData = ""
		conv.LastVoiceData = nil
		conv.LastVoiceMIME = ""
	}
	s.mu.Unlock()

	log.Info("combined analysis done")
}

// ─────────────────────────────────────────────
// Chat-only path
// ─────────────────────────────────────────────

func (s *Session) handleChat(msg *protocol.Inbound) {
	var p protocol.ChatPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Message == "" {
		s.send(s.codec.Error("chat payload requires a message field", msg.MessageID))
		return
	}

	ctx := observability.WithConnectionID(context.Background(), string(s.id))
	log := observability.LoggerFromContext(ctx)

	s.mu.Lock()
	conv, ok := s.store.Get(s.id)
	if !ok {
		s.mu.Unlock()
		s.send(s.codec.Error("Session expired", msg.MessageID))
		return
	}
	history := append([]domain.ChatMessage(nil), conv.History...)
	screenDesc := conv.LastScreenDescription
	s.mu.Unlock()

	messages := buildChatMessages(history, screenDesc, p.Message)

	log.Info("chat completion start")

	full, err := s.upstream.StreamChat(ctx, messages, func(chunk string) error {
		s.send(s.codec.ResponseChunk(chunk, msg.MessageID))
		return nil
	})
	if err != nil {
		log.Error("chat completion failed", "error", err)
		s.send(s.codec.Error("Chat completion failed: "+err.Error(), msg.MessageID))
		return
	}

	s.mu.Lock()
	if conv, ok := s.store.Get(s.id); ok {
		conv.AppendTurn(domain.RoleUser, p.Message)
		conv.AppendTurn(domain.RoleAssistant, full)
	}
	s.mu.Unlock()

	log.Info("chat completion done")
}

// ─────────────────────────────────────────────
// Heartbeat
// ─────────────────────────────────────────────

func (s *Session) heartbeatLoop() {
	defer func() {
		// The heartbeat must never crash the process: any internal
		// failure cancels the task and tears the session down.
		if r := recover(); r != nil {
			observability.WithFields("connection_id", s.id).Error("heartbeat panic", "panic", r)
			s.Close("heartbeat failure")
		}
	}()

	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopHeartbeat:
			return
		case <-ticker.C:
			if s.checkLiveness() {
				return
			}
		}
	}
}

// checkLiveness runs one heartbeat check. It reports true when the
// session was closed and the loop should stop.
func (s *Session) checkLiveness() bool {
	if !s.transport.IsOpen() {
		s.Close("transport no longer open")
		return true
	}

	s.mu.Lock()
	conv, ok := s.store.Get(s.id)
	var elapsed time.Duration
	if ok {
		elapsed = s.clock().Sub(conv.LastPingAt)
	}
	s.mu.Unlock()

	if !ok {
		s.Close("context gone")
		return true
	}

	if elapsed > s.livenessTimeout {
		observability.WithFields("connection_id", s.id, "elapsed", elapsed.String()).Warn("heartbeat timeout")
		s.Close("heartbeat timeout")
		return true
	}
	return false
}

// send writes one outbound event, dropping it if the transport has
// already closed.
func (s *Session) send(ev protocol.Event) {
	if !s.transport.IsOpen() {
		return
	}
	if err := s.transport.SendEvent(ev); err != nil {
		observability.WithFields("connection_id", s.id).Warn("failed to send event", "type", ev.Type, "error", err)
	}
}
