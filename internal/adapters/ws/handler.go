package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/glancehq/glance-relay/internal/app/session"
	"github.com/glancehq/glance-relay/internal/domain"
	"github.com/glancehq/glance-relay/internal/observability"
)

const maxInboundFrameBytes = 10 << 20 // screen captures arrive as base64 JPEG

// Server accepts client WebSocket connections and the non-WebSocket
// fallback endpoints (?action=transcribe, ?action=chat).
type Server struct {
	store       domain.ContextStore
	upstream    domain.UpstreamClient
	upgrader    websocket.Upgrader
	sessionOpts session.Options
}

func NewServer(store domain.ContextStore, upstream domain.UpstreamClient) http.Handler {
	return NewServerWithOptions(store, upstream, session.Options{})
}

// NewServerWithOptions lets callers tune session timing (used by tests).
func NewServerWithOptions(store domain.ContextStore, upstream domain.UpstreamClient, opts session.Options) http.Handler {
	s := &Server{
		store:    store,
		upstream: upstream,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser front-end is served from another origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessionOpts: opts,
	}

	return chainMiddlewares(s, withLogging, withCORS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		s.handleWebSocket(w, r)
		return
	}
	s.handleFallback(w, r)
}

// ─────────────────────────────────────────────
// WebSocket path
// ─────────────────────────────────────────────

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		observability.Logger().Warn("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(maxInboundFrameBytes)

	id := domain.ConnectionID(uuid.NewString())
	transport := newConnTransport(conn)
	sess := session.New(id, s.store, s.upstream, transport, s.sessionOpts)
	sess.Start()

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.WithFields("connection_id", id).Warn("websocket read error", "error", err)
			}
			transport.markClosed()
			sess.Close("connection closed by peer")
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		sess.HandleFrame(raw)
	}
}

// ─────────────────────────────────────────────
// HTTP fallback surface
// ─────────────────────────────────────────────

type transcribeResponse struct {
	Text string `json:"text"`
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "transcribe":
		s.handleTranscribe(w, r)
	case "chat":
		s.handleChat(w, r)
	default:
		// Liveness response for plain HTTP probes.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// handleTranscribe accepts raw audio bytes and returns {"text": ...}.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	audio, err := io.ReadAll(io.LimitReader(r.Body, maxInboundFrameBytes))
	if err != nil {
		badRequest(w, "failed to read audio body")
		return
	}
	if len(audio) == 0 {
		badRequest(w, "empty audio body")
		return
	}

	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	text, err := s.upstream.Transcribe(r.Context(), audio, mimeType)
	if err != nil {
		upstreamFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transcribeResponse{Text: text})
}

// handleChat accepts {"message": ...} and streams completion tokens as a
// text/event-stream.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Message == "" {
		badRequest(w, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		internalError(w, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	messages := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: req.Message},
	}

	_, err := s.upstream.StreamChat(r.Context(), messages, func(chunk string) error {
		if _, werr := fmt.Fprintf(w, "data: %s\n\n", chunk); werr != nil {
			return werr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Headers are gone; surface the failure as a final event.
		fmt.Fprintf(w, "data: {\"error\": %q}\n\n", err.Error())
		flusher.Flush()
		return
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	observability.Logger().Warn("internal server error", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}

// upstreamFailure maps typed upstream/config errors to fallback responses.
func upstreamFailure(w http.ResponseWriter, err error) {
	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": cfgErr.Error()})
		return
	}

	var upErr *domain.UpstreamError
	if errors.As(err, &upErr) {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": upErr.Error()})
		return
	}

	writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
}
