package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glancehq/glance-relay/internal/adapters/storage/memory"
	"github.com/glancehq/glance-relay/internal/domain"
	"github.com/glancehq/glance-relay/internal/protocol"
)

type stubTransport struct {
	mu   sync.Mutex
	open bool
}

func (t *stubTransport) SendEvent(ev protocol.Event) error { return nil }

func (t *stubTransport) Close(reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	return nil
}

func (t *stubTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

type nopUpstream struct{}

func (nopUpstream) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return "", nil
}
func (nopUpstream) CompleteChat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	return "", nil
}
func (nopUpstream) StreamChat(ctx context.Context, messages []domain.ChatMessage, emit func(string) error) (string, error) {
	return "", nil
}
func (nopUpstream) AnalyzeImage(ctx context.Context, imageDataURI, prompt string) (string, error) {
	return "", nil
}

// simulated clock: liveness checks run against a settable time so the
// 45s boundary is exercised without waiting.
func TestLivenessTimeoutBoundary(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advanceTo := func(tt time.Time) {
		mu.Lock()
		now = tt
		mu.Unlock()
	}

	store := memory.NewContextStore()
	transport := &stubTransport{open: true}
	s := New("conn-hb", store, nopUpstream{}, transport, Options{Clock: clock})
	s.Start()

	// 44s of silence: still within the timeout.
	advanceTo(base.Add(44 * time.Second))
	if closed := s.checkLiveness(); closed {
		t.Fatalf("44s of silence must not close the session")
	}
	if s.State() != StateOpen {
		t.Fatalf("expected session open at 44s")
	}

	// A ping refreshes liveness.
	s.HandleFrame([]byte(`{"type":"ping","payload":{},"messageId":"m-1"}`))

	// 44s after the ping: still fine.
	advanceTo(base.Add(88 * time.Second))
	if closed := s.checkLiveness(); closed {
		t.Fatalf("ping must refresh the liveness window")
	}

	// Past 45s since the last ping: force close and tear down.
	advanceTo(base.Add(90 * time.Second))
	if closed := s.checkLiveness(); !closed {
		t.Fatalf("expected timeout close after >45s of silence")
	}
	if s.State() != StateClosed {
		t.Fatalf("expected terminal state after timeout")
	}
	if store.Len() != 0 {
		t.Fatalf("expected context torn down on timeout")
	}
	if transport.IsOpen() {
		t.Fatalf("expected transport closed on timeout")
	}
}

func TestHeartbeatSelfCancelsOnClosedTransport(t *testing.T) {
	store := memory.NewContextStore()
	transport := &stubTransport{open: false}
	s := New("conn-hb2", store, nopUpstream{}, transport, Options{})
	s.Start()

	if closed := s.checkLiveness(); !closed {
		t.Fatalf("expected self-cancel when transport is not open")
	}
	if store.Len() != 0 {
		t.Fatalf("expected context torn down")
	}
}

func TestOnlyPingRefreshesLiveness(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	now := base
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	store := memory.NewContextStore()
	transport := &stubTransport{open: true}
	s := New("conn-hb3", store, nopUpstream{}, transport, Options{Clock: clock})
	s.Start()

	mu.Lock()
	now = base.Add(40 * time.Second)
	mu.Unlock()

	// A chat message does not count as liveness.
	s.HandleFrame([]byte(`{"type":"chat","payload":{"message":"hi"},"messageId":"m-1"}`))
	s.Wait()

	mu.Lock()
	now = base.Add(50 * time.Second)
	mu.Unlock()

	if closed := s.checkLiveness(); !closed {
		t.Fatalf("non-ping traffic must not keep the session alive")
	}
}
