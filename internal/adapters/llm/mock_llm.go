package llm

import (
	"context"
	"fmt"

	"github.com/glancehq/glance-relay/internal/domain"
)

// MockClient is a canned upstream for local development and tests.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return fmt.Sprintf("(mock transcription of %d bytes of %s)", len(audio), mimeType), nil
}

func (m *MockClient) CompleteChat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return fmt.Sprintf("Mock reply to %q", last), nil
}

func (m *MockClient) StreamChat(ctx context.Context, messages []domain.ChatMessage, emit func(chunk string) error) (string, error) {
	reply, _ := m.CompleteChat(ctx, messages)

	// Emit in two chunks so clients exercise their streaming path.
	half := len(reply) / 2
	for _, chunk := range []string{reply[:half], reply[half:]} {
		if chunk == "" {
			continue
		}
		if err := emit(chunk); err != nil {
			return reply, err
		}
	}
	return reply, nil
}

func (m *MockClient) AnalyzeImage(ctx context.Context, imageDataURI, prompt string) (string, error) {
	return "Mock screen analysis: a window with some text.", nil
}
