package session

import (
	"strings"
	"testing"

	"github.com/glancehq/glance-relay/internal/domain"
)

func TestBuildChatMessagesOrdering(t *testing.T) {
	history := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "earlier question"},
		{Role: domain.RoleAssistant, Content: "earlier answer"},
	}

	messages := buildChatMessages(history, "a spreadsheet with totals", "what now?")

	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	if messages[0].Role != domain.RoleSystem {
		t.Fatalf("expected system message first, got %q", messages[0].Role)
	}
	if messages[1].Content != "earlier question" || messages[2].Content != "earlier answer" {
		t.Fatalf("expected history preserved in order")
	}
	if messages[3].Role != domain.RoleAssistant || !strings.Contains(messages[3].Content, "spreadsheet") {
		t.Fatalf("expected screen context as assistant turn, got %+v", messages[3])
	}
	if messages[4].Role != domain.RoleUser || messages[4].Content != "what now?" {
		t.Fatalf("expected user message last, got %+v", messages[4])
	}
}

func TestBuildChatMessagesWithoutScreenContext(t *testing.T) {
	messages := buildChatMessages(nil, "", "hi")

	if len(messages) != 2 {
		t.Fatalf("expected system + user only, got %d", len(messages))
	}
}

func TestAnalysisPromptEmbedsTranscription(t *testing.T) {
	p := analysisPrompt("why does the build fail?")
	if !strings.Contains(p, `"why does the build fail?"`) {
		t.Fatalf("expected transcription embedded, got %q", p)
	}
}
