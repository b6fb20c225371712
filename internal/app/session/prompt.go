package session

import (
	"github.com/glancehq/glance-relay/internal/domain"
)

const systemPrompt = `You are a screen-aware voice assistant.

Your role:
- The user shares their screen and talks to you while working.
- You see captures of their screen and hear transcriptions of what they say.
- Help them with whatever is on screen: explain, debug, summarize, suggest next steps.

Style guidelines:
- Answer in the SAME LANGUAGE as the user.
- Be concise and concrete; refer to what is actually visible on screen.
- If the screen content is ambiguous, say what you can see and ask one clarifying question.
- Never invent UI elements or text that are not in the capture.`

// analysisPrompt builds the vision prompt for combined screen+voice
// analysis: the transcription is embedded so vision and language run as
// a single upstream call.
func analysisPrompt(transcription string) string {
	return `The user said: "` + transcription + `"

Look at the attached screen capture and answer the user's question in the context of what is on screen. Start with a one-sentence description of the screen, then answer.`
}

// buildChatMessages assembles the messages array for the chat-only path:
// system persona, trimmed history, optional latest screen description as
// assistant-role context, then the new user message.
func buildChatMessages(history []domain.ChatMessage, screenDescription, userMessage string) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(history)+3)

	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: systemPrompt,
	})

	messages = append(messages, history...)

	if screenDescription != "" {
		messages = append(messages, domain.ChatMessage{
			Role:    domain.RoleAssistant,
			Content: "Context from the user's latest screen capture: " + screenDescription,
		})
	}

	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: userMessage,
	})

	return messages
}
