package domain

type ConnectionID string

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn in a conversation, in the shape upstream
// chat-completion APIs expect.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
