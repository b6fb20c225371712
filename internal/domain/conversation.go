package domain

import "time"

// MaxHistoryTurns caps the rolling conversation history per connection.
// Oldest turns are evicted first.
const MaxHistoryTurns = 10

// ConversationContext is the mutable state for one live connection.
// It is owned exclusively by that connection's session; nothing else
// may read or write it.
type ConversationContext struct {
	ConnectionID ConnectionID

	// Rolling history of user/assistant turns, capped at MaxHistoryTurns.
	History []ChatMessage

	// Latest-value slots used to correlate independent async inputs
	// for combined analysis. Overwrite semantics, not queues.
	LastScreenData        string
	LastScreenDescription string
	LastVoiceData         []byte
	LastVoiceMIME         string
	LastTranscription     string

	// LastPingAt is refreshed only by ping messages.
	LastPingAt time.Time

	// PendingAnalysis prevents a second combined-analysis run from
	// starting while one is in flight for this connection.
	PendingAnalysis bool
}

// AppendTurn appends one turn and trims from the oldest end so the
// history never exceeds MaxHistoryTurns.
func (c *ConversationContext) AppendTurn(role Role, content string) {
	c.History = append(c.History, ChatMessage{Role: role, Content: content})
	if len(c.History) > MaxHistoryTurns {
		c.History = c.History[len(c.History)-MaxHistoryTurns:]
	}
}
