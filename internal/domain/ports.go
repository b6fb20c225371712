package domain

import "context"

// UpstreamClient defines how the core interacts with the external
// transcription / vision / chat inference provider.
type UpstreamClient interface {
	// Transcribe converts an audio payload into text.
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)

	// CompleteChat returns the full completion for a messages array.
	CompleteChat(ctx context.Context, messages []ChatMessage) (string, error)

	// StreamChat streams the completion incrementally. emit is called once
	// per content delta, in order, before the next chunk is read; a non-nil
	// error from emit aborts the stream. The concatenated text is returned.
	StreamChat(ctx context.Context, messages []ChatMessage, emit func(chunk string) error) (string, error)

	// AnalyzeImage runs a vision-capable completion over a data-URI image.
	AnalyzeImage(ctx context.Context, imageDataURI, prompt string) (string, error)
}

// ContextStore is the process-wide registry of conversation contexts,
// keyed by connection id. Only the owning session touches its own entry.
type ContextStore interface {
	Create(id ConnectionID) *ConversationContext
	Get(id ConnectionID) (*ConversationContext, bool)
	// Delete is idempotent: deleting an absent id is a no-op.
	Delete(id ConnectionID)
}
