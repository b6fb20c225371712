package llm

import (
	"context"
	"fmt"

	"github.com/glancehq/glance-relay/internal/domain"
	"google.golang.org/genai"
)

// GeminiClient implements domain.UpstreamClient on Vertex AI (Gemini).
// Gemini handles chat, vision and audio transcription with one model.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates the Vertex-backed upstream client.
func NewGeminiClient(ctx context.Context, projectID, location, modelName string) (*GeminiClient, error) {
	if projectID == "" || location == "" {
		return nil, &domain.ConfigError{Reason: "GCP project and location must be set for the gemini provider"}
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
	}, nil
}

func (g *GeminiClient) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText("Transcribe this audio verbatim. Return only the transcription text."),
		genai.NewPartFromBytes(audio, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini transcription: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty transcription")
	}
	return text, nil
}

func (g *GeminiClient) CompleteChat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	contents, cfg := toGeminiConversation(messages)

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

func (g *GeminiClient) StreamChat(ctx context.Context, messages []domain.ChatMessage, emit func(chunk string) error) (string, error) {
	contents, cfg := toGeminiConversation(messages)

	var full string
	for res, err := range g.client.Models.GenerateContentStream(ctx, g.modelName, contents, cfg) {
		if err != nil {
			return full, fmt.Errorf("gemini stream: %w", err)
		}
		chunk := res.Text()
		if chunk == "" {
			continue
		}
		full += chunk
		if err := emit(chunk); err != nil {
			return full, fmt.Errorf("emitting stream chunk: %w", err)
		}
	}
	return full, nil
}

func (g *GeminiClient) AnalyzeImage(ctx context.Context, imageDataURI, prompt string) (string, error) {
	mimeType, data, err := domain.DecodeDataURI(imageDataURI, "image/jpeg")
	if err != nil {
		return "", fmt.Errorf("decoding image payload: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(data, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini image analysis: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty analysis")
	}
	return text, nil
}

// toGeminiConversation splits a messages array into Gemini contents plus a
// system-instruction config, mapping assistant turns to the model role.
func toGeminiConversation(messages []domain.ChatMessage) ([]*genai.Content, *genai.GenerateContentConfig) {
	var contents []*genai.Content
	var cfg *genai.GenerateContentConfig

	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			cfg = &genai.GenerateContentConfig{
				SystemInstruction: genai.NewContentFromText(m.Content, genai.RoleUser),
			}
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return contents, cfg
}
