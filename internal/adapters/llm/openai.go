package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/glancehq/glance-relay/internal/domain"
)

// Options configures the OpenAI-compatible client.
type Options struct {
	APIKey      string
	BaseURL     string // e.g. https://api.openai.com/v1
	ChatModel   string
	VisionModel string
	SpeechModel string
	HTTPClient  *http.Client
}

// Client implements domain.UpstreamClient against an OpenAI-compatible API.
type Client struct {
	apiKey      string
	baseURL     string
	chatModel   string
	visionModel string
	speechModel string
	httpClient  *http.Client
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	chatModel := opts.ChatModel
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}
	visionModel := opts.VisionModel
	if visionModel == "" {
		visionModel = "gpt-4o"
	}
	speechModel := opts.SpeechModel
	if speechModel == "" {
		speechModel = "whisper-1"
	}

	return &Client{
		apiKey:      opts.APIKey,
		baseURL:     baseURL,
		chatModel:   chatModel,
		visionModel: visionModel,
		speechModel: speechModel,
		httpClient:  httpClient,
	}
}

// checkCredentials fails fast before any request is issued.
func (c *Client) checkCredentials() error {
	if c.apiKey == "" {
		return &domain.ConfigError{Reason: "upstream API key is not set"}
	}
	if !strings.HasPrefix(c.apiKey, "sk-") {
		return &domain.ConfigError{Reason: "upstream API key is malformed (expected sk- prefix)"}
	}
	return nil
}

// ─────────────────────────────────────────────
// Request/response types
// ─────────────────────────────────────────────

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// chatMessage allows either plain string content or vision content parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// ─────────────────────────────────────────────
// domain.UpstreamClient implementation
// ─────────────────────────────────────────────

// Transcribe uploads an audio payload and returns its transcription.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if err := c.checkCredentials(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", fileNameForMIME(mimeType))
	if err != nil {
		return "", fmt.Errorf("building transcription form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio to form: %w", err)
	}
	if err := form.WriteField("model", c.speechModel); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("creating transcription request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling transcription API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading transcription response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.UpstreamError{Operation: "transcribe", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out transcriptionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parsing transcription response: %w", err)
	}
	return out.Text, nil
}

// CompleteChat returns the full completion for a messages array.
func (c *Client) CompleteChat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if err := c.checkCredentials(); err != nil {
		return "", err
	}
	return c.completeChat(ctx, c.chatModel, toWireMessages(messages))
}

// AnalyzeImage runs a vision-capable completion over a data-URI image.
func (c *Client) AnalyzeImage(ctx context.Context, imageDataURI, prompt string) (string, error) {
	if err := c.checkCredentials(); err != nil {
		return "", err
	}

	messages := []chatMessage{
		{
			Role: string(domain.RoleUser),
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: imageDataURI}},
			},
		},
	}
	return c.completeChat(ctx, c.visionModel, messages)
}

func (c *Client) completeChat(ctx context.Context, model string, messages []chatMessage) (string, error) {
	body, resp, err := c.postChat(ctx, chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.UpstreamError{Operation: "chat completion", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parsing chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// StreamChat streams the completion, invoking emit per content delta.
func (c *Client) StreamChat(ctx context.Context, messages []domain.ChatMessage, emit func(chunk string) error) (string, error) {
	if err := c.checkCredentials(); err != nil {
		return "", err
	}

	reqBody := chatRequest{Model: c.chatModel, Messages: toWireMessages(messages), Stream: true}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling chat API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", &domain.UpstreamError{Operation: "chat completion", StatusCode: resp.StatusCode, Body: string(body)}
	}

	return ReadStream(resp.Body, emit)
}

func (c *Client) postChat(ctx context.Context, reqBody chatRequest) ([]byte, *http.Response, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("calling chat API: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, nil, fmt.Errorf("reading chat response: %w", err)
	}
	return body, resp, nil
}

func toWireMessages(messages []domain.ChatMessage) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func fileNameForMIME(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return "audio.webm"
	case strings.Contains(mimeType, "mp3"), strings.Contains(mimeType, "mpeg"):
		return "audio.mp3"
	case strings.Contains(mimeType, "ogg"):
		return "audio.ogg"
	default:
		return "audio.wav"
	}
}
