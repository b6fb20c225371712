package config

import (
	"os"
	"strings"

	"github.com/glancehq/glance-relay/internal/domain"
)

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderMock   Provider = "mock"
)

type Config struct {
	Port string

	Provider Provider

	// OpenAI-compatible upstream
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ChatModel     string
	VisionModel   string
	SpeechModel   string

	// Gemini (Vertex AI) upstream
	GCPProjectID string
	GCPLocation  string
	GeminiModel  string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Load reads all env vars and builds the config.
func Load() *Config {
	providerStr := getEnv("GLANCE_PROVIDER", "openai")
	var provider Provider
	switch providerStr {
	case "gemini":
		provider = ProviderGemini
	case "mock":
		provider = ProviderMock
	default:
		provider = ProviderOpenAI
	}

	return &Config{
		Port: getEnv("GLANCE_PORT", "8080"),

		Provider: provider,

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("GLANCE_OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ChatModel:     getEnv("GLANCE_CHAT_MODEL", "gpt-4o-mini"),
		VisionModel:   getEnv("GLANCE_VISION_MODEL", "gpt-4o"),
		SpeechModel:   getEnv("GLANCE_SPEECH_MODEL", "whisper-1"),

		GCPProjectID: getEnv("GLANCE_GCP_PROJECT", ""),
		GCPLocation:  getEnv("GLANCE_GCP_LOCATION", "us-central1"),
		GeminiModel:  getEnv("GLANCE_GEMINI_MODEL", "gemini-2.5-flash"),
	}
}

// ValidateUpstream checks the credentials for the selected provider.
// Absence or a malformed key is a configuration error, not a network one.
func (c *Config) ValidateUpstream() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return &domain.ConfigError{Reason: "OPENAI_API_KEY is not set"}
		}
		if !strings.HasPrefix(c.OpenAIAPIKey, "sk-") {
			return &domain.ConfigError{Reason: "OPENAI_API_KEY is malformed (expected sk- prefix)"}
		}
	case ProviderGemini:
		if c.GCPProjectID == "" {
			return &domain.ConfigError{Reason: "GLANCE_GCP_PROJECT is not set"}
		}
	}
	return nil
}
