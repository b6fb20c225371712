package main

import (
	"context"
	"log"
	"net/http"

	"github.com/glancehq/glance-relay/internal/adapters/llm"
	"github.com/glancehq/glance-relay/internal/adapters/storage/memory"
	"github.com/glancehq/glance-relay/internal/adapters/ws"
	"github.com/glancehq/glance-relay/internal/config"
	"github.com/glancehq/glance-relay/internal/domain"
)

func main() {
	ctx := context.Background()

	cfg := config.Load()
	if err := cfg.ValidateUpstream(); err != nil {
		log.Fatalf("invalid upstream configuration: %v", err)
	}

	var (
		upstream domain.UpstreamClient
		err      error
	)

	switch cfg.Provider {
	case config.ProviderMock:
		log.Println("[LLM] Using MOCK upstream client")
		upstream = llm.NewMockClient()
	case config.ProviderGemini:
		log.Printf("[LLM] Using Gemini upstream client (project=%s)", cfg.GCPProjectID)
		upstream, err = llm.NewGeminiClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("error initializing Gemini client: %v", err)
		}
	default:
		log.Println("[LLM] Using OpenAI upstream client")
		upstream = llm.NewClient(llm.Options{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			ChatModel:   cfg.ChatModel,
			VisionModel: cfg.VisionModel,
			SpeechModel: cfg.SpeechModel,
		})
	}

	store := memory.NewContextStore()
	handler := ws.NewServer(store, upstream)

	port := ":" + cfg.Port
	log.Println("Glance relay listening on port:", port)
	if err := http.ListenAndServe(port, handler); err != nil {
		log.Fatal(err)
	}
}
