package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/glancehq/glance-relay/internal/observability"
)

// streamChunk is one server-sent event from a streamed chat completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ReadStream consumes an SSE-style chat completion stream and calls emit
// once per content delta, in order, before reading the next line. It does
// not buffer the whole stream: backpressure comes from emit itself.
// Malformed lines are skipped with a log, not treated as fatal. A reader
// error mid-stream is returned so the caller can surface a single error.
func ReadStream(r io.Reader, emit func(chunk string) error) (string, error) {
	log := observability.Logger()

	var full strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Warn("skipping malformed stream line", "error", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}

		full.WriteString(delta)
		if err := emit(delta); err != nil {
			return full.String(), fmt.Errorf("emitting stream chunk: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return full.String(), fmt.Errorf("upstream stream interrupted: %w", err)
	}

	return full.String(), nil
}
