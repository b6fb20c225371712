package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDataURI splits a data-URI (or bare base64 string) into its MIME
// type and decoded bytes. Bare base64 input falls back to fallbackMIME.
func DecodeDataURI(s, fallbackMIME string) (string, []byte, error) {
	mimeType := fallbackMIME
	payload := s

	if strings.HasPrefix(s, "data:") {
		rest := strings.TrimPrefix(s, "data:")
		idx := strings.Index(rest, ",")
		if idx < 0 {
			return "", nil, fmt.Errorf("malformed data URI")
		}
		meta := rest[:idx]
		payload = rest[idx+1:]
		mimeType = strings.TrimSuffix(meta, ";base64")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decoding base64 payload: %w", err)
	}
	return mimeType, data, nil
}
