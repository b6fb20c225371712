package domain

import (
	"errors"
	"fmt"
)

// ErrSessionExpired signals an operation against a context that has
// already been torn down (message race after close).
var ErrSessionExpired = errors.New("session expired")

// ConfigError reports a missing or malformed upstream credential or
// setting. It is distinct from network failures: the triggering
// operation aborts before any request is issued.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// UpstreamError carries a non-success response from the inference
// provider, including the status code and response body when available.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("upstream %s failed (status %d): %s", e.Operation, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("upstream %s failed (status %d)", e.Operation, e.StatusCode)
}
