package llm

import (
	"errors"
	"fmt"
)

// ErrNoContent is returned when a provider answers without any text.
var ErrNoContent = errors.New("llm: empty response")

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Temporary reports whether the failure is on the provider's side.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// BlockedError reports a safety or content-policy refusal.
type BlockedError struct {
	Provider string
	Reason   string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s: response blocked: %s", e.Provider, e.Reason)
}

// TransportError wraps a failure to reach the provider at all.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
