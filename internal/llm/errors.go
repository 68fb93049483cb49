package llm

import (
	"fmt"
	"net/http"
)

// StatusError reports a non-success HTTP status from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s http status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s http status %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}
