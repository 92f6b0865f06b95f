package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrMissingCredential is returned when a provider is created without an
// API key. It is a configuration error and is never retried.
var ErrMissingCredential = errors.New("API key is not set")

// Provider is the interface all chat-completion backends must implement.
type Provider interface {
	// Stream sends the request with streaming enabled and returns the raw
	// response body. The caller closes it.
	Stream(ctx context.Context, req *Request) (io.ReadCloser, error)
	// Name returns the provider identifier (e.g. "openai", "groq").
	Name() string
}

// APIError is a non-2xx response from the completion endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// Middleware decorates a Provider.
type Middleware func(Provider) Provider
