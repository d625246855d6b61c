// Package transport defines the request/response boundary the source clients
// execute against, and an HTTP implementation of it.
package transport

import (
	"context"
	"net/http"
)

// Request is a fully formed outbound request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw result of executing a Request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Provider executes requests. Implementations may pool connections or retry
// internally, but must return promptly once ctx is done.
type Provider interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req *Request) (*Response, error)

// Do calls f(ctx, req).
func (f ProviderFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
