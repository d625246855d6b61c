// Package source holds the plumbing shared by the per-backend clients: the
// error taxonomy, request execution against a transport.Provider, and strict
// JSON decoding.
package source

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrMalformedRequest means the request could not be built. Never retried.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrRequestFailed means the provider failed or the response status was
	// outside [200,300). Callers may retry with backoff.
	ErrRequestFailed = errors.New("request failed")

	// ErrDecodeFailed means the response body did not match the expected schema.
	ErrDecodeFailed = errors.New("decode failed")

	// ErrAmbiguous means a write returned a success status but its
	// acknowledgement could not be decoded. The write may or may not have been
	// applied; reconcile with a read instead of retrying.
	ErrAmbiguous = errors.New("ambiguous write outcome")

	// ErrCancelled means the operation's context ended before completion.
	ErrCancelled = errors.New("cancelled")
)

// maxBodySnippet bounds how much of a failed response body is kept.
const maxBodySnippet = 512

// Error is returned by every source client operation.
type Error struct {
	// Op names the failing operation, e.g. "bluesky getTimeline".
	Op string

	// Kind is one of the Err* sentinels.
	Kind error

	// StatusCode is the HTTP status, or 0 if no response was received.
	StatusCode int

	// Body is a bounded prefix of a non-2xx response body.
	Body string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the taxonomy kind of err, or nil if err did not come from a
// source client.
func KindOf(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return nil
}

// KindName returns the taxonomy name used on the wire and in logs.
func KindName(kind error) string {
	switch kind {
	case ErrMalformedRequest:
		return "MalformedRequest"
	case ErrRequestFailed:
		return "RequestFailed"
	case ErrDecodeFailed:
		return "DecodeFailed"
	case ErrAmbiguous:
		return "Ambiguous"
	case ErrCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

func snippet(body []byte) string {
	if len(body) > maxBodySnippet {
		return string(body[:maxBodySnippet]) + "..."
	}
	return string(body)
}
