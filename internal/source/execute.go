package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/blackmichael/multipass/internal/transport"
)

// Validator is implemented by wire types that check required fields and
// scalar formats after JSON decoding.
type Validator interface {
	Validate() error
}

// BuildURL returns https://{host}{path}?{query}. The host must be a bare
// host[:port] with no scheme, path or credentials.
func BuildURL(op, host, path string, query url.Values) (string, error) {
	if host == "" {
		return "", &Error{Op: op, Kind: ErrMalformedRequest, Err: errors.New("empty host")}
	}
	parsed, err := url.Parse("https://" + host)
	if err != nil || parsed.Host != host || parsed.User != nil || parsed.Path != "" {
		return "", &Error{Op: op, Kind: ErrMalformedRequest, Err: fmt.Errorf("invalid host %q", host)}
	}

	u := url.URL{Scheme: "https", Host: host, Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// NewJSONRequest builds a request whose body is the JSON encoding of body.
// A nil body produces a request without one.
func NewJSONRequest(op, method, rawURL string, body any) (*transport.Request, error) {
	req := &transport.Request{
		Method: method,
		URL:    rawURL,
		Header: http.Header{},
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Op: op, Kind: ErrMalformedRequest, Err: fmt.Errorf("marshal request: %w", err)}
		}
		req.Body = payload
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Execute runs req through p. Provider errors become ErrRequestFailed, or
// ErrCancelled when ctx ended. Responses outside [200,300) become
// ErrRequestFailed carrying the status and a bounded body prefix.
func Execute(ctx context.Context, p transport.Provider, op string, req *transport.Request) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: op, Kind: ErrCancelled, Err: err}
	}

	resp, err := p.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Op: op, Kind: ErrCancelled, Err: err}
		}
		return nil, &Error{Op: op, Kind: ErrRequestFailed, Err: err}
	}
	if resp == nil {
		return nil, &Error{Op: op, Kind: ErrRequestFailed, Err: errors.New("provider returned no response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Op:         op,
			Kind:       ErrRequestFailed,
			StatusCode: resp.StatusCode,
			Body:       snippet(resp.Body),
		}
	}
	return resp, nil
}

// Decode strictly decodes a successful response body into v.
func Decode(op string, resp *transport.Response, v any) error {
	if err := decodeStrict(resp.Body, v); err != nil {
		return &Error{Op: op, Kind: ErrDecodeFailed, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

// DecodeBytes strictly decodes a payload that did not arrive as a response,
// such as a streaming event.
func DecodeBytes(op string, data []byte, v any) error {
	if err := decodeStrict(data, v); err != nil {
		return &Error{Op: op, Kind: ErrDecodeFailed, Err: err}
	}
	return nil
}

// DecodeAck decodes the acknowledgement of a write. Failure is reported as
// ErrAmbiguous since the write has already been accepted.
func DecodeAck(op string, resp *transport.Response, v any) error {
	if err := decodeStrict(resp.Body, v); err != nil {
		return &Error{Op: op, Kind: ErrAmbiguous, StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unmarshal response: trailing data after JSON value")
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("validate response: %w", err)
		}
	}
	return nil
}
