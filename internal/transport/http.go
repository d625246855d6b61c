package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const maxBodyBytes = 8 << 20

// HTTP is a Provider backed by an *http.Client. GET and HEAD requests are
// retried on network errors, 429 and 5xx; writes are sent exactly once.
type HTTP struct {
	client   *http.Client
	logger   *slog.Logger
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
}

// HTTPOption configures an HTTP provider.
type HTTPOption func(*HTTP)

// WithRetry sets how many times an idempotent request is attempted and the
// initial backoff between attempts.
func WithRetry(attempts uint, delay time.Duration) HTTPOption {
	return func(h *HTTP) {
		if attempts == 0 {
			attempts = 1
		}
		h.attempts = attempts
		h.delay = delay
	}
}

// NewHTTP creates a provider. A nil client gets a 30 second timeout.
func NewHTTP(client *http.Client, logger *slog.Logger, opts ...HTTPOption) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	h := &HTTP{
		client:   client,
		logger:   logger,
		attempts: 3,
		delay:    500 * time.Millisecond,
		maxDelay: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// retryableStatus marks a response the retry loop may try again.
type retryableStatus struct {
	code int
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("HTTP %d", e.code)
}

// Do executes req. A non-2xx status is not an error at this layer.
func (h *HTTP) Do(ctx context.Context, req *Request) (*Response, error) {
	host := hostOf(req.URL)
	attempts := uint(1)
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		attempts = h.attempts
	}

	var last *Response
	start := time.Now()

	err := retry.Do(
		func() error {
			resp, err := h.once(ctx, req)
			if err != nil {
				if ctx.Err() != nil {
					return retry.Unrecoverable(ctx.Err())
				}
				return err
			}
			last = resp
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return &retryableStatus{code: resp.StatusCode}
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.Delay(h.delay),
		retry.MaxDelay(h.maxDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			h.logger.Info("retrying request", "method", req.Method, "host", host, "attempt", n+1, "error", err)
		}),
	)

	status := 0
	if last != nil {
		status = last.StatusCode
	}
	recordRequest(req.Method, host, status, time.Since(start))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var rs *retryableStatus
	if err != nil && !(errors.As(err, &rs) && last != nil) {
		return nil, err
	}
	return last, nil
}

func (h *HTTP) once(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader = http.NoBody
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			h.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
