// Package mastodon is a small client for the Mastodon REST API: credential
// check, home timeline and favourite, plus the mapping of statuses into the
// unified post model.
package mastodon

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/blackmichael/multipass/internal/source"
	"github.com/blackmichael/multipass/internal/transport"
)

// Client talks to one Mastodon instance. It holds no credentials; every call
// takes the OAuth access token.
type Client struct {
	host     string
	provider transport.Provider
	newKey   func() string
}

// NewClient creates a client for the instance at host (e.g. "mastodon.social").
func NewClient(host string, provider transport.Provider) *Client {
	return &Client{
		host:     host,
		provider: provider,
		newKey:   uuid.NewString,
	}
}

// Host returns the instance host.
func (c *Client) Host() string {
	return c.host
}

// VerifyCredentials returns the account the token belongs to.
func (c *Client) VerifyCredentials(ctx context.Context, token string) (*Account, error) {
	const op = "mastodon verifyCredentials"

	req, err := c.newRequest(op, http.MethodGet, "/api/v1/accounts/verify_credentials", nil, token)
	if err != nil {
		return nil, err
	}

	resp, err := source.Execute(ctx, c.provider, op, req)
	if err != nil {
		return nil, err
	}

	var acct Account
	if err := source.Decode(op, resp, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// HomeTimeline fetches the home timeline, newest first.
func (c *Client) HomeTimeline(ctx context.Context, token string, params TimelineParams) ([]Status, error) {
	const op = "mastodon homeTimeline"

	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.MaxID != "" {
		query.Set("max_id", params.MaxID)
	}

	req, err := c.newRequest(op, http.MethodGet, "/api/v1/timelines/home", query, token)
	if err != nil {
		return nil, err
	}

	resp, err := source.Execute(ctx, c.provider, op, req)
	if err != nil {
		return nil, err
	}

	var list statusList
	if err := source.Decode(op, resp, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Favourite favourites the status with the given id. key is sent as the
// Idempotency-Key; a caller retrying an ambiguous favourite should pass the
// same key again so the instance can deduplicate it. An empty key sends a
// fresh one. A 2xx response whose body cannot be decoded yields
// source.ErrAmbiguous.
func (c *Client) Favourite(ctx context.Context, token, id, key string) (*Status, error) {
	const op = "mastodon favourite"

	if id == "" || strings.ContainsAny(id, "/?#") {
		return nil, &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: errors.New("invalid status id")}
	}

	req, err := c.newRequest(op, http.MethodPost, "/api/v1/statuses/"+id+"/favourite", nil, token)
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = c.newKey()
	}
	req.Header.Set("Idempotency-Key", key)

	resp, err := source.Execute(ctx, c.provider, op, req)
	if err != nil {
		return nil, err
	}

	var st Status
	if err := source.DecodeAck(op, resp, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) newRequest(op, method, path string, query url.Values, token string) (*transport.Request, error) {
	if token == "" {
		return nil, &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: errors.New("empty access token")}
	}
	u, err := source.BuildURL(op, c.host, path, query)
	if err != nil {
		return nil, err
	}
	req, err := source.NewJSONRequest(op, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return req, nil
}
