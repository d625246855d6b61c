package bluesky

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/blackmichael/multipass/internal/source"
	"github.com/blackmichael/multipass/internal/transport"
)

// DefaultHost is the PDS used when none is configured.
const DefaultHost = "bsky.social"

// Client is a minimal AT Protocol XRPC client. It holds no session state and
// is safe for concurrent use; every authenticated call takes an Auth.
type Client struct {
	host     string
	provider transport.Provider
	now      func() time.Time
}

// NewClient creates a client for the PDS at host (e.g. "bsky.social"). If
// host is empty, it defaults to DefaultHost.
func NewClient(host string, provider transport.Provider) *Client {
	if host == "" {
		host = DefaultHost
	}
	return &Client{
		host:     host,
		provider: provider,
		now:      time.Now,
	}
}

// Host returns the PDS host.
func (c *Client) Host() string {
	return c.host
}

// CreateSession authenticates with the PDS. The returned session is not
// retained by the client.
func (c *Client) CreateSession(ctx context.Context, creds Credentials) (*Session, error) {
	const op = "bluesky createSession"

	req, err := c.newRequest(op, http.MethodPost, "com.atproto.server.createSession", nil, creds)
	if err != nil {
		return nil, err
	}

	resp, err := source.Execute(ctx, c.provider, op, req)
	if err != nil {
		return nil, err
	}

	var out createSessionResponse
	if err := source.Decode(op, resp, &out); err != nil {
		return nil, err
	}
	return out.session(), nil
}

// RefreshSession exchanges a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshJwt string) (*Session, error) {
	const op = "bluesky refreshSession"

	if refreshJwt == "" {
		return nil, &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: errors.New("empty refresh token")}
	}

	req, err := c.newRequest(op, http.MethodPost, "com.atproto.server.refreshSession", nil, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+refreshJwt)

	resp, err := source.Execute(ctx, c.provider, op, req)
	if err != nil {
		return nil, err
	}

	var out refreshSessionResponse
	if err := source.Decode(op, resp, &out); err != nil {
		return nil, err
	}
	return out.session(), nil
}

// Timeline fetches the account's home timeline.
func (c *Client) Timeline(ctx context.Context, auth Auth, params TimelineParams) (*Timeline, error) {
	const op = "bluesky getTimeline"

	if err := checkAuth(op, auth, false); err != nil {
		return nil, err
	}

	query := url.Values{}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Cursor != "" {
		query.Set("cursor", params.Cursor)
	}

	req, err := c.newRequest(op, http.MethodGet, "app.bsky.feed.getTimeline", query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := source.Execute(ctx, c.provider, op, req)
	if err != nil {
		return nil, err
	}

	var tl Timeline
	if err := source.Decode(op, resp, &tl); err != nil {
		return nil, err
	}
	return &tl, nil
}

// LikePost creates an app.bsky.feed.like record for the post version
// identified by cid and uri, timestamped now. A 2xx response whose
// acknowledgement cannot be decoded yields source.ErrAmbiguous: the like may
// exist, so reconcile with a read before retrying.
func (c *Client) LikePost(ctx context.Context, auth Auth, cid syntax.CID, uri syntax.ATURI) (*RecordAck, error) {
	if err := checkSubject("bluesky likePost", cid, uri); err != nil {
		return nil, err
	}
	return c.CreateRecord(ctx, auth, Like{
		CreatedAt: FormatDatetime(c.now()),
		Subject:   StrongRef{CID: cid, URI: uri},
	})
}

// Repost creates an app.bsky.feed.repost record, with the same ambiguity
// rule as LikePost.
func (c *Client) Repost(ctx context.Context, auth Auth, cid syntax.CID, uri syntax.ATURI) (*RecordAck, error) {
	if err := checkSubject("bluesky repost", cid, uri); err != nil {
		return nil, err
	}
	return c.CreateRecord(ctx, auth, Repost{
		CreatedAt: FormatDatetime(c.now()),
		Subject:   StrongRef{CID: cid, URI: uri},
	})
}

// CreateRecord appends record to the account's repo via
// com.atproto.repo.createRecord.
func (c *Client) CreateRecord(ctx context.Context, auth Auth, record Record) (*RecordAck, error) {
	const op = "bluesky createRecord"

	if err := checkRecord(op, record); err != nil {
		return nil, err
	}
	if err := checkAuth(op, auth, true); err != nil {
		return nil, err
	}

	body := createRecordRequest{
		Repo:       auth.DID,
		Collection: record.collection(),
		Record:     typedRecord{record},
	}
	return c.write(ctx, op, "com.atproto.repo.createRecord", auth, body)
}

// PutRecord creates or replaces the record at rkey via
// com.atproto.repo.putRecord.
func (c *Client) PutRecord(ctx context.Context, auth Auth, rkey string, record Record) (*RecordAck, error) {
	const op = "bluesky putRecord"

	if err := checkRecord(op, record); err != nil {
		return nil, err
	}
	if err := checkAuth(op, auth, true); err != nil {
		return nil, err
	}
	if err := checkRecordKey(op, rkey); err != nil {
		return nil, err
	}

	body := putRecordRequest{
		Repo:       auth.DID,
		Collection: record.collection(),
		RKey:       rkey,
		Record:     typedRecord{record},
	}
	return c.write(ctx, op, "com.atproto.repo.putRecord", auth, body)
}

// DeleteRecord removes the record at collection/rkey via
// com.atproto.repo.deleteRecord.
func (c *Client) DeleteRecord(ctx context.Context, auth Auth, collection syntax.NSID, rkey string) error {
	const op = "bluesky deleteRecord"

	if err := checkAuth(op, auth, true); err != nil {
		return err
	}
	if _, err := syntax.ParseNSID(string(collection)); err != nil {
		return &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: err}
	}
	if err := checkRecordKey(op, rkey); err != nil {
		return err
	}

	body := deleteRecordRequest{
		Repo:       auth.DID,
		Collection: collection,
		RKey:       rkey,
	}
	req, err := c.newRequest(op, http.MethodPost, "com.atproto.repo.deleteRecord", nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)

	resp, err := source.Execute(ctx, c.provider, op, req)
	if err != nil {
		return err
	}
	if len(resp.Body) == 0 {
		return nil
	}

	var ack struct {
		Commit *struct {
			CID string `json:"cid"`
			Rev string `json:"rev"`
		} `json:"commit,omitempty"`
	}
	return source.DecodeAck(op, resp, &ack)
}

func (c *Client) write(ctx context.Context, op, nsid string, auth Auth, body any) (*RecordAck, error) {
	req, err := c.newRequest(op, http.MethodPost, nsid, nil, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+auth.AccessToken)

	resp, err := source.Execute(ctx, c.provider, op, req)
	if err != nil {
		return nil, err
	}

	var ack RecordAck
	if err := source.DecodeAck(op, resp, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *Client) newRequest(op, method, nsid string, query url.Values, body any) (*transport.Request, error) {
	u, err := source.BuildURL(op, c.host, "/xrpc/"+nsid, query)
	if err != nil {
		return nil, err
	}
	return source.NewJSONRequest(op, method, u, body)
}

func checkAuth(op string, auth Auth, needRepo bool) error {
	if auth.AccessToken == "" {
		return &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: errors.New("missing access token")}
	}
	if !needRepo {
		return nil
	}
	if _, err := syntax.ParseDID(string(auth.DID)); err != nil {
		return &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: err}
	}
	return nil
}

func checkRecord(op string, record Record) error {
	if record == nil {
		return &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: errors.New("nil record")}
	}
	return nil
}

func checkRecordKey(op, rkey string) error {
	if _, err := syntax.ParseRecordKey(rkey); err != nil {
		return &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: err}
	}
	return nil
}

func checkSubject(op string, cid syntax.CID, uri syntax.ATURI) error {
	if _, err := syntax.ParseCID(string(cid)); err != nil {
		return &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: err}
	}
	if _, err := syntax.ParseATURI(string(uri)); err != nil {
		return &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: err}
	}
	return nil
}
