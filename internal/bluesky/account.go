package bluesky

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/blackmichael/multipass/internal/domain"
	"github.com/blackmichael/multipass/internal/source"
)

// refreshMargin is how long before expiry an access token is refreshed.
const refreshMargin = time.Minute

// Account owns one logged-in Bluesky session on behalf of the caller and
// adapts the stateless Client to domain.Source.
type Account struct {
	client *Client
	creds  Credentials
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	session *Session
}

var _ domain.Source = (*Account)(nil)

// NewAccount creates an Account. No request is made until first use.
func NewAccount(client *Client, creds Credentials, logger *slog.Logger) *Account {
	return &Account{
		client: client,
		creds:  creds,
		logger: logger,
		now:    time.Now,
	}
}

// DataSource implements domain.Source.
func (a *Account) DataSource() domain.DataSource {
	return domain.Bluesky
}

// Session returns a usable session, logging in on first use and refreshing
// the access token shortly before it expires.
func (a *Account) Session(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		exp, err := a.session.AccessExpiry()
		if err != nil || a.now().Add(refreshMargin).Before(exp) {
			return a.session, nil
		}

		refreshed, err := a.client.RefreshSession(ctx, a.session.RefreshJwt)
		if err == nil {
			a.logger.Debug("bluesky session refreshed", "session", refreshed)
			a.session = refreshed
			return refreshed, nil
		}
		if errors.Is(err, source.ErrCancelled) {
			return nil, err
		}
		a.logger.Warn("bluesky session refresh failed, logging in again", "error", err)
	}

	s, err := a.client.CreateSession(ctx, a.creds)
	if err != nil {
		return nil, fmt.Errorf("log in as %s: %w", a.creds.Identifier, err)
	}
	if s.Status != nil {
		a.logger.Warn("bluesky account is restricted", "session", s)
	}
	a.logger.Info("bluesky session created", "session", s)
	a.session = s
	return s, nil
}

// Timeline implements domain.Source.
func (a *Account) Timeline(ctx context.Context, limit int) ([]domain.Post, error) {
	s, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}

	tl, err := a.client.Timeline(ctx, s.Auth(), TimelineParams{Limit: limit})
	if err != nil {
		a.dropRejected(s, err)
		return nil, err
	}

	posts, warnings := Normalize(tl)
	for _, w := range warnings {
		a.logger.Warn("dropped bluesky attachment", "post", w.PostID, "reason", w.Reason)
	}
	return posts, nil
}

// Like implements domain.Source. identifier is the post AT-URI and revision
// its CID.
func (a *Account) Like(ctx context.Context, identifier, revision string) error {
	const op = "bluesky likePost"

	uri, err := syntax.ParseATURI(identifier)
	if err != nil {
		return &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: err}
	}
	cid, err := syntax.ParseCID(revision)
	if err != nil {
		return &source.Error{Op: op, Kind: source.ErrMalformedRequest, Err: err}
	}

	s, err := a.Session(ctx)
	if err != nil {
		return err
	}

	ack, err := a.client.LikePost(ctx, s.Auth(), cid, uri)
	if err != nil {
		a.dropRejected(s, err)
		return err
	}
	a.logger.Debug("bluesky like created", "subject", uri, "record", ack.URI)
	return nil
}

// dropRejected forgets s when the server rejected its access token, so the
// next call logs in again. Tokens without a readable expiry are otherwise
// reused until this happens.
func (a *Account) dropRejected(s *Session, err error) {
	if !tokenRejected(err) {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == s {
		a.logger.Warn("bluesky access token rejected, dropping session", "session", s, "error", err)
		a.session = nil
	}
}

// tokenRejected reports whether err is an auth-class failure: any 401, or a
// 400 carrying the XRPC ExpiredToken or InvalidToken error.
func tokenRejected(err error) bool {
	var se *source.Error
	if !errors.As(err, &se) || se.Kind != source.ErrRequestFailed {
		return false
	}
	switch se.StatusCode {
	case http.StatusUnauthorized:
		return true
	case http.StatusBadRequest:
		return strings.Contains(se.Body, "ExpiredToken") || strings.Contains(se.Body, "InvalidToken")
	}
	return false
}
