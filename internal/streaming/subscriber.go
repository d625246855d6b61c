// Package streaming follows a Mastodon user stream over WebSocket and hands
// normalized posts to a callback.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/multipass/internal/domain"
	"github.com/blackmichael/multipass/internal/mastodon"
)

const (
	minBackoff    = time.Second
	maxBackoff    = time.Minute
	statsInterval = 30 * time.Second
)

// Update is one change delivered by the stream. Post is set for new and
// edited statuses, DeletedID for deletions.
type Update struct {
	Event     string
	Post      domain.Post
	DeletedID string
}

// Handler receives updates in stream order. An error is logged and the
// stream continues.
type Handler func(ctx context.Context, u Update) error

// Subscriber connects to the user stream of one Mastodon account.
type Subscriber struct {
	url     string
	token   string
	handler Handler
	logger  *slog.Logger
	dialer  *websocket.Dialer
}

// NewSubscriber creates a subscriber for the account behind token on host.
func NewSubscriber(host, token string, handler Handler, logger *slog.Logger) (*Subscriber, error) {
	if host == "" {
		return nil, errors.New("streaming host is required")
	}
	if token == "" {
		return nil, errors.New("streaming token is required")
	}
	u := url.URL{
		Scheme:   "wss",
		Host:     host,
		Path:     "/api/v1/streaming",
		RawQuery: url.Values{"stream": {"user"}}.Encode(),
	}
	return &Subscriber{
		url:     u.String(),
		token:   token,
		handler: handler,
		logger:  logger,
		dialer:  websocket.DefaultDialer,
	}, nil
}

// Start follows the stream until ctx is cancelled, reconnecting with
// exponential backoff after errors. A connection that delivered at least one
// message resets the backoff.
func (s *Subscriber) Start(ctx context.Context) error {
	backoff := minBackoff
	for {
		received, err := s.subscribe(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received > 0 {
			backoff = minBackoff
		}
		s.logger.Error("stream connection error, reconnecting", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (s *Subscriber) subscribe(ctx context.Context) (int64, error) {
	s.logger.Info("connecting to stream", "url", s.url)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.token)
	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return 0, fmt.Errorf("dial stream: %w (status %d)", err, resp.StatusCode)
		}
		return 0, fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	// ReadMessage does not observe ctx; closing the connection unblocks it.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("connected to stream")

	var received, posts, deletes int64
	lastStatsLog := time.Now()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return received, fmt.Errorf("read message: %w", err)
		}
		received++

		ev, err := parseEvent(message)
		if err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		if u, ok := s.update(ev); ok {
			if err := s.handler(ctx, u); err != nil {
				s.logger.Error("failed to handle update", "event", u.Event, "error", err)
			}
			if u.DeletedID != "" {
				deletes++
			} else {
				posts++
			}
		}

		if time.Since(lastStatsLog) >= statsInterval {
			s.logger.Info("stream stats",
				"messages_received", received,
				"posts", posts,
				"deletes", deletes,
			)
			lastStatsLog = time.Now()
		}
	}
}

func (s *Subscriber) update(ev *event) (Update, bool) {
	switch {
	case ev.Status != nil:
		post, warnings := mastodon.NormalizeStatus(ev.Status)
		for _, w := range warnings {
			s.logger.Warn("dropped mastodon attachment", "post", w.PostID, "reason", w.Reason)
		}
		return Update{Event: ev.Name, Post: post}, true
	case ev.DeletedID != "":
		return Update{Event: ev.Name, DeletedID: ev.DeletedID}, true
	default:
		return Update{}, false
	}
}
