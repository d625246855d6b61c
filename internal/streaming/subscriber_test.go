package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/multipass/internal/source"
)

const statusJSON = `{"id":"301","uri":"https://example.social/users/alice/statuses/301","url":"https://example.social/@alice/301","created_at":"2024-05-01T12:00:00.000Z","account":{"id":"1","username":"alice","acct":"alice","display_name":"Alice"},"content":"<p>streamed</p>","media_attachments":[],"replies_count":0,"reblogs_count":0,"favourites_count":0}`

func frame(t *testing.T, name, payload string) []byte {
	t.Helper()
	data, err := json.Marshal(streamMessage{Stream: []string{"user"}, Event: name, Payload: payload})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestParseEvent(t *testing.T) {
	ev, err := parseEvent(frame(t, EventUpdate, statusJSON))
	if err != nil {
		t.Fatalf("parseEvent: %v", err)
	}
	if ev.Status == nil || ev.Status.ID != "301" {
		t.Errorf("status = %+v", ev.Status)
	}

	ev, err = parseEvent(frame(t, EventDelete, "301"))
	if err != nil {
		t.Fatalf("parseEvent: %v", err)
	}
	if ev.DeletedID != "301" || ev.Status != nil {
		t.Errorf("event = %+v", ev)
	}

	ev, err = parseEvent(frame(t, "notification", `{"id":"5"}`))
	if err != nil {
		t.Fatalf("parseEvent: %v", err)
	}
	if ev.Status != nil || ev.DeletedID != "" {
		t.Errorf("unhandled event decoded: %+v", ev)
	}
}

func TestParseEventErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("hello")},
		{"no event", []byte(`{"payload":"x"}`)},
		{"empty delete", frame(t, EventDelete, "")},
		{"bad status", frame(t, EventUpdate, `{"id":"1"}`)},
		{"trailing data", frame(t, EventUpdate, statusJSON+" {}")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseEvent(tt.data); err == nil {
				t.Error("expected error")
			}
		})
	}

	_, err := parseEvent(frame(t, EventUpdate, `[]`))
	if !errors.Is(err, source.ErrDecodeFailed) {
		t.Errorf("err = %v, want ErrDecodeFailed", err)
	}
}

func TestNewSubscriber(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	noop := func(context.Context, Update) error { return nil }

	s, err := NewSubscriber("example.social", "tok", noop, logger)
	if err != nil {
		t.Fatal(err)
	}
	if s.url != "wss://example.social/api/v1/streaming?stream=user" {
		t.Errorf("url = %q", s.url)
	}
	if _, err := NewSubscriber("", "tok", noop, logger); err == nil {
		t.Error("expected error for empty host")
	}
	if _, err := NewSubscriber("example.social", "", noop, logger); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestSubscriberDeliversUpdates(t *testing.T) {
	upgrader := websocket.Upgrader{}
	messages := [][]byte{
		[]byte("garbage"),
		frame(t, EventUpdate, statusJSON),
		frame(t, "notification", `{}`),
		frame(t, EventDelete, "301"),
	}
	authorized := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case authorized <- r.Header.Get("Authorization"):
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	updates := make(chan Update, 4)
	handler := func(_ context.Context, u Update) error {
		updates <- u
		return nil
	}
	s, err := NewSubscriber("example.social", "tok", handler, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	s.url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/streaming?stream=user"

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	first := <-updates
	if first.Event != EventUpdate || first.Post.ID() != "Mastodon-301" || first.Post.Content != "streamed" {
		t.Errorf("first update = %+v", first)
	}
	second := <-updates
	if second.Event != EventDelete || second.DeletedID != "301" {
		t.Errorf("second update = %+v", second)
	}
	if got := <-authorized; got != "Bearer tok" {
		t.Errorf("Authorization = %q", got)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
