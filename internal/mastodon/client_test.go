package mastodon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/blackmichael/multipass/internal/source"
	"github.com/blackmichael/multipass/internal/transport"
)

const testToken = "mastodon-token"

type recorder struct {
	status int
	body   string
	err    error
	last   *transport.Request
	calls  int
}

func (r *recorder) Do(_ context.Context, req *transport.Request) (*transport.Response, error) {
	r.calls++
	r.last = req
	if r.err != nil {
		return nil, r.err
	}
	return &transport.Response{StatusCode: r.status, Body: []byte(r.body)}, nil
}

const accountFixture = `{"id":"1","username":"alice","acct":"alice","display_name":"Alice","avatar":"https://files.example/a.png","url":"https://example.social/@alice"}`

func TestVerifyCredentials(t *testing.T) {
	rec := &recorder{status: http.StatusOK, body: accountFixture}
	c := NewClient("example.social", rec)

	acct, err := c.VerifyCredentials(context.Background(), testToken)
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if acct.Acct != "alice" || acct.DisplayName != "Alice" {
		t.Errorf("account = %+v", acct)
	}
	if rec.last.Method != http.MethodGet || rec.last.URL != "https://example.social/api/v1/accounts/verify_credentials" {
		t.Errorf("request = %s %s", rec.last.Method, rec.last.URL)
	}
	if got := rec.last.Header.Get("Authorization"); got != "Bearer "+testToken {
		t.Errorf("Authorization = %q", got)
	}
}

func TestVerifyCredentialsDecodeFailure(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing acct", `{"id":"1","username":"alice"}`},
		{"wrong type", `{"id":1,"username":"alice","acct":"alice"}`},
		{"trailing data", accountFixture + `{}`},
		{"html", `<html>maintenance</html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("example.social", &recorder{status: http.StatusOK, body: tt.body})
			_, err := c.VerifyCredentials(context.Background(), testToken)
			if !errors.Is(err, source.ErrDecodeFailed) {
				t.Errorf("err = %v, want ErrDecodeFailed", err)
			}
		})
	}
}

func TestHomeTimeline(t *testing.T) {
	rec := &recorder{status: http.StatusOK, body: statusesFixture}
	c := NewClient("example.social", rec)

	statuses, err := c.HomeTimeline(context.Background(), testToken, TimelineParams{Limit: 40, MaxID: "109"})
	if err != nil {
		t.Fatalf("HomeTimeline: %v", err)
	}
	if len(statuses) != 3 {
		t.Fatalf("statuses = %d, want 3", len(statuses))
	}
	if rec.last.URL != "https://example.social/api/v1/timelines/home?limit=40&max_id=109" {
		t.Errorf("URL = %q", rec.last.URL)
	}
	if statuses[1].Reblog == nil || statuses[1].Reblog.ID != "201" {
		t.Errorf("reblog = %+v", statuses[1].Reblog)
	}
}

func TestHomeTimelineFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"The access token is invalid"}`, source.ErrRequestFailed},
		{"server error with valid-looking body", http.StatusBadGateway, `[]`, source.ErrRequestFailed},
		{"null", http.StatusOK, `null`, source.ErrDecodeFailed},
		{"object", http.StatusOK, `{}`, source.ErrDecodeFailed},
		{"bad date", http.StatusOK, `[{"id":"1","uri":"u","created_at":"yesterday","account":` + accountFixture + `,"content":"","media_attachments":[]}]`, source.ErrDecodeFailed},
		{"missing media", http.StatusOK, `[{"id":"1","uri":"u","created_at":"2024-05-01T12:00:00.000Z","account":` + accountFixture + `,"content":""}]`, source.ErrDecodeFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("example.social", &recorder{status: tt.status, body: tt.body})
			statuses, err := c.HomeTimeline(context.Background(), testToken, TimelineParams{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if statuses != nil {
				t.Errorf("statuses = %v, want nil", statuses)
			}
		})
	}
}

func TestHomeTimelineMalformed(t *testing.T) {
	rec := &recorder{status: http.StatusOK, body: `[]`}

	_, err := NewClient("", rec).HomeTimeline(context.Background(), testToken, TimelineParams{})
	if !errors.Is(err, source.ErrMalformedRequest) {
		t.Errorf("empty host: err = %v", err)
	}
	_, err = NewClient("example.social", rec).HomeTimeline(context.Background(), "", TimelineParams{})
	if !errors.Is(err, source.ErrMalformedRequest) {
		t.Errorf("empty token: err = %v", err)
	}
	if rec.calls != 0 {
		t.Errorf("provider called %d times", rec.calls)
	}
}

func TestFavourite(t *testing.T) {
	rec := &recorder{status: http.StatusOK, body: plainStatus}
	c := NewClient("example.social", rec)
	c.newKey = func() string { return "generated" }

	st, err := c.Favourite(context.Background(), testToken, "101", "key-1")
	if err != nil {
		t.Fatalf("Favourite: %v", err)
	}
	if st.ID != "101" {
		t.Errorf("ID = %q", st.ID)
	}
	if rec.last.Method != http.MethodPost || rec.last.URL != "https://example.social/api/v1/statuses/101/favourite" {
		t.Errorf("request = %s %s", rec.last.Method, rec.last.URL)
	}
	if got := rec.last.Header.Get("Idempotency-Key"); got != "key-1" {
		t.Errorf("Idempotency-Key = %q", got)
	}
	if len(rec.last.Body) != 0 {
		t.Errorf("body = %q, want none", rec.last.Body)
	}
}

func TestFavouriteGeneratesKeys(t *testing.T) {
	rec := &recorder{status: http.StatusOK, body: plainStatus}
	c := NewClient("example.social", rec)

	if _, err := c.Favourite(context.Background(), testToken, "101", ""); err != nil {
		t.Fatal(err)
	}
	first := rec.last.Header.Get("Idempotency-Key")
	if _, err := c.Favourite(context.Background(), testToken, "101", ""); err != nil {
		t.Fatal(err)
	}
	if first == "" || first == rec.last.Header.Get("Idempotency-Key") {
		t.Errorf("keys not unique: %q", first)
	}
}

func TestFavouriteOutcomes(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"not found", http.StatusNotFound, `{"error":"Record not found"}`, source.ErrRequestFailed},
		{"unreadable ack", http.StatusOK, `<html>ok</html>`, source.ErrAmbiguous},
		{"empty ack", http.StatusOK, ``, source.ErrAmbiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{status: tt.status, body: tt.body}
			_, err := NewClient("example.social", rec).Favourite(context.Background(), testToken, "101", "")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if rec.calls != 1 {
				t.Errorf("calls = %d, want 1", rec.calls)
			}
		})
	}
}

func TestFavouriteInvalidID(t *testing.T) {
	rec := &recorder{status: http.StatusOK, body: plainStatus}
	for _, id := range []string{"", "1/../2", "1?x=1"} {
		_, err := NewClient("example.social", rec).Favourite(context.Background(), testToken, id, "")
		if !errors.Is(err, source.ErrMalformedRequest) {
			t.Errorf("id %q: err = %v", id, err)
		}
	}
	if rec.calls != 0 {
		t.Errorf("provider called %d times", rec.calls)
	}
}

func TestFavouriteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{status: http.StatusOK, body: plainStatus}

	_, err := NewClient("example.social", rec).Favourite(ctx, testToken, "101", "")
	if !errors.Is(err, source.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestSource(t *testing.T) {
	rec := &recorder{status: http.StatusOK, body: statusesFixture}
	s := NewSource(NewClient("example.social", rec), testToken, slog.New(slog.NewTextHandler(io.Discard, nil)))

	posts, err := s.Timeline(context.Background(), 20)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(posts))
	}
	if !strings.Contains(rec.last.URL, "limit=20") {
		t.Errorf("URL = %q", rec.last.URL)
	}

	rec.body = plainStatus
	if err := s.Like(context.Background(), posts[1].Identifier, ""); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if !strings.HasSuffix(rec.last.URL, "/api/v1/statuses/201/favourite") {
		t.Errorf("favourited %q, want the boosted status", rec.last.URL)
	}
	key := rec.last.Header.Get("Idempotency-Key")
	if key != favouriteKey("example.social", "201") {
		t.Errorf("Idempotency-Key = %q, want the derived key", key)
	}

	if err := s.Like(context.Background(), posts[1].Identifier, ""); err != nil {
		t.Fatalf("Like: %v", err)
	}
	if got := rec.last.Header.Get("Idempotency-Key"); got != key {
		t.Errorf("retried like sent key %q, want %q", got, key)
	}
	if favouriteKey("example.social", "202") == key || favouriteKey("other.social", "201") == key {
		t.Error("favouriteKey does not depend on host and status")
	}
}
