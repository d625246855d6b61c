package source

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/blackmichael/multipass/internal/transport"
)

type widget struct {
	Name  string `json:"name"`
	Count *int   `json:"count"`
}

func (w widget) Validate() error {
	if w.Name == "" {
		return MissingField("name")
	}
	if w.Count == nil {
		return MissingField("count")
	}
	return nil
}

func respond(status int, body string) transport.Provider {
	return transport.ProviderFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return &transport.Response{StatusCode: status, Body: []byte(body)}, nil
	})
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		want    string
		wantErr bool
	}{
		{name: "bare host", host: "bsky.social", want: "https://bsky.social/xrpc/x"},
		{name: "host with port", host: "localhost:8443", want: "https://localhost:8443/xrpc/x"},
		{name: "empty", host: "", wantErr: true},
		{name: "with path", host: "bsky.social/evil", wantErr: true},
		{name: "with credentials", host: "user@bsky.social", wantErr: true},
		{name: "with scheme", host: "https://bsky.social", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildURL("test", tt.host, "/xrpc/x", nil)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedRequest) {
					t.Fatalf("err = %v, want ErrMalformedRequest", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildURL: %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExecuteStatusFailure(t *testing.T) {
	body := strings.Repeat("x", 2000)
	_, err := Execute(context.Background(), respond(http.StatusInternalServerError, body), "op", &transport.Request{})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("err = %v, want ErrRequestFailed", err)
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("err is %T, want *Error", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", se.StatusCode)
	}
	if len(se.Body) > maxBodySnippet+3 {
		t.Errorf("Body length = %d, want bounded", len(se.Body))
	}
}

func TestExecuteProviderError(t *testing.T) {
	p := transport.ProviderFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		return nil, errors.New("connection reset")
	})
	_, err := Execute(context.Background(), p, "op", &transport.Request{})
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("err = %v, want ErrRequestFailed", err)
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := transport.ProviderFunc(func(ctx context.Context, _ *transport.Request) (*transport.Response, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	_, err := Execute(ctx, p, "op", &transport.Request{})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapped context.Canceled", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"name":"a","count":0}`},
		{name: "missing required", body: `{"name":"a"}`, wantErr: true},
		{name: "mistyped", body: `{"name":"a","count":"1"}`, wantErr: true},
		{name: "trailing data", body: `{"name":"a","count":1}{}`, wantErr: true},
		{name: "not json", body: `<html>`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w widget
			err := Decode("op", &transport.Response{StatusCode: 200, Body: []byte(tt.body)}, &w)
			if tt.wantErr != (err != nil) {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrDecodeFailed) {
				t.Errorf("err = %v, want ErrDecodeFailed", err)
			}
		})
	}
}

func TestDecodeAckIsAmbiguous(t *testing.T) {
	var w widget
	err := DecodeAck("op", &transport.Response{StatusCode: 200, Body: []byte("ok")}, &w)
	if !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("err = %v, want ErrAmbiguous", err)
	}
	if KindName(KindOf(err)) != "Ambiguous" {
		t.Errorf("KindName = %q", KindName(KindOf(err)))
	}
}
