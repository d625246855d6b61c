package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/blackmichael/multipass/internal/bluesky"
	"github.com/blackmichael/multipass/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		handle      string
		password    string
		pds         string
		serviceDID  string
		feedRKey    string
		displayName string
		description string
		unpublish   bool
	)

	flag.StringVar(&handle, "handle", envOrDefault("BLUESKY_IDENTIFIER", ""), "BlueSky handle (e.g. user.bsky.social)")
	flag.StringVar(&password, "password", envOrDefault("BLUESKY_APP_PASSWORD", ""), "BlueSky app password")
	flag.StringVar(&pds, "pds", envOrDefault("BLUESKY_HOST", bluesky.DefaultHost), "PDS host (e.g. bsky.social)")
	flag.StringVar(&serviceDID, "service-did", envOrDefault("FEEDGEN_SERVICE_DID", ""), "Feed generator service DID (e.g. did:web:feed.example.com)")
	flag.StringVar(&feedRKey, "rkey", "", "Record key / short name for the feed (e.g. my-cool-feed)")
	flag.StringVar(&displayName, "name", "", "Feed display name (max 24 graphemes)")
	flag.StringVar(&description, "description", "", "Feed description (max 300 graphemes)")
	flag.BoolVar(&unpublish, "unpublish", false, "Delete the feed generator record instead of publishing")
	flag.Parse()

	if handle == "" || password == "" {
		return fmt.Errorf("--handle and --password are required (or set BLUESKY_IDENTIFIER and BLUESKY_APP_PASSWORD)")
	}
	if feedRKey == "" {
		return fmt.Errorf("--rkey is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()
	client := bluesky.NewClient(strings.TrimPrefix(pds, "https://"), transport.NewHTTP(nil, logger))

	fmt.Printf("Logging in as %s...\n", handle)
	session, err := client.CreateSession(ctx, bluesky.Credentials{Identifier: handle, Password: password})
	if err != nil {
		return fmt.Errorf("log in: %w", err)
	}
	fmt.Printf("Authenticated as %s\n", session.DID)
	auth := session.Auth()
	feedURI := fmt.Sprintf("at://%s/%s/%s", session.DID, bluesky.CollectionFeedGenerator, feedRKey)

	if unpublish {
		fmt.Printf("Unpublishing feed %q...\n", feedRKey)
		if err := client.DeleteRecord(ctx, auth, bluesky.CollectionFeedGenerator, feedRKey); err != nil {
			return fmt.Errorf("unpublish feed generator: %w", err)
		}
		fmt.Printf("Feed unpublished: %s\n", feedURI)
		return nil
	}

	if serviceDID == "" {
		return fmt.Errorf("--service-did is required for publishing (or set FEEDGEN_SERVICE_DID)")
	}
	if displayName == "" {
		return fmt.Errorf("--name is required for publishing")
	}

	record := bluesky.FeedGenerator{
		DID:         syntax.DID(serviceDID),
		DisplayName: displayName,
		Description: description,
		CreatedAt:   bluesky.FormatDatetime(time.Now()),
	}

	fmt.Printf("Publishing feed %q...\n", feedRKey)
	fmt.Printf("Feed record %+v\n", record)
	ack, err := client.PutRecord(ctx, auth, feedRKey, record)
	if err != nil {
		return fmt.Errorf("publish feed generator: %w", err)
	}

	fmt.Printf("Feed published: %s (cid %s)\n", ack.URI, ack.CID)
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
