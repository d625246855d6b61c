package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/multipass/internal/bluesky"
	"github.com/blackmichael/multipass/internal/config"
	"github.com/blackmichael/multipass/internal/domain"
	"github.com/blackmichael/multipass/internal/httpserver"
	"github.com/blackmichael/multipass/internal/mastodon"
	"github.com/blackmichael/multipass/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	transport.RegisterMetrics()
	provider := transport.NewHTTP(
		&http.Client{Timeout: cfg.HTTPTimeout},
		logger,
		transport.WithRetry(cfg.RetryAttempts, 500*time.Millisecond),
	)

	var sources []domain.Source
	if cfg.BlueskyEnabled() {
		client := bluesky.NewClient(cfg.BlueskyHost, provider)
		creds := bluesky.Credentials{Identifier: cfg.BlueskyIdentifier, Password: cfg.BlueskyPassword}
		sources = append(sources, bluesky.NewAccount(client, creds, logger))
		logger.Info("bluesky source enabled", "host", client.Host(), "credentials", creds)
	}
	if cfg.MastodonEnabled() {
		client := mastodon.NewClient(cfg.MastodonHost, provider)
		sources = append(sources, mastodon.NewSource(client, cfg.MastodonToken, logger))
		logger.Info("mastodon source enabled", "host", client.Host())
	}

	feedService, err := domain.NewFeedService(sources, logger)
	if err != nil {
		return fmt.Errorf("create feed service: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	server := httpserver.NewServer(cfg, feedService, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.Info("server started", "port", cfg.Port, "sources", feedService.DataSources())

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
