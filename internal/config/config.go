package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP server port.
	Port int

	// BlueskyHost is the PDS host, e.g. "bsky.social".
	BlueskyHost string

	// BlueskyIdentifier is the handle or email used to log in. Empty disables
	// the Bluesky source.
	BlueskyIdentifier string

	// BlueskyPassword should be an app password.
	BlueskyPassword string

	// MastodonHost is the instance host, e.g. "mastodon.social". Empty
	// disables the Mastodon source.
	MastodonHost string

	// MastodonToken is an OAuth access token with read and write scopes.
	MastodonToken string

	// HTTPTimeout bounds a single outbound request attempt.
	HTTPTimeout time.Duration

	// RetryAttempts is how many times idempotent requests are tried.
	RetryAttempts uint

	// TimelineLimit is the default number of posts per aggregated timeline.
	TimelineLimit int

	// CorsAllowedOrigins lists the browser origins allowed to call the
	// gateway. Empty means no cross-origin access.
	CorsAllowedOrigins []string

	// GatewayToken, when set, must be presented as a bearer token on
	// state-changing gateway routes.
	GatewayToken string
}

// BlueskyEnabled reports whether Bluesky credentials are configured.
func (c *Config) BlueskyEnabled() bool {
	return c.BlueskyIdentifier != ""
}

// MastodonEnabled reports whether a Mastodon account is configured.
func (c *Config) MastodonEnabled() bool {
	return c.MastodonHost != ""
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := intEnv("PORT", 3000)
	if err != nil {
		return nil, err
	}
	limit, err := intEnv("MULTIPASS_TIMELINE_LIMIT", 50)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		return nil, fmt.Errorf("MULTIPASS_TIMELINE_LIMIT must be between 1 and 100")
	}
	attempts, err := intEnv("MULTIPASS_RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	if attempts < 1 {
		return nil, fmt.Errorf("MULTIPASS_RETRY_ATTEMPTS must be at least 1")
	}

	timeout := 10 * time.Second
	if v := getEnv("MULTIPASS_HTTP_TIMEOUT", ""); v != "" {
		timeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MULTIPASS_HTTP_TIMEOUT: %w", err)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("MULTIPASS_HTTP_TIMEOUT must be positive")
		}
	}

	cfg := &Config{
		Port:              port,
		BlueskyHost:       getEnv("BLUESKY_HOST", "bsky.social"),
		BlueskyIdentifier: getEnv("BLUESKY_IDENTIFIER", ""),
		BlueskyPassword:   getEnv("BLUESKY_APP_PASSWORD", ""),
		MastodonHost:      getEnv("MASTODON_HOST", ""),
		MastodonToken:     getEnv("MASTODON_ACCESS_TOKEN", ""),
		HTTPTimeout:       timeout,
		RetryAttempts:     uint(attempts),
		TimelineLimit:     limit,

		CorsAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		GatewayToken:       getEnv("MULTIPASS_GATEWAY_TOKEN", ""),
	}

	if cfg.BlueskyIdentifier != "" && cfg.BlueskyPassword == "" {
		return nil, fmt.Errorf("BLUESKY_APP_PASSWORD is required when BLUESKY_IDENTIFIER is set")
	}
	if cfg.MastodonHost != "" && cfg.MastodonToken == "" {
		return nil, fmt.Errorf("MASTODON_ACCESS_TOKEN is required when MASTODON_HOST is set")
	}
	if !cfg.BlueskyEnabled() && !cfg.MastodonEnabled() {
		return nil, errors.New("no source configured: set BLUESKY_IDENTIFIER or MASTODON_HOST")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func intEnv(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
