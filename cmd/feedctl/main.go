package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blackmichael/multipass/internal/bluesky"
	"github.com/blackmichael/multipass/internal/config"
	"github.com/blackmichael/multipass/internal/domain"
	"github.com/blackmichael/multipass/internal/mastodon"
	"github.com/blackmichael/multipass/internal/source"
	"github.com/blackmichael/multipass/internal/streaming"
	"github.com/blackmichael/multipass/internal/transport"
)

const usage = `usage: feedctl <command> [flags]

commands:
  login                         check the configured accounts
  timeline [-limit n] [-json]   print the merged timeline
  like -source s -id id [-rev cid]
  stream                        follow the Mastodon user stream`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if kind := source.KindOf(err); kind != nil {
			fmt.Fprintf(os.Stderr, "kind: %s\n", source.KindName(kind))
		}
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	bluesky  *bluesky.Account
	mastodon *mastodon.Source
	mclient  *mastodon.Client
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a := newApp(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "login":
		return a.login(ctx)
	case "timeline":
		return a.timeline(ctx, args[1:])
	case "like":
		return a.like(ctx, args[1:])
	case "stream":
		return a.stream(ctx)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func newApp(cfg *config.Config) *app {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	provider := transport.NewHTTP(
		&http.Client{Timeout: cfg.HTTPTimeout},
		logger,
		transport.WithRetry(cfg.RetryAttempts, 500*time.Millisecond),
	)

	a := &app{cfg: cfg, logger: logger}
	if cfg.BlueskyEnabled() {
		creds := bluesky.Credentials{Identifier: cfg.BlueskyIdentifier, Password: cfg.BlueskyPassword}
		a.bluesky = bluesky.NewAccount(bluesky.NewClient(cfg.BlueskyHost, provider), creds, logger)
	}
	if cfg.MastodonEnabled() {
		a.mclient = mastodon.NewClient(cfg.MastodonHost, provider)
		a.mastodon = mastodon.NewSource(a.mclient, cfg.MastodonToken, logger)
	}
	return a
}

func (a *app) sources() []domain.Source {
	var out []domain.Source
	if a.bluesky != nil {
		out = append(out, a.bluesky)
	}
	if a.mastodon != nil {
		out = append(out, a.mastodon)
	}
	return out
}

func (a *app) login(ctx context.Context) error {
	if a.bluesky != nil {
		s, err := a.bluesky.Session(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Bluesky: %s (%s)\n", s.Handle, s.DID)
		if exp, err := s.AccessExpiry(); err == nil {
			fmt.Printf("  access token expires %s\n", exp.Local().Format(time.RFC1123))
		}
		if s.Status != nil {
			fmt.Printf("  account status: %s\n", *s.Status)
		}
	}
	if a.mclient != nil {
		acct, err := a.mclient.VerifyCredentials(ctx, a.cfg.MastodonToken)
		if err != nil {
			return err
		}
		fmt.Printf("Mastodon: @%s (%s)\n", acct.Acct, acct.DisplayName)
	}
	return nil
}

func (a *app) timeline(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("timeline", flag.ContinueOnError)
	limit := fs.Int("limit", a.cfg.TimelineLimit, "number of posts")
	asJSON := fs.Bool("json", false, "print posts as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	feed, err := domain.NewFeedService(a.sources(), a.logger)
	if err != nil {
		return err
	}
	posts, err := feed.Timeline(ctx, *limit)
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(posts)
	}
	for _, p := range posts {
		printPost(p)
	}
	return nil
}

func printPost(p domain.Post) {
	header := fmt.Sprintf("%s  [%s] %s", p.Date.Local().Format("Jan 02 15:04"), p.Source.DisplayName(), p.Author.Handle)
	if p.RepostingAuthor != nil {
		header += fmt.Sprintf(" (reposted by %s)", p.RepostingAuthor.Handle)
	}
	fmt.Println(header)
	if p.Content != "" {
		fmt.Println("  " + strings.ReplaceAll(p.Content, "\n", "\n  "))
	}
	for _, att := range p.Attachments {
		switch v := att.(type) {
		case domain.Images:
			fmt.Printf("  [%d image(s)]\n", len(v.Images))
		case domain.Link:
			fmt.Printf("  [link] %s\n", v.URL)
		}
	}
	liked := ""
	if p.Status.Liked {
		liked = " (liked)"
	}
	fmt.Printf("  ♥ %d%s  ⟳ %d  id=%s", p.Status.LikeCount, liked, p.Status.RepostCount, p.Identifier)
	if p.Revision != "" {
		fmt.Printf(" rev=%s", p.Revision)
	}
	fmt.Print("\n\n")
}

func (a *app) like(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("like", flag.ContinueOnError)
	src := fs.String("source", "", "bluesky or mastodon")
	id := fs.String("id", "", "post identifier")
	rev := fs.String("rev", "", "post revision (Bluesky CID)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ds, err := domain.ParseDataSource(*src)
	if err != nil {
		return err
	}
	feed, err := domain.NewFeedService(a.sources(), a.logger)
	if err != nil {
		return err
	}
	if err := feed.Like(ctx, ds, *id, *rev); err != nil {
		if errors.Is(err, source.ErrAmbiguous) {
			return fmt.Errorf("%w\nthe like may have been recorded; check the timeline before retrying", err)
		}
		return err
	}
	fmt.Println("liked")
	return nil
}

func (a *app) stream(ctx context.Context) error {
	if !a.cfg.MastodonEnabled() {
		return errors.New("stream needs MASTODON_HOST and MASTODON_ACCESS_TOKEN")
	}
	handler := func(_ context.Context, u streaming.Update) error {
		if u.DeletedID != "" {
			fmt.Printf("deleted %s\n\n", u.DeletedID)
			return nil
		}
		printPost(u.Post)
		return nil
	}
	sub, err := streaming.NewSubscriber(a.cfg.MastodonHost, a.cfg.MastodonToken, handler, a.logger)
	if err != nil {
		return err
	}
	if err := sub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
