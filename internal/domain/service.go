package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// ErrUnknownSource is returned when an operation names a backend that has no
// configured account.
var ErrUnknownSource = errors.New("unknown source")

// FeedService is the aggregation service. It merges the timelines of every
// configured backend account into one ordered, deduplicated feed and routes
// engagement writes back to the owning backend.
type FeedService struct {
	sources map[DataSource]Source
	order   []DataSource
	logger  *slog.Logger
}

// NewFeedService creates a FeedService over the given accounts. At most one
// account per backend is allowed.
func NewFeedService(sources []Source, logger *slog.Logger) (*FeedService, error) {
	if len(sources) == 0 {
		return nil, errors.New("at least one source is required")
	}

	byName := make(map[DataSource]Source, len(sources))
	order := make([]DataSource, 0, len(sources))
	for _, src := range sources {
		ds := src.DataSource()
		if !ds.Valid() {
			return nil, fmt.Errorf("source %q: unknown data source", ds)
		}
		if _, dup := byName[ds]; dup {
			return nil, fmt.Errorf("source %q: configured more than once", ds)
		}
		byName[ds] = src
		order = append(order, ds)
	}

	return &FeedService{
		sources: byName,
		order:   order,
		logger:  logger,
	}, nil
}

// DataSources returns the configured backends in registration order.
func (s *FeedService) DataSources() []DataSource {
	return append([]DataSource(nil), s.order...)
}

// Timeline fetches every backend concurrently and returns the merged feed
// ordered by date ascending. limit bounds each backend's page and, when
// positive, the merged result keeps only the newest limit posts. If any
// backend fails the whole call fails.
func (s *FeedService) Timeline(ctx context.Context, limit int) ([]Post, error) {
	s.logger.Debug("Timeline called", "sources", s.order, "limit", limit)

	g, gctx := errgroup.WithContext(ctx)
	pages := make([][]Post, len(s.order))
	for i, ds := range s.order {
		src := s.sources[ds]
		g.Go(func() error {
			posts, err := src.Timeline(gctx, limit)
			if err != nil {
				s.logger.Error("source timeline failed", "source", ds, "error", err)
				return fmt.Errorf("%s timeline: %w", ds, err)
			}
			s.logger.Debug("source timeline fetched", "source", ds, "posts_count", len(posts))
			pages[i] = posts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Post
	for _, page := range pages {
		merged = append(merged, page...)
	}
	merged = Dedupe(merged)
	SortPosts(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged, nil
}

// Like routes a like to the backend that owns the post.
func (s *FeedService) Like(ctx context.Context, ds DataSource, identifier, revision string) error {
	src, ok := s.sources[ds]
	if !ok {
		return fmt.Errorf("like on %q: %w", ds, ErrUnknownSource)
	}
	if identifier == "" {
		return errors.New("like: identifier is required")
	}

	if err := src.Like(ctx, identifier, revision); err != nil {
		s.logger.Error("like failed", "source", ds, "identifier", identifier, "error", err)
		return fmt.Errorf("%s like: %w", ds, err)
	}
	s.logger.Info("post liked", "source", ds, "identifier", identifier)
	return nil
}
