package mastodon

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/blackmichael/multipass/internal/domain"
)

// Source adapts a Client and an access token to domain.Source.
type Source struct {
	client *Client
	token  string
	logger *slog.Logger
}

var _ domain.Source = (*Source)(nil)

func NewSource(client *Client, token string, logger *slog.Logger) *Source {
	return &Source{client: client, token: token, logger: logger}
}

func (s *Source) DataSource() domain.DataSource {
	return domain.Mastodon
}

func (s *Source) Timeline(ctx context.Context, limit int) ([]domain.Post, error) {
	statuses, err := s.client.HomeTimeline(ctx, s.token, TimelineParams{Limit: limit})
	if err != nil {
		return nil, err
	}

	posts, warnings := Normalize(statuses)
	for _, w := range warnings {
		s.logger.Warn("dropped mastodon attachment", "post", w.PostID, "reason", w.Reason)
	}
	return posts, nil
}

// Like favourites the status. Mastodon needs no revision, so it is ignored.
// Repeated likes of one status share an Idempotency-Key, so retrying after
// an ambiguous outcome is deduplicated by the instance.
func (s *Source) Like(ctx context.Context, identifier, _ string) error {
	st, err := s.client.Favourite(ctx, s.token, identifier, favouriteKey(s.client.Host(), identifier))
	if err != nil {
		return err
	}
	s.logger.Debug("mastodon status favourited", "id", st.ID, "favourites", st.FavouritesCount)
	return nil
}

// favouriteKey derives a stable Idempotency-Key for favouriting status id on
// host.
func favouriteKey(host, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://"+host+"/api/v1/statuses/"+id+"/favourite")).String()
}
