package mastodon

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackmichael/multipass/internal/source"
)

// Account is the subset of a Mastodon account entity the feed uses.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	URL         string `json:"url,omitempty"`
}

func (a *Account) Validate() error {
	if a.ID == "" {
		return source.MissingField("id")
	}
	if a.Acct == "" {
		return source.MissingField("acct")
	}
	if a.Username == "" {
		return source.MissingField("username")
	}
	return nil
}

// Status is a Mastodon status. Media attachments and the preview card stay
// raw here and are classified by Normalize, so one odd attachment does not
// fail the page.
type Status struct {
	ID               string            `json:"id"`
	URI              string            `json:"uri"`
	URL              string            `json:"url,omitempty"`
	CreatedAt        string            `json:"created_at"`
	Account          Account           `json:"account"`
	Content          string            `json:"content"`
	SpoilerText      string            `json:"spoiler_text,omitempty"`
	Visibility       string            `json:"visibility,omitempty"`
	Reblog           *Status           `json:"reblog,omitempty"`
	MediaAttachments []json.RawMessage `json:"media_attachments"`
	Card             json.RawMessage   `json:"card,omitempty"`
	RepliesCount     int64             `json:"replies_count"`
	ReblogsCount     int64             `json:"reblogs_count"`
	FavouritesCount  int64             `json:"favourites_count"`
	Favourited       bool              `json:"favourited,omitempty"`
	Reblogged        bool              `json:"reblogged,omitempty"`

	createdAt time.Time
}

func (s *Status) Validate() error {
	if s.ID == "" {
		return source.MissingField("id")
	}
	if s.URI == "" {
		return source.MissingField("uri")
	}
	if s.CreatedAt == "" {
		return source.MissingField("created_at")
	}
	t, err := time.Parse(time.RFC3339Nano, s.CreatedAt)
	if err != nil {
		return source.InvalidField("created_at", err)
	}
	s.createdAt = t
	if err := s.Account.Validate(); err != nil {
		return fmt.Errorf("account: %w", err)
	}
	if s.MediaAttachments == nil {
		return source.MissingField("media_attachments")
	}
	if s.RepliesCount < 0 || s.ReblogsCount < 0 || s.FavouritesCount < 0 {
		return fmt.Errorf("negative count on status %s", s.ID)
	}
	if s.Reblog != nil {
		if s.Reblog.Reblog != nil {
			return fmt.Errorf("reblog: nested reblog")
		}
		if err := s.Reblog.Validate(); err != nil {
			return fmt.Errorf("reblog: %w", err)
		}
	}
	return nil
}

// CreatedTime returns the parsed created_at of a validated status.
func (s *Status) CreatedTime() time.Time {
	return s.createdAt
}

// statusList is the home timeline response.
type statusList []Status

func (l statusList) Validate() error {
	if l == nil {
		return fmt.Errorf("timeline is null")
	}
	for i := range l {
		if err := l[i].Validate(); err != nil {
			return fmt.Errorf("status[%d]: %w", i, err)
		}
	}
	return nil
}

// TimelineParams pages the home timeline. Zero values are omitted.
type TimelineParams struct {
	Limit int
	MaxID string
}

type mediaAttachment struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	Description string    `json:"description,omitempty"`
	Meta        mediaMeta `json:"meta"`
}

type mediaMeta struct {
	Original *mediaSize `json:"original,omitempty"`
	Small    *mediaSize `json:"small,omitempty"`
	Focus    *struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"focus,omitempty"`
}

type mediaSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type previewCard struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}
