package domain

import (
	"fmt"
	"time"
)

// DataSource identifies the backend a post came from. The string value is
// also the namespace prefix of Post.ID.
type DataSource string

const (
	Mastodon DataSource = "mastodon"
	Bluesky  DataSource = "bluesky"
)

// DataSources lists every known backend.
var DataSources = []DataSource{Mastodon, Bluesky}

// Valid reports whether s is a known backend.
func (s DataSource) Valid() bool {
	return s == Mastodon || s == Bluesky
}

// DisplayName returns the human-readable backend name.
func (s DataSource) DisplayName() string {
	switch s {
	case Mastodon:
		return "Mastodon"
	case Bluesky:
		return "Bluesky"
	default:
		return string(s)
	}
}

// ParseDataSource converts a tag like "bluesky" into a DataSource.
func ParseDataSource(tag string) (DataSource, error) {
	s := DataSource(tag)
	if !s.Valid() {
		return "", fmt.Errorf("unknown data source %q", tag)
	}
	return s, nil
}

// Author is the account that wrote or reposted a post. Empty fields are
// absent.
type Author struct {
	Name      string `json:"name,omitempty"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// PostStatus is the engagement snapshot of a post for the current account.
type PostStatus struct {
	LikeCount   int  `json:"likeCount"`
	Liked       bool `json:"liked"`
	RepostCount int  `json:"repostCount"`
	Reposted    bool `json:"reposted"`
}

// Post is a source-agnostic snapshot of a feed entry. Posts are values: an
// engagement change produces a new Post rather than mutating this one.
type Post struct {
	// Content is the plain-text body, empty if the post has none.
	Content string `json:"content,omitempty"`

	Source DataSource `json:"source"`
	Date   time.Time  `json:"date"`
	Author Author     `json:"author"`

	// RepostingAuthor is set only when this entry is a repost or boost.
	RepostingAuthor *Author `json:"repostingAuthor,omitempty"`

	// Identifier is opaque and unique only within Source.
	Identifier string `json:"identifier"`

	// Revision is the backend version handle writes must reference (the
	// record CID on Bluesky). Empty when the backend has none.
	Revision string `json:"revision,omitempty"`

	URL         string       `json:"url,omitempty"`
	Attachments []Attachment `json:"attachments"`
	Status      PostStatus   `json:"status"`
}

// ID returns the globally unique key "{Source}-{identifier}", e.g.
// "Bluesky-at://...". The source part is the display name.
func (p Post) ID() string {
	return p.Source.DisplayName() + "-" + p.Identifier
}

// WithStatus returns a copy of p carrying status.
func (p Post) WithStatus(status PostStatus) Post {
	p.Attachments = append([]Attachment(nil), p.Attachments...)
	p.Status = status
	return p
}

// Liked returns the snapshot p becomes after the current account likes it.
// Liking an already liked post leaves the counts unchanged.
func (p Post) Liked() Post {
	if p.Status.Liked {
		return p
	}
	status := p.Status
	status.Liked = true
	status.LikeCount++
	return p.WithStatus(status)
}
