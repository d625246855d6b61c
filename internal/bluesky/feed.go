package bluesky

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/blackmichael/multipass/internal/source"
)

const reasonRepost = "app.bsky.feed.defs#reasonRepost"

// Timeline is the app.bsky.feed.getTimeline response.
type Timeline struct {
	Cursor string         `json:"cursor,omitempty"`
	Feed   []FeedViewPost `json:"feed"`
}

func (t *Timeline) Validate() error {
	if t.Feed == nil {
		return source.MissingField("feed")
	}
	for i := range t.Feed {
		if err := t.Feed[i].validate(); err != nil {
			return fmt.Errorf("feed[%d]: %w", i, err)
		}
	}
	return nil
}

// FeedViewPost is one timeline entry.
type FeedViewPost struct {
	Post   PostView    `json:"post"`
	Reason *FeedReason `json:"reason,omitempty"`
}

func (f *FeedViewPost) validate() error {
	if err := f.Post.validate(); err != nil {
		return fmt.Errorf("post: %w", err)
	}
	if f.Reason != nil {
		if err := f.Reason.validate(); err != nil {
			return fmt.Errorf("reason: %w", err)
		}
	}
	return nil
}

// FeedReason explains why an entry is in the timeline. Only reposts carry
// an author; other reasons such as pins are accepted and ignored.
type FeedReason struct {
	Type string            `json:"$type"`
	By   *ProfileViewBasic `json:"by,omitempty"`
}

func (r *FeedReason) validate() error {
	if r.Type == "" {
		return source.MissingField("$type")
	}
	if r.Type != reasonRepost {
		return nil
	}
	if r.By == nil {
		return source.MissingField("by")
	}
	return r.By.validate()
}

// ProfileViewBasic is the author summary embedded in views.
type ProfileViewBasic struct {
	DID         syntax.DID    `json:"did"`
	Handle      syntax.Handle `json:"handle"`
	DisplayName string        `json:"displayName,omitempty"`
	Avatar      string        `json:"avatar,omitempty"`
}

func (p *ProfileViewBasic) validate() error {
	if err := validateDID("did", p.DID); err != nil {
		return err
	}
	return validateHandle("handle", p.Handle)
}

// ViewerState holds the current account's relationship to a post. Like and
// Repost are the URIs of the account's own records, empty if absent.
type ViewerState struct {
	Like   syntax.ATURI `json:"like,omitempty"`
	Repost syntax.ATURI `json:"repost,omitempty"`
}

// PostView is a hydrated post.
type PostView struct {
	URI         syntax.ATURI     `json:"uri"`
	CID         syntax.CID       `json:"cid"`
	Author      ProfileViewBasic `json:"author"`
	Record      json.RawMessage  `json:"record"`
	Embed       json.RawMessage  `json:"embed,omitempty"`
	ReplyCount  int64            `json:"replyCount"`
	RepostCount int64            `json:"repostCount"`
	LikeCount   int64            `json:"likeCount"`
	QuoteCount  int64            `json:"quoteCount"`
	IndexedAt   syntax.Datetime  `json:"indexedAt"`
	Viewer      *ViewerState     `json:"viewer,omitempty"`

	// populated by validate
	text      string
	indexedAt time.Time
}

// Text returns the post record's text. Valid after decoding.
func (p *PostView) Text() string { return p.text }

// IndexedTime returns the parsed indexedAt. Valid after decoding.
func (p *PostView) IndexedTime() time.Time { return p.indexedAt }

func (p *PostView) validate() error {
	if err := validateATURI("uri", p.URI); err != nil {
		return err
	}
	if err := validateCID("cid", p.CID); err != nil {
		return err
	}
	if err := p.Author.validate(); err != nil {
		return fmt.Errorf("author: %w", err)
	}

	if len(p.Record) == 0 {
		return source.MissingField("record")
	}
	var record struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(p.Record, &record); err != nil {
		return source.InvalidField("record", err)
	}
	if record.Text == nil {
		return source.MissingField("record.text")
	}
	p.text = *record.Text

	for field, n := range map[string]int64{
		"replyCount":  p.ReplyCount,
		"repostCount": p.RepostCount,
		"likeCount":   p.LikeCount,
		"quoteCount":  p.QuoteCount,
	} {
		if err := validateCount(field, n); err != nil {
			return err
		}
	}

	t, err := parseDatetime("indexedAt", p.IndexedAt)
	if err != nil {
		return err
	}
	p.indexedAt = t

	if p.Viewer != nil {
		if p.Viewer.Like != "" {
			if err := validateATURI("viewer.like", p.Viewer.Like); err != nil {
				return err
			}
		}
		if p.Viewer.Repost != "" {
			if err := validateATURI("viewer.repost", p.Viewer.Repost); err != nil {
				return err
			}
		}
	}
	return nil
}

// TimelineParams narrows a getTimeline request. Zero values are omitted.
type TimelineParams struct {
	Limit  int
	Cursor string
}
