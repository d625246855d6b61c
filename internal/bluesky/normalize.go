package bluesky

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/blackmichael/multipass/internal/domain"
)

const (
	embedImages          = "app.bsky.embed.images#view"
	embedExternal        = "app.bsky.embed.external#view"
	embedRecord          = "app.bsky.embed.record#view"
	embedRecordWithMedia = "app.bsky.embed.recordWithMedia#view"
	embedViewRecord      = "app.bsky.embed.record#viewRecord"
)

// Warning records an attachment the mapper dropped.
type Warning struct {
	PostID string
	Reason string
}

// Normalize maps a decoded timeline into domain posts, in feed order. It
// never fails: embeds it cannot classify are dropped and reported.
func Normalize(tl *Timeline) ([]domain.Post, []Warning) {
	posts := make([]domain.Post, 0, len(tl.Feed))
	var warnings []Warning
	for _, item := range tl.Feed {
		post, w := NormalizePost(item)
		posts = append(posts, post)
		warnings = append(warnings, w...)
	}
	return posts, warnings
}

// NormalizePost maps one timeline entry.
func NormalizePost(item FeedViewPost) (domain.Post, []Warning) {
	pv := item.Post
	post := domain.Post{
		Content:     pv.Text(),
		Source:      domain.Bluesky,
		Date:        pv.IndexedTime(),
		Author:      author(pv.Author),
		Identifier:  string(pv.URI),
		Revision:    string(pv.CID),
		URL:         postURL(pv.Author.Handle, pv.URI),
		Attachments: []domain.Attachment{},
		Status: domain.PostStatus{
			LikeCount:   int(pv.LikeCount),
			RepostCount: int(pv.RepostCount),
		},
	}
	if pv.Viewer != nil {
		post.Status.Liked = pv.Viewer.Like != ""
		post.Status.Reposted = pv.Viewer.Repost != ""
	}
	if item.Reason != nil && item.Reason.Type == reasonRepost && item.Reason.By != nil {
		by := author(*item.Reason.By)
		post.RepostingAuthor = &by
	}

	var warnings []Warning
	if len(pv.Embed) > 0 && string(pv.Embed) != "null" {
		attachments, err := embedAttachments(pv.Embed)
		if err != nil {
			warnings = append(warnings, Warning{PostID: post.ID(), Reason: err.Error()})
		}
		post.Attachments = append(post.Attachments, attachments...)
	}
	return post, warnings
}

func author(p ProfileViewBasic) domain.Author {
	return domain.Author{
		Name:      p.DisplayName,
		Handle:    string(p.Handle),
		AvatarURL: p.Avatar,
	}
}

// postURL builds the bsky.app permalink, or "" if uri has no record key.
func postURL(handle syntax.Handle, uri syntax.ATURI) string {
	rkey := recordKey(uri)
	if rkey == "" || handle == "" {
		return ""
	}
	return fmt.Sprintf("https://bsky.app/profile/%s/post/%s", handle, rkey)
}

func recordKey(uri syntax.ATURI) string {
	parts := strings.Split(strings.TrimPrefix(string(uri), "at://"), "/")
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

type embedHead struct {
	Type string `json:"$type"`
}

type imagesView struct {
	Images []struct {
		Thumb       string `json:"thumb"`
		Fullsize    string `json:"fullsize"`
		Alt         string `json:"alt"`
		AspectRatio *struct {
			Width  int `json:"width"`
			Height int `json:"height"`
		} `json:"aspectRatio,omitempty"`
	} `json:"images"`
}

type externalView struct {
	External struct {
		URI         string `json:"uri"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Thumb       string `json:"thumb,omitempty"`
	} `json:"external"`
}

type recordView struct {
	Record json.RawMessage `json:"record"`
}

type viewRecord struct {
	Type   string           `json:"$type"`
	URI    syntax.ATURI     `json:"uri"`
	Author ProfileViewBasic `json:"author"`
	Value  struct {
		Text string `json:"text"`
	} `json:"value"`
}

type recordWithMediaView struct {
	Record recordView      `json:"record"`
	Media  json.RawMessage `json:"media"`
}

// embedAttachments classifies an embed view. On error the returned slice
// holds whatever part of the embed could still be used.
func embedAttachments(raw json.RawMessage) ([]domain.Attachment, error) {
	var head embedHead
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	switch head.Type {
	case embedImages:
		a, err := imagesAttachment(raw)
		if err != nil {
			return nil, err
		}
		return []domain.Attachment{a}, nil

	case embedExternal:
		a, err := externalAttachment(raw)
		if err != nil {
			return nil, err
		}
		return []domain.Attachment{a}, nil

	case embedRecord:
		var v recordView
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("record embed: %w", err)
		}
		a, err := quoteAttachment(v.Record)
		if err != nil {
			return nil, err
		}
		return []domain.Attachment{a}, nil

	case embedRecordWithMedia:
		var v recordWithMediaView
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("recordWithMedia embed: %w", err)
		}
		var (
			out  []domain.Attachment
			errs []error
		)
		if media, err := embedAttachments(v.Media); err != nil {
			errs = append(errs, err)
		} else {
			out = append(out, media...)
		}
		if quote, err := quoteAttachment(v.Record.Record); err != nil {
			errs = append(errs, err)
		} else {
			out = append(out, quote)
		}
		return out, errors.Join(errs...)

	default:
		return nil, fmt.Errorf("unsupported embed type %q", head.Type)
	}
}

func imagesAttachment(raw json.RawMessage) (domain.Attachment, error) {
	var v imagesView
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("images embed: %w", err)
	}
	if len(v.Images) == 0 {
		return nil, errors.New("images embed: no images")
	}

	images := make([]domain.Image, 0, len(v.Images))
	for i, img := range v.Images {
		if img.Fullsize == "" {
			return nil, fmt.Errorf("images embed: image %d has no fullsize url", i)
		}
		full := domain.ImageSpecifier{URL: img.Fullsize}
		if img.AspectRatio != nil && img.AspectRatio.Width > 0 && img.AspectRatio.Height > 0 {
			full.Size = &domain.Size{Width: img.AspectRatio.Width, Height: img.AspectRatio.Height}
		}
		image := domain.Image{Full: full, Description: img.Alt}
		if img.Thumb != "" {
			image.Preview = &domain.ImageSpecifier{URL: img.Thumb}
		}
		images = append(images, image)
	}
	return domain.Images{Images: images}, nil
}

func externalAttachment(raw json.RawMessage) (domain.Attachment, error) {
	var v externalView
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("external embed: %w", err)
	}
	if v.External.URI == "" {
		return nil, errors.New("external embed: no uri")
	}
	link := domain.Link{
		Title:       v.External.Title,
		Description: v.External.Description,
		URL:         v.External.URI,
	}
	if v.External.Thumb != "" {
		link.Preview = &domain.ImageSpecifier{URL: v.External.Thumb}
	}
	return link, nil
}

// quoteAttachment maps a quoted post to a Link pointing at it. Blocked,
// deleted and non-post records are reported as unsupported.
func quoteAttachment(raw json.RawMessage) (domain.Attachment, error) {
	var v viewRecord
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("quoted record: %w", err)
	}
	if v.Type != embedViewRecord {
		return nil, fmt.Errorf("unsupported quoted record type %q", v.Type)
	}
	u := postURL(v.Author.Handle, v.URI)
	if u == "" {
		return nil, errors.New("quoted record: no permalink")
	}

	title := v.Author.DisplayName
	if title == "" {
		title = string(v.Author.Handle)
	}
	link := domain.Link{
		Title:       title,
		Description: v.Value.Text,
		URL:         u,
	}
	if v.Author.Avatar != "" {
		link.Preview = &domain.ImageSpecifier{URL: v.Author.Avatar}
	}
	return link, nil
}
