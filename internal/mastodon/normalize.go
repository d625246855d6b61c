package mastodon

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/blackmichael/multipass/internal/domain"
)

// Warning records an attachment the mapper dropped.
type Warning struct {
	PostID string
	Reason string
}

// Normalize maps statuses into domain posts, in input order. Boosts are
// unwrapped to the boosted status with the booster as reposting author.
func Normalize(statuses []Status) ([]domain.Post, []Warning) {
	posts := make([]domain.Post, 0, len(statuses))
	var warnings []Warning
	for i := range statuses {
		post, w := NormalizeStatus(&statuses[i])
		posts = append(posts, post)
		warnings = append(warnings, w...)
	}
	return posts, warnings
}

// NormalizeStatus maps one validated status.
func NormalizeStatus(s *Status) (domain.Post, []Warning) {
	shown := s
	var reposter *domain.Author
	if s.Reblog != nil {
		shown = s.Reblog
		by := author(s.Account)
		reposter = &by
	}

	permalink := shown.URL
	if permalink == "" {
		permalink = shown.URI
	}

	post := domain.Post{
		Content:         htmlToText(shown.Content),
		Source:          domain.Mastodon,
		Date:            shown.CreatedTime(),
		Author:          author(shown.Account),
		RepostingAuthor: reposter,
		Identifier:      shown.ID,
		URL:             permalink,
		Attachments:     []domain.Attachment{},
		Status: domain.PostStatus{
			LikeCount:   int(shown.FavouritesCount),
			Liked:       shown.Favourited,
			RepostCount: int(shown.ReblogsCount),
			Reposted:    shown.Reblogged,
		},
	}

	var warnings []Warning
	warn := func(err error) {
		warnings = append(warnings, Warning{PostID: post.ID(), Reason: err.Error()})
	}

	images, errs := mediaImages(shown.MediaAttachments)
	for _, err := range errs {
		warn(err)
	}
	if len(images) > 0 {
		post.Attachments = append(post.Attachments, domain.Images{Images: images})
	}

	if len(shown.Card) > 0 && string(shown.Card) != "null" {
		link, err := cardLink(shown.Card)
		if err != nil {
			warn(err)
		} else {
			post.Attachments = append(post.Attachments, link)
		}
	}
	return post, warnings
}

func author(a Account) domain.Author {
	return domain.Author{
		Name:      a.DisplayName,
		Handle:    a.Acct,
		AvatarURL: a.Avatar,
	}
}

// mediaImages collects image and gifv attachments into one gallery. Other
// media types are returned as errors.
func mediaImages(raw []json.RawMessage) ([]domain.Image, []error) {
	var (
		images []domain.Image
		errs   []error
	)
	for i, r := range raw {
		var m mediaAttachment
		if err := json.Unmarshal(r, &m); err != nil {
			errs = append(errs, fmt.Errorf("media[%d]: %w", i, err))
			continue
		}
		switch m.Type {
		case "image", "gifv":
		default:
			errs = append(errs, fmt.Errorf("media[%d]: unsupported type %q", i, m.Type))
			continue
		}
		if m.URL == "" {
			errs = append(errs, fmt.Errorf("media[%d]: no url", i))
			continue
		}

		full := domain.ImageSpecifier{URL: m.URL, Size: size(m.Meta.Original)}
		if m.Meta.Focus != nil {
			full.Focus = &domain.Focus{X: m.Meta.Focus.X, Y: m.Meta.Focus.Y}
		}
		img := domain.Image{Full: full, Description: m.Description}
		if m.PreviewURL != "" {
			img.Preview = &domain.ImageSpecifier{
				URL:   m.PreviewURL,
				Size:  size(m.Meta.Small),
				Focus: full.Focus,
			}
		}
		images = append(images, img)
	}
	return images, errs
}

func size(s *mediaSize) *domain.Size {
	if s == nil || s.Width <= 0 || s.Height <= 0 {
		return nil
	}
	return &domain.Size{Width: s.Width, Height: s.Height}
}

func cardLink(raw json.RawMessage) (domain.Attachment, error) {
	var c previewCard
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("card: %w", err)
	}
	if c.URL == "" {
		return nil, errors.New("card: no url")
	}
	link := domain.Link{
		Title:       c.Title,
		Description: c.Description,
		URL:         c.URL,
	}
	if c.Image != "" {
		link.Preview = &domain.ImageSpecifier{URL: c.Image}
		if c.Width > 0 && c.Height > 0 {
			link.Preview.Size = &domain.Size{Width: c.Width, Height: c.Height}
		}
	}
	return link, nil
}

// htmlToText flattens status HTML: paragraphs are separated by a blank line
// and <br> becomes a newline. Entities are decoded.
func htmlToText(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	doc.Find("br").ReplaceWithHtml("\n")

	paragraphs := doc.Find("p")
	if paragraphs.Length() == 0 {
		return strings.TrimSpace(doc.Text())
	}
	parts := make([]string, 0, paragraphs.Length())
	paragraphs.Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n\n")
}
