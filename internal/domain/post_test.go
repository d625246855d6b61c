package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPostID(t *testing.T) {
	ids := make(map[string][2]string)
	for _, s := range DataSources {
		for _, ident := range []string{"1", "abc", "at://did:plc:x/app.bsky.feed.post/3k", "mastodon-1"} {
			p := Post{Source: s, Identifier: ident}
			want := s.DisplayName() + "-" + ident
			if p.ID() != want {
				t.Errorf("ID() = %q, want %q", p.ID(), want)
			}
			if prev, dup := ids[p.ID()]; dup {
				t.Errorf("ID %q collides: %v and %v", p.ID(), prev, [2]string{string(s), ident})
			}
			ids[p.ID()] = [2]string{string(s), ident}
		}
	}

	a := Post{Source: Mastodon, Identifier: "42"}
	b := Post{Source: Bluesky, Identifier: "42"}
	if a.ID() == b.ID() {
		t.Errorf("posts from different sources share ID %q", a.ID())
	}
	if got := b.ID(); got != "Bluesky-42" {
		t.Errorf("ID() = %q, want %q", got, "Bluesky-42")
	}
}

func TestSortPostsStableAndIdempotent(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	posts := []Post{
		{Identifier: "c", Date: base.Add(2 * time.Minute)},
		{Identifier: "a1", Date: base},
		{Identifier: "b", Date: base.Add(time.Minute)},
		{Identifier: "a2", Date: base},
		{Identifier: "a3", Date: base},
	}

	SortPosts(posts)
	want := []string{"a1", "a2", "a3", "b", "c"}
	for i, p := range posts {
		if p.Identifier != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, p.Identifier, want[i])
		}
		if i > 0 && p.Date.Before(posts[i-1].Date) {
			t.Errorf("order not non-decreasing at %d", i)
		}
	}

	again := append([]Post(nil), posts...)
	SortPosts(again)
	for i := range posts {
		if again[i].Identifier != posts[i].Identifier {
			t.Errorf("second sort changed order at %d: %q vs %q", i, again[i].Identifier, posts[i].Identifier)
		}
	}
}

func TestDedupe(t *testing.T) {
	posts := []Post{
		{Source: Bluesky, Identifier: "1", Content: "first"},
		{Source: Mastodon, Identifier: "1"},
		{Source: Bluesky, Identifier: "1", Content: "second"},
	}
	got := Dedupe(posts)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Content != "first" {
		t.Errorf("kept %q, want first occurrence", got[0].Content)
	}
}

func TestLikedReturnsNewSnapshot(t *testing.T) {
	p := Post{
		Source:      Bluesky,
		Identifier:  "x",
		Attachments: []Attachment{Link{URL: "https://example.com"}},
		Status:      PostStatus{LikeCount: 3},
	}
	liked := p.Liked()
	if p.Status.Liked || p.Status.LikeCount != 3 {
		t.Errorf("original mutated: %+v", p.Status)
	}
	if !liked.Status.Liked || liked.Status.LikeCount != 4 {
		t.Errorf("liked status = %+v", liked.Status)
	}
	if again := liked.Liked(); again.Status.LikeCount != 4 {
		t.Errorf("liking twice counted twice: %+v", again.Status)
	}

	liked.Attachments[0] = Images{}
	if _, ok := p.Attachments[0].(Link); !ok {
		t.Error("copy shares attachment storage with original")
	}
}

func TestParseDataSource(t *testing.T) {
	if s, err := ParseDataSource("bluesky"); err != nil || s != Bluesky {
		t.Errorf("ParseDataSource(bluesky) = %q, %v", s, err)
	}
	if _, err := ParseDataSource("twitter"); err == nil {
		t.Error("expected error for unknown source")
	}
	if Mastodon.DisplayName() != "Mastodon" {
		t.Errorf("DisplayName = %q", Mastodon.DisplayName())
	}
}

func TestAttachmentJSONKind(t *testing.T) {
	p := Post{
		Source:     Mastodon,
		Identifier: "1",
		Attachments: []Attachment{
			Images{Images: []Image{{Full: ImageSpecifier{URL: "https://img/1.png"}}}},
			Link{URL: "https://example.com", Title: "Example"},
		},
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, want := range []string{`"kind":"images"`, `"kind":"link"`, `"url":"https://img/1.png"`, `"title":"Example"`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
}
