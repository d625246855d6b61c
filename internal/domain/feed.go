package domain

import "slices"

// SortPosts orders posts by Date ascending in place. The sort is stable, so
// posts with equal timestamps keep their relative input order.
func SortPosts(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		return a.Date.Compare(b.Date)
	})
}

// Dedupe drops every post whose ID was already seen, keeping the first
// occurrence. The input slice is not modified.
func Dedupe(posts []Post) []Post {
	seen := make(map[string]struct{}, len(posts))
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		id := p.ID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, p)
	}
	return out
}
