package domain

import "context"

// Source is one authenticated backend account the feed service reads from
// and writes engagement to.
type Source interface {
	// DataSource identifies the backend.
	DataSource() DataSource

	// Timeline fetches and normalizes the account's home timeline. It returns
	// either the complete page or an error, never a partial page.
	Timeline(ctx context.Context, limit int) ([]Post, error)

	// Like marks the post identified by identifier (and revision, where the
	// backend needs one) as liked by the account.
	Like(ctx context.Context, identifier, revision string) error
}
