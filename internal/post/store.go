package post

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TextQuery describes the filters of a text search. Zero-valued fields do not
// filter. A non-nil empty AuthorIDs or PlaceIDs slice matches nothing.
type TextQuery struct {
	// Text is matched against the body after both are folded with
	// FoldText; every whitespace-separated token must occur.
	Text string

	// Category restricts results to one canonical category label.
	Category string

	// AuthorIDs restricts results to these authors when non-nil.
	AuthorIDs []string

	// PlaceIDs restricts results to posts at these places when non-nil.
	PlaceIDs []string
}

// ContentStore is the read side of the post store used by discovery.
// Every listing returns at most limit posts in store order
// (created_at DESC, id DESC) strictly after cursor, skipping posts that are
// not Listable.
type ContentStore interface {
	// QueryByText returns posts matching the text query.
	QueryByText(ctx context.Context, q TextQuery, cursor *FeedCursor, limit int) ([]*Post, error)

	// QueryByIDSet returns posts located at any of the given places.
	QueryByIDSet(ctx context.Context, placeIDs []string, cursor *FeedCursor, limit int) ([]*Post, error)

	// QueryRecentExcluding returns recent posts whose author is not excluded.
	QueryRecentExcluding(ctx context.Context, excludedAuthorIDs []string, cursor *FeedCursor, limit int) ([]*Post, error)

	// QueryByAuthors returns posts written by any of the given authors.
	QueryByAuthors(ctx context.Context, authorIDs []string, cursor *FeedCursor, limit int) ([]*Post, error)

	// Categories returns the distinct canonical labels used by listable posts.
	Categories(ctx context.Context) ([]string, error)
}

// FoldText applies NFKC compatibility folding and lowercasing, so full-width
// and half-width forms of the same text compare equal. It matches the
// lower(normalize(body, NFKC)) expression used by the Postgres store.
func FoldText(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}
