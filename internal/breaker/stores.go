package breaker

import (
	"context"

	"github.com/onnwee/kuchikomi/internal/geo"
	"github.com/onnwee/kuchikomi/internal/post"
	"github.com/onnwee/kuchikomi/internal/profile"
	"github.com/onnwee/kuchikomi/internal/social"
)

// ContentStore guards a post.ContentStore with a Breaker.
type ContentStore struct {
	inner post.ContentStore
	b     *Breaker
}

// NewContentStore wraps inner. A nil breaker leaves calls unguarded.
func NewContentStore(inner post.ContentStore, b *Breaker) *ContentStore {
	return &ContentStore{inner: inner, b: b}
}

func (s *ContentStore) QueryByText(ctx context.Context, q post.TextQuery, cursor *post.FeedCursor, limit int) ([]*post.Post, error) {
	return Do(s.b, func() ([]*post.Post, error) {
		return s.inner.QueryByText(ctx, q, cursor, limit)
	})
}

func (s *ContentStore) QueryByIDSet(ctx context.Context, placeIDs []string, cursor *post.FeedCursor, limit int) ([]*post.Post, error) {
	return Do(s.b, func() ([]*post.Post, error) {
		return s.inner.QueryByIDSet(ctx, placeIDs, cursor, limit)
	})
}

func (s *ContentStore) QueryRecentExcluding(ctx context.Context, excludedAuthorIDs []string, cursor *post.FeedCursor, limit int) ([]*post.Post, error) {
	return Do(s.b, func() ([]*post.Post, error) {
		return s.inner.QueryRecentExcluding(ctx, excludedAuthorIDs, cursor, limit)
	})
}

func (s *ContentStore) QueryByAuthors(ctx context.Context, authorIDs []string, cursor *post.FeedCursor, limit int) ([]*post.Post, error) {
	return Do(s.b, func() ([]*post.Post, error) {
		return s.inner.QueryByAuthors(ctx, authorIDs, cursor, limit)
	})
}

func (s *ContentStore) Categories(ctx context.Context) ([]string, error) {
	return Do(s.b, func() ([]string, error) {
		return s.inner.Categories(ctx)
	})
}

// Graph guards a social.Graph with a Breaker.
type Graph struct {
	inner social.Graph
	b     *Breaker
}

// NewGraph wraps inner. A nil breaker leaves calls unguarded.
func NewGraph(inner social.Graph, b *Breaker) *Graph {
	return &Graph{inner: inner, b: b}
}

func (g *Graph) AcceptedFolloweesOf(ctx context.Context, viewerID string) ([]string, error) {
	return Do(g.b, func() ([]string, error) {
		return g.inner.AcceptedFolloweesOf(ctx, viewerID)
	})
}

func (g *Graph) FollowCountOf(ctx context.Context, viewerID string) (int, error) {
	return Do(g.b, func() (int, error) {
		return g.inner.FollowCountOf(ctx, viewerID)
	})
}

// Index guards a geo.Index with a Breaker.
type Index struct {
	inner geo.Index
	b     *Breaker
}

// NewIndex wraps inner. A nil breaker leaves calls unguarded.
func NewIndex(inner geo.Index, b *Breaker) *Index {
	return &Index{inner: inner, b: b}
}

func (x *Index) LinksForLandmark(ctx context.Context, landmarkID string) ([]geo.Link, error) {
	return Do(x.b, func() ([]geo.Link, error) {
		return x.inner.LinksForLandmark(ctx, landmarkID)
	})
}

// Directory guards a profile.Directory with a Breaker.
type Directory struct {
	inner profile.Directory
	b     *Breaker
}

// NewDirectory wraps inner. A nil breaker leaves calls unguarded.
func NewDirectory(inner profile.Directory, b *Breaker) *Directory {
	return &Directory{inner: inner, b: b}
}

func (d *Directory) RecentPublicProfiles(ctx context.Context, limit int) ([]profile.Profile, error) {
	return Do(d.b, func() ([]profile.Profile, error) {
		return d.inner.RecentPublicProfiles(ctx, limit)
	})
}

var (
	_ post.ContentStore = (*ContentStore)(nil)
	_ social.Graph      = (*Graph)(nil)
	_ geo.Index         = (*Index)(nil)
	_ profile.Directory = (*Directory)(nil)
)
