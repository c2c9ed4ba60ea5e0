package post

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryContentStore is an in-memory implementation of ContentStore with
// the minimal write API needed to seed it.
// Thread-safe via RWMutex.
type InMemoryContentStore struct {
	mu    sync.RWMutex
	posts map[string]*Post
}

// NewInMemoryContentStore creates a new in-memory content store.
func NewInMemoryContentStore() *InMemoryContentStore {
	return &InMemoryContentStore{
		posts: make(map[string]*Post),
	}
}

// Create inserts a new post. A missing ID is filled with a time-ordered
// UUIDv7 and a zero CreatedAt with the current time.
func (s *InMemoryContentStore) Create(p *Post) error {
	if err := ValidateLabels(p.Labels); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if p.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		p.ID = id.String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	s.posts[p.ID] = p.Clone()
	return nil
}

// Update replaces the mutable fields (body, score, prices, labels) of an
// existing post. CreatedAt is immutable.
func (s *InMemoryContentStore) Update(p *Post) error {
	if err := ValidateLabels(p.Labels); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.posts[p.ID]
	if !ok {
		return ErrPostNotFound
	}
	if existing.DeletedAt != nil {
		return ErrPostDeleted
	}

	existing.Body = p.Body
	existing.Score = p.Score
	existing.PriceMin = p.PriceMin
	existing.PriceMax = p.PriceMax
	existing.Labels = append([]string(nil), p.Labels...)
	existing.UpdatedAt = time.Now()
	return nil
}

// Delete soft-deletes a post by setting deleted_at timestamp.
func (s *InMemoryContentStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok || p.DeletedAt != nil {
		return ErrPostNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

// QueryByText returns posts matching the text query.
func (s *InMemoryContentStore) QueryByText(ctx context.Context, q TextQuery, cursor *FeedCursor, limit int) ([]*Post, error) {
	tokens := strings.Fields(FoldText(q.Text))
	authors := toSet(q.AuthorIDs)
	places := toSet(q.PlaceIDs)

	return s.list(ctx, cursor, limit, func(p *Post) bool {
		if q.Category != "" && p.Category != q.Category {
			return false
		}
		if authors != nil && !authors[p.AuthorID] {
			return false
		}
		if places != nil && (p.PlaceID == nil || !places[*p.PlaceID]) {
			return false
		}
		body := FoldText(p.Body)
		for _, token := range tokens {
			if !strings.Contains(body, token) {
				return false
			}
		}
		return true
	})
}

// QueryByIDSet returns posts located at any of the given places.
func (s *InMemoryContentStore) QueryByIDSet(ctx context.Context, placeIDs []string, cursor *FeedCursor, limit int) ([]*Post, error) {
	places := toSet(placeIDs)
	return s.list(ctx, cursor, limit, func(p *Post) bool {
		return p.PlaceID != nil && places[*p.PlaceID]
	})
}

// QueryRecentExcluding returns recent posts whose author is not excluded.
func (s *InMemoryContentStore) QueryRecentExcluding(ctx context.Context, excludedAuthorIDs []string, cursor *FeedCursor, limit int) ([]*Post, error) {
	excluded := toSet(excludedAuthorIDs)
	return s.list(ctx, cursor, limit, func(p *Post) bool {
		return !excluded[p.AuthorID]
	})
}

// QueryByAuthors returns posts written by any of the given authors.
func (s *InMemoryContentStore) QueryByAuthors(ctx context.Context, authorIDs []string, cursor *FeedCursor, limit int) ([]*Post, error) {
	authors := toSet(authorIDs)
	return s.list(ctx, cursor, limit, func(p *Post) bool {
		return authors[p.AuthorID]
	})
}

// Categories returns the distinct canonical labels used by listable posts, sorted.
func (s *InMemoryContentStore) Categories(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var labels []string
	for _, p := range s.posts {
		if !p.Listable() || p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		labels = append(labels, p.Category)
	}
	sort.Strings(labels)
	return labels, nil
}

// list collects listable posts accepted by match and strictly after cursor,
// sorts them in store order and returns deep copies of the first limit.
func (s *InMemoryContentStore) list(ctx context.Context, cursor *FeedCursor, limit int, match func(*Post) bool) ([]*Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*Post
	for _, p := range s.posts {
		if !p.Listable() || !cursor.Admits(p) || !match(p) {
			continue
		}
		candidates = append(candidates, p)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return StoreOrderLess(candidates[i], candidates[j])
	})

	if limit >= 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	copies := make([]*Post, len(candidates))
	for i, p := range candidates {
		copies[i] = p.Clone()
	}
	return copies, nil
}

// toSet builds a membership set. A nil slice yields a nil set.
func toSet(ids []string) map[string]bool {
	if ids == nil {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
