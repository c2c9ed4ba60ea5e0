package post

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCursor is returned when a cursor string cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// FeedCursor is the decoded form of a pagination cursor: the sort key of the
// last item of a page in store order (created_at DESC, id DESC).
type FeedCursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorFor returns the cursor positioned at p.
func CursorFor(p *Post) *FeedCursor {
	return &FeedCursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// Encode returns the opaque string form of the cursor:
// base64url("<unix nanos>:<id>").
func (c *FeedCursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses an opaque cursor string.
// An empty string decodes to a nil cursor (first page).
func DecodeCursor(s string) (*FeedCursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: missing sort key", ErrInvalidCursor)
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}
	return &FeedCursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: parts[1]}, nil
}

// Admits reports whether p lies strictly after the cursor in store order,
// i.e. p is older than the cursor or equally old with a smaller id.
// A nil cursor admits every post.
func (c *FeedCursor) Admits(p *Post) bool {
	if c == nil {
		return true
	}
	if p.CreatedAt.Before(c.CreatedAt) {
		return true
	}
	return p.CreatedAt.Equal(c.CreatedAt) && p.ID < c.ID
}

// StoreOrderLess orders posts by created_at DESC, then id DESC.
func StoreOrderLess(a, b *Post) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Page splits a store result fetched with limit+1 rows into the page and the
// next cursor. The cursor is nil when no row exists beyond the page.
// rows must be in store order.
func Page(rows []*Post, limit int) ([]*Post, *FeedCursor) {
	if len(rows) <= limit {
		return rows, nil
	}
	page := rows[:limit]
	return page, CursorFor(page[len(page)-1])
}
