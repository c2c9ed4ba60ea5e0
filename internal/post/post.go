// Package post provides the visit-post model, the content store contract and
// its in-memory and PostgreSQL implementations, and the opaque cursor shared
// by every listing endpoint.
package post

import (
	"errors"
	"time"
)

// Common errors for post operations.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrPostDeleted  = errors.New("post has been deleted")
)

// MaxScore is the upper bound of the author-asserted recommendation score.
const MaxScore = 10.0

// Post represents a restaurant visit post.
type Post struct {
	ID       string  `json:"id"`
	AuthorID string  `json:"author_id"`
	Body     string  `json:"body"`
	Category string  `json:"category,omitempty"` // Canonical category label (e.g. a cuisine genre)
	PlaceID  *string `json:"place_id,omitempty"`

	// VisitDate is the day of the visit in YYYY-MM-DD form, empty when unknown.
	VisitDate string `json:"visit_date,omitempty"`

	// Score is the author's recommendation score in [0, 10].
	Score float64 `json:"score"`

	PriceMin *int     `json:"price_min,omitempty"` // Yen per person
	PriceMax *int     `json:"price_max,omitempty"` // Yen per person
	Labels   []string `json:"labels,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Clone returns a copy of the post that shares no mutable slices with p.
func (p *Post) Clone() *Post {
	c := *p
	if p.Labels != nil {
		c.Labels = append([]string(nil), p.Labels...)
	}
	return &c
}
