package discovery

import (
	"github.com/onnwee/kuchikomi/internal/feed"
	"github.com/onnwee/kuchikomi/internal/post"
)

// TextSearchRequest searches posts by free text.
type TextSearchRequest struct {
	Query      string `param:"q" validate:"searchquery"`
	ViewerID   string `param:"viewer_id" validate:"omitempty,entityid"`
	FollowOnly bool   `param:"follow_only"`
	Cursor     string `param:"cursor"`
	Limit      *int   `param:"limit" validate:"omitempty,gte=1"`
}

// LandmarkSearchRequest searches posts at places near a landmark.
type LandmarkSearchRequest struct {
	LandmarkID   string   `param:"landmark_id" validate:"required,entityid"`
	Query        string   `param:"q" validate:"searchquery"`
	RadiusMeters *float64 `param:"radius" validate:"omitempty,gt=0"`
	ViewerID     string   `param:"viewer_id" validate:"omitempty,entityid"`
	FollowOnly   bool     `param:"follow_only"`
	Cursor       string   `param:"cursor"`
	Limit        *int     `param:"limit" validate:"omitempty,gte=1"`
}

// TimelineRequest pages through a timeline. ViewerID is required for the
// personalized timeline and optional for discovery.
type TimelineRequest struct {
	ViewerID string `param:"viewer_id" validate:"omitempty,entityid"`
	Cursor   string `param:"cursor"`
	Limit    *int   `param:"limit" validate:"omitempty,gte=1"`
}

// Item is one post in a result page.
type Item struct {
	*post.Post
	RankScore      float64  `json:"rank_score"`
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	WalkMinutes    *int     `json:"walk_minutes,omitempty"`
}

// Page is one page of results. NextCursor is nil on the terminal page.
type Page struct {
	Items           []Item                `json:"items"`
	NextCursor      *string               `json:"next_cursor"`
	MatchedCategory string                `json:"matched_category,omitempty"`
	RemainderText   string                `json:"remainder_text,omitempty"`
	Suggestions     *feed.SuggestionBlock `json:"suggestions,omitempty"`
}

func emptyPage() *Page {
	return &Page{Items: []Item{}}
}
