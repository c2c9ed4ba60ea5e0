// Package social provides the follow graph read by ranking and feed assembly.
package social

import (
	"context"
	"errors"
	"time"
)

// Common errors for follow operations.
var (
	ErrSelfFollow    = errors.New("cannot follow yourself")
	ErrEdgeNotFound  = errors.New("follow edge not found")
	ErrAlreadyExists = errors.New("follow edge already exists")
	ErrNotPending    = errors.New("follow edge is not pending")
	ErrInvalidStatus = errors.New("invalid follow status")
)

// FollowStatus is the lifecycle state of a follow edge.
type FollowStatus string

const (
	StatusPending  FollowStatus = "pending"
	StatusAccepted FollowStatus = "accepted"
)

// Valid reports whether s is a known status.
func (s FollowStatus) Valid() bool {
	return s == StatusPending || s == StatusAccepted
}

// FollowEdge is a directed follow from FollowerID to FolloweeID.
// Only accepted edges affect ranking and visibility.
type FollowEdge struct {
	FollowerID string       `json:"follower_id"`
	FolloweeID string       `json:"followee_id"`
	Status     FollowStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Graph is the read side of the follow graph.
type Graph interface {
	// AcceptedFolloweesOf returns the ids viewerID follows with an accepted edge.
	AcceptedFolloweesOf(ctx context.Context, viewerID string) ([]string, error)

	// FollowCountOf returns the number of accepted edges starting at viewerID.
	FollowCountOf(ctx context.Context, viewerID string) (int, error)
}

// Set converts ids to a membership set.
func Set(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
