package social

import (
	"context"
	"sort"
	"sync"
	"time"
)

type edgeKey struct {
	follower string
	followee string
}

// InMemoryGraph is an in-memory Graph that also supports the follow lifecycle.
// Thread-safe via RWMutex.
type InMemoryGraph struct {
	mu    sync.RWMutex
	edges map[edgeKey]*FollowEdge
}

// NewInMemoryGraph creates an empty graph.
func NewInMemoryGraph() *InMemoryGraph {
	return &InMemoryGraph{edges: make(map[edgeKey]*FollowEdge)}
}

// RequestFollow creates a pending edge.
func (g *InMemoryGraph) RequestFollow(followerID, followeeID string) error {
	return g.create(followerID, followeeID, StatusPending)
}

// Follow creates an accepted edge directly, for followees that do not
// require approval.
func (g *InMemoryGraph) Follow(followerID, followeeID string) error {
	return g.create(followerID, followeeID, StatusAccepted)
}

func (g *InMemoryGraph) create(followerID, followeeID string, status FollowStatus) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := edgeKey{followerID, followeeID}
	if _, ok := g.edges[key]; ok {
		return ErrAlreadyExists
	}
	g.edges[key] = &FollowEdge{
		FollowerID: followerID,
		FolloweeID: followeeID,
		Status:     status,
		CreatedAt:  time.Now(),
	}
	return nil
}

// Approve accepts a pending edge.
func (g *InMemoryGraph) Approve(followerID, followeeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	edge, ok := g.edges[edgeKey{followerID, followeeID}]
	if !ok {
		return ErrEdgeNotFound
	}
	if edge.Status != StatusPending {
		return ErrNotPending
	}
	edge.Status = StatusAccepted
	return nil
}

// Reject removes a pending edge.
func (g *InMemoryGraph) Reject(followerID, followeeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := edgeKey{followerID, followeeID}
	edge, ok := g.edges[key]
	if !ok {
		return ErrEdgeNotFound
	}
	if edge.Status != StatusPending {
		return ErrNotPending
	}
	delete(g.edges, key)
	return nil
}

// Unfollow removes an edge in any state.
func (g *InMemoryGraph) Unfollow(followerID, followeeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := edgeKey{followerID, followeeID}
	if _, ok := g.edges[key]; !ok {
		return ErrEdgeNotFound
	}
	delete(g.edges, key)
	return nil
}

// Edge returns a copy of the edge between two users.
func (g *InMemoryGraph) Edge(followerID, followeeID string) (*FollowEdge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edge, ok := g.edges[edgeKey{followerID, followeeID}]
	if !ok {
		return nil, ErrEdgeNotFound
	}
	e := *edge
	return &e, nil
}

// AcceptedFolloweesOf implements Graph. Ids are returned sorted.
func (g *InMemoryGraph) AcceptedFolloweesOf(ctx context.Context, viewerID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := []string{}
	for key, edge := range g.edges {
		if key.follower == viewerID && edge.Status == StatusAccepted {
			ids = append(ids, key.followee)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// FollowCountOf implements Graph.
func (g *InMemoryGraph) FollowCountOf(ctx context.Context, viewerID string) (int, error) {
	ids, err := g.AcceptedFolloweesOf(ctx, viewerID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
