package ranking

import (
	"math"
	"sort"

	"github.com/onnwee/kuchikomi/internal/post"
)

// Ranker scores and orders candidate posts.
// It holds no mutable state and is safe for concurrent use.
type Ranker struct {
	cfg Config
}

// New creates a Ranker with the given tuning.
func New(cfg Config) *Ranker {
	return &Ranker{cfg: cfg}
}

// Config returns the tuning the ranker was built with.
func (r *Ranker) Config() Config {
	return r.cfg
}

// Score returns the final score of p: its relevance clamped to [0, MaxScore]
// plus the follow bonus when followed is true.
func (r *Ranker) Score(p *post.Post, followed bool) float64 {
	score := clampScore(p.Score)
	if followed {
		score += r.cfg.FollowBonus
	}
	return score
}

// Ranked pairs a post with its final score.
type Ranked struct {
	Post  *post.Post
	Score float64
}

// Rank returns a new slice holding candidates in ranked order. following is
// the set of author ids the viewer follows; nil applies no bonus.
// The input slice is not modified.
func (r *Ranker) Rank(candidates []*post.Post, following map[string]bool) []Ranked {
	ranked := make([]Ranked, len(candidates))
	for i, p := range candidates {
		ranked[i] = Ranked{Post: p, Score: r.Score(p, following[p.AuthorID])}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return Less(ranked[i], ranked[j])
	})
	return ranked
}

// Less reports whether a sorts before b.
func Less(a, b Ranked) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	// "YYYY-MM-DD" compares lexically; an empty date sorts lowest.
	if a.Post.VisitDate != b.Post.VisitDate {
		return a.Post.VisitDate > b.Post.VisitDate
	}
	if !a.Post.CreatedAt.Equal(b.Post.CreatedAt) {
		return a.Post.CreatedAt.After(b.Post.CreatedAt)
	}
	return a.Post.ID > b.Post.ID
}

// Posts extracts the posts from ranked in order.
func Posts(ranked []Ranked) []*post.Post {
	out := make([]*post.Post, len(ranked))
	for i, r := range ranked {
		out[i] = r.Post
	}
	return out
}

func clampScore(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > post.MaxScore {
		return post.MaxScore
	}
	return s
}
