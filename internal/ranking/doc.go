// Package ranking orders candidate posts by relevance fused with social affinity.
//
// Basic Usage:
//
//	ranker := ranking.New(ranking.DefaultConfig())
//	ordered := ranker.Rank(candidates, following)
//
// Scoring:
//
// Each post scores its author-asserted relevance clamped to [0, MaxScore],
// plus Config.FollowBonus when the viewer follows the author. The bonus is a
// soft boost: a followed author's post outranks another post only when the
// relevance gap is smaller than the bonus.
//
// Ordering:
//
// Posts are sorted by descending score. Ties are broken by descending visit
// date (posts without one sort last), then descending creation time, then
// descending id. The order is total, so ranking the same input twice yields
// the same output.
package ranking
