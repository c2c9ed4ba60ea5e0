// Package feed assembles timeline pages: author-diverse interleaving and
// cold-start suggestion blocks.
package feed

// DefaultWindow is the number of trailing items whose authors are avoided.
const DefaultWindow = 3

// Interleave returns a permutation of items in which, wherever possible, an
// item's author does not appear among the previous window items.
//
// At each step the first remaining item whose author is not in the recent
// window is taken; when every remaining item conflicts, the head of the
// remaining items is taken instead. items is not modified.
func Interleave[T any](items []T, window int, authorOf func(T) string) []T {
	out := make([]T, 0, len(items))
	if window <= 0 {
		return append(out, items...)
	}

	pool := append([]T(nil), items...)
	recent := make(map[string]int, window)
	for len(pool) > 0 {
		pick := 0
		for i, item := range pool {
			if recent[authorOf(item)] == 0 {
				pick = i
				break
			}
		}

		chosen := pool[pick]
		pool = append(pool[:pick], pool[pick+1:]...)
		out = append(out, chosen)

		recent[authorOf(chosen)]++
		if len(out) > window {
			evicted := authorOf(out[len(out)-window-1])
			if recent[evicted]--; recent[evicted] == 0 {
				delete(recent, evicted)
			}
		}
	}
	return out
}
