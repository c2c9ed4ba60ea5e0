package geo

import (
	"context"
	"sync"
)

// InMemoryIndex is a thread-safe in-memory Index.
type InMemoryIndex struct {
	mu      sync.RWMutex
	byPlace map[string][]Link
	topK    int
}

// NewInMemoryIndex creates an index retaining at most topK links per place.
// A non-positive topK uses DefaultTopK.
func NewInMemoryIndex(topK int) *InMemoryIndex {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &InMemoryIndex{
		byPlace: make(map[string][]Link),
		topK:    topK,
	}
}

// ReplacePlace swaps all links of a place. Links are sorted ascending by
// distance and truncated to the index's top-K.
func (idx *InMemoryIndex) ReplacePlace(placeID string, links []Link) {
	normalized := normalizeLinks(links, idx.topK)
	for i := range normalized {
		normalized[i].PlaceID = placeID
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(normalized) == 0 {
		delete(idx.byPlace, placeID)
		return
	}
	idx.byPlace[placeID] = normalized
}

// LinksForPlace returns a copy of a place's links in rank order.
func (idx *InMemoryIndex) LinksForPlace(placeID string) []Link {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return copyLinks(idx.byPlace[placeID])
}

// LinksForLandmark implements Index.
func (idx *InMemoryIndex) LinksForLandmark(ctx context.Context, landmarkID string) ([]Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []Link
	for _, links := range idx.byPlace {
		for _, l := range links {
			if l.LandmarkID == landmarkID {
				out = append(out, copyLink(l))
			}
		}
	}
	return out, nil
}

func copyLinks(links []Link) []Link {
	if links == nil {
		return nil
	}
	out := make([]Link, len(links))
	for i, l := range links {
		out[i] = copyLink(l)
	}
	return out
}

func copyLink(l Link) Link {
	if l.DistanceMeters != nil {
		d := *l.DistanceMeters
		l.DistanceMeters = &d
	}
	return l
}
