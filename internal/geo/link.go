// Package geo expands a landmark into nearby places using a precomputed
// place/landmark distance index.
package geo

import (
	"context"
	"errors"
	"sort"
)

// DefaultTopK is the number of nearest landmarks retained per place.
const DefaultTopK = 5

// ErrLandmarkRequired is returned when a lookup is made without a landmark id.
var ErrLandmarkRequired = errors.New("landmark id is required")

// Link is one place/landmark pair. DistanceMeters is nil when the place has
// no usable coordinates. Rank is the 1-based position of the landmark among
// the place's nearest landmarks.
type Link struct {
	PlaceID        string
	LandmarkID     string
	DistanceMeters *float64
	Rank           int
}

// Index is the read side of the place/landmark distance index.
type Index interface {
	// LinksForLandmark returns every link that points at landmarkID.
	LinksForLandmark(ctx context.Context, landmarkID string) ([]Link, error)
}

// distanceLess orders known distances ascending with unknown distances last.
func distanceLess(a, b *float64) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return *a < *b
	}
}

// normalizeLinks sorts one place's links by distance, keeps the nearest topK
// and renumbers Rank from 1.
func normalizeLinks(links []Link, topK int) []Link {
	out := append([]Link(nil), links...)
	sort.SliceStable(out, func(i, j int) bool {
		return distanceLess(out[i].DistanceMeters, out[j].DistanceMeters)
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
