package geo

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// DefaultWalkMetersPerMinute approximates average walking speed.
const DefaultWalkMetersPerMinute = 80.0

// NearbyPlace is a place resolved for a landmark. DistanceMeters is nil when
// the distance is unknown.
type NearbyPlace struct {
	PlaceID        string
	DistanceMeters *float64
}

// Resolver turns a landmark into the set of places within a radius.
type Resolver struct {
	index           Index
	metersPerMinute float64
}

// NewResolver creates a Resolver. A non-positive metersPerMinute uses
// DefaultWalkMetersPerMinute.
func NewResolver(index Index, metersPerMinute float64) *Resolver {
	if metersPerMinute <= 0 {
		metersPerMinute = DefaultWalkMetersPerMinute
	}
	return &Resolver{index: index, metersPerMinute: metersPerMinute}
}

// PlacesNear returns the places linked to landmarkID whose distance is within
// radiusMeters. Places with an unknown distance are always included.
// A place linked more than once keeps its smallest known distance.
// Results are sorted by ascending distance with unknown distances last.
func (r *Resolver) PlacesNear(ctx context.Context, landmarkID string, radiusMeters float64) ([]NearbyPlace, error) {
	if landmarkID == "" {
		return nil, ErrLandmarkRequired
	}

	links, err := r.index.LinksForLandmark(ctx, landmarkID)
	if err != nil {
		return nil, fmt.Errorf("failed to load landmark links: %w", err)
	}

	byPlace := make(map[string]*float64, len(links))
	for _, l := range links {
		if l.DistanceMeters != nil && *l.DistanceMeters > radiusMeters {
			continue
		}
		current, seen := byPlace[l.PlaceID]
		if !seen || distanceLess(l.DistanceMeters, current) {
			byPlace[l.PlaceID] = l.DistanceMeters
		}
	}

	places := make([]NearbyPlace, 0, len(byPlace))
	for id, d := range byPlace {
		var dist *float64
		if d != nil {
			v := *d
			dist = &v
		}
		places = append(places, NearbyPlace{PlaceID: id, DistanceMeters: dist})
	}
	sort.Slice(places, func(i, j int) bool {
		a, b := places[i].DistanceMeters, places[j].DistanceMeters
		if distanceLess(a, b) {
			return true
		}
		if distanceLess(b, a) {
			return false
		}
		return places[i].PlaceID < places[j].PlaceID
	})
	return places, nil
}

// WalkMinutes estimates the walking time for distance. It returns nil when
// the distance is unknown.
func (r *Resolver) WalkMinutes(distance *float64) *int {
	if distance == nil {
		return nil
	}
	m := WalkMinutes(*distance, r.metersPerMinute)
	return &m
}

// PlaceIDs returns the ids of places in order.
func PlaceIDs(places []NearbyPlace) []string {
	ids := make([]string, len(places))
	for i, p := range places {
		ids[i] = p.PlaceID
	}
	return ids
}

// WalkMinutes returns ceil(distanceMeters / metersPerMinute), never less than 1.
func WalkMinutes(distanceMeters, metersPerMinute float64) int {
	if metersPerMinute <= 0 {
		metersPerMinute = DefaultWalkMetersPerMinute
	}
	minutes := int(math.Ceil(distanceMeters / metersPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}
