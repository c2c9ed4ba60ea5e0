package geo

import (
	"context"
	"fmt"
	"math"
	"sort"
)

const earthRadiusMeters = 6371000.0

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Valid reports whether c lies within WGS84 bounds.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// HaversineMeters returns the great-circle distance between a and b.
func HaversineMeters(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BuildPlaceLinks computes the topK nearest landmarks for one place.
// A place without valid coordinates gets no links.
func BuildPlaceLinks(placeID string, place Coordinate, landmarks map[string]Coordinate, topK int) []Link {
	if !place.Valid() {
		return nil
	}

	links := make([]Link, 0, len(landmarks))
	for id, lm := range landmarks {
		if !lm.Valid() {
			continue
		}
		d := math.Round(HaversineMeters(place, lm))
		links = append(links, Link{PlaceID: placeID, LandmarkID: id, DistanceMeters: &d})
	}
	// Equal distances fall back to landmark id so reruns are stable.
	sort.Slice(links, func(i, j int) bool {
		if *links[i].DistanceMeters != *links[j].DistanceMeters {
			return *links[i].DistanceMeters < *links[j].DistanceMeters
		}
		return links[i].LandmarkID < links[j].LandmarkID
	})
	return normalizeLinks(links, topK)
}

// Place is a place awaiting link computation. Location is nil when the place
// has no coordinates on record.
type Place struct {
	ID       string
	Location *Coordinate
}

// LinkWriter stores the links of one place, replacing any previous ones.
type LinkWriter interface {
	ReplacePlace(ctx context.Context, placeID string, links []Link) error
}

// BackfillResult summarizes one Backfill run.
type BackfillResult struct {
	Places  int
	Skipped int
	Links   int
}

// Backfill recomputes the nearest landmarks of every place and writes them
// through w. Places without valid coordinates are skipped and keep whatever
// links they already have.
func Backfill(ctx context.Context, places []Place, landmarks map[string]Coordinate, w LinkWriter, topK int) (BackfillResult, error) {
	var res BackfillResult
	for _, p := range places {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if p.Location == nil || !p.Location.Valid() {
			res.Skipped++
			continue
		}
		links := BuildPlaceLinks(p.ID, *p.Location, landmarks, topK)
		if err := w.ReplacePlace(ctx, p.ID, links); err != nil {
			return res, fmt.Errorf("place %s: %w", p.ID, err)
		}
		res.Places++
		res.Links += len(links)
	}
	return res, nil
}
