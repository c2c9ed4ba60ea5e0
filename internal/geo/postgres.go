package geo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/kuchikomi/internal/tracing"
)

// PostgresIndex implements Index over the place_landmark_links table.
type PostgresIndex struct {
	db   *sql.DB
	topK int
}

// NewPostgresIndex creates a new PostgresIndex. A non-positive topK uses DefaultTopK.
func NewPostgresIndex(db *sql.DB, topK int) *PostgresIndex {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &PostgresIndex{db: db, topK: topK}
}

// LinksForLandmark implements Index.
func (s *PostgresIndex) LinksForLandmark(ctx context.Context, landmarkID string) (links []Link, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "place_landmark_links", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT place_id, landmark_id, distance_meters, rank
		FROM place_landmark_links
		WHERE landmark_id = $1
		ORDER BY distance_meters ASC NULLS LAST, place_id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, landmarkID)
	if err != nil {
		return nil, fmt.Errorf("failed to query landmark links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l    Link
			dist sql.NullFloat64
		)
		if err := rows.Scan(&l.PlaceID, &l.LandmarkID, &dist, &l.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan landmark link: %w", err)
		}
		if dist.Valid {
			d := dist.Float64
			l.DistanceMeters = &d
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate landmark links: %w", err)
	}
	return links, nil
}

// ReplacePlace swaps all links of a place in one transaction, keeping the
// nearest topK.
func (s *PostgresIndex) ReplacePlace(ctx context.Context, placeID string, links []Link) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "place_landmark_links", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM place_landmark_links WHERE place_id = $1`, placeID); err != nil {
		return fmt.Errorf("failed to clear place links: %w", err)
	}

	for _, l := range normalizeLinks(links, s.topK) {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO place_landmark_links (place_id, landmark_id, distance_meters, rank) VALUES ($1, $2, $3, $4)`,
			placeID, l.LandmarkID, l.DistanceMeters, l.Rank,
		)
		if err != nil {
			return fmt.Errorf("failed to insert place link: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit place links: %w", err)
	}
	return nil
}

// Places returns every place with its coordinates, ordered by id.
func (s *PostgresIndex) Places(ctx context.Context) (places []Place, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "places", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT id, lat, lng FROM places ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query places: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p        Place
			lat, lng sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &lat, &lng); err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		if lat.Valid && lng.Valid {
			p.Location = &Coordinate{Lat: lat.Float64, Lng: lng.Float64}
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate places: %w", err)
	}
	return places, nil
}

// Landmarks returns the coordinates of every landmark keyed by id.
func (s *PostgresIndex) Landmarks(ctx context.Context) (landmarks map[string]Coordinate, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "landmarks", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT id, lat, lng FROM landmarks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query landmarks: %w", err)
	}
	defer rows.Close()

	landmarks = make(map[string]Coordinate)
	for rows.Next() {
		var (
			id string
			c  Coordinate
		)
		if err := rows.Scan(&id, &c.Lat, &c.Lng); err != nil {
			return nil, fmt.Errorf("failed to scan landmark: %w", err)
		}
		landmarks[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate landmarks: %w", err)
	}
	return landmarks, nil
}
