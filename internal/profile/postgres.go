package profile

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/onnwee/kuchikomi/internal/tracing"
)

// PostgresDirectory implements Directory using the profiles table.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory creates a new PostgresDirectory.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// RecentPublicProfiles implements Directory.
func (d *PostgresDirectory) RecentPublicProfiles(ctx context.Context, limit int) (profiles []Profile, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "profiles", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, display_name, bio, avatar_url, is_public, created_at
		FROM profiles
		WHERE is_public
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles = make([]Profile, 0, limit)
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Bio, &p.AvatarURL, &p.IsPublic, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	return profiles, nil
}

// Upsert inserts or updates a profile.
func (d *PostgresDirectory) Upsert(ctx context.Context, p Profile) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "profiles", tracing.DBOperationUpdate)
	defer func() { endSpan(err) }()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO profiles (id, display_name, bio, avatar_url, is_public)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			bio = EXCLUDED.bio,
			avatar_url = EXCLUDED.avatar_url,
			is_public = EXCLUDED.is_public
	`, p.ID, p.DisplayName, p.Bio, p.AvatarURL, p.IsPublic)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
