package social

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/onnwee/kuchikomi/internal/tracing"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresGraph implements Graph using the follows table.
type PostgresGraph struct {
	db *sql.DB
}

// NewPostgresGraph creates a new PostgresGraph.
func NewPostgresGraph(db *sql.DB) *PostgresGraph {
	return &PostgresGraph{db: db}
}

// AcceptedFolloweesOf implements Graph.
func (g *PostgresGraph) AcceptedFolloweesOf(ctx context.Context, viewerID string) (ids []string, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := g.db.QueryContext(ctx, `
		SELECT followee_id FROM follows
		WHERE follower_id = $1 AND status = 'accepted'
		ORDER BY followee_id
	`, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query followees: %w", err)
	}
	defer rows.Close()

	ids = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan followee: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate followees: %w", err)
	}
	return ids, nil
}

// FollowCountOf implements Graph.
func (g *PostgresGraph) FollowCountOf(ctx context.Context, viewerID string) (count int, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	err = g.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = $1 AND status = 'accepted'`, viewerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count follows: %w", err)
	}
	return count, nil
}

// Insert stores a new edge.
func (g *PostgresGraph) Insert(ctx context.Context, edge FollowEdge) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "follows", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	if edge.FollowerID == edge.FolloweeID {
		return ErrSelfFollow
	}
	if !edge.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, edge.Status)
	}

	_, err = g.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followee_id, status) VALUES ($1, $2, $3)`,
		edge.FollowerID, edge.FolloweeID, string(edge.Status),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert follow: %w", err)
	}
	return nil
}
