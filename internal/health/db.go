package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBChecker checks the Postgres connection pool.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database and verifies the posts table is queryable.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	var one int
	if err := emptyIsOK(d.db.QueryRowContext(ctx, "SELECT 1 FROM posts LIMIT 1").Scan(&one)); err != nil {
		return fmt.Errorf("query posts: %w", err)
	}
	return nil
}

// emptyIsOK treats an empty table as healthy.
func emptyIsOK(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}
