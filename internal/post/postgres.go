package post

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq" // pq.Array for id-set filters and label arrays

	"github.com/onnwee/kuchikomi/internal/tracing"
)

// postColumns is the projection shared by every listing query.
const postColumns = `id, author_id, body, COALESCE(category, ''), place_id,
	COALESCE(to_char(visit_date, 'YYYY-MM-DD'), ''), score, price_min, price_max,
	labels, created_at, updated_at`

// listableCondition excludes soft-deleted and moderated posts.
const listableCondition = `deleted_at IS NULL AND NOT (labels && ARRAY['hidden','flagged','spam']::text[])`

// PostgresContentStore implements ContentStore using PostgreSQL.
type PostgresContentStore struct {
	db *sql.DB
}

// NewPostgresContentStore creates a new PostgresContentStore.
func NewPostgresContentStore(db *sql.DB) *PostgresContentStore {
	return &PostgresContentStore{db: db}
}

// queryBuilder accumulates WHERE conditions with numbered placeholders.
type queryBuilder struct {
	conds []string
	args  []any
}

// arg registers a bind value and returns its placeholder.
func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *queryBuilder) where(cond string) {
	b.conds = append(b.conds, cond)
}

// listSQL renders the final statement: filters, cursor bound, store order, limit.
func (b *queryBuilder) listSQL(cursor *FeedCursor, limit int) string {
	b.where(listableCondition)
	if cursor != nil {
		b.where(fmt.Sprintf("(created_at, id) < (%s, %s)", b.arg(cursor.CreatedAt), b.arg(cursor.ID)))
	}
	return fmt.Sprintf(`SELECT %s FROM posts WHERE %s ORDER BY created_at DESC, id DESC LIMIT %s`,
		postColumns, strings.Join(b.conds, " AND "), b.arg(limit))
}

// QueryByText returns posts matching the text query.
func (s *PostgresContentStore) QueryByText(ctx context.Context, q TextQuery, cursor *FeedCursor, limit int) ([]*Post, error) {
	b := &queryBuilder{}
	for _, token := range strings.Fields(FoldText(q.Text)) {
		b.where(fmt.Sprintf("lower(normalize(body, NFKC)) LIKE '%%' || %s || '%%'", b.arg(escapeLike(token))))
	}
	if q.Category != "" {
		b.where("category = " + b.arg(q.Category))
	}
	if q.AuthorIDs != nil {
		b.where("author_id = ANY(" + b.arg(pq.Array(q.AuthorIDs)) + ")")
	}
	if q.PlaceIDs != nil {
		b.where("place_id = ANY(" + b.arg(pq.Array(q.PlaceIDs)) + ")")
	}
	return s.list(ctx, b, cursor, limit)
}

// QueryByIDSet returns posts located at any of the given places.
func (s *PostgresContentStore) QueryByIDSet(ctx context.Context, placeIDs []string, cursor *FeedCursor, limit int) ([]*Post, error) {
	b := &queryBuilder{}
	b.where("place_id = ANY(" + b.arg(pq.Array(placeIDs)) + ")")
	return s.list(ctx, b, cursor, limit)
}

// QueryRecentExcluding returns recent posts whose author is not excluded.
func (s *PostgresContentStore) QueryRecentExcluding(ctx context.Context, excludedAuthorIDs []string, cursor *FeedCursor, limit int) ([]*Post, error) {
	b := &queryBuilder{}
	if len(excludedAuthorIDs) > 0 {
		b.where("NOT (author_id = ANY(" + b.arg(pq.Array(excludedAuthorIDs)) + "))")
	}
	return s.list(ctx, b, cursor, limit)
}

// QueryByAuthors returns posts written by any of the given authors.
func (s *PostgresContentStore) QueryByAuthors(ctx context.Context, authorIDs []string, cursor *FeedCursor, limit int) ([]*Post, error) {
	b := &queryBuilder{}
	b.where("author_id = ANY(" + b.arg(pq.Array(authorIDs)) + ")")
	return s.list(ctx, b, cursor, limit)
}

// Categories returns the distinct canonical labels used by listable posts.
func (s *PostgresContentStore) Categories(ctx context.Context) (labels []string, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `SELECT DISTINCT category FROM posts WHERE category IS NOT NULL AND category <> '' AND ` +
		listableCondition + ` ORDER BY category`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return labels, nil
}

// Create inserts a post and fills in ID and timestamps generated by the database.
func (s *PostgresContentStore) Create(ctx context.Context, p *Post) (err error) {
	if err := ValidateLabels(p.Labels); err != nil {
		return err
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO posts (author_id, body, category, place_id, visit_date, score, price_min, price_max, labels, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, '')::date, $6, $7, $8, $9, COALESCE($10::timestamptz, now()))
		RETURNING id, created_at, updated_at
	`
	var createdAt any
	if !p.CreatedAt.IsZero() {
		createdAt = p.CreatedAt
	}
	labels := p.Labels
	if labels == nil {
		labels = []string{}
	}

	err = s.db.QueryRowContext(ctx, query,
		p.AuthorID, p.Body, p.Category, p.PlaceID, p.VisitDate, p.Score,
		p.PriceMin, p.PriceMax, pq.Array(labels), createdAt,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

func (s *PostgresContentStore) list(ctx context.Context, b *queryBuilder, cursor *FeedCursor, limit int) (posts []*Post, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "posts", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := b.listSQL(cursor, limit)
	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts = make([]*Post, 0, limit)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

func scanPost(rows *sql.Rows) (*Post, error) {
	var (
		p        Post
		placeID  sql.NullString
		priceMin sql.NullInt64
		priceMax sql.NullInt64
	)
	err := rows.Scan(
		&p.ID,
		&p.AuthorID,
		&p.Body,
		&p.Category,
		&placeID,
		&p.VisitDate,
		&p.Score,
		&priceMin,
		&priceMax,
		pq.Array(&p.Labels),
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}
	if placeID.Valid {
		p.PlaceID = &placeID.String
	}
	if priceMin.Valid {
		v := int(priceMin.Int64)
		p.PriceMin = &v
	}
	if priceMax.Valid {
		v := int(priceMax.Int64)
		p.PriceMax = &v
	}
	return &p, nil
}

// escapeLike escapes LIKE wildcards so user tokens match literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
