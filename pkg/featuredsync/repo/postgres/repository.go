package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/featured-sync/pkg/featuredsync"
)

// Schema creates the tables used by the repository. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS post_type (
	slug                    TEXT PRIMARY KEY,
	supports_featured_image BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS document (
	id             UUID PRIMARY KEY,
	post_type      TEXT NOT NULL,
	featured_media BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS media (
	id                BIGINT PRIMARY KEY,
	link              TEXT NOT NULL DEFAULT '',
	caption           TEXT NOT NULL DEFAULT '',
	alt_text          TEXT NOT NULL DEFAULT '',
	url               TEXT NOT NULL DEFAULT '',
	large_url         TEXT,
	details_large_url TEXT
);

CREATE TABLE IF NOT EXISTS block (
	id          UUID PRIMARY KEY,
	document_id UUID NOT NULL REFERENCES document(id),
	name        TEXT NOT NULL,
	attributes  JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS block_document_id_idx ON block (document_id, created_at);
`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements featuredsync.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

var _ featuredsync.Repository = (*Repository)(nil)

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// EnsureSchema creates the repository tables if they do not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return r.handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("duplicate entry in %s", operation)
		case "23503": // foreign_key_violation
			if pgErr.ConstraintName == "block_document_id_fkey" {
				return featuredsync.ErrDocumentNotFound
			}
			return fmt.Errorf("referenced record not found")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Post type operations

func (r *Repository) PutPostType(ctx context.Context, postType *featuredsync.PostType) error {
	query := `
		INSERT INTO post_type (slug, supports_featured_image) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET supports_featured_image = EXCLUDED.supports_featured_image`

	if _, err := r.db.Exec(ctx, query, postType.Slug, postType.Capabilities.SupportsFeaturedImage); err != nil {
		return r.handlePostgresError("put post type", err)
	}
	return nil
}

func (r *Repository) GetPostType(ctx context.Context, slug string) (*featuredsync.PostType, error) {
	query := `SELECT slug, supports_featured_image FROM post_type WHERE slug = $1`

	var postType featuredsync.PostType
	err := r.db.QueryRow(ctx, query, slug).Scan(&postType.Slug, &postType.Capabilities.SupportsFeaturedImage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, featuredsync.ErrPostTypeNotFound
		}
		return nil, r.handlePostgresError("get post type", err)
	}
	return &postType, nil
}

// Document operations

func (r *Repository) CreateDocument(ctx context.Context, document *featuredsync.Document) error {
	query := `
		INSERT INTO document (id, post_type, featured_media, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query,
		document.ID, document.PostType, int64(document.FeaturedMedia),
		timestampOrNow(document.CreatedAt), timestampOrNow(document.UpdatedAt))
	if err != nil {
		return r.handlePostgresError("create document", err)
	}
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id featuredsync.DocumentID) (*featuredsync.Document, error) {
	query := `
		SELECT id, post_type, featured_media, created_at, updated_at
		FROM document WHERE id = $1`

	var doc featuredsync.Document
	var featured int64
	err := r.db.QueryRow(ctx, query, id).Scan(&doc.ID, &doc.PostType, &featured, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, featuredsync.ErrDocumentNotFound
		}
		return nil, r.handlePostgresError("get document", err)
	}
	doc.FeaturedMedia = featuredsync.MediaID(featured)
	return &doc, nil
}

func (r *Repository) SetFeaturedMedia(ctx context.Context, id featuredsync.DocumentID, mediaID featuredsync.MediaID) error {
	query := `UPDATE document SET featured_media = $2, updated_at = NOW() WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, int64(mediaID))
	if err != nil {
		return r.handlePostgresError("set featured media", err)
	}
	if tag.RowsAffected() == 0 {
		return featuredsync.ErrDocumentNotFound
	}
	return nil
}

// Media operations

func (r *Repository) PutMedia(ctx context.Context, media *featuredsync.MediaObject) error {
	query := `
		INSERT INTO media (id, link, caption, alt_text, url, large_url, details_large_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			link = EXCLUDED.link, caption = EXCLUDED.caption, alt_text = EXCLUDED.alt_text,
			url = EXCLUDED.url, large_url = EXCLUDED.large_url,
			details_large_url = EXCLUDED.details_large_url`

	var largeURL, detailsLargeURL *string
	if media.Sizes.Large != nil {
		largeURL = &media.Sizes.Large.URL
	}
	if media.MediaDetails.Sizes.Large != nil {
		detailsLargeURL = &media.MediaDetails.Sizes.Large.SourceURL
	}

	_, err := r.db.Exec(ctx, query,
		int64(media.ID), media.Link, media.Caption, media.AltText, media.URL,
		largeURL, detailsLargeURL)
	if err != nil {
		return r.handlePostgresError("put media", err)
	}
	return nil
}

func (r *Repository) GetMedia(ctx context.Context, id featuredsync.MediaID) (*featuredsync.MediaObject, error) {
	query := `
		SELECT id, link, caption, alt_text, url, large_url, details_large_url
		FROM media WHERE id = $1`

	var media featuredsync.MediaObject
	var mediaID int64
	var largeURL, detailsLargeURL *string
	err := r.db.QueryRow(ctx, query, int64(id)).Scan(
		&mediaID, &media.Link, &media.Caption, &media.AltText, &media.URL,
		&largeURL, &detailsLargeURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, featuredsync.ErrMediaNotFound
		}
		return nil, r.handlePostgresError("get media", err)
	}

	media.ID = featuredsync.MediaID(mediaID)
	if largeURL != nil {
		media.Sizes.Large = &featuredsync.MediaSize{URL: *largeURL}
	}
	if detailsLargeURL != nil {
		media.MediaDetails.Sizes.Large = &featuredsync.MediaDetailSize{SourceURL: *detailsLargeURL}
	}
	return &media, nil
}

// Block operations

func (r *Repository) CreateBlock(ctx context.Context, block *featuredsync.Block) error {
	attrs, err := json.Marshal(block.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode block attributes: %w", err)
	}

	query := `
		INSERT INTO block (id, document_id, name, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		block.ID, block.DocumentID, block.Name, attrs,
		timestampOrNow(block.CreatedAt), timestampOrNow(block.UpdatedAt))
	if err != nil {
		return r.handlePostgresError("create block", err)
	}
	return nil
}

func (r *Repository) GetBlock(ctx context.Context, id featuredsync.BlockID) (*featuredsync.Block, error) {
	query := `
		SELECT id, document_id, name, attributes, created_at, updated_at
		FROM block WHERE id = $1`

	block, err := scanBlock(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, featuredsync.ErrBlockNotFound
		}
		return nil, r.handlePostgresError("get block", err)
	}
	return block, nil
}

func (r *Repository) UpdateBlock(ctx context.Context, block *featuredsync.Block) error {
	attrs, err := json.Marshal(block.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode block attributes: %w", err)
	}

	query := `UPDATE block SET name = $2, attributes = $3, updated_at = $4 WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, block.ID, block.Name, attrs, timestampOrNow(block.UpdatedAt))
	if err != nil {
		return r.handlePostgresError("update block", err)
	}
	if tag.RowsAffected() == 0 {
		return featuredsync.ErrBlockNotFound
	}
	return nil
}

func (r *Repository) ListBlocks(ctx context.Context, documentID featuredsync.DocumentID) ([]*featuredsync.Block, error) {
	query := `
		SELECT id, document_id, name, attributes, created_at, updated_at
		FROM block WHERE document_id = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, r.handlePostgresError("list blocks", err)
	}
	defer rows.Close()

	var blocks []*featuredsync.Block
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, r.handlePostgresError("list blocks", err)
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list blocks", err)
	}
	return blocks, nil
}

func scanBlock(row pgx.Row) (*featuredsync.Block, error) {
	var block featuredsync.Block
	var attrs []byte
	if err := row.Scan(&block.ID, &block.DocumentID, &block.Name, &attrs, &block.CreatedAt, &block.UpdatedAt); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &block.Attributes); err != nil {
			return nil, fmt.Errorf("failed to decode block attributes: %w", err)
		}
	}
	return &block, nil
}

func timestampOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
