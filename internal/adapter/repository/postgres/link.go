// Package postgres implements the link and click stores on top of PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
	"github.com/vadimbarashkov/link-shortener/pkg/postgres"
)

type linkDB struct {
	ID         int64          `db:"id"`
	ShortCode  string         `db:"short_code"`
	TargetURL  string         `db:"target_url"`
	OwnerID    sql.NullString `db:"owner_id"`
	ClickCount int64          `db:"click_count"`
	CreatedAt  time.Time      `db:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"`
}

func (l *linkDB) toEntity() *entity.Link {
	return &entity.Link{
		ID:         l.ID,
		ShortCode:  l.ShortCode,
		TargetURL:  l.TargetURL,
		OwnerID:    l.OwnerID.String,
		ClickCount: l.ClickCount,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func nullableOwner(ownerID string) sql.NullString {
	return sql.NullString{String: ownerID, Valid: ownerID != ""}
}

// wrapErr marks timeouts and connectivity failures as transient.
func wrapErr(op, msg string, err error) error {
	if postgres.IsTransient(err) {
		return fmt.Errorf("%s: %s: %w: %w", op, msg, entity.ErrTransient, err)
	}
	return fmt.Errorf("%s: %s: %w", op, msg, err)
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// Save inserts a new link. The unique index on short_code is the only
// uniqueness check, so concurrent inserts of the same code cannot both succeed.
func (r *LinkRepository) Save(ctx context.Context, shortCode, targetURL, ownerID string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.Save"
	const query = `INSERT INTO links(short_code, target_url, owner_id) VALUES ($1, $2, $3) RETURNING *`

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, shortCode, targetURL, nullableOwner(ownerID)); err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, wrapErr(op, "failed to insert into links table", err)
	}

	return link.toEntity(), nil
}

func (r *LinkRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.RetrieveByShortCode"
	const query = `SELECT * FROM links WHERE short_code = $1`

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, wrapErr(op, "failed to get row from links table", err)
	}

	return link.toEntity(), nil
}

// RetrieveAndCountClick increments the click counter and returns the updated
// link in a single statement, so a missing link is never counted.
func (r *LinkRepository) RetrieveAndCountClick(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.RetrieveAndCountClick"
	const query = `UPDATE links SET click_count = click_count + 1 WHERE short_code = $1 RETURNING *`

	var link linkDB

	if err := r.db.GetContext(ctx, &link, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, wrapErr(op, "failed to get and update links table row", err)
	}

	return link.toEntity(), nil
}

// UpdateTarget replaces the target URL of a link owned by ownerID, or of an
// anonymous link. The row is locked between the ownership check and the write.
func (r *LinkRepository) UpdateTarget(ctx context.Context, shortCode, targetURL, ownerID string) (*entity.Link, error) {
	const op = "adapter.repository.postgres.LinkRepository.UpdateTarget"
	const (
		selectQuery = `SELECT owner_id FROM links WHERE short_code = $1 FOR UPDATE`
		updateQuery = `UPDATE links SET target_url = $1, updated_at = clock_timestamp() WHERE short_code = $2 RETURNING *`
	)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapErr(op, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var owner sql.NullString

	if err := tx.GetContext(ctx, &owner, selectQuery, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, wrapErr(op, "failed to lock links table row", err)
	}

	if owner.Valid && owner.String != ownerID {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrForbidden)
	}

	var link linkDB

	if err := tx.GetContext(ctx, &link, updateQuery, targetURL, shortCode); err != nil {
		return nil, wrapErr(op, "failed to update links table row", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapErr(op, "failed to commit transaction", err)
	}

	return link.toEntity(), nil
}
