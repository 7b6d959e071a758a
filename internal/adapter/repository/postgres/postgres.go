// Package postgres implements the URL repository on top of PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}

const urlColumns = `short_code, original_url, created_at, expires_at`

type urlDB struct {
	ShortCode   string    `db:"short_code"`
	OriginalURL string    `db:"original_url"`
	CreatedAt   time.Time `db:"created_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		CreatedAt:   u.CreatedAt.UTC(),
		ExpiresAt:   u.ExpiresAt.UTC(),
	}
}

func toEntities(rows []urlDB) []entity.URL {
	urls := make([]entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, *rows[i].toEntity())
	}
	return urls
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Save inserts the URL. The primary key on short_code makes the insert
// conditional: a taken code fails with entity.ErrShortCodeExists.
func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string, createdAt, expiresAt time.Time) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(short_code, original_url, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + urlColumns

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode, originalURL, createdAt, expiresAt); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) ExistsByShortCode(ctx context.Context, shortCode string) (bool, error) {
	const op = "adapter.repository.postgres.URLRepository.ExistsByShortCode"
	const query = `SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = $1)`

	var exists bool

	if err := r.db.GetContext(ctx, &exists, query, shortCode); err != nil {
		return false, fmt.Errorf("%s: failed to check urls table row: %w", op, err)
	}

	return exists, nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByShortCode"
	const query = `SELECT ` + urlColumns + ` FROM urls WHERE short_code = $1`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

// Remove deletes the URL. Removing an absent short code is not an error.
func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.postgres.URLRepository.Remove"
	const query = `DELETE FROM urls WHERE short_code = $1`

	if _, err := r.db.ExecContext(ctx, query, shortCode); err != nil {
		return fmt.Errorf("%s: failed to delete from urls table: %w", op, err)
	}

	return nil
}

// RemoveIfExpired deletes the URL only while it is still expired at now, so a
// record saved again under the same short code is left alone.
func (r *URLRepository) RemoveIfExpired(ctx context.Context, shortCode string, now time.Time) (bool, error) {
	const op = "adapter.repository.postgres.URLRepository.RemoveIfExpired"
	const query = `DELETE FROM urls WHERE short_code = $1 AND expires_at <= $2`

	res, err := r.db.ExecContext(ctx, query, shortCode, now)
	if err != nil {
		return false, fmt.Errorf("%s: failed to delete expired row from urls table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	return rowsAffected > 0, nil
}

func (r *URLRepository) RetrieveActive(ctx context.Context, now time.Time) ([]entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveActive"
	const query = `SELECT ` + urlColumns + ` FROM urls
		WHERE expires_at > $1
		ORDER BY expires_at, short_code`

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("%s: failed to select active rows from urls table: %w", op, err)
	}

	return toEntities(rows), nil
}

func (r *URLRepository) RetrieveExpired(ctx context.Context, now time.Time) ([]entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveExpired"
	const query = `SELECT ` + urlColumns + ` FROM urls
		WHERE expires_at <= $1
		ORDER BY expires_at, short_code`

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("%s: failed to select expired rows from urls table: %w", op, err)
	}

	return toEntities(rows), nil
}

func (r *URLRepository) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "adapter.repository.postgres.URLRepository.RemoveExpired"
	const query = `DELETE FROM urls WHERE expires_at <= $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to delete expired rows from urls table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	return rowsAffected, nil
}
