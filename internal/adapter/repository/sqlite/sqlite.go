// Package sqlite implements the URL repository on top of an SQLite file.
// Timestamps are stored as Unix microseconds so range predicates compare integers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

const urlColumns = `short_code, original_url, created_at, expires_at`

type urlDB struct {
	ShortCode   string `db:"short_code"`
	OriginalURL string `db:"original_url"`
	CreatedAt   int64  `db:"created_at"`
	ExpiresAt   int64  `db:"expires_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	return &entity.URL{
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		CreatedAt:   fromUnix(u.CreatedAt),
		ExpiresAt:   fromUnix(u.ExpiresAt),
	}
}

func toUnix(t time.Time) int64 {
	return t.UnixMicro()
}

func fromUnix(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Save inserts the URL unless the short code is already taken, in which case
// it fails with entity.ErrShortCodeExists and leaves the stored row untouched.
func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string, createdAt, expiresAt time.Time) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.Save"
	const query = `INSERT INTO urls(short_code, original_url, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(short_code) DO NOTHING`

	url := urlDB{
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		CreatedAt:   toUnix(createdAt),
		ExpiresAt:   toUnix(expiresAt),
	}

	res, err := r.db.ExecContext(ctx, query, url.ShortCode, url.OriginalURL, url.CreatedAt, url.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected == 0 {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) ExistsByShortCode(ctx context.Context, shortCode string) (bool, error) {
	const op = "adapter.repository.sqlite.URLRepository.ExistsByShortCode"
	const query = `SELECT EXISTS(SELECT 1 FROM urls WHERE short_code = ?)`

	var exists bool

	if err := r.db.GetContext(ctx, &exists, query, shortCode); err != nil {
		return false, fmt.Errorf("%s: failed to check urls table row: %w", op, err)
	}

	return exists, nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.RetrieveByShortCode"
	const query = `SELECT ` + urlColumns + ` FROM urls WHERE short_code = ?`

	var url urlDB

	if err := r.db.GetContext(ctx, &url, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return url.toEntity(), nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.sqlite.URLRepository.Remove"
	const query = `DELETE FROM urls WHERE short_code = ?`

	if _, err := r.db.ExecContext(ctx, query, shortCode); err != nil {
		return fmt.Errorf("%s: failed to delete from urls table: %w", op, err)
	}

	return nil
}

// RemoveIfExpired deletes the URL only while it is still expired at now, so a
// record saved again under the same short code is left alone.
func (r *URLRepository) RemoveIfExpired(ctx context.Context, shortCode string, now time.Time) (bool, error) {
	const op = "adapter.repository.sqlite.URLRepository.RemoveIfExpired"
	const query = `DELETE FROM urls WHERE short_code = ? AND expires_at <= ?`

	res, err := r.db.ExecContext(ctx, query, shortCode, toUnix(now))
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
	const op = "adapter.repository.sqlite.URLRepository.RetrieveActive"
	const query = `SELECT ` + urlColumns + ` FROM urls
		WHERE expires_at > ?
		ORDER BY expires_at, short_code`

	urls, err := r.selectURLs(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to select active rows from urls table: %w", op, err)
	}

	return urls, nil
}

func (r *URLRepository) RetrieveExpired(ctx context.Context, now time.Time) ([]entity.URL, error) {
	const op = "adapter.repository.sqlite.URLRepository.RetrieveExpired"
	const query = `SELECT ` + urlColumns + ` FROM urls
		WHERE expires_at <= ?
		ORDER BY expires_at, short_code`

	urls, err := r.selectURLs(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to select expired rows from urls table: %w", op, err)
	}

	return urls, nil
}

func (r *URLRepository) selectURLs(ctx context.Context, query string, now time.Time) ([]entity.URL, error) {
	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query, toUnix(now)); err != nil {
		return nil, err
	}

	urls := make([]entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, *rows[i].toEntity())
	}

	return urls, nil
}

func (r *URLRepository) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "adapter.repository.sqlite.URLRepository.RemoveExpired"
	const query = `DELETE FROM urls WHERE expires_at <= ?`

	res, err := r.db.ExecContext(ctx, query, toUnix(now))
	if err != nil {
		return 0, fmt.Errorf("%s: failed to delete expired rows from urls table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	return rowsAffected, nil
}
