// Package rediscache decorates a URL repository with a Redis read-through cache.
//
// Only single-record lookups are cached. Entries never outlive the URL they hold:
// the key TTL is the smaller of the configured cache TTL and the time left until expiry.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/metrics"
)

const (
	keyPrefix       = "url:"
	DefaultCacheTTL = 10 * time.Minute
)

type urlRepository interface {
	Save(ctx context.Context, shortCode, originalURL string, createdAt, expiresAt time.Time) (*entity.URL, error)
	ExistsByShortCode(ctx context.Context, shortCode string) (bool, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	Remove(ctx context.Context, shortCode string) error
	RemoveIfExpired(ctx context.Context, shortCode string, now time.Time) (bool, error)
	RetrieveActive(ctx context.Context, now time.Time) ([]entity.URL, error)
	RetrieveExpired(ctx context.Context, now time.Time) ([]entity.URL, error)
	RemoveExpired(ctx context.Context, now time.Time) (int64, error)
}

type cachedURL struct {
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func fromEntity(url *entity.URL) cachedURL {
	return cachedURL{
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		CreatedAt:   url.CreatedAt.UTC(),
		ExpiresAt:   url.ExpiresAt.UTC(),
	}
}

func (c *cachedURL) toEntity() *entity.URL {
	return &entity.URL{
		ShortCode:   c.ShortCode,
		OriginalURL: c.OriginalURL,
		CreatedAt:   c.CreatedAt.UTC(),
		ExpiresAt:   c.ExpiresAt.UTC(),
	}
}

func cacheKey(shortCode string) string {
	return keyPrefix + shortCode
}

type Option func(*URLRepository)

// WithClock replaces the time source used to bound entry TTLs.
func WithClock(now func() time.Time) Option {
	return func(r *URLRepository) {
		r.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *URLRepository) {
		r.logger = logger
	}
}

// URLRepository serves RetrieveByShortCode from Redis and delegates everything
// else to the backend. Cache failures degrade to backend reads and are logged.
type URLRepository struct {
	client  redis.Cmdable
	backend urlRepository
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewURLRepository(client redis.Cmdable, backend urlRepository, ttl time.Duration, opts ...Option) *URLRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	r := &URLRepository{
		client:  client,
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *URLRepository) Save(ctx context.Context, shortCode, originalURL string, createdAt, expiresAt time.Time) (*entity.URL, error) {
	url, err := r.backend.Save(ctx, shortCode, originalURL, createdAt, expiresAt)
	if err != nil {
		return nil, err
	}

	r.store(ctx, url)

	return url, nil
}

func (r *URLRepository) ExistsByShortCode(ctx context.Context, shortCode string) (bool, error) {
	return r.backend.ExistsByShortCode(ctx, shortCode)
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	if url, ok := r.load(ctx, shortCode); ok {
		return url, nil
	}

	url, err := r.backend.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	r.store(ctx, url)

	return url, nil
}

// Remove deletes the URL from the backend first, then drops the cache entry.
func (r *URLRepository) Remove(ctx context.Context, shortCode string) error {
	const op = "adapter.repository.rediscache.URLRepository.Remove"

	if err := r.backend.Remove(ctx, shortCode); err != nil {
		return err
	}

	if err := r.client.Del(ctx, cacheKey(shortCode)).Err(); err != nil {
		return fmt.Errorf("%s: failed to delete cache entry: %w", op, err)
	}

	return nil
}

// RemoveIfExpired drops the cache entry only when the backend removed the URL.
func (r *URLRepository) RemoveIfExpired(ctx context.Context, shortCode string, now time.Time) (bool, error) {
	const op = "adapter.repository.rediscache.URLRepository.RemoveIfExpired"

	removed, err := r.backend.RemoveIfExpired(ctx, shortCode, now)
	if err != nil || !removed {
		return removed, err
	}

	if err := r.client.Del(ctx, cacheKey(shortCode)).Err(); err != nil {
		return true, fmt.Errorf("%s: failed to delete cache entry: %w", op, err)
	}

	return true, nil
}

func (r *URLRepository) RetrieveActive(ctx context.Context, now time.Time) ([]entity.URL, error) {
	return r.backend.RetrieveActive(ctx, now)
}

func (r *URLRepository) RetrieveExpired(ctx context.Context, now time.Time) ([]entity.URL, error) {
	return r.backend.RetrieveExpired(ctx, now)
}

// RemoveExpired needs no invalidation: entries are evicted by Redis no later
// than the expiry of the URL they hold.
func (r *URLRepository) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.backend.RemoveExpired(ctx, now)
}

func (r *URLRepository) load(ctx context.Context, shortCode string) (*entity.URL, bool) {
	data, err := r.client.Get(ctx, cacheKey(shortCode)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.RecordCacheLookup(metrics.CacheMiss)
			return nil, false
		}

		metrics.RecordCacheLookup(metrics.CacheError)
		r.logger.WarnContext(ctx, "failed to read url from cache",
			slog.String("short_code", shortCode), slog.Any("err", err))
		return nil, false
	}

	var cached cachedURL
	if err := json.Unmarshal(data, &cached); err != nil {
		metrics.RecordCacheLookup(metrics.CacheError)
		r.logger.WarnContext(ctx, "failed to decode cached url",
			slog.String("short_code", shortCode), slog.Any("err", err))
		return nil, false
	}

	metrics.RecordCacheLookup(metrics.CacheHit)

	return cached.toEntity(), true
}

func (r *URLRepository) store(ctx context.Context, url *entity.URL) {
	ttl := r.entryTTL(url)
	if ttl <= 0 {
		return
	}

	data, err := json.Marshal(fromEntity(url))
	if err != nil {
		r.logger.WarnContext(ctx, "failed to encode url for cache",
			slog.String("short_code", url.ShortCode), slog.Any("err", err))
		return
	}

	if err := r.client.Set(ctx, cacheKey(url.ShortCode), string(data), ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "failed to write url to cache",
			slog.String("short_code", url.ShortCode), slog.Any("err", err))
	}
}

func (r *URLRepository) entryTTL(url *entity.URL) time.Duration {
	left := url.ExpiresAt.Sub(r.now())
	if left < r.ttl {
		return left
	}
	return r.ttl
}
