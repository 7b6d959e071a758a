package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/metrics"
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

type shortCodeAllocator interface {
	Allocate(ctx context.Context) (string, error)
	MaxAttempts() int
}

// Option configures a URLUseCase.
type Option func(*URLUseCase)

// WithTTL overrides the lifetime of created URLs.
func WithTTL(ttl time.Duration) Option {
	return func(uc *URLUseCase) {
		if ttl > 0 {
			uc.ttl = ttl
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(uc *URLUseCase) {
		uc.now = now
	}
}

// WithLogger sets the logger used for failures that are not returned to the caller.
func WithLogger(logger *slog.Logger) Option {
	return func(uc *URLUseCase) {
		uc.logger = logger
	}
}

// URLUseCase implements shortening and expiry-aware resolution of URLs.
type URLUseCase struct {
	urlRepo   urlRepository
	allocator shortCodeAllocator
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a new URLUseCase.
func New(urlRepo urlRepository, allocator shortCodeAllocator, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:   urlRepo,
		allocator: allocator,
		ttl:       entity.DefaultTTL,
		now:       time.Now,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (uc *URLUseCase) clock() time.Time {
	return uc.now().UTC()
}

// ShortenURL allocates a free short code and stores the original URL under it
// with an expiry of now + TTL. An insert that loses a race for the code is
// retried with a fresh allocation.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if strings.TrimSpace(originalURL) == "" {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	for i := 0; i < uc.allocator.MaxAttempts(); i++ {
		shortCode, err := uc.allocator.Allocate(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to allocate short code: %w", op, err)
		}

		createdAt := uc.clock()

		url, err := uc.urlRepo.Save(ctx, shortCode, originalURL, createdAt, createdAt.Add(uc.ttl))
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				metrics.AllocationCollisions.Inc()
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		metrics.URLsShortened.Inc()

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrAllocationExhausted)
}

// ResolveShortCode returns the URL stored under the short code if it has not expired.
// An expired URL is removed and reported as not found.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	url, err := uc.retrieveActive(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	return url, nil
}

// GetURLStats returns the full record stored under the short code, applying
// the same expiry rules as ResolveShortCode.
func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.retrieveActive(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) retrieveActive(ctx context.Context, shortCode string) (*entity.URL, error) {
	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			metrics.RecordResolve(metrics.ResultNotFound)
		}

		return nil, err
	}

	if now := uc.clock(); url.IsExpired(now) {
		metrics.RecordResolve(metrics.ResultExpired)

		// The record may have been swept and the code reissued since the read.
		removed, err := uc.urlRepo.RemoveIfExpired(ctx, shortCode, now)
		switch {
		case err != nil:
			uc.logger.Warn("failed to remove expired url",
				slog.String("short_code", shortCode),
				slog.Any("err", err),
			)
		case removed:
			metrics.RecordExpired(metrics.SourceLazy, 1)
		}

		return nil, entity.ErrURLNotFound
	}

	metrics.RecordResolve(metrics.ResultFound)

	return url, nil
}

// ListActiveURLs returns all URLs that have not expired yet.
func (uc *URLUseCase) ListActiveURLs(ctx context.Context) ([]entity.URL, error) {
	const op = "usecase.URLUseCase.ListActiveURLs"

	urls, err := uc.urlRepo.RetrieveActive(ctx, uc.clock())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list active urls: %w", op, err)
	}

	return urls, nil
}

// ListExpiredURLs returns all expired URLs that are still stored.
func (uc *URLUseCase) ListExpiredURLs(ctx context.Context) ([]entity.URL, error) {
	const op = "usecase.URLUseCase.ListExpiredURLs"

	urls, err := uc.urlRepo.RetrieveExpired(ctx, uc.clock())
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list expired urls: %w", op, err)
	}

	return urls, nil
}

// PurgeExpiredURLs removes every expired URL from the store and returns how many were removed.
func (uc *URLUseCase) PurgeExpiredURLs(ctx context.Context) (int64, error) {
	const op = "usecase.URLUseCase.PurgeExpiredURLs"

	n, err := uc.urlRepo.RemoveExpired(ctx, uc.clock())
	if err != nil {
		return 0, fmt.Errorf("%s: failed to purge expired urls: %w", op, err)
	}

	metrics.RecordExpired(metrics.SourceSweep, n)

	return n, nil
}
