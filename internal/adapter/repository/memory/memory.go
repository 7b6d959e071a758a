// Package memory implements an in-process URL repository.
// It is used in development mode and in tests that need a real store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
)

// URLRepository stores URLs in a map guarded by a read-write mutex.
// Records are copied in and out so callers never share memory with the store.
type URLRepository struct {
	mu   sync.RWMutex
	urls map[string]entity.URL
}

func NewURLRepository() *URLRepository {
	return &URLRepository{urls: make(map[string]entity.URL)}
}

func (r *URLRepository) Save(_ context.Context, shortCode, originalURL string, createdAt, expiresAt time.Time) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Save"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.urls[shortCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
	}

	url := entity.URL{
		ShortCode:   shortCode,
		OriginalURL: originalURL,
		CreatedAt:   createdAt.UTC(),
		ExpiresAt:   expiresAt.UTC(),
	}
	r.urls[shortCode] = url

	return &url, nil
}

func (r *URLRepository) ExistsByShortCode(_ context.Context, shortCode string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.urls[shortCode]
	return ok, nil
}

func (r *URLRepository) RetrieveByShortCode(_ context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByShortCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.urls[shortCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return &url, nil
}

func (r *URLRepository) Remove(_ context.Context, shortCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.urls, shortCode)
	return nil
}

// RemoveIfExpired deletes the URL only if it has expired at now.
func (r *URLRepository) RemoveIfExpired(_ context.Context, shortCode string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	url, ok := r.urls[shortCode]
	if !ok || !url.IsExpired(now) {
		return false, nil
	}

	delete(r.urls, shortCode)
	return true, nil
}

func (r *URLRepository) RetrieveActive(_ context.Context, now time.Time) ([]entity.URL, error) {
	return r.filter(func(u *entity.URL) bool { return !u.IsExpired(now) }), nil
}

func (r *URLRepository) RetrieveExpired(_ context.Context, now time.Time) ([]entity.URL, error) {
	return r.filter(func(u *entity.URL) bool { return u.IsExpired(now) }), nil
}

func (r *URLRepository) RemoveExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for code, url := range r.urls {
		if url.IsExpired(now) {
			delete(r.urls, code)
			n++
		}
	}

	return n, nil
}

// filter returns matching records ordered by expiry, then short code.
func (r *URLRepository) filter(keep func(*entity.URL) bool) []entity.URL {
	r.mu.RLock()
	urls := make([]entity.URL, 0, len(r.urls))
	for _, url := range r.urls {
		if keep(&url) {
			urls = append(urls, url)
		}
	}
	r.mu.RUnlock()

	sort.Slice(urls, func(i, j int) bool {
		if urls[i].ExpiresAt.Equal(urls[j].ExpiresAt) {
			return urls[i].ShortCode < urls[j].ShortCode
		}
		return urls[i].ExpiresAt.Before(urls[j].ExpiresAt)
	})

	return urls
}
