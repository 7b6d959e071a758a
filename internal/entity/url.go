// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL with a limited
// lifetime, along with the error definitions shared between layers.
package entity

import (
	"errors"
	"time"
)

// DefaultTTL is the lifetime of a shortened URL unless configured otherwise.
const DefaultTTL = 120 * time.Minute

var (
	// ErrInvalidURL is returned when the original URL is empty or blank.
	ErrInvalidURL = errors.New("invalid url")
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found or has expired.
	ErrURLNotFound = errors.New("url not found")
	// ErrAllocationExhausted is returned when no free short code was found within the attempt budget.
	ErrAllocationExhausted = errors.New("short code allocation exhausted")
)

// URL represents a shortened URL.
type URL struct {
	ShortCode   string    // ShortCode is the generated code used to shorten the original URL.
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created.
	ExpiresAt   time.Time // ExpiresAt is the instant after which the URL no longer resolves.
}

// IsExpired reports whether the URL is expired at the given instant.
// A URL expires exactly at ExpiresAt.
func (u *URL) IsExpired(now time.Time) bool {
	return !u.ExpiresAt.After(now)
}

// TTL returns the remaining lifetime of the URL at the given instant, or zero if it is expired.
func (u *URL) TTL(now time.Time) time.Duration {
	if u.IsExpired(now) {
		return 0
	}
	return u.ExpiresAt.Sub(now)
}
