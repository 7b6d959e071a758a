package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestURL_IsExpired(t *testing.T) {
	expiresAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	url := URL{ShortCode: "abc12", ExpiresAt: expiresAt}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before expiry", now: expiresAt.Add(-time.Nanosecond), want: false},
		{name: "at expiry", now: expiresAt, want: true},
		{name: "after expiry", now: expiresAt.Add(time.Nanosecond), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, url.IsExpired(tt.now))
		})
	}
}

func TestURL_TTL(t *testing.T) {
	expiresAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	url := URL{ShortCode: "abc12", ExpiresAt: expiresAt}

	assert.Equal(t, time.Minute, url.TTL(expiresAt.Add(-time.Minute)))
	assert.Zero(t, url.TTL(expiresAt))
	assert.Zero(t, url.TTL(expiresAt.Add(time.Hour)))
}
