package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/repository/repotest"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
	"github.com/vadimbarashkov/expiring-url-shortener/migrations"
	"github.com/vadimbarashkov/expiring-url-shortener/pkg/sqldb"
)

func newTestRepository(t testing.TB) *URLRepository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "urls.db")

	db, err := sqldb.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})

	err = sqldb.RunMigrations(migrations.FS, migrations.SQLiteDir, sqldb.SQLiteURL(path))
	require.NoError(t, err)

	return NewURLRepository(db)
}

func TestURLRepository(t *testing.T) {
	repotest.Run(t, func(t testing.TB) repotest.URLRepository {
		return newTestRepository(t)
	})
}

func TestTimestampPrecision(t *testing.T) {
	repo := newTestRepository(t)

	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.FixedZone("UTC+3", 3*60*60))
	expiresAt := createdAt.Add(entity.DefaultTTL)

	_, err := repo.Save(context.Background(), "abc12", "https://example.com", createdAt, expiresAt)
	require.NoError(t, err)

	url, err := repo.RetrieveByShortCode(context.Background(), "abc12")
	require.NoError(t, err)

	assert.Equal(t, time.UTC, url.CreatedAt.Location())
	assert.True(t, createdAt.Truncate(time.Microsecond).Equal(url.CreatedAt))
	assert.True(t, expiresAt.Truncate(time.Microsecond).Equal(url.ExpiresAt))
}
