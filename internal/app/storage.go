package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/repository/rediscache"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/adapter/repository/sqlite"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/config"
	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"
	"github.com/vadimbarashkov/expiring-url-shortener/migrations"
	"github.com/vadimbarashkov/expiring-url-shortener/pkg/sqldb"
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

// storage is the URL repository selected by config together with the
// resources that have to be released on shutdown.
type storage struct {
	urlRepo urlRepository
	closers []io.Closer
}

func (s *storage) Close() error {
	var firstErr error

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	const op = "app.openStorage"

	s := &storage{}

	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if err := sqldb.RunMigrations(migrations.FS, migrations.PostgresDir, cfg.Postgres.DSN()); err != nil {
			return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		db, err := sqldb.OpenPostgres(
			ctx,
			cfg.Postgres.DSN(),
			sqldb.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			sqldb.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			sqldb.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			sqldb.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}

		s.closers = append(s.closers, db)
		s.urlRepo = postgres.NewURLRepository(db)

	case config.StorageSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
			return nil, fmt.Errorf("%s: failed to create database directory: %w", op, err)
		}

		if err := sqldb.RunMigrations(migrations.FS, migrations.SQLiteDir, sqldb.SQLiteURL(cfg.SQLite.Path)); err != nil {
			return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		db, err := sqldb.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
		}

		s.closers = append(s.closers, db)
		s.urlRepo = sqlite.NewURLRepository(db)

	case config.StorageMemory:
		s.urlRepo = memory.NewURLRepository()

	default:
		return nil, fmt.Errorf("%s: %w: unknown storage driver %q", op, config.ErrInvalidConfig, cfg.Storage.Driver)
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s.closers = append(s.closers, client)

		if err := client.Ping(ctx).Err(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}

		s.urlRepo = rediscache.NewURLRepository(client, s.urlRepo, cfg.Redis.CacheTTL,
			rediscache.WithLogger(logger))
	}

	return s, nil
}
