// Package sqldb opens pooled sqlx connections for the supported SQL drivers
// and applies schema migrations to them.
package sqldb

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Registered database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type poolOptions struct {
	connMaxIdleTime time.Duration
	connMaxLifetime time.Duration
	maxIdleConns    int
	maxOpenConns    int
}

var defaultPoolOptions = poolOptions{
	connMaxIdleTime: 5 * time.Minute,
	connMaxLifetime: 30 * time.Minute,
	maxIdleConns:    5,
	maxOpenConns:    25,
}

type Option func(*poolOptions)

func WithConnMaxIdleTime(d time.Duration) Option {
	return func(o *poolOptions) {
		if d > 0 {
			o.connMaxIdleTime = d
		}
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *poolOptions) {
		if d > 0 {
			o.connMaxLifetime = d
		}
	}
}

func WithMaxIdleConns(n int) Option {
	return func(o *poolOptions) {
		if n > 0 {
			o.maxIdleConns = n
		}
	}
}

func WithMaxOpenConns(n int) Option {
	return func(o *poolOptions) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// OpenPostgres connects to PostgreSQL through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*sqlx.DB, error) {
	const op = "sqldb.OpenPostgres"

	db, err := open(ctx, DriverPostgres, dsn, defaultPoolOptions, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return db, nil
}

// OpenSQLite opens (or creates) the SQLite database file at path.
// SQLite allows a single writer, so the pool is pinned to one connection.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	const op = "sqldb.OpenSQLite"

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	pool := poolOptions{maxIdleConns: 1, maxOpenConns: 1}

	db, err := open(ctx, DriverSQLite, dsn, pool, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return db, nil
}

func open(ctx context.Context, driver, dsn string, pool poolOptions, opts []Option) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	for _, opt := range opts {
		opt(&pool)
	}

	db.SetConnMaxIdleTime(pool.connMaxIdleTime)
	db.SetConnMaxLifetime(pool.connMaxLifetime)
	db.SetMaxIdleConns(pool.maxIdleConns)
	db.SetMaxOpenConns(pool.maxOpenConns)

	return db, nil
}
