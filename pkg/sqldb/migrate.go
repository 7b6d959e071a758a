package sqldb

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
)

// RunMigrations applies the migrations found in dir of fsys to the database at databaseURL.
// The URL scheme selects the migrate driver: postgres:// or sqlite://.
func RunMigrations(fsys fs.FS, dir, databaseURL string) error {
	const op = "sqldb.RunMigrations"

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("%s: failed to open migrations source: %w", op, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return nil
}

// SQLiteURL returns the migrate database URL of the SQLite file at path.
func SQLiteURL(path string) string {
	return "sqlite://" + path
}
