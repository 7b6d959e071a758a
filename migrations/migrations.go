// Package migrations embeds the schema migrations of the SQL backends.
// Each backend has its own directory: postgres and sqlite.
package migrations

import "embed"

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
