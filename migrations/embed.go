// Package migrations compiles the schema SQL into the stationd binary,
// so a deployment needs no migration files on disk.
package migrations

import (
	"embed"

	"github.com/nvalkov/station-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	// The go:embed paths above are relative to this directory, so the
	// files sit at the root of the FS.
	database.MigrationsDir = "."
}
