// Package migrations embeds SQL migration files into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.Migrations = migrationsFS
	database.MigrationsDir = "."
}
