package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the schema migrations, versioned by file name.
var Migrations = migrate.NewMigrations()
