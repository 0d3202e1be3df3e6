// Package migrations holds the entitlement database schema migrations.
package migrations

import "github.com/uptrace/bun/migrate"

// Migrations is the collection the db command group applies.
var Migrations = migrate.NewMigrations()
