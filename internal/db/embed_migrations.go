package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations.
// Used by the migrate runner (cmd/migrate) to create the auth_snapshots table for the
// postgres session backend.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
