package repository

import "embed"

// Migrations is the embedded goose migration set for the marketplace
// schema, applied at startup via pkg/db.Migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS
