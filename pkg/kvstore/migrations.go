package kvstore

import "embed"

// Migrations holds the goose migrations required by PostgresStore.
// Apply them with pg.Migrate using MigrationsDir as the directory.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that contains the SQL files.
const MigrationsDir = "migrations"
