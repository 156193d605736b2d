// Package migrations embeds the per-driver schema migrations so the binary
// can migrate a database without shipping SQL files alongside it.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
