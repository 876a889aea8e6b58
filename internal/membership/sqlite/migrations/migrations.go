package migrations

import "embed"

// FS contains embedded SQLite migrations for the member store.
//
//go:embed *.sql
var FS embed.FS
