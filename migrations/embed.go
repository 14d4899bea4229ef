package migrations

import "embed"

// Files holds the backend schema as forward-only SQL migrations.
//
//go:embed *.sql
var Files embed.FS
