package migrations

import "embed"

// FS contains the embedded SQLite schema for trades and customers.
//
//go:embed *.sql
var FS embed.FS
