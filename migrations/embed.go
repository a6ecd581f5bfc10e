// Package migrations holds the SQL schema for scale definitions and
// assessment records.
package migrations

import "embed"

// FS contains every up and down migration.
//
//go:embed *.sql
var FS embed.FS
