// Package migrations holds the embedded SQLite schema and applies it in
// filename order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
