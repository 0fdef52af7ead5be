// Package sql provides the embedded DDL used to bootstrap the version table.
package sql

import (
	"embed"
)

// FS holds one template file per dialect. Each file defines two templates,
// "<dialect>.create" and "<dialect>.seed", rendered with the table and column
// identifiers already quoted for the dialect.
//
//go:embed *.tpl.sql
var FS embed.FS
