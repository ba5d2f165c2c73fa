// Package migrations holds the goose SQL migrations for the taskhub schema.
package migrations

import "embed"

// FS contains every *.sql migration, applied in version order.
//
//go:embed *.sql
var FS embed.FS
