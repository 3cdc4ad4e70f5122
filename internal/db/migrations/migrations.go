// Package migrations embeds the goose SQL migrations of the task history.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
