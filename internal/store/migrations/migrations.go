// Package migrations embeds the message cache schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
