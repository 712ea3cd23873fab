// Package migrations embeds the default schema applied when no migrations
// directory is configured.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
