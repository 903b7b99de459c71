// Package migrations embeds the schema so binaries and tests migrate from the
// same files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
