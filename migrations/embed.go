// Package migrations carries the SQL schema so binaries can migrate without
// a checkout of the repository.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files of this directory
//
//go:embed *.sql
var FS embed.FS
